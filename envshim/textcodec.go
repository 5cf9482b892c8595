package envshim

import (
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// TextDecoder decodes bytes in a WHATWG-labelled encoding to a UTF-8 string
type TextDecoder struct {
	name string
	enc  encoding.Encoding
}

func NewTextDecoder(label string) (*TextDecoder, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "utf-8"
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errorsx.Wrap(err, "label", label)
	}

	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, errorsx.Wrap(err, "label", label)
	}

	return &TextDecoder{name, enc}, nil
}

func (d *TextDecoder) Encoding() string {
	return d.name
}

func (d *TextDecoder) Decode(data []byte) (string, error) {
	decoded, err := d.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", errorsx.Wrap(err, "encoding", d.name)
	}

	return string(decoded), nil
}
