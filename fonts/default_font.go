package fonts

import (
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/jamesrr39/goutil/errorsx"
	"golang.org/x/image/font/gofont/goregular"
)

var defaultFont *truetype.Font

func init() {
	font, err := loadDefault()
	if err != nil {
		panic(err)
	}

	defaultFont = font
}

func loadDefault() (*truetype.Font, errorsx.Error) {
	font, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return font, nil
}

// DefaultFont is the font used when nothing else could be registered
func DefaultFont() *truetype.Font {
	return defaultFont
}
