package compositor

import (
	"strings"

	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/slippymap"
	"github.com/tdewolff/parse/css"
)

type placement struct {
	// offset of the element's top left corner from the container's
	offset  slippymap.Point
	opacity float64
	hidden  bool
}

// placeElement walks from the element up to, but not including, the container, summing offsets and multiplying opacities
func placeElement(el, container *dom.Element) placement {
	p := placement{opacity: 1}

	for current := el; current != nil && current != container; current = current.ParentElement() {
		if current.Style.Get("display") == "none" || current.Style.Get("visibility") == "hidden" {
			p.hidden = true
		}

		p.offset = p.offset.Add(ownOffset(current))

		opacity, ok := dom.ParseNumber(current.Style.Get("opacity"))
		if ok {
			p.opacity *= opacity
		}
	}

	return p
}

// ownOffset is the element's offset from its parent. In order of preference it comes from
// the position the map library recorded, the CSS transform, left/top, then the offset properties.
// Margins are added to all of them.
func ownOffset(el *dom.Element) slippymap.Point {
	offset, ok := recordedPosition(el)
	if !ok {
		offset, ok = parseTransform(el.Style.Get("transform"))
	}
	if !ok {
		offset, ok = leftTop(el)
	}
	if !ok {
		offset = slippymap.Point{X: el.OffsetLeft(), Y: el.OffsetTop()}
	}

	marginLeft, _ := dom.ParsePx(el.Style.Get("margin-left"))
	marginTop, _ := dom.ParsePx(el.Style.Get("margin-top"))

	return offset.Add(slippymap.Point{X: marginLeft, Y: marginTop})
}

func recordedPosition(el *dom.Element) (slippymap.Point, bool) {
	value, ok := el.Property(slippymap.PositionProperty)
	if !ok {
		return slippymap.Point{}, false
	}

	p, ok := value.(slippymap.Point)
	return p, ok
}

func leftTop(el *dom.Element) (slippymap.Point, bool) {
	left, leftOK := dom.ParsePx(el.Style.Get("left"))
	top, topOK := dom.ParsePx(el.Style.Get("top"))

	return slippymap.Point{X: left, Y: top}, leftOK || topOK
}

// parseTransform sums the translation of every function in a CSS transform.
// Only translations are understood; scaling and rotation are ignored.
func parseTransform(transform string) (slippymap.Point, bool) {
	var (
		offset slippymap.Point
		found  bool
	)

	lexer := css.NewLexer(strings.NewReader(transform))
	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return offset, found
		case css.FunctionToken:
			name := strings.ToLower(strings.TrimSuffix(string(data), "("))

			args, ok := readArgs(lexer)
			if !ok {
				continue
			}

			translation, ok := translationOf(name, args)
			if !ok {
				continue
			}

			offset = offset.Add(translation)
			found = true
		}
	}
}

// readArgs reads a function's comma or space separated pixel lengths, up to its closing parenthesis
func readArgs(lexer *css.Lexer) ([]float64, bool) {
	var args []float64
	ok := true

	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return nil, false
		case css.RightParenthesisToken:
			return args, ok
		case css.WhitespaceToken, css.CommaToken:
		default:
			value, valid := dom.ReadPx(lexer, tt, data)
			if !valid {
				ok = false
			}
			args = append(args, value)
		}
	}
}

func translationOf(name string, args []float64) (slippymap.Point, bool) {
	switch name {
	case "matrix":
		if len(args) != 6 {
			return slippymap.Point{}, false
		}
		return slippymap.Point{X: args[4], Y: args[5]}, true
	case "matrix3d":
		if len(args) != 16 {
			return slippymap.Point{}, false
		}
		return slippymap.Point{X: args[12], Y: args[13]}, true
	case "translate", "translate3d":
		if len(args) == 0 {
			return slippymap.Point{}, false
		}
		p := slippymap.Point{X: args[0]}
		if len(args) > 1 {
			p.Y = args[1]
		}
		return p, true
	case "translatex":
		if len(args) != 1 {
			return slippymap.Point{}, false
		}
		return slippymap.Point{X: args[0]}, true
	case "translatey":
		if len(args) != 1 {
			return slippymap.Point{}, false
		}
		return slippymap.Point{Y: args[0]}, true
	default:
		return slippymap.Point{}, false
	}
}
