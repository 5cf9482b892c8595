package dom

import (
	"strconv"
	"strings"

	"github.com/tdewolff/parse/css"
)

// Style is the element's inline style. It reads and writes the style attribute.
type Style struct {
	el *Element
}

type StyleProperty struct {
	Name  string
	Value string
}

// ParseStyle parses a style attribute. Semicolons inside functions or strings, e.g. in url(data:...),
// do not end a declaration. Declarations without a property name and colon are skipped.
func ParseStyle(s string) []StyleProperty {
	var properties []StyleProperty

	lexer := css.NewLexer(strings.NewReader(s))
	for {
		tokens, more := nextDeclaration(lexer)

		name, value, ok := splitDeclaration(tokens)
		if ok {
			properties = setStyleProperty(properties, name, value)
		}

		if !more {
			return properties
		}
	}
}

type token struct {
	tt   css.TokenType
	data string
}

// nextDeclaration reads the tokens up to the next semicolon outside any parentheses.
// more is false once the input is exhausted.
func nextDeclaration(lexer *css.Lexer) (tokens []token, more bool) {
	depth := 0
	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return tokens, false
		case css.SemicolonToken:
			if depth == 0 {
				return tokens, true
			}
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			if depth > 0 {
				depth--
			}
		}

		tokens = append(tokens, token{tt, string(data)})
	}
}

func splitDeclaration(tokens []token) (string, string, bool) {
	tokens = trimWhitespace(tokens)
	if len(tokens) == 0 || tokens[0].tt != css.IdentToken {
		return "", "", false
	}

	name := strings.ToLower(tokens[0].data)
	rest := trimWhitespace(tokens[1:])
	if len(rest) == 0 || rest[0].tt != css.ColonToken {
		return "", "", false
	}

	var value strings.Builder
	for _, t := range trimWhitespace(rest[1:]) {
		value.WriteString(t.data)
	}

	return name, value.String(), true
}

func trimWhitespace(tokens []token) []token {
	for len(tokens) > 0 && tokens[0].tt == css.WhitespaceToken {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].tt == css.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}

	return tokens
}

func setStyleProperty(properties []StyleProperty, name, value string) []StyleProperty {
	for i, property := range properties {
		if property.Name == name {
			properties[i].Value = value
			return properties
		}
	}

	return append(properties, StyleProperty{name, value})
}

func SerializeStyle(properties []StyleProperty) string {
	var declarations []string
	for _, property := range properties {
		declarations = append(declarations, property.Name+": "+property.Value+";")
	}

	return strings.Join(declarations, " ")
}

func (s *Style) Properties() []StyleProperty {
	return ParseStyle(getAttr(s.el.node, "style"))
}

// Get returns the value of a property, or "" if it is not set
func (s *Style) Get(name string) string {
	name = strings.ToLower(name)
	for _, property := range s.Properties() {
		if property.Name == name {
			return property.Value
		}
	}

	return ""
}

// Set sets a property. An empty value removes it.
func (s *Style) Set(name, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	if value == "" {
		s.Remove(name)
		return
	}

	s.el.SetAttribute("style", SerializeStyle(setStyleProperty(s.Properties(), name, value)))
}

func (s *Style) Remove(name string) {
	name = strings.ToLower(name)

	var properties []StyleProperty
	for _, property := range s.Properties() {
		if property.Name != name {
			properties = append(properties, property)
		}
	}

	if len(properties) == 0 {
		s.el.RemoveAttribute("style")
		return
	}

	s.el.SetAttribute("style", SerializeStyle(properties))
}

// SetPx sets a property to a pixel length, e.g. "12px"
func (s *Style) SetPx(name string, value float64) {
	s.Set(name, FormatPx(value))
}

func FormatPx(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "px"
}

// ParsePx parses a length in pixels: "12px", "12", or a calc() sum of those such as "calc(10px - 2px)".
// Other units are not supported.
func ParsePx(value string) (float64, bool) {
	lexer := css.NewLexer(strings.NewReader(value))

	tt, data := nextNonWhitespace(lexer)
	length, ok := ReadPx(lexer, tt, data)
	if !ok {
		return 0, false
	}

	if tt, _ := nextNonWhitespace(lexer); tt != css.ErrorToken {
		return 0, false
	}

	return length, true
}

// ParseNumber parses a plain number, e.g. an opacity. A percentage is returned as a fraction.
func ParseNumber(value string) (float64, bool) {
	lexer := css.NewLexer(strings.NewReader(value))

	tt, data := nextNonWhitespace(lexer)

	var number float64
	switch tt {
	case css.NumberToken:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return 0, false
		}
		number = f
	case css.PercentageToken:
		f, err := strconv.ParseFloat(strings.TrimSuffix(string(data), "%"), 64)
		if err != nil {
			return 0, false
		}
		number = f / 100
	default:
		return 0, false
	}

	if tt, _ := nextNonWhitespace(lexer); tt != css.ErrorToken {
		return 0, false
	}

	return number, true
}

// ReadPx reads a pixel length starting at the token tt: a number, a px dimension, or a calc() or
// parenthesised sum of those. For a function or parenthesis it consumes up to the matching close,
// so the lexer stays in step even when the length is not understood.
func ReadPx(lexer *css.Lexer, tt css.TokenType, data []byte) (float64, bool) {
	switch tt {
	case css.NumberToken:
		f, err := strconv.ParseFloat(string(data), 64)
		return f, err == nil
	case css.DimensionToken:
		dimension := strings.ToLower(string(data))
		if !strings.HasSuffix(dimension, "px") {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(dimension, "px"), 64)
		return f, err == nil
	case css.LeftParenthesisToken:
		return readSum(lexer)
	case css.FunctionToken:
		if strings.EqualFold(string(data), "calc(") {
			return readSum(lexer)
		}
		SkipBlock(lexer)
		return 0, false
	default:
		return 0, false
	}
}

// readSum adds and subtracts lengths up to the closing parenthesis
func readSum(lexer *css.Lexer) (float64, bool) {
	total := 0.0
	sign := 1.0
	ok := true

	for {
		tt, data := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return 0, false
		case css.RightParenthesisToken:
			if !ok {
				return 0, false
			}
			return total, true
		case css.WhitespaceToken:
		case css.DelimToken:
			switch string(data) {
			case "+":
				sign = 1
			case "-":
				sign = -1
			default:
				ok = false
			}
		default:
			value, valid := ReadPx(lexer, tt, data)
			if !valid {
				ok = false
			}
			total += sign * value
			sign = 1
		}
	}
}

// SkipBlock consumes tokens up to the parenthesis closing the current function or block
func SkipBlock(lexer *css.Lexer) {
	depth := 1
	for depth > 0 {
		tt, _ := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		}
	}
}

func nextNonWhitespace(lexer *css.Lexer) (css.TokenType, []byte) {
	for {
		tt, data := lexer.Next()
		if tt != css.WhitespaceToken {
			return tt, data
		}
	}
}
