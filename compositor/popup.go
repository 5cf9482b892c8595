package compositor

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
	"golang.org/x/net/html"
)

const (
	PopupFontStack  = `"Helvetica Neue", Arial, Helvetica, sans-serif`
	PopupFontSize   = 12
	PopupLineHeight = 17

	popupPaddingX      = 19
	popupPaddingY      = 13
	popupTipHeight     = 10
	popupTipHalfWidth  = 10
	popupCornerRadius  = 12
	popupShadowOffsetY = 3

	popupFillColor    = "#ffffff"
	popupShadowColor  = "rgba(0, 0, 0, 0.2)"
	popupOutlineColor = "rgba(0, 0, 0, 0.25)"
	popupTextColor    = "#333333"
)

var popupFont = fmt.Sprintf("%dpx %s", PopupFontSize, PopupFontStack)

type Rect struct {
	X, Y, Width, Height float64
}

// PopupLayout is where a popup's box, tip and text go on the output canvas
type PopupLayout struct {
	// Tip is the point the popup points at
	Tip   slippymap.Point
	Box   Rect
	Lines []string
}

// LayoutPopup places a popup's box above its tip. The box is as wide as the widest line,
// within the popup's minimum and maximum widths; longer lines are wrapped.
func LayoutPopup(ctx *rasterengine.Context2D, m *slippymap.Map, popup *slippymap.Popup) PopupLayout {
	options := popup.Options()

	tip := m.LatLngToContainerPoint(popup.GetLatLng()).Add(popup.Anchor()).Add(options.Offset)

	ctx.SetFont(popupFont)

	maxWidth := options.MaxWidth
	if maxWidth <= 0 {
		maxWidth = math.Inf(1)
	}

	var lines []string
	for _, line := range PopupText(popup.GetContent()) {
		lines = append(lines, wrapLine(ctx, line, maxWidth)...)
	}

	var contentWidth float64
	for _, line := range lines {
		contentWidth = math.Max(contentWidth, ctx.MeasureText(line).Width)
	}
	contentWidth = math.Min(math.Max(contentWidth, options.MinWidth), maxWidth)

	width := math.Ceil(contentWidth) + 2*popupPaddingX
	height := float64(len(lines)*PopupLineHeight) + 2*popupPaddingY

	return PopupLayout{
		Tip: tip,
		Box: Rect{
			X:      tip.X - width/2,
			Y:      tip.Y - popupTipHeight - height,
			Width:  width,
			Height: height,
		},
		Lines: lines,
	}
}

// PaintPopup draws a popup's shadow, box and tip, their outline, then the text
func PaintPopup(ctx *rasterengine.Context2D, layout PopupLayout) errorsx.Error {
	box := layout.Box
	ctx.Save()
	defer ctx.Restore()

	ctx.SetGlobalAlpha(1)

	err := ctx.SetFillStyle(popupShadowColor)
	if err != nil {
		return err
	}
	ctx.BeginPath()
	ctx.RoundRect(box.X, box.Y+popupShadowOffsetY, box.Width, box.Height, popupCornerRadius)
	ctx.Fill()

	err = ctx.SetFillStyle(popupFillColor)
	if err != nil {
		return err
	}
	err = ctx.SetStrokeStyle(popupOutlineColor)
	if err != nil {
		return err
	}
	ctx.SetLineWidth(1)

	ctx.BeginPath()
	ctx.RoundRect(box.X, box.Y, box.Width, box.Height, popupCornerRadius)
	ctx.Fill()
	ctx.Stroke()

	bottom := box.Y + box.Height
	ctx.BeginPath()
	ctx.MoveTo(layout.Tip.X-popupTipHalfWidth, bottom)
	ctx.LineTo(layout.Tip.X, layout.Tip.Y)
	ctx.LineTo(layout.Tip.X+popupTipHalfWidth, bottom)
	ctx.ClosePath()
	ctx.Fill()
	ctx.Stroke()

	err = ctx.SetFillStyle(popupTextColor)
	if err != nil {
		return err
	}
	ctx.SetFont(popupFont)
	ctx.SetTextAlign("left")
	ctx.SetTextBaseline("top")

	for i, line := range layout.Lines {
		err = ctx.FillText(line, box.X+popupPaddingX, box.Y+popupPaddingY+float64(i*PopupLineHeight))
		if err != nil {
			return errorsx.Wrap(err, "line", i)
		}
	}

	return nil
}

var blankLinesRegexp = regexp.MustCompile(`\n{3,}`)

// PopupText turns popup HTML content into lines of text. Line breaks and block elements end lines,
// lines are trimmed, and runs of blank lines are collapsed into one.
func PopupText(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return splitLines(content)
	}

	sb := new(strings.Builder)
	for _, node := range doc.Find("body").Nodes {
		writeText(sb, node)
	}

	return splitLines(sb.String())
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func writeText(sb *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		sb.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.Data == "br" {
			sb.WriteString("\n")
			return
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(sb, child)
	}

	if node.Type == html.ElementNode && blockElements[node.Data] {
		sb.WriteString("\n")
	}
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	rawLines := strings.Split(text, "\n")
	trimmed := make([]string, len(rawLines))
	for i, line := range rawLines {
		trimmed[i] = strings.Join(strings.Fields(line), " ")
	}

	text = strings.TrimSpace(strings.Join(trimmed, "\n"))
	if text == "" {
		return nil
	}

	text = blankLinesRegexp.ReplaceAllString(text, "\n\n")

	return strings.Split(text, "\n")
}

// wrapLine breaks a line between words so each part fits maxWidth. A single word wider than maxWidth gets its own line.
func wrapLine(ctx *rasterengine.Context2D, line string, maxWidth float64) []string {
	if line == "" || ctx.MeasureText(line).Width <= maxWidth {
		return []string{line}
	}

	var (
		lines   []string
		current string
	)
	for _, word := range strings.Fields(line) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}

		if current != "" && ctx.MeasureText(candidate).Width > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}

		current = candidate
	}

	if current != "" {
		lines = append(lines, current)
	}

	return lines
}
