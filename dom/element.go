package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"golang.org/x/net/html"
)

type Element struct {
	doc  *Document
	node *html.Node

	Style *Style

	properties map[string]interface{}
	events     eventTargetState
}

func newElement(doc *Document, node *html.Node) *Element {
	el := &Element{
		doc:        doc,
		node:       node,
		properties: make(map[string]interface{}),
	}
	el.Style = &Style{el}

	return el
}

func (e *Element) OwnerDocument() *Document {
	return e.doc
}

// Node is the underlying html node
func (e *Element) Node() *html.Node {
	return e.node
}

// TagName is the lower-case tag name
func (e *Element) TagName() string {
	return e.node.Data
}

func getAttr(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Namespace == "" && attr.Key == name {
			return attr.Val
		}
	}

	return ""
}

func (e *Element) GetAttribute(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, attr := range e.node.Attr {
		if attr.Namespace == "" && attr.Key == name {
			return attr.Val, true
		}
	}

	return "", false
}

func (e *Element) HasAttribute(name string) bool {
	_, ok := e.GetAttribute(name)
	return ok
}

func (e *Element) SetAttribute(name, value string) {
	name = strings.ToLower(name)
	e.setAttributeSilently(name, value)
	e.attributeChanged(name, value)
}

func (e *Element) setAttributeSilently(name, value string) {
	for i, attr := range e.node.Attr {
		if attr.Namespace == "" && attr.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}

	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) RemoveAttribute(name string) {
	name = strings.ToLower(name)
	for i, attr := range e.node.Attr {
		if attr.Namespace == "" && attr.Key == name {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			e.attributeChanged(name, "")
			return
		}
	}
}

func (e *Element) attributeChanged(name, value string) {
	hooks, ok := e.doc.hooks[e.node.Data]
	if ok && hooks.AttributeChanged != nil {
		hooks.AttributeChanged(e, name, value)
	}
}

func (e *Element) ID() string {
	return getAttr(e.node, "id")
}

func (e *Element) SetID(id string) {
	e.SetAttribute("id", id)
}

func (e *Element) ClassName() string {
	return getAttr(e.node, "class")
}

func (e *Element) SetClassName(className string) {
	e.SetAttribute("class", className)
}

func (e *Element) Classes() []string {
	return strings.Fields(e.ClassName())
}

func (e *Element) HasClass(className string) bool {
	for _, c := range e.Classes() {
		if c == className {
			return true
		}
	}

	return false
}

// AddClass adds each space-separated class that is not already present
func (e *Element) AddClass(classNames string) {
	classes := e.Classes()
	for _, className := range strings.Fields(classNames) {
		if !e.HasClass(className) {
			classes = append(classes, className)
		}
	}

	e.SetClassName(strings.Join(classes, " "))
}

func (e *Element) RemoveClass(classNames string) {
	toRemove := make(map[string]bool)
	for _, className := range strings.Fields(classNames) {
		toRemove[className] = true
	}

	var classes []string
	for _, className := range e.Classes() {
		if !toRemove[className] {
			classes = append(classes, className)
		}
	}

	e.SetClassName(strings.Join(classes, " "))
}

// SetProperty stores an arbitrary value on the element, like an expando property
func (e *Element) SetProperty(key string, value interface{}) {
	e.properties[key] = value
}

func (e *Element) Property(key string) (interface{}, bool) {
	value, ok := e.properties[key]
	return value, ok
}

func (e *Element) DeleteProperty(key string) {
	delete(e.properties, key)
}

func (e *Element) ParentElement() *Element {
	return e.doc.wrap(e.node.Parent)
}

func (e *Element) Children() []*Element {
	var children []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			children = append(children, e.doc.wrap(c))
		}
	}

	return children
}

func (e *Element) FirstElementChild() *Element {
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return e.doc.wrap(c)
		}
	}

	return nil
}

// Contains reports whether other is e or one of its descendants
func (e *Element) Contains(other *Element) bool {
	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}

	return false
}

// IsConnected reports whether the element is attached to its document
func (e *Element) IsConnected() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}

	return false
}

// AppendChild moves child to the end of e's children
func (e *Element) AppendChild(child *Element) (*Element, errorsx.Error) {
	if child.Contains(e) {
		return nil, errorsx.Errorf("cannot append an element to itself or one of its descendants")
	}

	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)

	return child, nil
}

// InsertBefore inserts child before ref. A nil ref appends.
func (e *Element) InsertBefore(child, ref *Element) (*Element, errorsx.Error) {
	if ref == nil {
		return e.AppendChild(child)
	}
	if ref.node.Parent != e.node {
		return nil, errorsx.Errorf("the reference element is not a child of this element")
	}
	if child.Contains(e) {
		return nil, errorsx.Errorf("cannot insert an element into itself or one of its descendants")
	}
	if child == ref {
		return child, nil
	}

	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.InsertBefore(child.node, ref.node)

	return child, nil
}

// RemoveChild detaches child, running Detached hooks for the whole removed subtree
func (e *Element) RemoveChild(child *Element) (*Element, errorsx.Error) {
	if child.node.Parent != e.node {
		return nil, errorsx.Errorf("the element to be removed is not a child of this element")
	}

	e.node.RemoveChild(child.node)
	e.doc.detached(child.node)

	return child, nil
}

// Remove detaches e from its parent, if it has one
func (e *Element) Remove() {
	if e.node.Parent == nil {
		return
	}

	e.node.Parent.RemoveChild(e.node)
	e.doc.detached(e.node)
}

func (d *Document) detached(node *html.Node) {
	if node.Type == html.ElementNode {
		el := d.wrap(node)
		hooks, ok := d.hooks[node.Data]
		if ok && hooks.Detached != nil {
			hooks.Detached(el)
		}
	}

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		d.detached(c)
	}
}

// RemoveChildren detaches every child node
func (e *Element) RemoveChildren() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		e.doc.detached(c)
		c = next
	}
}

func (e *Element) InnerHTML() (string, errorsx.Error) {
	sb := new(strings.Builder)
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		err := html.Render(sb, c)
		if err != nil {
			return "", errorsx.Wrap(err)
		}
	}

	return sb.String(), nil
}

// SetInnerHTML replaces the children with the parsed fragment
func (e *Element) SetInnerHTML(fragment string) errorsx.Error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), e.node)
	if err != nil {
		return errorsx.Wrap(err)
	}

	e.RemoveChildren()
	for _, node := range nodes {
		e.node.AppendChild(node)
	}

	return nil
}

func (e *Element) TextContent() string {
	sb := new(strings.Builder)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)

	return sb.String()
}

func (e *Element) SetTextContent(text string) {
	e.RemoveChildren()
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// QuerySelectorAll returns matching descendants in document order
func (e *Element) QuerySelectorAll(selector string) []*Element {
	return e.doc.wrapAll(goquery.NewDocumentFromNode(e.node).Find(selector).Nodes)
}

func (e *Element) QuerySelector(selector string) *Element {
	elements := e.QuerySelectorAll(selector)
	if len(elements) == 0 {
		return nil
	}

	return elements[0]
}

// Matches reports whether the element matches the selector
func (e *Element) Matches(selector string) bool {
	return goquery.NewDocumentFromNode(e.node).Selection.Is(selector)
}

func (e *Element) intAttribute(name string) (int, bool) {
	value, ok := e.GetAttribute(name)
	if !ok {
		return 0, false
	}

	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}

	return i, true
}

// Width is the element's width property: what the tag's Dimensions hook reports, else the width attribute
func (e *Element) Width() (int, bool) {
	hooks, ok := e.doc.hooks[e.node.Data]
	if ok && hooks.Dimensions != nil {
		width, _, ok := hooks.Dimensions(e)
		if ok {
			return width, true
		}
	}

	return e.intAttribute("width")
}

func (e *Element) Height() (int, bool) {
	hooks, ok := e.doc.hooks[e.node.Data]
	if ok && hooks.Dimensions != nil {
		_, height, ok := hooks.Dimensions(e)
		if ok {
			return height, true
		}
	}

	return e.intAttribute("height")
}

func (e *Element) SetWidth(width int) {
	e.SetAttribute("width", strconv.Itoa(width))
}

func (e *Element) SetHeight(height int) {
	e.SetAttribute("height", strconv.Itoa(height))
}

// WidthAttribute is the parsed width attribute, ignoring the Dimensions hook
func (e *Element) WidthAttribute() (int, bool) {
	return e.intAttribute("width")
}

func (e *Element) HeightAttribute() (int, bool) {
	return e.intAttribute("height")
}

func (e *Element) Src() string {
	return getAttr(e.node, "src")
}

// SetSrc sets the src attribute. Image loading is driven by the img AttributeChanged hook.
func (e *Element) SetSrc(src string) {
	e.SetAttribute("src", src)
}

// GetContext returns the drawing context of a canvas element
func (e *Element) GetContext(contextType string) (*rasterengine.Context2D, errorsx.Error) {
	if e.doc.contextProvider == nil {
		return nil, errorsx.Wrap(rasterengine.ErrContextUnavailable, "reason", "no context provider installed")
	}

	return e.doc.contextProvider.GetContext(e, contextType)
}

type DOMRect struct {
	Left, Top, Width, Height float64
}

func (r DOMRect) Right() float64 {
	return r.Left + r.Width
}

func (r DOMRect) Bottom() float64 {
	return r.Top + r.Height
}

func (e *Element) numericProperty(key string) float64 {
	value, ok := e.properties[key]
	if !ok {
		return 0
	}

	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// GetBoundingClientRect reports an empty rectangle at the origin unless a "boundingClientRect" property is set
func (e *Element) GetBoundingClientRect() DOMRect {
	rect, ok := e.properties["boundingClientRect"].(DOMRect)
	if ok {
		return rect
	}

	return DOMRect{}
}

// layout properties. There is no layout engine, so these are zero unless set as properties.

func (e *Element) ClientWidth() float64  { return e.numericProperty("clientWidth") }
func (e *Element) ClientHeight() float64 { return e.numericProperty("clientHeight") }
func (e *Element) ClientLeft() float64   { return e.numericProperty("clientLeft") }
func (e *Element) ClientTop() float64    { return e.numericProperty("clientTop") }
func (e *Element) OffsetLeft() float64   { return e.numericProperty("offsetLeft") }
func (e *Element) OffsetTop() float64    { return e.numericProperty("offsetTop") }
func (e *Element) OffsetWidth() float64  { return e.numericProperty("offsetWidth") }
func (e *Element) OffsetHeight() float64 { return e.numericProperty("offsetHeight") }
