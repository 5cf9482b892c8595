// Package dom is a small synthetic DOM over golang.org/x/net/html node trees.
// It has no layout engine; layout properties read as zero.
// A Document and its elements must only be used from the goroutine that pumps the environment's event loop.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ElementHooks customise elements of one tag
type ElementHooks struct {
	// Created runs when the element is created. An error makes CreateElement fail.
	Created func(el *Element) errorsx.Error
	// Detached runs for every element of a subtree removed from its parent
	Detached func(el *Element)
	// AttributeChanged runs after SetAttribute or RemoveAttribute. value is "" on removal.
	AttributeChanged func(el *Element, name, value string)
	// Dimensions overrides the width and height the element reports
	Dimensions func(el *Element) (width, height int, ok bool)
}

// ContextProvider supplies drawing contexts for canvas elements
type ContextProvider interface {
	GetContext(el *Element, contextType string) (*rasterengine.Context2D, errorsx.Error)
}

type Document struct {
	root     *html.Node
	elements map[*html.Node]*Element
	hooks    map[string]ElementHooks

	contextProvider ContextProvider
}

const emptyDocument = `<!DOCTYPE html><html><head></head><body></body></html>`

func NewDocument() *Document {
	root, err := html.Parse(strings.NewReader(emptyDocument))
	if err != nil {
		// parsing a constant document cannot fail
		panic(err)
	}

	return NewDocumentFromNode(root)
}

// NewDocumentFromNode wraps an existing parsed document
func NewDocumentFromNode(root *html.Node) *Document {
	return &Document{
		root:     root,
		elements: make(map[*html.Node]*Element),
		hooks:    make(map[string]ElementHooks),
	}
}

// ParseDocument parses a full HTML document
func ParseDocument(s string) (*Document, errorsx.Error) {
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return NewDocumentFromNode(root), nil
}

// RegisterHooks installs hooks for a tag, replacing any already installed
func (d *Document) RegisterHooks(tagName string, hooks ElementHooks) {
	d.hooks[strings.ToLower(tagName)] = hooks
}

func (d *Document) Hooks(tagName string) (ElementHooks, bool) {
	hooks, ok := d.hooks[strings.ToLower(tagName)]
	return hooks, ok
}

func (d *Document) SetContextProvider(provider ContextProvider) {
	d.contextProvider = provider
}

// CreateElement creates a detached element, running the tag's Created hook
func (d *Document) CreateElement(tagName string) (*Element, errorsx.Error) {
	tagName = strings.ToLower(tagName)
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tagName,
		DataAtom: atom.Lookup([]byte(tagName)),
	}

	el := d.wrap(node)

	hooks, ok := d.hooks[tagName]
	if ok && hooks.Created != nil {
		err := hooks.Created(el)
		if err != nil {
			delete(d.elements, node)
			return nil, errorsx.Wrap(err, "tagName", tagName)
		}
	}

	return el, nil
}

// wrap returns the one Element for a node, creating it if needed
func (d *Document) wrap(node *html.Node) *Element {
	if node == nil || node.Type != html.ElementNode {
		return nil
	}

	el, ok := d.elements[node]
	if ok {
		return el
	}

	el = newElement(d, node)
	d.elements[node] = el

	return el
}

// findNode returns the first element node in document order that matches
func (d *Document) findNode(match func(n *html.Node) bool) *html.Node {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)

	return found
}

func (d *Document) findFirst(atomName atom.Atom) *html.Node {
	return d.findNode(func(n *html.Node) bool {
		return n.DataAtom == atomName
	})
}

func (d *Document) DocumentElement() *Element {
	return d.wrap(d.findFirst(atom.Html))
}

func (d *Document) Head() *Element {
	return d.wrap(d.findFirst(atom.Head))
}

func (d *Document) Body() *Element {
	return d.wrap(d.findFirst(atom.Body))
}

func (d *Document) GetElementByID(id string) *Element {
	return d.wrap(d.findNode(func(n *html.Node) bool {
		return getAttr(n, "id") == id
	}))
}

// QuerySelectorAll returns matching elements in document order
func (d *Document) QuerySelectorAll(selector string) []*Element {
	return d.wrapAll(goquery.NewDocumentFromNode(d.root).Find(selector).Nodes)
}

func (d *Document) QuerySelector(selector string) *Element {
	elements := d.QuerySelectorAll(selector)
	if len(elements) == 0 {
		return nil
	}

	return elements[0]
}

func (d *Document) wrapAll(nodes []*html.Node) []*Element {
	var elements []*Element
	for _, node := range nodes {
		el := d.wrap(node)
		if el != nil {
			elements = append(elements, el)
		}
	}

	return elements
}

// Root is the underlying document node
func (d *Document) Root() *html.Node {
	return d.root
}

func (d *Document) Render() (string, errorsx.Error) {
	sb := new(strings.Builder)
	err := html.Render(sb, d.root)
	if err != nil {
		return "", errorsx.Wrap(err)
	}

	return sb.String(), nil
}
