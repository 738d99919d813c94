// File: internal/page/document.go

// Package page models the live document a navigation session operates on: a
// parsed HTML tree, the address it was loaded from, and the viewport scroll
// state. It is the headless stand-in for the browser document the router
// mutates in place.
package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document owns the parsed DOM and current URL for one session. The DOM is
// stateful across interactions until navigation replaces it. Safe for
// concurrent use; prefetch goroutines read it while the navigator writes.
type Document struct {
	mu       sync.RWMutex
	url      *url.URL
	root     *html.Node
	viewport Viewport
}

// New returns an empty document with no location.
func New() *Document {
	return &Document{}
}

// Parse parses a full HTML payload into a tree rooted at the document node.
// html.Parse is forgiving and synthesizes html/head/body elements when the
// payload lacks them, which is exactly the malformed-markup tolerance the
// engine needs.
func Parse(payload string) (*html.Node, error) {
	root, err := html.Parse(strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML document: %w", err)
	}
	return root, nil
}

// Load replaces the whole document: new root, new location, scroll reset.
func (d *Document) Load(u *url.URL, root *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
	d.root = root
	d.viewport.reset()
}

// SetURL updates the document location without touching the DOM. Used when a
// full reload is requested but the load itself failed; the address bar still
// reflects the target.
func (d *Document) SetURL(u *url.URL) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = u
}

// URL returns the current document location, or nil before the first load.
func (d *Document) URL() *url.URL {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// Root returns the document root node, or nil before the first load.
func (d *Document) Root() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Viewport returns the scroll state for this document.
func (d *Document) Viewport() *Viewport {
	return &d.viewport
}

// Body returns the <body> element of the live document, or nil.
func (d *Document) Body() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return nil
	}
	return FirstElement(d.root, "body")
}

// Head returns the <head> element of the live document, or nil.
func (d *Document) Head() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return nil
	}
	return FirstElement(d.root, "head")
}

// Title returns the text of the document's <title>, trimmed.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return ""
	}
	if node := htmlquery.FindOne(d.root, "//title"); node != nil {
		return strings.TrimSpace(htmlquery.InnerText(node))
	}
	return ""
}

// SetTitle replaces the document title, creating the <title> element under
// <head> if it is missing.
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return
	}
	node := htmlquery.FindOne(d.root, "//title")
	if node == nil {
		head := FirstElement(d.root, "head")
		if head == nil {
			return
		}
		node = &html.Node{Type: html.ElementNode, Data: "title"}
		head.AppendChild(node)
	}
	setText(node, title)
}

// MetaDescription returns the content of <meta name="description">, if any.
func (d *Document) MetaDescription() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return ""
	}
	if node := htmlquery.FindOne(d.root, `//meta[@name="description"]`); node != nil {
		return Attr(node, "content")
	}
	return ""
}

// SetMetaDescription updates the description meta tag, creating it under
// <head> when the document does not carry one.
func (d *Document) SetMetaDescription(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return
	}
	node := htmlquery.FindOne(d.root, `//meta[@name="description"]`)
	if node == nil {
		head := FirstElement(d.root, "head")
		if head == nil {
			return
		}
		node = &html.Node{
			Type: html.ElementNode,
			Data: "meta",
			Attr: []html.Attribute{{Key: "name", Val: "description"}},
		}
		head.AppendChild(node)
	}
	SetAttr(node, "content", content)
}

// ElementByID locates the element whose id attribute equals id.
func (d *Document) ElementByID(id string) *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return nil
	}
	node, err := htmlquery.Query(d.root, fmt.Sprintf(`//*[@id=%q]`, id))
	if err != nil {
		return nil
	}
	return node
}

// Find runs an XPath query against the live document.
func (d *Document) Find(xpath string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid XPath query %q: %w", xpath, err)
	}
	return nodes, nil
}

// Render serializes the live document back to HTML.
func (d *Document) Render() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.root == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

// Mutate runs fn while holding the document write lock. The reconciler uses
// this to keep the body swap atomic with respect to concurrent readers.
func (d *Document) Mutate(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return
	}
	fn(d.root)
}

// -- node helpers shared by the router packages --

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the node carries the named attribute at all,
// regardless of value. Boolean markers like download are present-or-absent.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute on the node.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// FirstElement does a depth-first search for the first element with the given tag.
func FirstElement(root *html.Node, tag string) *html.Node {
	if root.Type == html.ElementNode && root.Data == tag {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FirstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// setText replaces the node's children with a single text node.
func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
