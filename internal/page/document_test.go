// File: internal/page/document_test.go
package page

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const samplePage = `<html><head><title> Sample </title><meta name="description" content="a sample"></head><body><h1 id="top">Hello</h1><a href="/next" class="nav">Next</a></body></html>`

func loadSample(t *testing.T) *Document {
	t.Helper()
	root, err := Parse(samplePage)
	require.NoError(t, err)
	u, err := url.Parse("https://example.com/sample")
	require.NoError(t, err)
	doc := New()
	doc.Load(u, root)
	return doc
}

func TestDocument_EmptyBeforeLoad(t *testing.T) {
	doc := New()

	assert.Nil(t, doc.URL())
	assert.Nil(t, doc.Root())
	assert.Nil(t, doc.Body())
	assert.Empty(t, doc.Title())

	rendered, err := doc.Render()
	require.NoError(t, err)
	assert.Empty(t, rendered)
}

func TestDocument_LoadAndAccessors(t *testing.T) {
	doc := loadSample(t)

	assert.Equal(t, "https://example.com/sample", doc.URL().String())
	assert.Equal(t, "Sample", doc.Title(), "title text is trimmed")
	assert.Equal(t, "a sample", doc.MetaDescription())
	require.NotNil(t, doc.Body())
	require.NotNil(t, doc.Head())
}

func TestDocument_ElementByID(t *testing.T) {
	doc := loadSample(t)

	el := doc.ElementByID("top")
	require.NotNil(t, el)
	assert.Equal(t, "h1", el.Data)

	assert.Nil(t, doc.ElementByID("absent"))
}

func TestDocument_Find(t *testing.T) {
	doc := loadSample(t)

	nodes, err := doc.Find(`//a[@class="nav"]`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "/next", Attr(nodes[0], "href"))

	_, err = doc.Find(`//a[`)
	assert.Error(t, err, "invalid XPath must surface an error")
}

func TestDocument_SetTitleCreatesElement(t *testing.T) {
	root, err := Parse(`<html><head></head><body></body></html>`)
	require.NoError(t, err)
	doc := New()
	u, _ := url.Parse("https://example.com/")
	doc.Load(u, root)

	doc.SetTitle("Fresh")
	assert.Equal(t, "Fresh", doc.Title())

	doc.SetTitle("Replaced")
	assert.Equal(t, "Replaced", doc.Title())
}

func TestDocument_SetMetaDescriptionCreatesElement(t *testing.T) {
	root, err := Parse(`<html><head></head><body></body></html>`)
	require.NoError(t, err)
	doc := New()
	u, _ := url.Parse("https://example.com/")
	doc.Load(u, root)

	doc.SetMetaDescription("first")
	assert.Equal(t, "first", doc.MetaDescription())

	doc.SetMetaDescription("second")
	assert.Equal(t, "second", doc.MetaDescription())
}

func TestDocument_LoadResetsViewport(t *testing.T) {
	doc := loadSample(t)
	doc.Viewport().ScrollToElement("top")
	require.Equal(t, "top", doc.Viewport().Position().Anchor)

	root, err := Parse(samplePage)
	require.NoError(t, err)
	u, _ := url.Parse("https://example.com/other")
	doc.Load(u, root)

	pos := doc.Viewport().Position()
	assert.Empty(t, pos.Anchor)
	assert.False(t, pos.Smooth)
}

func TestParse_SynthesizesMissingShell(t *testing.T) {
	root, err := Parse("just some text")
	require.NoError(t, err)

	body := FirstElement(root, "body")
	require.NotNil(t, body, "the parser synthesizes html/head/body around bare content")
}

func TestNodeHelpers(t *testing.T) {
	n := &html.Node{
		Type: html.ElementNode,
		Data: "a",
		Attr: []html.Attribute{{Key: "href", Val: "/x"}, {Key: "download", Val: ""}},
	}

	assert.Equal(t, "/x", Attr(n, "href"))
	assert.Empty(t, Attr(n, "missing"))
	assert.True(t, HasAttr(n, "download"), "boolean attributes are present-or-absent")
	assert.False(t, HasAttr(n, "target"))

	SetAttr(n, "href", "/y")
	assert.Equal(t, "/y", Attr(n, "href"))
	SetAttr(n, "rel", "noopener")
	assert.Equal(t, "noopener", Attr(n, "rel"))
}

func TestViewport_ScrollTransitions(t *testing.T) {
	var v Viewport

	v.ScrollToElement("section")
	pos := v.Position()
	assert.Equal(t, "section", pos.Anchor)
	assert.True(t, pos.Smooth)

	v.ScrollToTop()
	pos = v.Position()
	assert.Empty(t, pos.Anchor)
	assert.False(t, pos.Smooth)
}
