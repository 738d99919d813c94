// File: internal/router/reconciler.go
package router

import (
	"net/url"
	"path"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/fennelsoft/slipstream/internal/page"
)

// SwapResult reports what a body swap did, for logging and tests.
type SwapResult struct {
	Title           string
	ExecutedScripts []string
	SkippedScripts  []string
}

// Reconciler applies a fetched document to the live one: full body-subtree
// replace, title and description propagation, and the script re-activation
// policy. It is deliberately not a diff engine; simplicity beats minimal DOM
// churn here.
type Reconciler struct {
	logger   *zap.Logger
	registry *ScriptRegistry
	runOnce  []string
}

// NewReconciler builds a reconciler sharing the session's script registry.
// runOnce lists external script filenames that are global initializers and
// must never re-execute after a swap.
func NewReconciler(registry *ScriptRegistry, runOnce []string, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		logger:   logger.Named("reconciler"),
		registry: registry,
		runOnce:  runOnce,
	}
}

// Apply replaces the live document's body with the fetched payload's body and
// updates title and description. Malformed payloads degrade: a payload with
// no markup still lands as body content (html.Parse synthesizes the shell),
// and missing title/description simply skip that update.
func (r *Reconciler) Apply(doc *page.Document, payload string) (*SwapResult, error) {
	fetched, err := page.Parse(payload)
	if err != nil {
		// Treat the whole payload as the body rather than failing the swap.
		r.logger.Debug("Payload failed to parse, treating it as plain body text", zap.Error(err))
		fetched = textOnlyDocument(payload)
	}

	result := &SwapResult{}

	if titleNode := htmlquery.FindOne(fetched, "//title"); titleNode != nil {
		result.Title = strings.TrimSpace(htmlquery.InnerText(titleNode))
		doc.SetTitle(result.Title)
	}
	if metaNode := htmlquery.FindOne(fetched, `//meta[@name="description"]`); metaNode != nil {
		doc.SetMetaDescription(page.Attr(metaNode, "content"))
	}

	newBody := page.FirstElement(fetched, "body")
	if newBody == nil {
		// html.Parse always synthesizes a body; this only guards the fallback tree.
		return result, nil
	}

	doc.Mutate(func(root *html.Node) {
		liveBody := page.FirstElement(root, "body")
		if liveBody == nil {
			return
		}

		// External scripts living outside the body (entry scripts in <head>)
		// are already loaded; anything in the new body pointing at the same
		// source must not run again.
		loadedSrcs := collectScriptSrcs(root, liveBody)

		// Full-subtree replace.
		for c := liveBody.FirstChild; c != nil; {
			next := c.NextSibling
			liveBody.RemoveChild(c)
			c = next
		}
		for c := newBody.FirstChild; c != nil; {
			next := c.NextSibling
			newBody.RemoveChild(c)
			liveBody.AppendChild(c)
			c = next
		}

		r.reactivateScripts(liveBody, loadedSrcs, result)
	})

	return result, nil
}

// reactivateScripts walks the freshly swapped body and applies the
// re-execution policy to every script element. Markup inserted by content
// assignment is inert; a script only runs when substituted with a freshly
// constructed element, so skipping is simply not substituting.
func (r *Reconciler) reactivateScripts(body *html.Node, loadedSrcs map[string]struct{}, result *SwapResult) {
	for _, script := range elementsByTag(body, "script") {
		src := page.Attr(script, "src")

		if src != "" {
			if _, loaded := loadedSrcs[src]; loaded || r.registry.Contains(src) {
				result.SkippedScripts = append(result.SkippedScripts, src)
				continue
			}
			if r.isRunOnce(src) {
				r.registry.Mark(src)
				result.SkippedScripts = append(result.SkippedScripts, src)
				continue
			}
			r.substitute(script)
			r.registry.Mark(src)
			result.ExecutedScripts = append(result.ExecutedScripts, src)
			continue
		}

		content := htmlquery.InnerText(script)
		key := FingerprintInline(content)
		if DeclaresTopLevelBindings(content) && !IsFunctionWrapped(content) {
			// Re-running top-level declarations throws, so this script is
			// excluded for the rest of the session, not merely deduped once.
			r.registry.Mark(key)
			result.SkippedScripts = append(result.SkippedScripts, key)
			continue
		}
		r.substitute(script)
		result.ExecutedScripts = append(result.ExecutedScripts, key)
	}
}

// substitute replaces a script element with a fresh copy carrying the same
// attributes and content, which is what triggers execution in the browser
// counterpart of this engine.
func (r *Reconciler) substitute(script *html.Node) {
	parent := script.Parent
	if parent == nil {
		return
	}
	fresh := &html.Node{
		Type:     html.ElementNode,
		Data:     script.Data,
		DataAtom: script.DataAtom,
		Attr:     append([]html.Attribute(nil), script.Attr...),
	}
	for c := script.FirstChild; c != nil; {
		next := c.NextSibling
		script.RemoveChild(c)
		fresh.AppendChild(c)
		c = next
	}
	parent.InsertBefore(fresh, script)
	parent.RemoveChild(script)
}

// isRunOnce matches the script source filename against the run-once
// deny-list.
func (r *Reconciler) isRunOnce(src string) bool {
	name := path.Base(src)
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	for _, entry := range r.runOnce {
		if name == entry {
			return true
		}
	}
	return false
}

// collectScriptSrcs gathers external script sources in the document outside
// the subtree rooted at exclude.
func collectScriptSrcs(root, exclude *html.Node) map[string]struct{} {
	srcs := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == exclude {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" {
			if src := page.Attr(n, "src"); src != "" {
				srcs[src] = struct{}{}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return srcs
}

// elementsByTag collects elements with the given tag in document order.
func elementsByTag(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// textOnlyDocument builds a minimal document whose body holds the payload as
// text. Used when the payload is not parseable HTML at all.
func textOnlyDocument(payload string) *html.Node {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := &html.Node{Type: html.ElementNode, Data: "html"}
	head := &html.Node{Type: html.ElementNode, Data: "head"}
	body := &html.Node{Type: html.ElementNode, Data: "body"}
	body.AppendChild(&html.Node{Type: html.TextNode, Data: payload})
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	root.AppendChild(htmlEl)
	return root
}
