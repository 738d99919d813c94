// File: internal/router/scripts.go
package router

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// ScriptRegistry tracks which scripts have already been executed in this
// session, keyed by external source URL or by a fingerprint of inline
// content. Its lifetime spans navigations: re-declaring top-level bindings
// throws, so exclusion is permanent until a full page reload resets it.
type ScriptRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewScriptRegistry returns an empty registry.
func NewScriptRegistry() *ScriptRegistry {
	return &ScriptRegistry{seen: make(map[string]struct{})}
}

// Mark records the key and reports whether this was its first occurrence.
func (r *ScriptRegistry) Mark(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// Contains reports whether the key was marked before.
func (r *ScriptRegistry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[key]
	return ok
}

// Reset forgets everything. Called only on a full page reload, which tears
// down the script context the registry is protecting.
func (r *ScriptRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]struct{})
}

// FingerprintInline derives a stable key for an inline script from its
// content.
func FingerprintInline(content string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("inline:%016x", h.Sum64())
}

// declarationPattern matches a top-level binding declaration at statement
// position. Anything it matches would throw on re-execution in the same
// script context.
var declarationPattern = regexp.MustCompile(`(?m)^\s*(?:let|const|var|function|class)\b`)

// DeclaresTopLevelBindings reports whether the script text appears to declare
// module-scope bindings. The check is heuristic by design and errs toward
// true: skipping a safe script degrades a handler, re-running an unsafe one
// breaks the page.
func DeclaresTopLevelBindings(src string) bool {
	return declarationPattern.MatchString(src)
}

// IsFunctionWrapped reports whether the script body is wholly wrapped in a
// function expression (classic IIFE or arrow form), which keeps its
// declarations out of the top-level scope and makes re-execution safe.
func IsFunctionWrapped(src string) bool {
	trimmed := strings.TrimSpace(src)
	trimmed = strings.TrimSuffix(trimmed, ";")

	openers := []string{"(function", "(async function", "(() =>", "(async () =>", "((", "(async ("}
	opened := false
	for _, o := range openers {
		if strings.HasPrefix(trimmed, o) {
			opened = true
			break
		}
	}
	if !opened {
		return false
	}
	return strings.HasSuffix(trimmed, ")()") || strings.HasSuffix(trimmed, "())")
}
