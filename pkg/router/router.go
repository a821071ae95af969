// Package router implements the hierarchical route dispatcher. A tree is
// an explicit ordered list of typed entries; the first matching entry
// wins, gates merge fields into the request context and keep scanning.
package router

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"codeshare/pkg/logger"
)

// Status is the dispatch outcome consumed by the transport layer.
type Status string

const (
	StatusOK       Status = "200"
	StatusNotFound Status = "404"
	StatusInternal Status = "500"
	// StatusPending means the response will be finalized asynchronously;
	// the transport must Wait on the context before closing the response.
	StatusPending Status = "pending"
)

// Fallback bodies written by the dispatcher and the transport.
const (
	NotFoundBody = "404 Not Found"
	InternalBody = "500 Internal Server Error"
)

// Handler serves a matched route. remainder is the path with the matched
// pattern stripped (exact matches receive ""); wildcard handlers receive
// the untrimmed path.
type Handler func(remainder string, ctx *Context) error

// Gate runs before a subtree and returns fields to merge into the
// context, e.g. permission flags.
type Gate func(path string, ctx *Context) (map[string]any, error)

type kind int

const (
	kindExact kind = iota
	kindPrefix
	kindWildcard
	kindGate
	kindMethods
)

// MethodNode branches a gated prefix by HTTP method. POST accumulates the
// full request body before its subtree runs.
type MethodNode struct {
	Gate Gate
	Post *Tree
	Get  *Tree
}

type entry struct {
	pattern string
	kind    kind
	handler Handler
	sub     *Tree
	gate    Gate
	methods *MethodNode
}

// Tree is an ordered route table. Registration order is match priority.
type Tree struct {
	entries []entry
}

// New returns an empty route tree.
func New() *Tree { return &Tree{} }

// Exact registers an exact-match route. The pattern "/" also matches the
// empty path.
func (t *Tree) Exact(pattern string, h Handler) *Tree {
	t.entries = append(t.entries, entry{pattern: pattern, kind: kindExact, handler: h})
	return t
}

// Prefix registers a subtree under a pattern ending in "/" or "?"; the
// subtree receives the path with the pattern stripped.
func (t *Tree) Prefix(pattern string, sub *Tree) *Tree {
	mustPrefixPattern(pattern)
	t.entries = append(t.entries, entry{pattern: pattern, kind: kindPrefix, sub: sub})
	return t
}

// PrefixFunc registers a handler under a prefix pattern; the handler
// receives the remainder.
func (t *Tree) PrefixFunc(pattern string, h Handler) *Tree {
	mustPrefixPattern(pattern)
	t.entries = append(t.entries, entry{pattern: pattern, kind: kindPrefix, handler: h})
	return t
}

// Wildcard registers a handler matching any path with the given prefix;
// the handler receives the full untrimmed path.
func (t *Tree) Wildcard(prefix string, h Handler) *Tree {
	t.entries = append(t.entries, entry{pattern: prefix, kind: kindWildcard, handler: h})
	return t
}

// Gate registers a bare gate: it runs when scanning reaches it and the
// scan continues afterwards.
func (t *Tree) Gate(g Gate) *Tree {
	t.entries = append(t.entries, entry{kind: kindGate, gate: g})
	return t
}

// Methods registers a gated, method-branching subtree under a prefix
// pattern.
func (t *Tree) Methods(pattern string, n *MethodNode) *Tree {
	mustPrefixPattern(pattern)
	t.entries = append(t.entries, entry{pattern: pattern, kind: kindMethods, methods: n})
	return t
}

func mustPrefixPattern(pattern string) {
	if pattern == "/" || (!strings.HasSuffix(pattern, "/") && !strings.HasSuffix(pattern, "?")) {
		panic(fmt.Sprintf("router: prefix pattern %q must end in / or ? and not be bare /", pattern))
	}
}

// Dispatch matches path against the tree and invokes the first matching
// handler. Handler errors and panics are absorbed here: logged, mapped to
// StatusInternal, never propagated to the transport.
func (t *Tree) Dispatch(path, method string, ctx *Context) (st Status) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch_panic", "path", path, "panic", fmt.Sprint(r))
			st = StatusInternal
		}
	}()
	st, err := t.dispatch(path, method, ctx)
	if err != nil {
		logger.Error("handler_error", "path", path, "error", err)
		return StatusInternal
	}
	return st
}

func (t *Tree) dispatch(path, method string, ctx *Context) (Status, error) {
	for _, e := range t.entries {
		switch e.kind {
		case kindExact:
			if path == e.pattern || (e.pattern == "/" && path == "") {
				return StatusOK, e.handler("", ctx)
			}
		case kindPrefix:
			if strings.HasPrefix(path, e.pattern) {
				rem := path[len(e.pattern):]
				if e.handler != nil {
					return StatusOK, e.handler(rem, ctx)
				}
				return e.sub.dispatch(rem, method, ctx)
			}
		case kindMethods:
			if strings.HasPrefix(path, e.pattern) {
				if e.methods.Gate != nil {
					fields, err := e.methods.Gate(path, ctx)
					if err != nil {
						return StatusInternal, err
					}
					ctx.merge(fields)
				}
				rem := path[len(e.pattern):]
				switch method {
				case http.MethodPost:
					go t.runDeferred(e.methods.Post, rem, method, ctx)
					return StatusPending, nil
				case http.MethodGet:
					if e.methods.Get == nil {
						return StatusNotFound, nil
					}
					return e.methods.Get.dispatch(rem, method, ctx)
				}
				return StatusNotFound, nil
			}
		case kindWildcard:
			if strings.HasPrefix(path, e.pattern) {
				// wildcard handlers get the full path, untrimmed
				return StatusOK, e.handler(path, ctx)
			}
		case kindGate:
			fields, err := e.gate(path, ctx)
			if err != nil {
				return StatusInternal, err
			}
			ctx.merge(fields)
		}
	}
	return StatusNotFound, nil
}

// runDeferred accumulates the request body, runs the POST subtree and
// finalizes the response. It owns the terminal write for this request.
func (t *Tree) runDeferred(sub *Tree, path, method string, ctx *Context) {
	defer ctx.finish()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch_panic", "path", path, "panic", fmt.Sprint(r))
			_, _ = io.WriteString(ctx.Out, InternalBody)
		}
	}()

	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		logger.Warn("body_read_failed", "path", path, "error", err)
		_, _ = io.WriteString(ctx.Out, InternalBody)
		return
	}
	ctx.Body = body

	if sub == nil {
		_, _ = io.WriteString(ctx.Out, NotFoundBody)
		return
	}
	st, herr := sub.dispatch(path, method, ctx)
	if herr != nil {
		logger.Error("handler_error", "path", path, "error", herr)
		st = StatusInternal
	}
	switch st {
	case StatusNotFound:
		_, _ = io.WriteString(ctx.Out, NotFoundBody)
	case StatusInternal:
		_, _ = io.WriteString(ctx.Out, InternalBody)
	}
}
