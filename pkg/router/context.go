package router

import (
	"net/http"
	"sync"
)

// Context carries one request through the dispatcher. The transport layer
// populates identity and the anonymized client key before dispatch; gates
// merge additional fields via Set.
type Context struct {
	Request *http.Request
	Out     http.ResponseWriter

	// Token is the raw bearer token from the session cookie; empty means
	// anonymous.
	Token string
	// IPKey is the anonymized client address used by the rate limiter.
	IPKey string
	// User is the resolved identity (nil when anonymous). Handlers assert
	// it to their profile type.
	User any
	// Body is the accumulated POST body; only set inside method subtrees.
	Body []byte

	mu     sync.Mutex
	values map[string]any

	done     chan struct{}
	doneOnce sync.Once
}

// NewContext builds a dispatch context for one request.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{
		Request: r,
		Out:     w,
		values:  map[string]any{},
		done:    make(chan struct{}),
	}
}

// Set stores a gate-injected field.
func (c *Context) Set(key string, v any) {
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
}

// Get returns a gate-injected field.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	v, ok := c.values[key]
	c.mu.Unlock()
	return v, ok
}

// Bool returns a gate-injected boolean field, false when absent.
func (c *Context) Bool(key string) bool {
	v, ok := c.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (c *Context) merge(fields map[string]any) {
	for k, v := range fields {
		c.Set(k, v)
	}
}

func (c *Context) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Wait blocks until the deferred completion has finished writing the
// response. Only call it after Dispatch returned StatusPending.
func (c *Context) Wait() {
	<-c.done
}
