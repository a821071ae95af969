package api

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"codeshare/pkg/router"
)

// CompileClient forwards C sources to the external wasm compile service.
// Outbound calls are throttled so a burst of editor saves cannot hammer
// the upstream.
type CompileClient struct {
	endpoint string
	limiter  *rate.Limiter
	client   *http.Client
}

// NewCompileClient builds a client capped at rps requests per second.
func NewCompileClient(endpoint string, rps float64, burst int) *CompileClient {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &CompileClient{
		endpoint: endpoint,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Compile sends the source and returns the service's raw response body.
func (c *CompileClient) Compile(ctx *router.Context, source string) (string, error) {
	if err := c.limiter.Wait(ctx.Request.Context()); err != nil {
		return "", err
	}

	form := "input=" + url.QueryEscape(source) + "&action=c2wast&version=1&options=-O3%20-std%3DC99"
	req, err := http.NewRequestWithContext(ctx.Request.Context(), http.MethodPost, c.endpoint, strings.NewReader(form))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (a *API) compileC(_ string, ctx *router.Context) error {
	body, err := a.compile.Compile(ctx, string(ctx.Body))
	if err != nil {
		return err
	}
	_, werr := io.WriteString(ctx.Out, body)
	return werr
}
