package app

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"codeshare/pkg/ratelimit"
	"codeshare/pkg/router"
	"codeshare/pkg/store"
	"codeshare/pkg/telemetry"
)

// setupHTTPHandlers mounts the operational endpoints ahead of the
// catch-all dispatcher.
func (a *App) setupHTTPHandlers(r *mux.Router) {
	r.HandleFunc("/healthz", healthzHandler)
	r.HandleFunc("/readyz", a.readyzHandler)
	r.Handle("/metrics", telemetry.Handler())
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	r.PathPrefix("/").Handler(a.dispatchHandler())
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{\"status\":\"ok\"}"))
}

func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("{\"status\":\"not ready\"}"))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{\"status\":\"ok\",\"version\":\"" + ver + "\"}"))
}

// dispatchHandler adapts the route tree to net/http: it admits the
// request through the rate limiter, resolves the session identity and
// translates the dispatch status into the terminal body.
func (a *App) dispatchHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipKey := a.limiter.Key(clientAddr(r))
		if !a.limiter.Allow(ipKey) {
			_, _ = io.WriteString(w, ratelimit.ThrottledBody)
			return
		}

		ctx := router.NewContext(w, r)
		ctx.IPKey = ipKey
		if c, err := r.Cookie("token"); err == nil {
			ctx.Token = c.Value
		}
		if p := a.auth.ResolveIdentity(ctx.Token); p != nil {
			ctx.User = p
		}

		// the tree matches against the path plus the raw query, with any
		// trailing slash stripped
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		path = strings.TrimSuffix(path, "/")

		st := a.routes.Dispatch(path, r.Method, ctx)
		switch st {
		case router.StatusNotFound:
			_, _ = io.WriteString(w, router.NotFoundBody)
		case router.StatusInternal:
			_, _ = io.WriteString(w, router.InternalBody)
		case router.StatusPending:
			ctx.Wait()
		}
		telemetry.RecordStatus(string(st))
	})
}

// clientAddr prefers the forwarded address set by the fronting proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// startHTTP builds the handler chain, starts the server in a goroutine
// and returns a channel carrying any fatal server error.
func (a *App) startHTTP() <-chan error {
	r := mux.NewRouter()
	a.setupHTTPHandlers(r)

	wrapped := telemetry.Middleware(r)

	a.srv = &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}
