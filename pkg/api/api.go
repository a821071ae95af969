// Package api registers the route tree and implements every page and
// endpoint handler behind it.
package api

import (
	"codeshare/pkg/auth"
	"codeshare/pkg/config"
	"codeshare/pkg/ranking"
	"codeshare/pkg/ratelimit"
	"codeshare/pkg/templates"
)

// API wires the handlers to their collaborators. One instance serves the
// whole process.
type API struct {
	cfg     *config.Config
	auth    *auth.Authenticator
	limiter *ratelimit.Limiter
	cache   *templates.Cache
	ranking *ranking.Engine
	captcha CaptchaVerifier
	compile *CompileClient
}

// New builds the API surface.
func New(cfg *config.Config, a *auth.Authenticator, lim *ratelimit.Limiter, cache *templates.Cache, rank *ranking.Engine) *API {
	return &API{
		cfg:     cfg,
		auth:    a,
		limiter: lim,
		cache:   cache,
		ranking: rank,
		captcha: NewRecaptchaVerifier(cfg.Security.Captcha.VerifyURL, cfg.Security.Captcha.Secret),
		compile: NewCompileClient(cfg.Compile.Endpoint, cfg.Compile.RPS, cfg.Compile.Burst),
	}
}

// SetCaptchaVerifier swaps the captcha backend, used by tests.
func (a *API) SetCaptchaVerifier(v CaptchaVerifier) { a.captcha = v }
