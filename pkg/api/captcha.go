package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"codeshare/pkg/logger"
)

// CaptchaVerifier checks a client captcha response. Tests substitute a
// stub; production uses the recaptcha siteverify endpoint.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response string) (bool, error)
}

type recaptchaVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewRecaptchaVerifier builds the production captcha backend.
func NewRecaptchaVerifier(endpoint, secret string) CaptchaVerifier {
	return &recaptchaVerifier{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *recaptchaVerifier) Verify(ctx context.Context, response string) (bool, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", response)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, nil)
	if err != nil {
		return false, err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Warn("captcha_decode_failed", "error", err)
		return false, err
	}
	return result.Success, nil
}
