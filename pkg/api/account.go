package api

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"codeshare/pkg/logger"
	"codeshare/pkg/models"
	"codeshare/pkg/router"
	"codeshare/pkg/security"
	"codeshare/pkg/store"
	"codeshare/pkg/validation"
)

const (
	defaultAvatar     = "bobert"
	defaultBackground = "blue"
)

// newAccountID builds an id from 4 random characters plus the creation
// time in base 36.
func newAccountID() (string, error) {
	tok, err := security.Token(4)
	if err != nil {
		return "", err
	}
	return tok + strconv.FormatInt(time.Now().UnixMilli(), 36), nil
}

func (a *API) signup(_ string, ctx *router.Context) error {
	var req struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		RecaptchaRes string `json:"recaptchaRes"`
	}
	if err := json.Unmarshal(ctx.Body, &req); err != nil {
		_, werr := io.WriteString(ctx.Out, "error")
		return werr
	}
	if validation.Username(req.Username) != validation.OK || validation.Password(req.Password) != validation.OK {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}
	if !a.limiter.SignupAllowed(ctx.IPKey) {
		_, werr := io.WriteString(ctx.Out, "error: too many accounts associated with IP")
		return werr
	}
	if a.auth.UsernameTaken(req.Username) {
		_, werr := io.WriteString(ctx.Out, "error: that username is already taken")
		return werr
	}

	ok, err := a.captcha.Verify(ctx.Request.Context(), req.RecaptchaRes)
	if err != nil {
		return err
	}
	if !ok {
		_, werr := io.WriteString(ctx.Out, "error: recaptcha failed")
		return werr
	}

	id, err := newAccountID()
	if err != nil {
		return err
	}
	salt, err := security.Token(security.SaltLen)
	if err != nil {
		return err
	}
	// the salt must be durable before the account can ever log in
	if err := store.SetSalt(id, salt); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	profile := &models.Profile{
		ID:         id,
		Username:   req.Username,
		Nickname:   req.Username,
		Password:   security.Digest(salt + req.Password),
		Avatar:     defaultAvatar,
		Background: defaultBackground,
		Created:    now,
		Projects:   []string{},
	}
	a.auth.Register(profile)
	tok, err := a.auth.IssueToken(profile, salt)
	if err != nil {
		return err
	}
	a.limiter.Associate(ctx.IPKey, id)

	logger.Info("account_created", "user", id, "username", profile.Username)
	_, werr := io.WriteString(ctx.Out, tok)
	return werr
}

func (a *API) login(_ string, ctx *router.Context) error {
	if ctx.User != nil {
		_, werr := io.WriteString(ctx.Out, "error: already signed in")
		return werr
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(ctx.Body, &req); err != nil {
		_, werr := io.WriteString(ctx.Out, "error")
		return werr
	}
	if validation.Username(req.Username) != validation.OK || validation.Password(req.Password) != validation.OK {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}

	cred := a.auth.FindByUsername(req.Username)
	if cred == nil {
		_, werr := io.WriteString(ctx.Out, "error: that username doesn't exist")
		return werr
	}
	salt, err := store.GetSalt(cred.ID)
	if err != nil {
		return err
	}
	if !a.auth.CheckPassword(cred, salt, req.Password) {
		_, werr := io.WriteString(ctx.Out, "error: password is incorrect")
		return werr
	}

	profile, err := store.GetProfile(cred.ID)
	if err != nil {
		return err
	}
	// rotate: drop expired tokens, then issue a fresh one
	a.auth.PruneExpired(profile, "")
	tok, err := a.auth.IssueToken(profile, salt)
	if err != nil {
		return err
	}

	logger.Info("login", "user", profile.ID)
	_, werr := io.WriteString(ctx.Out, tok)
	return werr
}

func (a *API) signOut(_ string, ctx *router.Context) error {
	if !ctx.Bool("hasPermission") {
		_, werr := io.WriteString(ctx.Out, "error: access denied")
		return werr
	}
	profile := profileOf(ctx)
	a.auth.PruneExpired(profile, ctx.Token)

	saved := *profile
	store.Enqueue("save_profile", func() error { return store.SaveProfile(&saved) })

	logger.Info("sign_out", "user", profile.ID)
	_, werr := io.WriteString(ctx.Out, "OK")
	return werr
}

func (a *API) updateProfile(_ string, ctx *router.Context) error {
	var req struct {
		Nickname   string `json:"nickname"`
		Username   string `json:"username"`
		Bio        string `json:"bio"`
		Avatar     string `json:"avatar"`
		Background string `json:"background"`
	}
	if err := json.Unmarshal(ctx.Body, &req); err != nil {
		_, werr := io.WriteString(ctx.Out, "error")
		return werr
	}
	if !ctx.Bool("hasPermission") {
		_, werr := io.WriteString(ctx.Out, "error: access denied")
		return werr
	}

	if req.Nickname != "" && validation.Nickname(req.Nickname) != validation.OK {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}
	if req.Username != "" && validation.Username(req.Username) != validation.OK {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}
	if req.Bio != "" && validation.Bio(req.Bio) != validation.OK {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}
	if req.Avatar != "" && !validation.Avatar(req.Avatar) {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}
	if req.Background != "" && !validation.Background(req.Background) {
		_, werr := io.WriteString(ctx.Out, "error: 400")
		return werr
	}

	profile := profileOf(ctx)
	if req.Username != "" && !strings.EqualFold(profile.Username, req.Username) && a.auth.UsernameTaken(req.Username) {
		_, werr := io.WriteString(ctx.Out, "error: that username is already taken")
		return werr
	}

	if req.Nickname != "" {
		profile.Nickname = req.Nickname
	}
	if req.Username != "" {
		profile.Username = req.Username
	}
	if req.Bio != "" {
		profile.Bio = req.Bio
	}
	if req.Avatar != "" {
		profile.Avatar = req.Avatar
	}
	if req.Background != "" {
		profile.Background = req.Background
	}
	a.auth.UpdateNames(profile.ID, req.Username, req.Nickname)

	saved := *profile
	store.Enqueue("save_profile", func() error { return store.SaveProfile(&saved) })

	_, werr := io.WriteString(ctx.Out, "OK")
	return werr
}

// getUserData resolves ?who=<username> or ?who=id_<id> to a public
// profile document.
func (a *API) getUserData(rem string, ctx *router.Context) error {
	who := parseQuery(rem)["who"]

	var cred *models.Credential
	if strings.HasPrefix(who, "id_") {
		cred = a.auth.FindByID(strings.TrimPrefix(who, "id_"))
	} else if who != "" {
		cred = a.auth.FindByUsername(who)
	}
	if cred == nil {
		_, werr := io.WriteString(ctx.Out, router.NotFoundBody)
		return werr
	}

	profile, err := store.GetProfile(cred.ID)
	if err != nil {
		if err == store.ErrNotFound {
			_, werr := io.WriteString(ctx.Out, router.NotFoundBody)
			return werr
		}
		return err
	}
	return json.NewEncoder(ctx.Out).Encode(profile.Public())
}
