package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeshare/pkg/auth"
	"codeshare/pkg/config"
	"codeshare/pkg/ranking"
	"codeshare/pkg/ratelimit"
	"codeshare/pkg/router"
	"codeshare/pkg/security"
	"codeshare/pkg/store"
	"codeshare/pkg/templates"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type stubCaptcha struct{ ok bool }

func (s stubCaptcha) Verify(context.Context, string) (bool, error) { return s.ok, nil }

type fixture struct {
	api  *API
	tree *router.Tree
	auth *auth.Authenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, security.SetKeyHex(testKeyHex))
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() {
		_ = store.Close()
		_ = security.SetKeyHex("")
	})

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.StaticDir = t.TempDir()
	cfg.Server.TemplatesDir = t.TempDir()
	cfg.Server.PageTemplate = filepath.Join(cfg.Server.TemplatesDir, "page-template.html")

	a := auth.New()
	lim := ratelimit.New(
		cfg.Security.RateLimit.MaxRequests,
		cfg.Security.RateLimit.MaxAccounts,
		cfg.Security.RateLimit.Window.Duration(),
	)
	cache := templates.New(cfg.Cache.MaxBytes.Int64(), cfg.Server.TemplatesDir, nil)
	rank := ranking.New(cfg.Ranking.PageSize)

	apiSrv := New(cfg, a, lim, cache, rank)
	apiSrv.SetCaptchaVerifier(stubCaptcha{ok: true})
	return &fixture{api: apiSrv, tree: apiSrv.Routes(), auth: a}
}

// do dispatches one request the way the transport does: identity from
// the token cookie, path plus query, Wait on pending.
func (f *fixture) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()

	ctx := router.NewContext(rec, req)
	ctx.IPKey = "test-client"
	ctx.Token = token
	if p := f.auth.ResolveIdentity(token); p != nil {
		ctx.User = p
	}

	path := req.URL.Path
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}
	path = strings.TrimSuffix(path, "/")

	st := f.tree.Dispatch(path, method, ctx)
	switch st {
	case router.StatusNotFound:
		_, _ = io.WriteString(rec, router.NotFoundBody)
	case router.StatusInternal:
		_, _ = io.WriteString(rec, router.InternalBody)
	case router.StatusPending:
		ctx.Wait()
	}
	return rec
}

func (f *fixture) signup(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"hunter2","recaptchaRes":"x"}`, username)
	rec := f.do(t, http.MethodPost, "/API/signup", body, "")
	tok := rec.Body.String()
	require.Len(t, tok, auth.TokenLen, "signup should return a raw token, got %q", tok)
	return tok
}

const validImg = "data:image/jpeg;base64,/9j/4AA="

func programBody(title string) string {
	b, _ := json.Marshal(map[string]any{
		"title":  title,
		"type":   "pjs",
		"width":  400,
		"height": 400,
		"files":  map[string]string{"index.js": "// code"},
		"img":    validImg,
	})
	return string(b)
}

func TestSignupAndIdentity(t *testing.T) {
	f := newFixture(t)

	tok := f.signup(t, "bob")
	p := f.auth.ResolveIdentity(tok)
	require.NotNil(t, p)
	assert.Equal(t, "bob", p.Username)
	assert.Equal(t, "bobert", p.Avatar)
	assert.Equal(t, "blue", p.Background)
}

func TestSignupDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "bob")

	rec := f.do(t, http.MethodPost, "/API/signup", `{"username":"BOB","password":"pw","recaptchaRes":"x"}`, "")
	assert.Equal(t, "error: that username is already taken", rec.Body.String())
}

func TestSignupRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/API/signup", `{"username":"x","password":"pw","recaptchaRes":"x"}`, "")
	assert.Equal(t, "error: 400", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/API/signup", "{not json", "")
	assert.Equal(t, "error", rec.Body.String())
}

func TestSignupCaptchaFailure(t *testing.T) {
	f := newFixture(t)
	f.api.SetCaptchaVerifier(stubCaptcha{ok: false})

	rec := f.do(t, http.MethodPost, "/API/signup", `{"username":"bob","password":"pw","recaptchaRes":"x"}`, "")
	assert.Equal(t, "error: recaptcha failed", rec.Body.String())
}

func TestSignupAccountCapPerIP(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.signup(t, fmt.Sprintf("user%d", i))
	}
	rec := f.do(t, http.MethodPost, "/API/signup", `{"username":"onemore","password":"pw","recaptchaRes":"x"}`, "")
	assert.Equal(t, "error: too many accounts associated with IP", rec.Body.String())
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "bob")

	rec := f.do(t, http.MethodPost, "/API/login", `{"username":"bob","password":"hunter2"}`, "")
	tok := rec.Body.String()
	require.Len(t, tok, auth.TokenLen)
	require.NotNil(t, f.auth.ResolveIdentity(tok))

	rec = f.do(t, http.MethodPost, "/API/login", `{"username":"bob","password":"wrong"}`, "")
	assert.Equal(t, "error: password is incorrect", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/API/login", `{"username":"nobody","password":"pw"}`, "")
	assert.Equal(t, "error: that username doesn't exist", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/API/login", `{"username":"bob","password":"hunter2"}`, tok)
	assert.Equal(t, "error: already signed in", rec.Body.String())
}

func TestSignOutInvalidatesToken(t *testing.T) {
	f := newFixture(t)
	tok := f.signup(t, "bob")

	rec := f.do(t, http.MethodGet, "/API/sign_out", "", tok)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Nil(t, f.auth.ResolveIdentity(tok))

	rec = f.do(t, http.MethodGet, "/API/sign_out", "", "")
	assert.Equal(t, "error: access denied", rec.Body.String())
}

func TestProgramLifecycle(t *testing.T) {
	f := newFixture(t)
	tok := f.signup(t, "bob")

	// create
	rec := f.do(t, http.MethodPost, "/API/create_program", programBody("Demo"), tok)
	id := rec.Body.String()
	require.NotEmpty(t, id)
	require.False(t, strings.HasPrefix(id, "error"), "create failed: %s", id)

	prog, err := store.GetProgram(id)
	require.NoError(t, err)
	assert.Equal(t, "Demo", prog.Title)
	assert.Equal(t, "bob", prog.Author.Username)

	owner := f.auth.ResolveIdentity(tok)
	require.NotNil(t, owner)
	assert.Contains(t, owner.Projects, id)

	// save
	var req map[string]any
	require.NoError(t, json.Unmarshal([]byte(programBody("Renamed")), &req))
	req["id"] = id
	raw, _ := json.Marshal(req)
	rec = f.do(t, http.MethodPost, "/API/save_program", string(raw), tok)
	assert.Equal(t, "OK", rec.Body.String())

	prog, err = store.GetProgram(id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", prog.Title)

	// like toggles
	rec = f.do(t, http.MethodPost, "/API/like_program", id, tok)
	assert.Equal(t, "200", rec.Body.String())
	prog, _ = store.GetProgram(id)
	assert.Len(t, prog.Likes, 1)

	rec = f.do(t, http.MethodPost, "/API/like_program", id, tok)
	assert.Equal(t, "200", rec.Body.String())
	prog, _ = store.GetProgram(id)
	assert.Empty(t, prog.Likes)

	// delete
	rec = f.do(t, http.MethodPost, "/API/delete_program", id, tok)
	assert.Equal(t, "OK", rec.Body.String())
	_, err = store.GetProgram(id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveProgramRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	owner := f.signup(t, "owner")
	thief := f.signup(t, "thief")

	rec := f.do(t, http.MethodPost, "/API/create_program", programBody("Mine"), owner)
	id := rec.Body.String()
	require.False(t, strings.HasPrefix(id, "error"))

	var req map[string]any
	require.NoError(t, json.Unmarshal([]byte(programBody("Stolen")), &req))
	req["id"] = id
	raw, _ := json.Marshal(req)

	rec = f.do(t, http.MethodPost, "/API/save_program", string(raw), thief)
	assert.Equal(t, "error: access denied", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/API/delete_program", id, thief)
	assert.Equal(t, "error: access denied", rec.Body.String())
}

func TestCreateProgramRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	tok := f.signup(t, "bob")

	var req map[string]any
	require.NoError(t, json.Unmarshal([]byte(programBody("Bad")), &req))
	req["type"] = "brainfuck"
	raw, _ := json.Marshal(req)

	rec := f.do(t, http.MethodPost, "/API/create_program", string(raw), tok)
	assert.Equal(t, "error: invalid project type", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/API/create_program", programBody("NoAuth"), "")
	assert.Equal(t, "error: access denied", rec.Body.String())
}

func TestProjectsListing(t *testing.T) {
	f := newFixture(t)
	tok := f.signup(t, "bob")

	rec := f.do(t, http.MethodPost, "/API/create_program", programBody("One"), tok)
	require.False(t, strings.HasPrefix(rec.Body.String(), "error"))

	require.NoError(t, f.api.ranking.Rebuild())

	rec = f.do(t, http.MethodGet, "/API/projects?sort=hot&page=0", "", "")
	var progs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progs))
	require.Len(t, progs, 1)
	assert.Equal(t, "One", progs[0]["title"])

	rec = f.do(t, http.MethodGet, "/API/projects?sort=hot&page=5", "", "")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetUserData(t *testing.T) {
	f := newFixture(t)
	tok := f.signup(t, "bob")
	p := f.auth.ResolveIdentity(tok)
	require.NotNil(t, p)

	rec := f.do(t, http.MethodGet, "/API/getUserData?who=bob", "", "")
	var pub map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pub))
	assert.Equal(t, "bob", pub["username"])
	assert.NotContains(t, rec.Body.String(), p.Password)
	assert.NotContains(t, pub, "tokens")

	rec = f.do(t, http.MethodGet, "/API/getUserData?who=id_"+p.ID, "", "")
	assert.Contains(t, rec.Body.String(), `"bob"`)

	rec = f.do(t, http.MethodGet, "/API/getUserData?who=ghost", "", "")
	assert.Equal(t, router.NotFoundBody, rec.Body.String())
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	tok := f.signup(t, "bob")

	rec := f.do(t, http.MethodPost, "/API/update_profile", `{"nickname":"Bobby","bio":"hi","avatar":"floof1","background":"cosmos"}`, tok)
	assert.Equal(t, "OK", rec.Body.String())

	p := f.auth.ResolveIdentity(tok)
	require.NotNil(t, p)
	assert.Equal(t, "Bobby", p.Nickname)
	assert.Equal(t, "hi", p.Bio)
	assert.Equal(t, "floof1", p.Avatar)
	assert.Equal(t, "cosmos", p.Background)

	rec = f.do(t, http.MethodPost, "/API/update_profile", `{"avatar":"mona-lisa"}`, tok)
	assert.Equal(t, "error: 400", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/API/update_profile", `{"nickname":"x"}`, "")
	assert.Equal(t, "error: access denied", rec.Body.String())
}

func TestUnknownAPIRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/API/nope", "", "")
	assert.Equal(t, router.NotFoundBody, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/API/signup", "", "")
	assert.Equal(t, router.NotFoundBody, rec.Body.String())
}

func TestPageRendering(t *testing.T) {
	f := newFixture(t)
	dir := f.api.cfg.Server.TemplatesDir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main"), []byte(
		"<html><!-- OPEN GRAPH INSERT --><!-- USER DATA INSERT --><!-- PAGE CONTENT INSERT --></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "home"), []byte("<h1>Home</h1>"), 0o644))

	tok := f.signup(t, "bob")
	rec := f.do(t, http.MethodGet, "/", "", tok)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Home</h1>")
	assert.Contains(t, body, `"username":"bob"`)
	assert.Contains(t, body, "og:title")
	assert.NotContains(t, body, "password")

	rec = f.do(t, http.MethodGet, "/", "", "")
	assert.Contains(t, rec.Body.String(), "var userData = null")
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	dir := f.api.cfg.Server.TemplatesDir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main"), []byte("v1"), 0o644))

	_, err := f.api.cache.Get("main")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/clearCache", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.api.cache.Len())
}
