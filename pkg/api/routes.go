package api

import (
	"codeshare/pkg/router"
)

// Routes builds the full route tree. Registration order is match order.
func (a *API) Routes() *router.Tree {
	programming := router.New().
		Exact("browse", a.browsePage).
		Exact("javascript", a.coursePage).
		PrefixFunc("javascript/", a.coursePage).
		Exact("webgl", a.coursePage).
		PrefixFunc("webgl/", a.coursePage).
		PrefixFunc("new/", a.newProgramPage).
		Wildcard("", a.programPage)

	post := router.New().
		Exact("signup", a.signup).
		Exact("login", a.login).
		Exact("create_program", a.createProgram).
		Exact("save_program", a.saveProgram).
		Exact("delete_program", a.deleteProgram).
		Exact("like_program", a.likeProgram).
		Exact("update_profile", a.updateProfile).
		Exact("compile_c", a.compileC)

	get := router.New().
		Gate(func(_ string, ctx *router.Context) (map[string]any, error) {
			ctx.Out.Header().Set("Content-Type", "application/json")
			return nil, nil
		}).
		Exact("sign_out", a.signOut).
		PrefixFunc("projects?", a.listProjects).
		PrefixFunc("getUserData?", a.getUserData)

	apiNode := &router.MethodNode{
		Gate: func(_ string, ctx *router.Context) (map[string]any, error) {
			ctx.Out.Header().Set("Access-Control-Allow-Origin", "*")
			return map[string]any{"hasPermission": ctx.User != nil}, nil
		},
		Post: post,
		Get:  get,
	}

	return router.New().
		Exact("/clearCache", a.clearCache).
		Exact("/", a.homePage).
		Exact("/login", a.loginPage).
		PrefixFunc("/profile/", a.profilePage).
		PrefixFunc("/logs/", a.logsPage).
		Exact("/tos", a.tosPage).
		Exact("/privacy-policy", a.privacyPage).
		Exact("/computer-programming", a.programmingHome).
		Prefix("/computer-programming/", programming).
		Methods("/API/", apiNode).
		PrefixFunc("/CDN/", a.serveCDN)
}
