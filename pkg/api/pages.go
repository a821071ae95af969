package api

import (
	"encoding/json"
	"strings"

	"codeshare/pkg/models"
	"codeshare/pkg/router"
	"codeshare/pkg/store"
)

const defaultOGTags = `
    <meta content="VExcess Academy" property="og:title" />
    <meta content="A website where anyone can learn to code and share their projects." property="og:description" />
    <meta content="/CDN/images/logo.png#a" property="og:image" />
`

// Starter code for new programs, dedented at init.
var boilerplate = map[string]string{
	"html": `
        <!DOCTYPE html>
        <html>
            <head>
                <meta charset="utf-8">
                <title>New webpage</title>
                <link rel="stylesheet" href="./style.css">
            </head>
            <body>

                <script src="./index.js"></script>

            </body>
        </html>
    `,
	"java": `
        class Main {
            public static void main(String[] args) {

            }
        }
    `,
	"cpp": `
        #include <iostream>
        using namespace std;

        int main() {
            return 0;
        }
    `,
	"glsl": `
        void mainImage(out vec4 fragColor, in vec2 fragCoord) {
            // Normalized pixel coordinates (from 0 to 1)
            vec2 uv = fragCoord / iResolution.xy;

            // Time varying pixel color
            vec3 col = 0.5 + 0.5 * cos(iTime + uv.xyx + vec3(0,2,4));

            // Output to screen
            fragColor = vec4(col,1.0);
        }
    `,
}

func init() {
	for k, v := range boilerplate {
		boilerplate[k] = dedent(v)
	}
}

// renderPage assembles a full page: the shell template with the open
// graph tags, the client identity and the page body spliced in. Identity
// is embedded as the public projection only.
func (a *API) renderPage(name string, user *models.Profile, ogTags string) ([]byte, error) {
	shell, err := a.cache.Get("main")
	if err != nil {
		return nil, err
	}
	body, err := a.cache.Get(name)
	if err != nil {
		return nil, err
	}

	userJSON := "null"
	if user != nil {
		b, err := json.Marshal(user.Public())
		if err != nil {
			return nil, err
		}
		userJSON = strings.ReplaceAll(string(b), "</", "<\\/")
	}

	page := string(shell)
	page = strings.Replace(page, "<!-- OPEN GRAPH INSERT -->", ogTags, 1)
	page = strings.Replace(page, "<!-- USER DATA INSERT -->", "<script>\n\tvar userData = "+userJSON+"\n</script>", 1)
	page = strings.Replace(page, "<!-- PAGE CONTENT INSERT -->", string(body), 1)
	return []byte(page), nil
}

func (a *API) servePage(name string, ctx *router.Context, ogTags string) error {
	page, err := a.renderPage(name, profileOf(ctx), ogTags)
	if err != nil {
		return err
	}
	ctx.Out.Header().Set("Content-Type", "text/html")
	_, err = ctx.Out.Write(page)
	return err
}

func profileOf(ctx *router.Context) *models.Profile {
	p, _ := ctx.User.(*models.Profile)
	return p
}

func (a *API) homePage(_ string, ctx *router.Context) error {
	return a.servePage("home", ctx, defaultOGTags)
}

func (a *API) loginPage(_ string, ctx *router.Context) error {
	return a.servePage("login", ctx, defaultOGTags)
}

func (a *API) profilePage(_ string, ctx *router.Context) error {
	return a.servePage("profile", ctx, defaultOGTags)
}

func (a *API) logsPage(rem string, ctx *router.Context) error {
	return a.servePage("logs/"+rem, ctx, defaultOGTags)
}

func (a *API) tosPage(_ string, ctx *router.Context) error {
	return a.servePage("tos", ctx, defaultOGTags)
}

func (a *API) privacyPage(_ string, ctx *router.Context) error {
	return a.servePage("privacy-policy", ctx, defaultOGTags)
}

func (a *API) programmingHome(_ string, ctx *router.Context) error {
	return a.servePage("computer-programming", ctx, defaultOGTags)
}

func (a *API) browsePage(_ string, ctx *router.Context) error {
	return a.servePage("browse", ctx, defaultOGTags)
}

func (a *API) coursePage(_ string, ctx *router.Context) error {
	return a.servePage("course", ctx, defaultOGTags)
}

func (a *API) clearCache(_ string, ctx *router.Context) error {
	a.cache.Clear()
	return nil
}

// newProgramTypes are the runtimes offered on the editor's "new" path.
// "webpage" expands to the three-file html starter.
var newProgramTypes = []string{"webpage", "pjs", "python", "glsl", "jitlang", "cpp", "java"}

type newProgramData struct {
	Title     string            `json:"title"`
	Files     map[string]string `json:"files"`
	FileNames []string          `json:"fileNames"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Type      string            `json:"type"`
}

// newProgramPage serves the editor primed with starter files for the
// requested runtime. Unknown runtimes get an empty 200, matching the
// route's permissive contract.
func (a *API) newProgramPage(rem string, ctx *router.Context) error {
	known := false
	for _, t := range newProgramTypes {
		if t == rem {
			known = true
			break
		}
	}
	if !known {
		return nil
	}

	data := newProgramData{
		Title:     "New Program",
		Files:     map[string]string{},
		FileNames: []string{},
		Width:     400,
		Height:    400,
	}
	switch rem {
	case "webpage":
		data.Type = "html"
		data.FileNames = []string{"index.html", "index.js", "style.css"}
		data.Files["index.html"] = unicodeEscape(boilerplate["html"], dontEscapeChars)
		data.Files["index.js"] = unicodeEscape("// JavaScript", dontEscapeChars)
		data.Files["style.css"] = unicodeEscape("/* CSS */", dontEscapeChars)
	case "pjs":
		data.Type = "pjs"
		data.FileNames = []string{"index.js"}
		data.Files["index.js"] = "// Processing.js"
	case "python":
		data.Type = "python"
		data.FileNames = []string{"main.py"}
		data.Files["main.py"] = "# Python"
	case "glsl":
		data.Type = "glsl"
		data.FileNames = []string{"image.glsl"}
		data.Files["image.glsl"] = boilerplate["glsl"]
	case "jitlang":
		data.Type = "jitlang"
		data.FileNames = []string{"main.jitl"}
		data.Files["main.jitl"] = "// JITLang"
	case "cpp":
		data.Type = "cpp"
		data.FileNames = []string{"main.cpp"}
		data.Files["main.cpp"] = boilerplate["cpp"]
	case "java":
		data.Type = "java"
		data.FileNames = []string{"Main.java"}
		data.Files["Main.java"] = boilerplate["java"]
	}

	page, err := a.renderPage("program", profileOf(ctx), defaultOGTags)
	if err != nil {
		return err
	}
	insert, err := json.MarshalIndent(map[string]any{"programData": data}, "", "  ")
	if err != nil {
		return err
	}
	// restore the \uXXXX escapes the marshal doubled
	body := strings.Replace(string(page), "insert-page-data", strings.ReplaceAll(string(insert), `\\u`, `\u`), 1)

	ctx.Out.Header().Set("Content-Type", "text/html")
	_, err = ctx.Out.Write([]byte(body))
	return err
}

// programView is the program document embedded in the editor page: the
// like list collapses to a count plus the viewer's own state.
type programView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Type      string        `json:"type"`
	LikeCount int           `json:"likeCount"`
	HasLiked  bool          `json:"hasLiked,omitempty"`
	Forks     []string      `json:"forks"`
	Created   int64         `json:"created"`
	LastSaved int64         `json:"lastSaved"`
	Flags     []string      `json:"flags"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	FileNames []string      `json:"fileNames"`
	Author    models.Author `json:"author"`
}

// programPage serves the editor for an existing program id. Unknown ids
// fall through with an empty 200 body.
func (a *API) programPage(id string, ctx *router.Context) error {
	prog, err := store.GetProgram(id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return err
	}

	user := profileOf(ctx)
	view := programView{
		ID:        prog.ID,
		Title:     prog.Title,
		Type:      prog.Type,
		LikeCount: len(prog.Likes),
		Forks:     prog.Forks,
		Created:   prog.Created,
		LastSaved: prog.LastSaved,
		Flags:     prog.Flags,
		Width:     prog.Width,
		Height:    prog.Height,
		FileNames: prog.FileNames,
		Author:    prog.Author,
	}
	if user != nil {
		for _, liker := range prog.Likes {
			if liker == user.ID {
				view.HasLiked = true
				break
			}
		}
	}

	ogTags := `
        <meta content="` + escapeQuotes(prog.Title) + `" property="og:title" />
        <meta content="Made by ` + escapeQuotes(prog.Author.Nickname) + `" property="og:description" />
        <meta content="/CDN/programs/` + strings.ToUpper(prog.ID[:1]) + `/` + prog.ID + `/i.jpg#a" property="og:image" />
    `
	page, err := a.renderPage("program", user, ogTags)
	if err != nil {
		return err
	}
	insert, err := json.MarshalIndent(map[string]any{"programData": view}, "", "  ")
	if err != nil {
		return err
	}
	body := strings.Replace(string(page), "insert-page-data", strings.ReplaceAll(string(insert), "</", "<\\/"), 1)

	ctx.Out.Header().Set("Content-Type", "text/html")
	_, err = ctx.Out.Write([]byte(body))
	return err
}
