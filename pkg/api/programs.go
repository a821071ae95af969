package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"sort"
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

// MaxProjects caps how many programs one account can keep.
const MaxProjects = 32

type programRequest struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Type   string            `json:"type"`
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Files  map[string]string `json:"files"`
	Img    string            `json:"img"`
}

func (r *programRequest) payload(typ string) *validation.ProgramPayload {
	return &validation.ProgramPayload{
		Title:  r.Title,
		Type:   typ,
		Width:  r.Width,
		Height: r.Height,
		Files:  r.Files,
		Img:    r.Img,
	}
}

func sortedFileNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newProgramID builds an id from 6 random characters plus the creation
// time in base 36, retrying on the unlikely collision.
func newProgramID() (string, error) {
	for {
		tok, err := security.Token(6)
		if err != nil {
			return "", err
		}
		id := tok + strconv.FormatInt(time.Now().UnixMilli(), 36)
		exists, err := store.ProgramExists(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
}

// persistProgram writes the metadata and files synchronously so the
// editor can reload immediately; the thumbnail decodes and lands behind.
func persistProgram(prog *models.Program, files map[string]string, img string) error {
	if err := store.SaveProgram(prog); err != nil {
		return err
	}
	if err := store.SaveProgramFiles(prog.ID, files); err != nil {
		return err
	}
	if img != "" {
		id := prog.ID
		store.Enqueue("save_program_thumb", func() error {
			raw, err := base64.StdEncoding.DecodeString(img[strings.Index(img, ",")+1:])
			if err != nil {
				logger.Warn("thumb_decode_failed", "program", id, "error", err)
				return nil
			}
			return store.SaveProgramThumb(id, raw)
		})
	}
	return nil
}

func (a *API) createProgram(_ string, ctx *router.Context) error {
	var req programRequest
	if err := json.Unmarshal(ctx.Body, &req); err != nil {
		_, werr := io.WriteString(ctx.Out, "error")
		return werr
	}
	if !ctx.Bool("hasPermission") {
		_, werr := io.WriteString(ctx.Out, "error: access denied")
		return werr
	}
	user := profileOf(ctx)
	if len(user.Projects) > MaxProjects {
		_, werr := io.WriteString(ctx.Out, "error: your storage is full")
		return werr
	}

	if check := validation.Program(req.payload(req.Type)); check != validation.OK {
		_, werr := io.WriteString(ctx.Out, check)
		return werr
	}

	id, err := newProgramID()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	prog := &models.Program{
		ID:        id,
		Title:     req.Title,
		Type:      req.Type,
		Likes:     []string{},
		Forks:     []string{},
		Created:   now,
		LastSaved: now,
		Flags:     []string{},
		Width:     req.Width,
		Height:    req.Height,
		FileNames: sortedFileNames(req.Files),
		Author: models.Author{
			Username: user.Username,
			ID:       user.ID,
			Nickname: user.Nickname,
		},
	}
	if err := persistProgram(prog, req.Files, req.Img); err != nil {
		return err
	}

	user.Projects = append(user.Projects, id)
	saved := *user
	store.Enqueue("save_profile", func() error { return store.SaveProfile(&saved) })

	logger.Info("program_created", "program", id, "user", user.ID)
	_, werr := io.WriteString(ctx.Out, id)
	return werr
}

func (a *API) saveProgram(_ string, ctx *router.Context) error {
	var req programRequest
	if err := json.Unmarshal(ctx.Body, &req); err != nil {
		_, werr := io.WriteString(ctx.Out, "error")
		return werr
	}

	user := profileOf(ctx)
	owns := user != nil && (containsStr(user.Projects, req.ID) || user.IsAdmin)
	if !ctx.Bool("hasPermission") || !owns {
		_, werr := io.WriteString(ctx.Out, "error: access denied")
		return werr
	}

	prog, err := store.GetProgram(req.ID)
	if err != nil {
		if err == store.ErrNotFound {
			_, werr := io.WriteString(ctx.Out, "error: program non-existent")
			return werr
		}
		return err
	}

	// saves may not change the runtime, so validate against the stored type
	if check := validation.Program(req.payload(prog.Type)); check != validation.OK {
		_, werr := io.WriteString(ctx.Out, check)
		return werr
	}

	prog.Title = req.Title
	prog.LastSaved = time.Now().UnixMilli()
	prog.Width = req.Width
	prog.Height = req.Height
	prog.FileNames = sortedFileNames(req.Files)
	if err := persistProgram(prog, req.Files, req.Img); err != nil {
		return err
	}

	_, werr := io.WriteString(ctx.Out, "OK")
	return werr
}

func (a *API) deleteProgram(_ string, ctx *router.Context) error {
	id := string(ctx.Body)
	user := profileOf(ctx)

	prog, err := store.GetProgram(id)
	if err != nil {
		if err == store.ErrNotFound {
			_, werr := io.WriteString(ctx.Out, "error: program doesn't exist")
			return werr
		}
		_, werr := io.WriteString(ctx.Out, "error: error while deleting program")
		return werr
	}
	if !ctx.Bool("hasPermission") || user == nil || prog.Author.ID != user.ID {
		_, werr := io.WriteString(ctx.Out, "error: access denied")
		return werr
	}

	if err := store.DeleteProgram(id); err != nil {
		_, werr := io.WriteString(ctx.Out, "error: 500 Internal Server Error")
		return werr
	}

	for i, pid := range user.Projects {
		if pid == id {
			user.Projects = append(user.Projects[:i], user.Projects[i+1:]...)
			break
		}
	}
	saved := *user
	store.Enqueue("save_profile", func() error { return store.SaveProfile(&saved) })

	logger.Info("program_deleted", "program", id, "user", user.ID)
	_, werr := io.WriteString(ctx.Out, "OK")
	return werr
}

func (a *API) likeProgram(_ string, ctx *router.Context) error {
	if !ctx.Bool("hasPermission") {
		_, werr := io.WriteString(ctx.Out, "error: access denied")
		return werr
	}
	user := profileOf(ctx)
	id := string(ctx.Body)

	prog, err := store.GetProgram(id)
	if err != nil {
		_, werr := io.WriteString(ctx.Out, "error: error while liking program")
		return werr
	}

	// toggle the caller's like
	if containsStr(prog.Likes, user.ID) {
		for i, uid := range prog.Likes {
			if uid == user.ID {
				prog.Likes = append(prog.Likes[:i], prog.Likes[i+1:]...)
				break
			}
		}
	} else {
		prog.Likes = append(prog.Likes, user.ID)
	}

	if err := store.SaveProgram(prog); err != nil {
		_, werr := io.WriteString(ctx.Out, "error: error while liking program")
		return werr
	}
	_, werr := io.WriteString(ctx.Out, "200")
	return werr
}

// listProjects serves one page of a browse list, selected with
// ?sort=hot|recent|top&page=N.
func (a *API) listProjects(rem string, ctx *router.Context) error {
	q := parseQuery(rem)
	view := q["sort"]
	if view == "" {
		view = "hot"
	}
	page := queryInt(q, "page", 0)
	return json.NewEncoder(ctx.Out).Encode(a.ranking.Page(view, page))
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
