package api

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeshare/pkg/router"
	"codeshare/pkg/store"
)

const cdnCacheSeconds = 60 * 60 * 24 * 7

// serveCDN hands out static assets. Program artifacts (thumbnails and
// file documents) come from the store; everything else is read from the
// static directory. Paths are cleaned so the tree cannot be escaped.
func (a *API) serveCDN(rem string, ctx *router.Context) error {
	ctx.Out.Header().Set("Access-Control-Allow-Origin", "*")

	ext := ""
	if i := strings.LastIndex(rem, "."); i >= 0 {
		ext = rem[i+1:]
	}
	ctx.Out.Header().Set("Content-Type", cdnContentType(ext))
	if strings.Contains(rem, "monaco-editor") || isImageExt(ext) {
		ctx.Out.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(cdnCacheSeconds))
	}

	if id, artifact, ok := programArtifact(rem); ok {
		return a.serveProgramArtifact(id, artifact, ctx)
	}

	path := filepath.Join(a.cfg.Server.StaticDir, filepath.Clean("/"+rem))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, werr := io.WriteString(ctx.Out, router.NotFoundBody)
			return werr
		}
		return err
	}
	defer f.Close()
	_, err = io.Copy(ctx.Out, f)
	return err
}

// programArtifact recognizes programs/<C>/<id>/<artifact> paths.
func programArtifact(rem string) (id, artifact string, ok bool) {
	parts := strings.Split(rem, "/")
	if len(parts) != 4 || parts[0] != "programs" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

func (a *API) serveProgramArtifact(id, artifact string, ctx *router.Context) error {
	switch artifact {
	case "i.jpg":
		img, err := store.GetProgramThumb(id)
		if err != nil {
			if err == store.ErrNotFound {
				_, werr := io.WriteString(ctx.Out, router.NotFoundBody)
				return werr
			}
			return err
		}
		_, err = ctx.Out.Write(img)
		return err
	case "f.json":
		files, err := store.GetProgramFiles(id)
		if err != nil {
			if err == store.ErrNotFound {
				_, werr := io.WriteString(ctx.Out, router.NotFoundBody)
				return werr
			}
			return err
		}
		return json.NewEncoder(ctx.Out).Encode(files)
	}
	_, err := io.WriteString(ctx.Out, router.NotFoundBody)
	return err
}

func isImageExt(ext string) bool {
	switch ext {
	case "png", "ico", "svg", "jpg":
		return true
	}
	return false
}

func cdnContentType(ext string) string {
	typ, sub := "text", ext
	if isImageExt(ext) {
		typ = "image"
	}
	switch ext {
	case "js":
		sub = "javascript"
	case "svg":
		sub = "svg+xml"
	case "":
		sub = "plain"
	}
	return typ + "/" + sub
}
