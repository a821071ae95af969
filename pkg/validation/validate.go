// Package validation checks user-supplied fields and program payloads.
// Every check returns "OK" or a human-readable reason; handlers write the
// reason straight into the response body.
package validation

import (
	"strings"
	"unicode/utf16"
)

// OK is the sentinel result for a passing check.
const OK = "OK"

// ValidTypes are the accepted program runtimes.
var ValidTypes = []string{"html", "pjs", "python", "glsl", "jitlang", "cpp", "java"}

// ValidAvatars are the selectable profile avatars.
var ValidAvatars = []string{
	"bobert-approved", "bobert-chad", "bobert-cringe", "bobert-flexing",
	"bobert-hacker", "bobert-high", "bobert-troll-nose", "bobert-troll",
	"bobert-wide", "bobert", "rock-thonk", "floof1", "floof2", "floof3",
	"floof4", "floof5", "pyro1", "pyro2", "pyro3", "pyro4", "pyro5",
}

// ValidBackgrounds are the selectable profile backgrounds.
var ValidBackgrounds = []string{
	"blue", "cosmos", "electric-blue", "fbm", "fractal-1", "green",
	"julia-rainbow", "julia", "magenta", "photon-1", "photon-2", "transparent",
}

// Program size limits.
const (
	MaxFiles        = 8
	MaxProgramBytes = 1024 * 512
	MaxThumbBytes   = 128 * 1024
	MinDimension    = 400
	MaxDimension    = 16384
)

// ProgramPayload is the client-submitted program document checked by
// Program.
type ProgramPayload struct {
	Title  string            `json:"title"`
	Type   string            `json:"type"`
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Files  map[string]string `json:"files"`
	Img    string            `json:"img"`
}

// StrSize measures a string the way browsers do: one byte per UTF-16
// unit at or below 0xFF, two otherwise.
func StrSize(s string) int {
	sz := 0
	for _, u := range utf16.Encode([]rune(s)) {
		if u > 255 {
			sz += 2
		} else {
			sz++
		}
	}
	return sz
}

// FileName checks a title or file name.
func FileName(name string) string {
	if len(name) == 0 {
		return "can't be empty"
	}
	if StrSize(name) >= 256 {
		return "must be less than 256 bytes"
	}
	if name[0] == ' ' || name[0] == '.' {
		return "can't start with a period or space"
	}
	if strings.ContainsAny(name, "/\\:*?\"<>|\n") {
		return "can't contain /\\:*?\"<>| or newline"
	}
	return OK
}

// Program checks a submitted program payload. Results other than OK are
// prefixed "error: " and written verbatim to the client.
func Program(data *ProgramPayload) string {
	const e = "error: "
	if data == nil || data.Files == nil {
		return e + "project metadata is corrupted"
	}
	if !contains(ValidTypes, data.Type) {
		return e + "invalid project type"
	}
	if data.Width < MinDimension || data.Height < MinDimension {
		return e + "project dimensions can't be less than 400"
	}
	if data.Width > MaxDimension || data.Height > MaxDimension {
		return e + "project dimensions can't be larger than 16384"
	}
	if !strings.HasPrefix(data.Img, "data:image/jpg;base64,") &&
		!strings.HasPrefix(data.Img, "data:image/jpeg;base64,") &&
		!strings.HasPrefix(data.Img, "data:image/jfif;base64,") {
		return e + "project thumbnail must be a jpg/jpeg/jfif"
	}
	if len(data.Img) > MaxThumbBytes {
		return e + "project thumbnail is too big; 128 KB allowed"
	}
	if check := FileName(data.Title); check != OK {
		return e + "project title " + check
	}
	if len(data.Files) > MaxFiles {
		return e + "project has too many files; 8 allowed"
	}
	projectSize := 0
	for name, file := range data.Files {
		if check := FileName(name); check != OK {
			return e + "file name " + check
		}
		projectSize += StrSize(file)
		if projectSize > MaxProgramBytes {
			return e + "project is too big; 0.5 MB allowed"
		}
	}
	return OK
}

// Nickname checks a display name.
func Nickname(nickname string) string {
	if len([]rune(nickname)) > 32 {
		return "nickname can't be longer than 32 characters"
	}
	if len(nickname) == 0 {
		return "nickname can't be empty"
	}
	return OK
}

// Bio checks a profile bio.
func Bio(bio string) string {
	if len([]rune(bio)) > 160 {
		return "bio can't be longer than 160 characters"
	}
	return OK
}

// Username checks a login name.
func Username(username string) string {
	if len(username) > 32 {
		return "username can't be longer than 32 characters"
	}
	if !isAlnumUnderscore(username) {
		return "username can only contain letters, numbers, and underscores"
	}
	if len(username) < 3 {
		return "username can't be shorter than 3 characters"
	}
	return OK
}

// Password checks a raw password.
func Password(password string) string {
	if len(password) > 64 {
		return "password can't be longer than 64 characters"
	}
	return OK
}

// Avatar reports whether the avatar name is selectable.
func Avatar(name string) bool { return contains(ValidAvatars, name) }

// Background reports whether the background name is selectable.
func Background(name string) bool { return contains(ValidBackgrounds, name) }

func isAlnumUnderscore(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
