package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// dontEscapeChars are the characters unicodeEscape passes through
// unchanged when preparing boilerplate code for page embedding.
const dontEscapeChars = " !#$%&'()*+,-./0123456789:;=?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[]^_`abcdefghijklmnopqrstuvwxyz{|}~"

// dedent strips the first and last line of a raw-string block and removes
// the common leading indent from the rest.
func dedent(code string) string {
	lines := strings.Split(code, "\n")
	if len(lines) <= 2 {
		return ""
	}
	lines = lines[1 : len(lines)-1]
	minIndent := math.MaxInt
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := 0
		for indent < len(line) && line[indent] == ' ' {
			indent++
		}
		if indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent == math.MaxInt {
		minIndent = 0
	}
	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		}
	}
	return strings.Join(lines, "\n")
}

// unicodeEscape replaces every rune outside allowed with its \uXXXX
// escape so boilerplate survives JSON embedding in a script tag.
func unicodeEscape(s, allowed string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
		} else {
			fmt.Fprintf(&b, "\\u%04x", r)
		}
	}
	return b.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// parseQuery splits a raw query remainder ("sort=hot&page=2") into a
// string map. Malformed pairs are skipped.
func parseQuery(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return out
	}
	for k, vs := range vals {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func queryInt(q map[string]string, key string, fallback int) int {
	v, ok := q[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
