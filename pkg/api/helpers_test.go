package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedent(t *testing.T) {
	in := "\n        line one\n            indented\n        line two\n    "
	assert.Equal(t, "line one\n    indented\nline two", dedent(in))
	assert.Equal(t, "", dedent("\n"))
}

func TestBoilerplatesAreDedented(t *testing.T) {
	assert.NotContains(t, boilerplate["html"], "        <!DOCTYPE")
	assert.Contains(t, boilerplate["html"], "<!DOCTYPE html>")
	assert.Contains(t, boilerplate["cpp"], "#include <iostream>")
}

func TestUnicodeEscape(t *testing.T) {
	assert.Equal(t, "abc 123", unicodeEscape("abc 123", dontEscapeChars))
	assert.Equal(t, `\u003c\u000a`, unicodeEscape("<\n", dontEscapeChars))
}

func TestParseQuery(t *testing.T) {
	q := parseQuery("sort=hot&page=2")
	assert.Equal(t, "hot", q["sort"])
	assert.Equal(t, 2, queryInt(q, "page", 0))
	assert.Equal(t, 0, queryInt(q, "missing", 0))
	assert.Empty(t, parseQuery(""))
}
