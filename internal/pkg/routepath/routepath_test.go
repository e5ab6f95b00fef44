package routepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"sum":      "/sum",
		"/sum":     "/sum",
		"/sum/":    "/sum",
		" /sum ":   "/sum",
		"/a/b/":    "/a/b",
		"/a/b//":   "/a/b/",
		"/deep/ok": "/deep/ok",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestComposeEndpoint(t *testing.T) {
	assert.Equal(t, "/api/math-utils/sum", ComposeEndpoint("math-utils", "/sum"))
	assert.Equal(t, "/api/math-utils/sum", ComposeEndpoint("math-utils", "sum"))
	assert.Equal(t, "/api/math-utils/sum", ComposeEndpoint("math-utils", "/sum/"))

	// Already-anchored paths are collapsed, not doubled.
	assert.Equal(t, "/api/s/b", ComposeEndpoint("s", "/api/s/b"))
	assert.Equal(t, "/api/s/b", ComposeEndpoint("s", "/api/b"))

	// An unanchored path is literal even when it repeats the slug.
	assert.Equal(t, "/api/s/s/b", ComposeEndpoint("s", "/s/b"))
	assert.Equal(t, "/api/echo/echo", ComposeEndpoint("echo", "/echo"))

	assert.Equal(t, "/api/s", ComposeEndpoint("s", "/"))
	assert.Equal(t, "/api/s", ComposeEndpoint("s", "/api"))
}

func TestComposePage(t *testing.T) {
	assert.Equal(t, "/hello-world/home", ComposePage("hello-world", "/home"))
	assert.Equal(t, "/hello-world/home", ComposePage("hello-world", "home/"))
	assert.Equal(t, "/s/s/b", ComposePage("s", "/s/b"))
	assert.Equal(t, "/s/s", ComposePage("s", "/s"))
	assert.Equal(t, "/s", ComposePage("s", "/"))
}

func TestUnderAPI(t *testing.T) {
	assert.True(t, UnderAPI("/api/foo/bar"))
	assert.True(t, UnderAPI("/api"))
	assert.True(t, UnderAPI("api/x"))
	assert.False(t, UnderAPI("/apix"))
	assert.False(t, UnderAPI("/foo/bar"))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("/api/projects"))
	assert.True(t, IsReserved("/api/endpoints/123"))
	assert.True(t, IsReserved("/api/debug/routes"))
	assert.True(t, IsReserved("/api/auth/login"))
	assert.True(t, IsReserved("/api/pages/abc"))
	assert.False(t, IsReserved("/api/projectsx/y"))
	assert.False(t, IsReserved("/api/math-utils/sum"))
	assert.False(t, IsReserved("/math-utils/home"))
}
