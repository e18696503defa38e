package image

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDigest = "sha256:" + strings.Repeat("ab", 32)

func TestDomainRegexp(t *testing.T) {
	for _, d := range []string{
		"localhost", "localhost:5000",
		"example.com", "example.com:80",
		"gcr.io",
		"index.docker.com",
	} {
		if !domainRegexp.MatchString(d) {
			t.Errorf("domain regexp did not match %q", d)
		}
	}
	for _, d := range []string{"registry", "team", "my_registry.io"} {
		if domainRegexp.MatchString(d) {
			t.Errorf("domain regexp matched %q", d)
		}
	}
}

func TestParseRef(t *testing.T) {
	for _, x := range []struct {
		test    string
		domain  string
		repo    string
		tag     string
		name    string
		version string
	}{
		{"api", "", "api", "", "api", ""},
		{"registry/api:v2", "", "registry/api", "v2", "api", "v2"},
		{"quay.io/team/api:1.4.0", "quay.io", "team/api", "1.4.0", "api", "1.4.0"},
		{"localhost:5000/path/to/api:mytag", "localhost:5000", "path/to/api", "mytag", "api", "mytag"},
		{"localhost:5000/api", "localhost:5000", "api", "", "api", ""},
		{"gcr.io/team/api@" + testDigest, "gcr.io", "team/api", "", "api", testDigest},
		{"gcr.io/team/api:v3@" + testDigest, "gcr.io", "team/api", "v3", "api", "v3"},
	} {
		ref, err := ParseRef(x.test)
		if err != nil {
			t.Errorf("Failed parsing %q: %s", x.test, err)
			continue
		}
		assert.Equal(t, x.domain, ref.Domain, x.test)
		assert.Equal(t, x.repo, ref.Repository, x.test)
		assert.Equal(t, x.tag, ref.Tag, x.test)
		assert.Equal(t, x.name, ref.Name(), x.test)
		assert.Equal(t, x.version, ref.Version(), x.test)
		assert.Equal(t, x.test, ref.String(), x.test)
	}
}

func TestParseRefErrorCases(t *testing.T) {
	for _, x := range []string{
		"",
		":tag",
		"/leading/slash",
		"trailing/slash/",
		"api:",
		"api@sha256:nothex",
		"team:x/api",
	} {
		if _, err := ParseRef(x); err == nil {
			t.Errorf("Expected parse failure for %q", x)
		}
	}
}

func TestFromURLSerialisation(t *testing.T) {
	img, err := FromURL("registry/api:v2")
	require.NoError(t, err)
	assert.Equal(t, Image{URL: "registry/api:v2", Name: "api"}, img)
	assert.Equal(t, "v2", img.Version())

	bytes, err := json.Marshal(img)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"registry/api:v2","name":"api"}`, string(bytes))
}

func TestNewer(t *testing.T) {
	mk := func(url string) Image {
		img, err := FromURL(url)
		require.NoError(t, err)
		return img
	}
	for _, x := range []struct {
		candidate, current string
		newer              bool
	}{
		{"registry/api:v2", "registry/api:v1", true},
		{"registry/api:v1", "registry/api:v2", false},
		{"registry/api:1.10.0", "registry/api:1.9.3", true},
		{"registry/api:v1", "registry/api:v1", false},
		// not comparable as versions: different counts as newer
		{"registry/api:abc123", "registry/api:def456", true},
		{"registry/api:latest", "registry/api:v1", true},
		{"registry/api:latest", "registry/api:latest", false},
		{"registry/api@" + testDigest, "registry/api@sha256:" + strings.Repeat("cd", 32), true},
		{"registry/api@" + testDigest, "registry/api@" + testDigest, false},
	} {
		assert.Equal(t, x.newer, Newer(mk(x.candidate), mk(x.current)), "%s newer than %s", x.candidate, x.current)
	}
}

func TestNewerPrefersResolvedTag(t *testing.T) {
	candidate := Image{URL: "registry/api", Name: "api", Tag: "v2"}
	current := Image{URL: "registry/api:v1", Name: "api"}
	assert.True(t, Newer(candidate, current))
}

func TestLatest(t *testing.T) {
	assert.Equal(t, "v2", Latest([]string{"v1", "v2"}))
	assert.Equal(t, "v2", Latest([]string{"latest", "v2", "v1"}))
	assert.Equal(t, "1.10.0", Latest([]string{"1.9.0", "1.10.0", "1.10"}))
	assert.Equal(t, "main-b", Latest([]string{"main-a", "main-b"}))
	assert.Equal(t, "", Latest(nil))
}
