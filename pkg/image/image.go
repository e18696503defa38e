package image

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

var (
	ErrInvalidImageURL   = errors.New("invalid image URL")
	ErrBlankImageURL     = errors.Wrap(ErrInvalidImageURL, "blank image URL")
	ErrMalformedImageURL = errors.Wrap(ErrInvalidImageURL, `expected image URL as [<domain>/]<path>[:<tag>][@<digest>]`)
)

var (
	domainComponent = `([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9])`
	domain          = fmt.Sprintf(`(localhost|%s([.]%s)+)(:[0-9]+)?`, domainComponent, domainComponent)
	domainRegexp    = regexp.MustCompile(`^` + domain + `$`)
)

// Ref is a parsed image URL.
//
// Examples (stringified):
//   - api
//   - registry/api:v2
//   - quay.io/team/api:1.4.0
//   - localhost:5000/path/to/api@sha256:0123...
type Ref struct {
	Domain     string
	Repository string
	Tag        string
	Digest     digest.Digest
}

// ParseRef parses an image URL. The first path element is taken to be
// a registry domain only when it looks like one, i.e., it is
// `localhost` or contains a dot, optionally followed by a port.
func ParseRef(s string) (Ref, error) {
	var ref Ref
	if s == "" {
		return ref, errors.Wrapf(ErrBlankImageURL, "parsing %q", s)
	}

	rest := s
	if i := strings.Index(rest, "@"); i >= 0 {
		d, err := digest.Parse(rest[i+1:])
		if err != nil {
			return ref, errors.Wrapf(ErrMalformedImageURL, "parsing %q: %s", s, err)
		}
		ref.Digest = d
		rest = rest[:i]
	}
	if rest == "" || strings.HasPrefix(rest, "/") || strings.HasSuffix(rest, "/") {
		return ref, errors.Wrapf(ErrMalformedImageURL, "parsing %q", s)
	}

	elements := strings.Split(rest, "/")
	if len(elements) > 1 && domainRegexp.MatchString(elements[0]) {
		ref.Domain = elements[0]
		elements = elements[1:]
	}

	last := elements[len(elements)-1]
	if i := strings.LastIndex(last, ":"); i >= 0 {
		ref.Tag = last[i+1:]
		last = last[:i]
		if last == "" || ref.Tag == "" {
			return ref, errors.Wrapf(ErrMalformedImageURL, "parsing %q", s)
		}
		elements[len(elements)-1] = last
	}
	ref.Repository = strings.Join(elements, "/")
	if strings.Contains(ref.Repository, ":") {
		return ref, errors.Wrapf(ErrMalformedImageURL, "parsing %q", s)
	}
	return ref, nil
}

// Name is the last element of the repository path, which is what
// deployments and registries are matched on.
func (r Ref) Name() string {
	return path.Base(r.Repository)
}

// Version is the tag if there is one, otherwise the digest.
func (r Ref) Version() string {
	if r.Tag != "" {
		return r.Tag
	}
	return string(r.Digest)
}

func (r Ref) String() string {
	var s string
	if r.Domain != "" {
		s = r.Domain + "/"
	}
	s += r.Repository
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	if r.Digest != "" {
		s += "@" + string(r.Digest)
	}
	return s
}

// Image is a container image as it is referred to by a deployment or
// resolved from a registry. Tag and Digest are only filled in when
// they have been resolved against a registry.
type Image struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Tag    string `json:"tag,omitempty"`
	Digest string `json:"digest,omitempty"`
}

// FromURL makes an Image from the URL as written, e.g., in a
// container spec.
func FromURL(url string) (Image, error) {
	ref, err := ParseRef(url)
	if err != nil {
		return Image{}, err
	}
	return Image{URL: url, Name: ref.Name()}, nil
}

// Version returns the resolved tag, or failing that whatever the URL
// carries as a tag or digest.
func (i Image) Version() string {
	if i.Tag != "" {
		return i.Tag
	}
	ref, err := ParseRef(i.URL)
	if err == nil && ref.Version() != "" {
		return ref.Version()
	}
	return i.Digest
}

func (i Image) digest() string {
	if i.Digest != "" {
		return i.Digest
	}
	if ref, err := ParseRef(i.URL); err == nil {
		return string(ref.Digest)
	}
	return ""
}

func (i Image) String() string {
	return i.URL
}

// Newer reports whether candidate should replace current. When both
// versions are semantic versions they are compared as such. Otherwise,
// differing digests, or failing those differing versions, count as
// newer.
func Newer(candidate, current Image) bool {
	cv, rv := candidate.Version(), current.Version()
	if a, err := semver.NewVersion(cv); err == nil {
		if b, err := semver.NewVersion(rv); err == nil {
			return a.GreaterThan(b)
		}
	}
	if cd, rd := candidate.digest(), current.digest(); cd != "" && rd != "" {
		return cd != rd
	}
	return cv != rv
}

// NewerTag orders tags: semantic versions rank above anything else
// and are compared numerically; everything else is compared
// lexically.
func NewerTag(lhs, rhs string) bool {
	lv, lerr := semver.NewVersion(lhs)
	rv, rerr := semver.NewVersion(rhs)
	switch {
	case lerr != nil && rerr != nil:
		return lhs > rhs
	case lerr != nil:
		return false
	case rerr != nil:
		return true
	}
	cmp := lv.Compare(rv)
	// `1.10` and `1.10.0` are the same version, but the more explicit
	// one wins.
	if cmp == 0 {
		return lhs > rhs
	}
	return cmp > 0
}

// Latest returns the newest of tags according to NewerTag, or "" if
// there are none.
func Latest(tags []string) string {
	var latest string
	for i, tag := range tags {
		if i == 0 || NewerTag(tag, latest) {
			latest = tag
		}
	}
	return latest
}
