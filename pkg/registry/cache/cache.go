package cache

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

var ErrNotCached = &fluxerr.Error{
	Type: fluxerr.Missing,
	Err:  errors.New("item not in cache"),
	Help: `Registry data not yet cached

The shared registry cache does not have this item. It will be fetched
from the registry and stored.
`,
}

type Reader interface {
	// GetKey gets the value at a key, along with its refresh deadline
	GetKey(k Keyer) ([]byte, time.Time, error)
}

type Writer interface {
	// SetKey sets the value at a key, along with its refresh deadline
	SetKey(k Keyer, deadline time.Time, v []byte) error
}

type Client interface {
	Reader
	Writer
}

// Keyer supplies the key under which to store an item. Keys include
// the registry host, since the same cache may serve promoters
// configured with different registries.
type Keyer interface {
	Key() string
}

// Bump the version if the format of what's stored changes.
const keyVersion = "promoterv1"

type key []string

func (k key) Key() string {
	return strings.Join(append([]string{keyVersion}, k...), "|")
}

// NewCatalogKey is the key for the list of repositories in a registry.
func NewCatalogKey(host string) Keyer {
	return key{"catalog", host}
}

// NewTagsKey is the key for the tags of a repository.
func NewTagsKey(host, repo string) Keyer {
	return key{"tags", host, repo}
}

// NewImageKey is the key for what a tag resolves to.
func NewImageKey(host, repo, tag string) Keyer {
	return key{"image", host, repo, tag}
}
