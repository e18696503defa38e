package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGracePeriodDeadline(t *testing.T) {
	t.Run("yesterday", func(t *testing.T) {
		r := GracePeriodDeadline(time.Now().Add(-24 * time.Hour))
		assert.Equal(t, MinExpiry, r)
	})
	t.Run("tomorrow", func(t *testing.T) {
		r := GracePeriodDeadline(time.Now().Add(24 * time.Hour))
		assert.True(t, r > 47*time.Hour)
	})
}

func TestEndianCompose(t *testing.T) {
	for _, v := range []struct {
		db, v, e []byte
	}{
		{db: []byte("^"), v: []byte("qwerty"), e: []byte("^qwerty")},
		{db: []byte("!2#4"), v: []byte(`["v1","v2"]`), e: []byte(`!2#4["v1","v2"]`)},
	} {
		assert.Equal(t, v.e, EndianCompose(v.db, v.v))
	}
}

func TestEndianFlow(t *testing.T) {
	deadline := time.Now().Add(time.Hour).Round(time.Second)

	value, got, err := EndianGet(EndianCompose(EndianPut(deadline), []byte("tags")))
	assert.NoError(t, err)
	assert.True(t, deadline.Equal(got))
	assert.Equal(t, "tags", string(value))
}

func TestEndianGetShortItem(t *testing.T) {
	_, _, err := EndianGet([]byte{1, 2})
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "promoterv1|catalog|registry.test", NewCatalogKey("registry.test").Key())
	assert.Equal(t, "promoterv1|tags|registry.test|team/api", NewTagsKey("registry.test", "team/api").Key())
	assert.Equal(t, "promoterv1|image|registry.test|team/api|v2", NewImageKey("registry.test", "team/api", "v2").Key())
}
