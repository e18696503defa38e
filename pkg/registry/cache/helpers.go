package cache

// Encoding shared by the backing stores: each value is prefixed with
// its refresh deadline, as big-endian Unix seconds.

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

const (
	// The minimum expiry given to an entry.
	MinExpiry = time.Hour

	deadlineSize = 4
)

// GracePeriodDeadline gives the expiry for an item; it is set longer
// than the refresh deadline, so that a stale value is still there to
// fall back on while it is being refreshed.
func GracePeriodDeadline(refreshDeadline time.Time) time.Duration {
	expiry := time.Until(refreshDeadline) * 2
	if expiry < MinExpiry {
		expiry = MinExpiry
	}
	return expiry
}

func EndianCompose(deadlineBytes, value []byte) []byte {
	return append(deadlineBytes, value...)
}

func EndianPut(refreshDeadline time.Time) []byte {
	deadlineBytes := make([]byte, deadlineSize)
	binary.BigEndian.PutUint32(deadlineBytes, uint32(refreshDeadline.Unix()))
	return deadlineBytes
}

func EndianGet(cacheItem []byte) ([]byte, time.Time, error) {
	if len(cacheItem) < deadlineSize {
		return nil, time.Time{}, errors.Errorf("cache item too short (%d bytes)", len(cacheItem))
	}
	deadline := binary.BigEndian.Uint32(cacheItem)
	return cacheItem[deadlineSize:], time.Unix(int64(deadline), 0), nil
}
