package payments

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const referencePrefix = "tr-"

// NewReference mints an opaque payment reference of the form tr-<ULID>.
// The reference is the join key between a checkout attempt and the gateway's
// transaction record, so it must be unique per attempt.
func NewReference() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	return referencePrefix + id.String()
}

// IsReference reports whether the supplied value looks like a reference
// produced by NewReference.
func IsReference(value string) bool {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, referencePrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.TrimPrefix(value, referencePrefix))
	return err == nil
}
