package market

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// IDSource yields listing identifiers.
type IDSource interface {
	Next() *big.Int
}

// UUIDSource draws a random version-4 UUID and uses its 128 bits as the
// identifier.
type UUIDSource struct{}

func (UUIDSource) Next() *big.Int {
	u := uuid.New()
	return new(big.Int).SetBytes(u[:])
}

// UnixSecondsSource uses the current Unix time in seconds. Two listings
// created within the same second get the same identifier.
type UnixSecondsSource struct {
	Now func() time.Time
}

func (s UnixSecondsSource) Next() *big.Int {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return big.NewInt(now().Unix())
}

// ID source names accepted in configuration.
const (
	IDSourceUUID        = "uuid"
	IDSourceUnixSeconds = "unix_seconds"
)

// NewIDSource resolves a configured source name. Empty selects uuid.
func NewIDSource(name string) (IDSource, error) {
	switch name {
	case "", IDSourceUUID:
		return UUIDSource{}, nil
	case IDSourceUnixSeconds:
		return UnixSecondsSource{}, nil
	}
	return nil, fmt.Errorf("market: unknown id source %q", name)
}
