package uuidv7

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/google/uuid"
)

// Generator issues UUIDv7 values per RFC 9562 (time-ordered, millisecond
// precision). Zero fields fall back to the wall clock and crypto/rand.
type Generator struct {
	Now  func() time.Time
	Rand io.Reader
}

func (g Generator) New() (uuid.UUID, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	r := rand.Reader
	if g.Rand != nil {
		r = g.Rand
	}

	var b [16]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return uuid.Nil, err
	}

	ms := uint64(now().UnixMilli())
	b[0] = byte(ms >> 40)
	b[1] = byte(ms >> 32)
	b[2] = byte(ms >> 24)
	b[3] = byte(ms >> 16)
	b[4] = byte(ms >> 8)
	b[5] = byte(ms)

	// Version 7 (0b0111)
	b[6] = (b[6] & 0x0f) | 0x70
	// Variant RFC 4122 (0b10xxxxxx)
	b[8] = (b[8] & 0x3f) | 0x80

	return uuid.FromBytes(b[:])
}

func (g Generator) NewString() (string, error) {
	u, err := g.New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// New returns a UUIDv7 stamped with the current time.
func New() (uuid.UUID, error) { return Generator{}.New() }

// NewString returns UUIDv7 string.
func NewString() (string, error) { return Generator{}.NewString() }

// Time returns the millisecond timestamp embedded in a UUIDv7.
func Time(u uuid.UUID) time.Time {
	ms := int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 | int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
	return time.UnixMilli(ms).UTC()
}
