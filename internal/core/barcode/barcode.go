// Package barcode generates and validates lot identities.
//
// An identity is 14 decimal digits: a 13-digit millisecond Unix timestamp
// followed by one checksum digit equal to the digit sum of the timestamp mod 10.
package barcode

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	// TimestampDigits is the width of the millisecond timestamp prefix.
	TimestampDigits = 13

	// Length is the full identity width including the checksum digit.
	Length = TimestampDigits + 1

	maxTimestamp int64 = 9_999_999_999_999
)

// Info is the decoded form of an identity.
type Info struct {
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
	Checksum  int       `json:"checksum"`
}

// Generator issues identities from a clock.
//
// Within one process identities are strictly increasing: if the clock has not
// advanced since the previous call the last timestamp is bumped by one
// millisecond. Across processes uniqueness is probabilistic and callers treat
// a unique-constraint violation as a retryable collision.
type Generator struct {
	now  func() time.Time
	last atomic.Int64
}

// NewGenerator creates a generator over the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(time.Now)
}

// NewGeneratorWithClock creates a generator over a custom clock (tests, replay).
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Generate returns a fresh identity.
func (g *Generator) Generate() string {
	for {
		prev := g.last.Load()
		ts := g.now().UnixMilli()
		if ts <= prev {
			ts = prev + 1
		}
		if g.last.CompareAndSwap(prev, ts) {
			return FromTimestamp(ts)
		}
	}
}

// FromTimestamp builds the identity for a millisecond timestamp.
func FromTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms > maxTimestamp {
		ms = maxTimestamp
	}
	digits := fmt.Sprintf("%0*d", TimestampDigits, ms)
	return digits + strconv.Itoa(Checksum(digits))
}

// Checksum returns the digit sum of s mod 10. Non-digit runes are ignored.
func Checksum(s string) int {
	sum := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sum += int(r - '0')
		}
	}
	return sum % 10
}

// Validate reports whether identity has the right shape and checksum.
func Validate(identity string) bool {
	if len(identity) != Length {
		return false
	}
	for i := 0; i < len(identity); i++ {
		if identity[i] < '0' || identity[i] > '9' {
			return false
		}
	}
	want := Checksum(identity[:TimestampDigits])
	return int(identity[TimestampDigits]-'0') == want
}

// Parse decodes an identity for audit and history display.
func Parse(identity string) (Info, error) {
	if !Validate(identity) {
		return Info{}, fmt.Errorf("invalid lot identity %q", identity)
	}
	ts, err := strconv.ParseInt(identity[:TimestampDigits], 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("parse identity timestamp: %w", err)
	}
	return Info{
		Timestamp: ts,
		CreatedAt: time.UnixMilli(ts).UTC(),
		Checksum:  int(identity[TimestampDigits] - '0'),
	}, nil
}
