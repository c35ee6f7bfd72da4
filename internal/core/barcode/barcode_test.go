package barcode

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTimestamp_KnownValue(t *testing.T) {
	// 1700000000000 -> digit sum 8 -> checksum 8
	assert.Equal(t, "17000000000008", FromTimestamp(1_700_000_000_000))
}

func TestGenerate_RoundTrip(t *testing.T) {
	g := NewGenerator()

	for i := 0; i < 100; i++ {
		identity := g.Generate()
		require.Len(t, identity, Length)
		require.True(t, Validate(identity), "identity %s must validate", identity)

		info, err := Parse(identity)
		require.NoError(t, err)
		assert.Equal(t, Checksum(identity[:TimestampDigits]), info.Checksum)
		assert.Equal(t, info.Timestamp, info.CreatedAt.UnixMilli())
	}
}

func TestValidate_SingleDigitMutationFails(t *testing.T) {
	identity := FromTimestamp(1_712_345_678_901)
	require.True(t, Validate(identity))

	for pos := 0; pos < Length; pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if identity[pos] == d {
				continue
			}
			mutated := []byte(identity)
			mutated[pos] = d
			assert.False(t, Validate(string(mutated)), "mutation at %d to %c must fail", pos, d)
		}
	}
}

func TestValidate_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		identity string
	}{
		{"empty", ""},
		{"too short", "1700000000000"},
		{"too long", "170000000000080"},
		{"letters", "17000000000A08"},
		{"spaces", "1700000000 008"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Validate(tt.identity))
			_, err := Parse(tt.identity)
			assert.Error(t, err)
		})
	}
}

func TestGenerate_MonotonicUnderFrozenClock(t *testing.T) {
	frozen := time.UnixMilli(1_700_000_000_000)
	g := NewGeneratorWithClock(func() time.Time { return frozen })

	first := g.Generate()
	second := g.Generate()

	a, err := Parse(first)
	require.NoError(t, err)
	b, err := Parse(second)
	require.NoError(t, err)
	assert.Equal(t, a.Timestamp+1, b.Timestamp)
}

func TestGenerate_ConcurrentUnique(t *testing.T) {
	g := NewGenerator()
	const workers, perWorker = 8, 200

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				identity := g.Generate()
				mu.Lock()
				seen[identity] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
