package keygen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerate_Format checks prefix and length.
func TestGenerate_Format(t *testing.T) {
	gen := New("Violet-Hub-", 32)

	key, err := gen.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "Violet-Hub-"))
	assert.Equal(t, len("Violet-Hub-")+32, len(key))
}

// TestGenerate_Alphabet checks the random portion stays inside the 62-symbol set.
func TestGenerate_Alphabet(t *testing.T) {
	gen := New("K-", 64)

	key, err := gen.Generate()
	require.NoError(t, err)

	random := strings.TrimPrefix(key, "K-")
	assert.Regexp(t, "^[A-Za-z0-9]+$", random)
}

// TestGenerate_Defaults checks zero-value fallbacks.
func TestGenerate_Defaults(t *testing.T) {
	gen := New("", 0)

	key, err := gen.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, DefaultPrefix))
	assert.Equal(t, len(DefaultPrefix)+DefaultLength, len(key))
	assert.Equal(t, DefaultPrefix, gen.Prefix())
}

// TestGenerate_Uniqueness generates many keys and expects no duplicates.
func TestGenerate_Uniqueness(t *testing.T) {
	const numKeys = 1000
	gen := New("", 0)

	keys := make(map[string]bool, numKeys)
	for i := 0; i < numKeys; i++ {
		key, err := gen.Generate()
		require.NoError(t, err)

		if keys[key] {
			t.Errorf("Duplicate key generated: %s", key)
		}
		keys[key] = true
	}

	assert.Equal(t, numKeys, len(keys))
}

// TestGenerate_Concurrent checks concurrent generation stays unique.
func TestGenerate_Concurrent(t *testing.T) {
	const numGoroutines = 20
	const keysPerGoroutine = 50

	gen := New("", 0)

	var wg sync.WaitGroup
	keys := make(chan string, numGoroutines*keysPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < keysPerGoroutine; j++ {
				key, err := gen.Generate()
				if err != nil {
					t.Errorf("Failed to generate key: %v", err)
					return
				}
				keys <- key
			}
		}()
	}

	wg.Wait()
	close(keys)

	keyMap := make(map[string]bool)
	for key := range keys {
		if keyMap[key] {
			t.Errorf("Duplicate key in concurrent generation: %s", key)
		}
		keyMap[key] = true
	}

	assert.Equal(t, numGoroutines*keysPerGoroutine, len(keyMap))
}

// BenchmarkGenerate benchmark
func BenchmarkGenerate(b *testing.B) {
	gen := New("", 0)
	for i := 0; i < b.N; i++ {
		if _, err := gen.Generate(); err != nil {
			b.Fatal(err)
		}
	}
}
