package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSessionGenerator(t *testing.T) {
	gen := NewFixedSessionGenerator("editor-a")
	for i := 0; i < 3; i++ {
		assert.Equal(t, "editor-a", gen.Generate())
	}
}

func TestFixedSessionGenerator_DefaultToken(t *testing.T) {
	assert.Equal(t, "test-session", NewFixedSessionGenerator("").Generate())
}

func TestFixedSessionGenerator_Concurrent(t *testing.T) {
	gen := NewFixedSessionGenerator("shared")

	var wg sync.WaitGroup
	results := make([]string, 50)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = gen.Generate()
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}
