package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	inputs := []string{"", "hello world", "quick_grading:gpt-5.2:Grade this answer"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			hash := HashString(input)

			// SHA256 produces 64 hex characters
			assert.Len(t, hash, 64)
			assert.Equal(t, hash, HashString(input))

			for _, c := range hash {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Fatalf("HashString() contains non-hex character: %c", c)
				}
			}
		})
	}
}

func TestHashParts(t *testing.T) {
	assert.Equal(t, HashString("a:b:c"), HashParts("a", "b", "c"))
	assert.NotEqual(t, HashParts("a", "b"), HashParts("b", "a"))
	assert.NotEqual(t, HashParts("test"), HashParts("Test"))
}
