package proctitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	assert.Equal(t, "somaai-worker", For(" Worker "))
	assert.Equal(t, "somaai-serve", For("serve"))
	assert.Equal(t, "somaai", For(""))
	assert.Len(t, For("maintenance-window"), 15)
}
