package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionToggle(t *testing.T) {
	s := NewSelectionSet()

	selected, evicted := s.Toggle("pixel-8a")
	assert.True(t, selected)
	assert.Empty(t, evicted)
	assert.True(t, s.Contains("pixel-8a"))
	assert.Equal(t, 1, s.Len())

	selected, evicted = s.Toggle("pixel-8a")
	assert.False(t, selected)
	assert.Empty(t, evicted)
	assert.False(t, s.Contains("pixel-8a"))
	assert.Equal(t, 0, s.Len())
}

func TestSelectionEvictsOldest(t *testing.T) {
	s := NewSelectionSet()
	s.Toggle("a")
	s.Toggle("b")
	s.Toggle("c")

	selected, evicted := s.Toggle("d")
	assert.True(t, selected)
	assert.Equal(t, "a", evicted)
	assert.Equal(t, []string{"b", "c", "d"}, s.IDs())
	assert.False(t, s.Contains("a"))
}

func TestSelectionOrderPreserved(t *testing.T) {
	s := NewSelectionSet()
	s.Toggle("c")
	s.Toggle("a")
	s.Toggle("b")
	assert.Equal(t, []string{"c", "a", "b"}, s.IDs())

	// removing the middle entry keeps the relative order of the rest
	s.Toggle("a")
	assert.Equal(t, []string{"c", "b"}, s.IDs())

	// re-adding goes to the back
	s.Toggle("a")
	assert.Equal(t, []string{"c", "b", "a"}, s.IDs())
}

func TestSelectionIDsReturnsCopy(t *testing.T) {
	s := NewSelectionSet()
	s.Toggle("a")
	s.Toggle("b")

	ids := s.IDs()
	ids[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, s.IDs())
}

func TestSelectionClear(t *testing.T) {
	s := NewSelectionSet()
	s.Toggle("a")
	s.Toggle("b")

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains("a"))
	assert.Empty(t, s.IDs())

	selected, evicted := s.Toggle("a")
	assert.True(t, selected)
	assert.Empty(t, evicted)
}
