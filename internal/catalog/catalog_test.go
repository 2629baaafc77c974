package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T) *Store {
	t.Helper()
	s, err := Default()
	require.NoError(t, err)
	require.NotZero(t, s.Len())
	return s
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	data := []byte(`{"phones":[{"id":"a","name":"A"},{"id":"a","name":"B"}]}`)
	_, err := New(data)
	assert.Error(t, err)
}

func TestNew_RejectsMissingID(t *testing.T) {
	data := []byte(`{"phones":[{"name":"A"}]}`)
	_, err := New(data)
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	s := mustLoad(t)

	p, err := s.Get("pixel-8a")
	require.NoError(t, err)
	assert.Equal(t, "Pixel 8a", p.Name)
	assert.Equal(t, "Google", p.Brand)

	_, err = s.Get("no-such-phone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMany_PreservesOrderAndSkipsUnknown(t *testing.T) {
	s := mustLoad(t)

	phones := s.GetMany([]string{"oneplus-12r", "bogus", "pixel-8a"})
	require.Len(t, phones, 2)
	assert.Equal(t, "oneplus-12r", phones[0].ID)
	assert.Equal(t, "pixel-8a", phones[1].ID)
}

func TestGetMany_Empty(t *testing.T) {
	s := mustLoad(t)
	assert.Empty(t, s.GetMany(nil))
	assert.Empty(t, s.GetMany([]string{"nope"}))
}

func TestFindByName(t *testing.T) {
	s := mustLoad(t)

	tests := []struct {
		name   string
		query  string
		wantID string
	}{
		{"exact match", "Pixel 8a", "pixel-8a"},
		{"case insensitive", "pixel 8a", "pixel-8a"},
		{"substring prefers shortest", "OnePlus 12", "oneplus-12"},
		{"partial", "ROG Phone", "asus-rog-phone-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.FindByName(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID)
		})
	}

	_, err := s.FindByName("Fairphone 5")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByName("   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve(t *testing.T) {
	s := mustLoad(t)

	byID, err := s.Resolve("oneplus-12r")
	require.NoError(t, err)
	assert.Equal(t, "oneplus-12r", byID.ID)

	byName, err := s.Resolve("OnePlus 12R")
	require.NoError(t, err)
	assert.Equal(t, "oneplus-12r", byName.ID)
}

func TestFilter(t *testing.T) {
	s := mustLoad(t)

	cheap := s.Filter(func(p Phone) bool { return p.Price < 20000 })
	require.NotEmpty(t, cheap)
	for _, p := range cheap {
		assert.Less(t, p.Price, 20000)
	}
}

func TestBrands_SortedAndDistinct(t *testing.T) {
	s := mustLoad(t)

	brands := s.Brands()
	require.NotEmpty(t, brands)
	seen := make(map[string]bool)
	for i, b := range brands {
		assert.False(t, seen[b], "duplicate brand %s", b)
		seen[b] = true
		if i > 0 {
			assert.LessOrEqual(t, brands[i-1], b)
		}
	}
	assert.Contains(t, brands, "Google")
}
