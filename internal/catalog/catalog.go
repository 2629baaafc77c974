// Package catalog provides the read-only phone catalog backing the tool layer.
//
// The catalog is loaded once at startup from an embedded JSON snapshot and is
// never mutated afterwards, so concurrent readers need no synchronization.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

//go:embed data/phones.json
var embeddedData []byte

// ErrNotFound indicates the requested phone does not exist in the catalog.
var ErrNotFound = errors.New("phone not found")

// Phone is a single immutable catalog entry.
type Phone struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Brand      string   `json:"brand"`
	Price      int      `json:"price"`
	Display    string   `json:"display"`
	Camera     string   `json:"camera"`
	Battery    string   `json:"battery"`
	RAM        int      `json:"ram"`
	Has5G      bool     `json:"has_5g"`
	Rating     float64  `json:"rating"`
	Highlights []string `json:"highlights"`
}

// Store holds the loaded catalog. The zero value is not useful; use New or Default.
type Store struct {
	phones []Phone
	byID   map[string]int
}

type catalogFile struct {
	Phones []Phone `json:"phones"`
}

// New parses a catalog snapshot from JSON data.
// Duplicate ids and entries without an id are rejected.
func New(data []byte) (*Store, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	s := &Store{
		phones: file.Phones,
		byID:   make(map[string]int, len(file.Phones)),
	}
	for i, p := range file.Phones {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: missing id", i)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, p.ID)
		}
		s.byID[p.ID] = i
	}
	return s, nil
}

// Default loads the embedded catalog snapshot.
func Default() (*Store, error) {
	return New(embeddedData)
}

// Len returns the number of phones in the catalog.
func (s *Store) Len() int {
	return len(s.phones)
}

// All returns every phone in catalog order. The returned slice is a copy.
func (s *Store) All() []Phone {
	out := make([]Phone, len(s.phones))
	copy(out, s.phones)
	return out
}

// Filter returns all phones for which keep returns true, in catalog order.
func (s *Store) Filter(keep func(Phone) bool) []Phone {
	var out []Phone
	for _, p := range s.phones {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the phone with the given id, or ErrNotFound.
func (s *Store) Get(id string) (Phone, error) {
	i, ok := s.byID[id]
	if !ok {
		return Phone{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.phones[i], nil
}

// GetMany returns the phones for the given ids, preserving input order.
// Unknown ids are skipped without failing the call.
func (s *Store) GetMany(ids []string) []Phone {
	out := make([]Phone, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			out = append(out, s.phones[i])
		}
	}
	return out
}

// FindByName resolves a phone by display name. An exact case-insensitive match
// wins; otherwise the substring match with the shortest name is preferred, so
// "Pixel 8" resolves to "Pixel 8" rather than "Pixel 8 Pro".
func (s *Store) FindByName(name string) (Phone, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Phone{}, fmt.Errorf("%w: empty name", ErrNotFound)
	}

	for _, p := range s.phones {
		if strings.ToLower(p.Name) == needle {
			return p, nil
		}
	}

	var candidates []Phone
	for _, p := range s.phones {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Phone{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Name) < len(candidates[j].Name)
	})
	return candidates[0], nil
}

// Resolve looks a phone up by id first, then by name. Tool callers accept
// either form because models frequently hand back display names.
func (s *Store) Resolve(idOrName string) (Phone, error) {
	if p, err := s.Get(idOrName); err == nil {
		return p, nil
	}
	return s.FindByName(idOrName)
}

// Brands returns the distinct brand names in the catalog, sorted.
func (s *Store) Brands() []string {
	seen := make(map[string]struct{})
	var brands []string
	for _, p := range s.phones {
		if _, ok := seen[p.Brand]; !ok {
			seen[p.Brand] = struct{}{}
			brands = append(brands, p.Brand)
		}
	}
	sort.Strings(brands)
	return brands
}
