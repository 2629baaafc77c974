package phonetool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phonewise/phonewise/internal/catalog"
)

// Search result sizing.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
)

// SearchArgs are the arguments for search_phones. All filters are optional
// and AND-combined.
type SearchArgs struct {
	UseCase    string `json:"use_case,omitempty" jsonschema:"Intended usage such as camera, gaming, battery or compact"`
	Brand      string `json:"brand,omitempty" jsonschema:"Filter by brand name, e.g. Samsung or Google"`
	MinPrice   int    `json:"min_price,omitempty" jsonschema:"Minimum price in rupees"`
	MaxPrice   int    `json:"max_price,omitempty" jsonschema:"Maximum price in rupees"`
	MinRAM     int    `json:"min_ram,omitempty" jsonschema:"Minimum RAM in GB"`
	Requires5G *bool  `json:"requires_5g,omitempty" jsonschema:"Set true to require 5G support"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results, default 5"`
}

// Search returns phones matching every supplied filter, ranked by use-case
// relevance, then rating descending, then price ascending, truncated to the
// limit. An empty result is a valid, non-error outcome.
func (r *Registry) Search(args SearchArgs) (Result, error) {
	if args.MinPrice < 0 || args.MaxPrice < 0 || args.MinRAM < 0 {
		return Result{}, fmt.Errorf("%w: price and RAM filters must be non-negative", ErrInvalidArgument)
	}
	if args.MinPrice > 0 && args.MaxPrice > 0 && args.MinPrice > args.MaxPrice {
		return Result{}, fmt.Errorf("%w: min_price %d exceeds max_price %d", ErrInvalidArgument, args.MinPrice, args.MaxPrice)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	brand := strings.ToLower(strings.TrimSpace(args.Brand))
	matches := r.catalog.Filter(func(p catalog.Phone) bool {
		if brand != "" && strings.ToLower(p.Brand) != brand {
			return false
		}
		if args.MinPrice > 0 && p.Price < args.MinPrice {
			return false
		}
		if args.MaxPrice > 0 && p.Price > args.MaxPrice {
			return false
		}
		if args.MinRAM > 0 && p.RAM < args.MinRAM {
			return false
		}
		if args.Requires5G != nil && p.Has5G != *args.Requires5G {
			return false
		}
		return true
	})

	useCase := strings.ToLower(strings.TrimSpace(args.UseCase))
	scores := make(map[string]int, len(matches))
	for _, p := range matches {
		scores[p.ID] = useCaseScore(p, useCase)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] > scores[b.ID]
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.Price < b.Price
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return Result{
		Text:   renderSearch(matches),
		Phones: matches,
	}, nil
}

// useCaseTerms maps a use-case keyword to the highlight/spec terms that count
// toward it. Scoring is a relevance bias, not a hard filter.
var useCaseTerms = map[string][]string{
	"camera":  {"camera", "photo", "zoom", "video"},
	"photo":   {"camera", "photo", "zoom", "video"},
	"gaming":  {"gaming", "performance", "144hz", "165hz", "trigger"},
	"game":    {"gaming", "performance", "144hz", "165hz", "trigger"},
	"battery": {"battery", "charging"},
	"compact": {"compact", "small"},
	"budget":  {"budget", "value"},
}

func useCaseScore(p catalog.Phone, useCase string) int {
	if useCase == "" {
		return 0
	}

	haystack := strings.ToLower(strings.Join(p.Highlights, " ") + " " + p.Camera + " " + p.Battery + " " + p.Display)

	// Sum over every matching keyword so a multi-keyword use case like
	// "camera gaming" scores against both term sets and the total is
	// independent of map iteration order.
	score := 0
	for key, terms := range useCaseTerms {
		if !strings.Contains(useCase, key) {
			continue
		}
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
	}
	return score
}

func renderSearch(phones []catalog.Phone) string {
	if len(phones) == 0 {
		return "No phones found matching the given filters. Suggest relaxing the filters."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d phones:\n\n", len(phones))
	for _, p := range phones {
		fmt.Fprintf(&b, "**%s** (%s) - %s\n", p.Name, p.ID, formatPrice(p.Price))
		fmt.Fprintf(&b, "  - Display: %s\n", p.Display)
		fmt.Fprintf(&b, "  - Camera: %s\n", p.Camera)
		fmt.Fprintf(&b, "  - Battery: %s\n", p.Battery)
		fmt.Fprintf(&b, "  - RAM: %dGB | 5G: %s | Rating: %s\n", p.RAM, yesNo(p.Has5G), formatRating(p.Rating))
		if len(p.Highlights) > 0 {
			fmt.Fprintf(&b, "  - Highlights: %s\n", strings.Join(p.Highlights, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatRating(r float64) string {
	if r == 0 {
		return "unrated"
	}
	return fmt.Sprintf("%.1f/5", r)
}
