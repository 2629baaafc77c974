package phonetool

import (
	"fmt"
	"strings"

	"github.com/phonewise/phonewise/internal/catalog"
)

// Comparison bounds.
const (
	MinComparePhones = 2
	MaxComparePhones = 4
)

// CompareArgs are the arguments for compare_phones.
type CompareArgs struct {
	IDs []string `json:"ids" jsonschema:"Catalog ids or names of 2 to 4 phones to compare"`
}

// Comparison is the structured result of compare_phones: the resolved records
// in input order plus one row per compared attribute. The table, not prose,
// is the ground truth a caller narrates from.
type Comparison struct {
	Phones []catalog.Phone `json:"phones"`
	Rows   []ComparisonRow `json:"rows"`
}

// ComparisonRow holds one attribute's value per phone, aligned with
// Comparison.Phones.
type ComparisonRow struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
}

// Compare resolves 2-4 distinct phones and builds the per-attribute comparison
// table, preserving input order. Out-of-range counts, duplicates, and
// unresolvable ids all fail with ErrInvalidArgument.
func (r *Registry) Compare(args CompareArgs) (Result, error) {
	if len(args.IDs) < MinComparePhones || len(args.IDs) > MaxComparePhones {
		return Result{}, fmt.Errorf("%w: compare needs %d-%d phones, got %d",
			ErrInvalidArgument, MinComparePhones, MaxComparePhones, len(args.IDs))
	}

	phones := make([]catalog.Phone, 0, len(args.IDs))
	seen := make(map[string]struct{}, len(args.IDs))
	for _, id := range args.IDs {
		p, err := r.catalog.Resolve(id)
		if err != nil {
			return Result{}, fmt.Errorf("%w: unknown phone %q", ErrInvalidArgument, id)
		}
		if _, dup := seen[p.ID]; dup {
			return Result{}, fmt.Errorf("%w: duplicate phone %q", ErrInvalidArgument, p.ID)
		}
		seen[p.ID] = struct{}{}
		phones = append(phones, p)
	}

	cmp := buildComparison(phones)
	return Result{
		Text:       cmp.Markdown(),
		Phones:     phones,
		Comparison: &cmp,
	}, nil
}

func buildComparison(phones []catalog.Phone) Comparison {
	row := func(attribute string, value func(catalog.Phone) string) ComparisonRow {
		values := make([]string, len(phones))
		for i, p := range phones {
			values[i] = value(p)
		}
		return ComparisonRow{Attribute: attribute, Values: values}
	}

	return Comparison{
		Phones: phones,
		Rows: []ComparisonRow{
			row("Display", func(p catalog.Phone) string { return p.Display }),
			row("Camera", func(p catalog.Phone) string { return p.Camera }),
			row("Battery", func(p catalog.Phone) string { return p.Battery }),
			row("Price", func(p catalog.Phone) string { return formatPrice(p.Price) }),
			row("Rating", func(p catalog.Phone) string { return formatRating(p.Rating) }),
		},
	}
}

// Markdown renders the comparison as a markdown table.
func (c Comparison) Markdown() string {
	var b strings.Builder

	b.WriteString("| Feature |")
	for _, p := range c.Phones {
		fmt.Fprintf(&b, " %s |", p.Name)
	}
	b.WriteString("\n|")
	for range len(c.Phones) + 1 {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range c.Rows {
		fmt.Fprintf(&b, "| %s |", row.Attribute)
		for _, v := range row.Values {
			fmt.Fprintf(&b, " %s |", v)
		}
		b.WriteString("\n")
	}
	return b.String()
}
