package phonetool

import (
	"fmt"
	"strings"

	"github.com/phonewise/phonewise/internal/catalog"
)

// DetailsArgs are the arguments for get_phone_details.
type DetailsArgs struct {
	ID string `json:"id" jsonschema:"Catalog id or display name of the phone"`
}

// Details returns the full catalog record for one phone. The id falls back to
// name resolution because models routinely hand back display names. An
// unresolvable id yields an error wrapping catalog.ErrNotFound; the record is
// never fabricated.
func (r *Registry) Details(args DetailsArgs) (Result, error) {
	if strings.TrimSpace(args.ID) == "" {
		return Result{}, fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}

	p, err := r.catalog.Resolve(args.ID)
	if err != nil {
		return Result{}, fmt.Errorf("get details for %q: %w", args.ID, err)
	}

	return Result{
		Text:   renderDetails(p),
		Phones: []catalog.Phone{p},
	}, nil
}

func renderDetails(p catalog.Phone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "- **Brand:** %s\n", p.Brand)
	fmt.Fprintf(&b, "- **Price:** %s\n", formatPrice(p.Price))
	fmt.Fprintf(&b, "- **Display:** %s\n", p.Display)
	fmt.Fprintf(&b, "- **Camera:** %s\n", p.Camera)
	fmt.Fprintf(&b, "- **Battery:** %s\n", p.Battery)
	fmt.Fprintf(&b, "- **RAM:** %dGB\n", p.RAM)
	fmt.Fprintf(&b, "- **5G:** %s\n", yesNo(p.Has5G))
	fmt.Fprintf(&b, "- **Rating:** %s\n", formatRating(p.Rating))
	if len(p.Highlights) > 0 {
		fmt.Fprintf(&b, "- **Highlights:** %s\n", strings.Join(p.Highlights, ", "))
	}
	return b.String()
}
