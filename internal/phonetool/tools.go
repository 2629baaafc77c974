// Package phonetool implements the deterministic catalog tools exposed to the
// LLM collaborator: search_phones, get_phone_details, and compare_phones.
//
// Every tool is a pure function of its validated arguments and the catalog
// snapshot. Identical inputs always produce identical outputs, which is what
// lets callers verify a model's claims against tool results instead of trusting
// generated prose.
package phonetool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/log"
)

// Tool names. These are the identifiers the collaborator uses in tool calls.
const (
	ToolSearch  = "search_phones"
	ToolDetails = "get_phone_details"
	ToolCompare = "compare_phones"
)

// Sentinel errors returned by Dispatch, checked with errors.Is().
var (
	// ErrInvalidArgument indicates the tool arguments failed validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownTool indicates the requested tool is not registered.
	ErrUnknownTool = errors.New("unknown tool")
)

// Declaration describes one tool to the collaborator.
type Declaration struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Result is the outcome of a successful tool execution.
// Text is the model-facing rendering; Phones are the records the result is
// derived from, in result order, used by the transport for UI cards.
type Result struct {
	Text       string
	Phones     []catalog.Phone
	Comparison *Comparison // non-nil only for compare_phones
}

// Registry dispatches tool calls against a catalog snapshot.
type Registry struct {
	catalog *catalog.Store
	logger  log.Logger
	decls   []Declaration
}

// NewRegistry builds the tool registry with JSON-schema declarations derived
// from the argument types.
func NewRegistry(store *catalog.Store, logger log.Logger) (*Registry, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	searchSchema, err := jsonschema.For[SearchArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolSearch, err)
	}
	detailsSchema, err := jsonschema.For[DetailsArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolDetails, err)
	}
	compareSchema, err := jsonschema.For[CompareArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolCompare, err)
	}

	return &Registry{
		catalog: store,
		logger:  logger,
		decls: []Declaration{
			{
				Name: ToolSearch,
				Description: "Search the phone catalog with optional filters (use case, brand, " +
					"price range, RAM, 5G). Results are ranked by rating, then price.",
				Schema: searchSchema,
			},
			{
				Name:        ToolDetails,
				Description: "Get the full catalog record for one phone by id or name.",
				Schema:      detailsSchema,
			},
			{
				Name: ToolCompare,
				Description: "Compare 2-4 phones side by side. Returns a per-attribute " +
					"comparison table; narrate from the table, do not invent specs.",
				Schema: compareSchema,
			},
		},
	}, nil
}

// Declarations returns the tool declarations in registration order.
func (r *Registry) Declarations() []Declaration {
	return r.decls
}

// Dispatch validates rawArgs against the named tool's contract and executes it.
// Malformed arguments yield an ErrInvalidArgument-wrapped error; an unknown
// phone id yields an error wrapping catalog.ErrNotFound. Dispatch never panics.
func (r *Registry) Dispatch(name string, rawArgs json.RawMessage) (Result, error) {
	switch name {
	case ToolSearch:
		var args SearchArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return Result{}, err
		}
		return r.Search(args)
	case ToolDetails:
		var args DetailsArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return Result{}, err
		}
		return r.Details(args)
	case ToolCompare:
		var args CompareArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return Result{}, err
		}
		return r.Compare(args)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// decodeArgs unmarshals tool arguments. Empty input means "no arguments",
// which some models send for tools whose parameters are all optional.
func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// formatPrice renders an integer rupee amount with thousands separators.
func formatPrice(price int) string {
	s := strconv.Itoa(price)
	if len(s) <= 3 {
		return "₹" + s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return "₹" + string(out)
}
