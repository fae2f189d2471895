package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

const (
	// DefaultMaxLimit caps the page size a client may request.
	DefaultMaxLimit = 1000

	maxFilterValueLength = 128
)

// Params bundles the pagination, sorting and equality filters read from a query string.
type Params struct {
	Page      domain.PageRequest
	Sort      string
	Direction domain.SortOrder
	Filters   map[string]string
}

// Filter returns the filter value for name and whether it was supplied.
func (p Params) Filter(name string) (string, bool) {
	value, ok := p.Filters[name]
	return value, ok
}

// Options control which query parameters a list endpoint accepts.
type Options struct {
	DefaultLimit     int
	MaxLimit         int
	AllowedSort      []string
	AllowedFilters   []string
	DefaultDirection domain.SortOrder
}

var (
	ErrInvalidPage      = errors.New("pagination: invalid page")
	ErrInvalidLimit     = errors.New("pagination: invalid limit")
	ErrInvalidSort      = errors.New("pagination: invalid sort")
	ErrInvalidDirection = errors.New("pagination: invalid direction")
	ErrInvalidFilter    = errors.New("pagination: invalid filter")
)

// FromRequest parses the supported query parameters from r.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page, limit, sort, direction and the allowed filters. The page is echoed back to
// callers as given, so zero is accepted and addresses the first window like one does.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	page, err := parsePage(values.Get("page"))
	if err != nil {
		return Params{}, err
	}
	limit, err := parseLimit(values.Get("limit"), opts)
	if err != nil {
		return Params{}, err
	}
	params := Params{Page: domain.PageRequest{Page: page, Limit: limit}}

	if params.Sort, err = parseSort(values.Get("sort"), opts.AllowedSort); err != nil {
		return Params{}, err
	}
	if params.Direction, err = parseDirection(values.Get("direction"), opts.DefaultDirection); err != nil {
		return Params{}, err
	}
	if params.Filters, err = parseFilters(values, opts.AllowedFilters); err != nil {
		return Params{}, err
	}
	return params, nil
}

func parsePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultPage, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPage)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPage)
	}
	return value, nil
}

func parseLimit(raw string, opts Options) (int, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultLimit
	}
	defaultLimit = min(defaultLimit, maxLimit)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidLimit)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidLimit)
	}
	return min(value, maxLimit), nil
}

func parseSort(raw string, allowed []string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	for _, field := range allowed {
		if raw == field {
			return raw, nil
		}
	}
	if len(allowed) == 0 {
		return "", fmt.Errorf("%w: sorting not supported", ErrInvalidSort)
	}
	return "", fmt.Errorf("%w: field %q is not allowed", ErrInvalidSort, raw)
}

func parseDirection(raw string, fallback domain.SortOrder) (domain.SortOrder, error) {
	switch domain.SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return fallback, nil
	case domain.SortAsc:
		return domain.SortAsc, nil
	case domain.SortDesc:
		return domain.SortDesc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
	}
}

func parseFilters(values url.Values, allowed []string) (map[string]string, error) {
	var filters map[string]string
	for _, name := range allowed {
		if !values.Has(name) {
			continue
		}
		value := sanitizeFilterValue(values.Get(name))
		if value == "" {
			return nil, fmt.Errorf("%w: empty value for %q", ErrInvalidFilter, name)
		}
		if filters == nil {
			filters = make(map[string]string, len(allowed))
		}
		filters[name] = value
	}
	return filters, nil
}

func sanitizeFilterValue(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "\"'")
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > maxFilterValueLength {
		value = value[:maxFilterValueLength]
	}
	return value
}
