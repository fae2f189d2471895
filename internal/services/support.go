package services

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

var (
	orderCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,63}$`)
	strictText       = bluemonday.StrictPolicy()
	upperCaser       = cases.Upper(language.Und)
)

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// serviceDefaults resolves the optional collaborators shared by every workflow service.
type serviceDefaults struct {
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     logFunc
}

func resolveDefaults(unit repositories.UnitOfWork, clock func() time.Time, idGen func() string, logger func(context.Context, string, map[string]any)) serviceDefaults {
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	if clock == nil {
		clock = time.Now
	}
	if idGen == nil {
		idGen = uuid.NewString
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return serviceDefaults{
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}
}

// normalizeOrderCode folds full-width and compatibility characters and upper-cases the code.
func normalizeOrderCode(raw string) (string, error) {
	code := upperCaser.String(norm.NFKC.String(strings.TrimSpace(raw)))
	if !orderCodePattern.MatchString(code) {
		return "", fmt.Errorf("%w: order code must be 1-64 characters of A-Z, 0-9, '-' or '_'", ErrInvalidArgument)
	}
	return code, nil
}

// sanitizeText strips markup and normalises free text supplied by callers.
func sanitizeText(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(html.UnescapeString(strictText.Sanitize(raw))))
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}

func valuePtr[T any](v T) *T {
	return &v
}
