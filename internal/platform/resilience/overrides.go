package resilience

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// ErrInvalidOverride is returned when a classification override cannot be parsed.
var ErrInvalidOverride = errors.New("invalid classification override")

// Overrides are operator-supplied classification rules keyed the way they
// appear in configuration: pattern or status code to kind tag.
type Overrides struct {
	Patterns map[string]string
	Statuses map[string]string
}

// WithOverrides returns a copy of t in which o takes precedence. Status
// overrides replace existing entries. Pattern overrides are consulted before
// the built-in patterns, longest first, so a more specific pattern wins.
func (t ClassificationTable) WithOverrides(o Overrides) (ClassificationTable, error) {
	out := ClassificationTable{
		Sentinels:       slices.Clone(t.Sentinels),
		Statuses:        maps.Clone(t.Statuses),
		ServerErrorKind: t.ServerErrorKind,
	}

	if out.Statuses == nil {
		out.Statuses = make(map[int]domain.Kind, len(o.Statuses))
	}

	for code, tag := range o.Statuses {
		status, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil || status < http.StatusContinue || status > 599 {
			return ClassificationTable{}, fmt.Errorf("%w: status %q", ErrInvalidOverride, code)
		}

		kind, err := domain.ParseKind(tag)
		if err != nil {
			return ClassificationTable{}, fmt.Errorf("%w: status %d: %w", ErrInvalidOverride, status, err)
		}

		out.Statuses[status] = kind
	}

	patterns := make([]PatternRule, 0, len(o.Patterns)+len(t.Patterns))

	for pattern, tag := range o.Patterns {
		if strings.TrimSpace(pattern) == "" {
			return ClassificationTable{}, fmt.Errorf("%w: empty pattern", ErrInvalidOverride)
		}

		kind, err := domain.ParseKind(tag)
		if err != nil {
			return ClassificationTable{}, fmt.Errorf("%w: pattern %q: %w", ErrInvalidOverride, pattern, err)
		}

		patterns = append(patterns, PatternRule{Pattern: pattern, Kind: kind})
	}

	slices.SortFunc(patterns, func(a, b PatternRule) int {
		if c := cmp.Compare(len(b.Pattern), len(a.Pattern)); c != 0 {
			return c
		}

		return strings.Compare(a.Pattern, b.Pattern)
	})

	out.Patterns = append(patterns, t.Patterns...)

	return out, nil
}
