package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
)

const (
	minSlugLength    = 3
	slugRetryBudget  = 5
	slugSuffixDigits = 1000000
)

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapseRe = regexp.MustCompile(`[\s-]+`)
)

// Slugify converts a title to a URL-safe slug: lowercase, strip everything
// outside [a-z0-9\s-], collapse whitespace and hyphen runs to single
// hyphens, trim leading/trailing hyphens. Deterministic.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugCollapseRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// slugExistsFunc reports whether a slug is already taken for the entity
// variant being probed.
type slugExistsFunc func(ctx context.Context, slug string) (bool, error)

// allocateSlug returns a unique slug derived from title, or the explicit
// slug when supplied. Collisions are retried up to the budget with a 6-digit
// time-derived suffix; exhausting the budget fails with a 409.
func allocateSlug(ctx context.Context, title, explicit string, exists slugExistsFunc) (string, error) {
	base := explicit
	if base == "" {
		base = Slugify(title)
	}
	if len(base) < minSlugLength {
		return "", problem.NewBadRequest("slug", fmt.Sprintf("slug must be at least %d characters", minSlugLength))
	}

	candidate := base
	for attempt := 0; attempt <= slugRetryBudget; attempt++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%06d", base, time.Now().UnixMicro()%slugSuffixDigits)
	}
	return "", problem.NewConflict("slug", "could not allocate unique identifier for "+base)
}
