package changelog

import (
	"slices"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// DefaultSensitiveFields are the fields whose change needs a reviewer.
var DefaultSensitiveFields = []string{"birthday", "family_name", "given_names"}

// DefaultCategoryField restricts review to personas of the main realm.
const DefaultCategoryField = "is_cde_realm"

// ReviewPolicy decides whether a change must wait for a reviewer. It is pure
// and never touches storage.
type ReviewPolicy struct {
	// SensitiveFields are the fields whose change requires review.
	SensitiveFields []string

	// CategoryField names a Bool field that must be true in the persona's
	// current state for the policy to apply. Empty means always.
	CategoryField string
}

// DefaultReviewPolicy returns the policy used when none is configured.
func DefaultReviewPolicy() ReviewPolicy {
	return ReviewPolicy{
		SensitiveFields: slices.Clone(DefaultSensitiveFields),
		CategoryField:   DefaultCategoryField,
	}
}

// Applies reports whether the policy covers a persona in state current.
func (p ReviewPolicy) Applies(current domain.Fields) bool {
	if p.CategoryField == "" {
		return true
	}
	return domain.ValuesEqual(current.Get(p.CategoryField), domain.Bool(true))
}

// RequiresReview reports whether changing the given fields of a persona in
// state current needs a reviewer. Reviewers never need one.
func (p ReviewPolicy) RequiresReview(changed []string, current domain.Fields, isReviewer bool) bool {
	if isReviewer || !p.Applies(current) {
		return false
	}
	for _, f := range changed {
		if slices.Contains(p.SensitiveFields, f) {
			return true
		}
	}
	return false
}
