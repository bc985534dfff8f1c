package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// NotFoundError indicates that a coupon code did not resolve.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("coupon %s not found", e.Code)
}

// InvalidError indicates that a coupon exists but cannot be applied.
type InvalidError struct {
	Code   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("coupon %s is invalid: %s", e.Code, e.Reason)
}

// Validator resolves a coupon code into an applicable coupon.
type Validator interface {
	Validate(ctx context.Context, code string) (*Coupon, error)
}

// RepoValidator implements Validator by looking up coupons in a Repository
// and checking their validity window against the clock.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator. A nil repo makes every lookup
// fail with *NotFoundError. A nil now defaults to time.Now.
func NewRepoValidator(repo Repository, now func() time.Time) *RepoValidator {
	if now == nil {
		now = time.Now
	}
	return &RepoValidator{repo: repo, now: now}
}

// Validate returns the coupon for code, *NotFoundError when it does not
// resolve, or *InvalidError when it is outside its validity window.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Coupon, error) {
	// Without a repository there is nothing to resolve against; callers see
	// the same outcome as an unknown code.
	if v.repo == nil {
		return nil, &NotFoundError{Code: code}
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Code: code}
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if c == nil {
		return nil, &NotFoundError{Code: code}
	}

	if now := v.now(); !c.IsValid(now) {
		return nil, &InvalidError{Code: code, Reason: c.CheckWindow(now)}
	}

	return c, nil
}
