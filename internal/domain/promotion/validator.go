package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator resolves a promotion code into a redeemable Promotion.
type Validator interface {
	Validate(ctx context.Context, code string) (*Promotion, error)
	// Revalidate checks that an already attached promotion is still usable.
	Revalidate(ctx context.Context, id int64) (*Promotion, error)
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the promotion by its normalized code and checks the
// active flag, date window and usage cap. It does not touch the usage
// counter; that happens inside the order transaction.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Promotion, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, &InvalidError{Code: code, Kind: KindNotFound}
	}

	p, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &InvalidError{Code: code, Kind: KindNotFound}
		}
		return nil, errors.Wrap(err, "lookup promotion")
	}
	if err := p.CheckRedeemable(v.now()); err != nil {
		return nil, err
	}
	return p, nil
}

// Revalidate reloads the promotion by id and applies the same checks as
// Validate.
func (v *RepoValidator) Revalidate(ctx context.Context, id int64) (*Promotion, error) {
	p, err := v.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &InvalidError{Kind: KindNotFound}
		}
		return nil, errors.Wrap(err, "lookup promotion")
	}
	if err := p.CheckRedeemable(v.now()); err != nil {
		return nil, err
	}
	return p, nil
}
