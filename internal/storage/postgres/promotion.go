package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const (
	promotionColumns = `id, code, description, type, value, min_subtotal, max_uses, used_count,
		starts_at, ends_at, active`

	getPromotionByCodeSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE code = UPPER($1)`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	upsertPromotionSQL = `INSERT INTO promotions
			(code, description, type, value, min_subtotal, max_uses, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description, type = EXCLUDED.type, value = EXCLUDED.value,
			min_subtotal = EXCLUDED.min_subtotal, max_uses = EXCLUDED.max_uses,
			starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at, active = EXCLUDED.active
		RETURNING id, used_count`

	// Only succeeds while the cap has not been reached.
	incrementPromotionUsageSQL = `UPDATE promotions SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindByCode looks up a promotion by code, case-insensitively.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.getOne(ctx, getPromotionByCodeSQL, code)
}

// GetByID looks up a promotion by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id int64) (*promotion.Promotion, error) {
	return r.getOne(ctx, getPromotionByIDSQL, id)
}

func (r *PromotionRepository) getOne(ctx context.Context, sql string, arg any) (*promotion.Promotion, error) {
	return queryPromotion(ctx, r.pool, sql, arg)
}

func queryPromotion(ctx context.Context, q querier, sql string, arg any) (*promotion.Promotion, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %v: %w", arg, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %v: %w", arg, err)
	}
	return &p, nil
}

// Upsert inserts or replaces a promotion keyed by code and sets p.ID and
// p.UsedCount. The usage counter of an existing promotion is preserved.
func (r *PromotionRepository) Upsert(ctx context.Context, p *promotion.Promotion) error {
	var maxUses *int
	if p.MaxUses > 0 {
		maxUses = &p.MaxUses
	}
	err := r.pool.QueryRow(ctx, upsertPromotionSQL,
		promotion.NormalizeCode(p.Code), p.Description, string(p.Type), p.Value, p.MinSubtotal,
		maxUses, nullTime(p.StartsAt), nullTime(p.EndsAt), p.Active,
	).Scan(&p.ID, &p.UsedCount)
	if err != nil {
		return fmt.Errorf("upserting promotion %q: %w", p.Code, err)
	}
	return nil
}

// incrementUsage bumps the usage counter, enforcing the cap.
func incrementUsage(ctx context.Context, q querier, id int64) error {
	tag, err := q.Exec(ctx, incrementPromotionUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing promotion %d usage: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &promotion.InvalidError{Kind: promotion.KindUsageLimit}
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p        promotion.Promotion
		typ      string
		maxUses  *int
		startsAt *time.Time
		endsAt   *time.Time
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Description, &typ, &p.Value, &p.MinSubtotal, &maxUses, &p.UsedCount,
		&startsAt, &endsAt, &p.Active,
	)
	if err != nil {
		return p, err
	}
	if p.Type, err = promotion.ParseType(typ); err != nil {
		return p, fmt.Errorf("promotion %d: %w", p.ID, err)
	}
	if maxUses != nil {
		p.MaxUses = *maxUses
	}
	if startsAt != nil {
		p.StartsAt = *startsAt
	}
	if endsAt != nil {
		p.EndsAt = *endsAt
	}
	return p, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
