// Package inventory owns the only two writes ever applied to variant stock:
// the conditional decrement used by checkout and the plain increment used by
// cancellation.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

// Request asks for qty units of a variant.
type Request struct {
	VariantID uuid.UUID
	Qty       int
}

// Engine exposes Reserve and Restock to services that take the stock
// mutation as a dependency.
type Engine struct{}

func (Engine) Reserve(ctx context.Context, tx *gorm.DB, requests []Request) error {
	return Reserve(ctx, tx, requests)
}

func (Engine) Restock(ctx context.Context, tx *gorm.DB, requests []Request) error {
	return Restock(ctx, tx, requests)
}

// InsufficientStock is returned when a conditional decrement matched no row.
func InsufficientStock(variantID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "insufficient stock for variant %s", variantID).
		WithDetails(map[string]any{"variant_id": variantID.String()})
}

// Reserve decrements stock for every request, guarded by stock >= qty. The
// first request that cannot be satisfied aborts with InsufficientStock; the
// caller's transaction is expected to roll back earlier decrements.
func Reserve(ctx context.Context, tx *gorm.DB, requests []Request) error {
	for _, req := range requests {
		if err := validate(req); err != nil {
			return err
		}
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND stock >= ?", req.VariantID, req.Qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return InsufficientStock(req.VariantID)
		}
	}
	return nil
}

// Restock returns quantities to stock unconditionally.
func Restock(ctx context.Context, tx *gorm.DB, requests []Request) error {
	for _, req := range requests {
		if err := validate(req); err != nil {
			return err
		}
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ?", req.VariantID).
			UpdateColumn("stock", gorm.Expr("stock + ?", req.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock variant")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s not found", req.VariantID)
		}
	}
	return nil
}

func validate(req Request) error {
	if req.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if req.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be positive, got %d", req.Qty))
	}
	return nil
}
