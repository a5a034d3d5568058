package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/db/models"
)

// CartRepository is the persistence surface order operations need from carts.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LoadSnapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
	AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartItem, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	ClearUserItems(ctx context.Context, userID uuid.UUID) error
}
