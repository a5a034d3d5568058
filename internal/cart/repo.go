package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

// Repository reads and mutates carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetOrCreate returns the user's cart, creating it on first access.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := r.findByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{UserID: userID}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		// another request created it first
		if db.IsUniqueViolation(err, "") {
			if existing, findErr := r.findByUser(ctx, userID); findErr == nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

// LoadSnapshot loads the user's cart items with variant and product so every
// line knows its seller. A user without a cart gets an empty snapshot.
func (r *Repository) LoadSnapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	cart, err := r.findByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Snapshot{UserID: userID}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var items []models.CartItem
	err = r.db.WithContext(ctx).
		Preload("Variant.Product").
		Where("cart_id = ?", cart.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}

	snapshot := &Snapshot{CartID: cart.ID, UserID: userID, Lines: make([]SnapshotLine, 0, len(items))}
	for _, item := range items {
		if item.Variant == nil || item.Variant.Product == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "cart item %s references a missing variant", item.ID)
		}
		snapshot.Lines = append(snapshot.Lines, SnapshotLine{
			CartItemID:    item.ID,
			VariantID:     item.VariantID,
			ProductID:     item.Variant.ProductID,
			SellerID:      item.Variant.Product.SellerID,
			Qty:           item.Qty,
			PriceSnapshot: item.PriceSnapshot,
		})
	}
	return snapshot, nil
}

// AddItem adds qty units of a variant, capturing its current price. Adding a
// variant already in the cart bumps the quantity and refreshes the snapshot.
func (r *Repository) AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartItem, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s not found", variantID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}

	cart, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var item models.CartItem
	err = r.db.WithContext(ctx).Where("cart_id = ? AND variant_id = ?", cart.ID, variantID).First(&item).Error
	switch {
	case err == nil:
		item.Qty += qty
		item.PriceSnapshot = variant.Price
		if err := r.db.WithContext(ctx).Save(&item).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CartItem{CartID: cart.ID, VariantID: variantID, Qty: qty, PriceSnapshot: variant.Price}
		if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return &item, nil
}

// ClearItems deletes every item of the cart; the cart row itself stays.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	return nil
}

// ClearUserItems empties the cart owned by userID, if any.
func (r *Repository) ClearUserItems(ctx context.Context, userID uuid.UUID) error {
	carts := r.db.Session(&gorm.Session{NewDB: true}).Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("cart_id IN (?)", carts).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	return nil
}

func (r *Repository) findByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}
