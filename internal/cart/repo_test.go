package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketcore/pkg/db/dbtest"
	"github.com/angelmondragon/marketcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

func TestGetOrCreateIsLazyAndUnique(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	userID := uuid.New()

	first, err := repo.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	second, err := repo.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, dbtest.Count(t, client.DB(), &models.Cart{}))
}

func TestLoadSnapshotWithoutCart(t *testing.T) {
	client := dbtest.Open(t)
	snapshot, err := NewRepository(client.DB()).LoadSnapshot(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty())
	assert.Equal(t, uuid.Nil, snapshot.CartID)
}

func TestAddItemSnapshotsPriceAndResolvesSeller(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	repo := NewRepository(conn)
	ctx := context.Background()
	userID, sellerID := uuid.New(), uuid.New()
	variant := dbtest.SeedVariant(t, conn, sellerID, "10.005", 9)

	_, err := repo.AddItem(ctx, userID, variant.ID, 2)
	require.NoError(t, err)

	// later catalog changes do not leak into the existing snapshot
	require.NoError(t, conn.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("price", "12.00").Error)

	snapshot, err := repo.LoadSnapshot(ctx, userID)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 1)
	line := snapshot.Lines[0]
	assert.Equal(t, sellerID, line.SellerID)
	assert.Equal(t, variant.ProductID, line.ProductID)
	assert.Equal(t, 2, line.Qty)
	assert.Equal(t, "10.005", line.PriceSnapshot.String())

	_, err = repo.AddItem(ctx, userID, variant.ID, 1)
	require.NoError(t, err)
	snapshot, err = repo.LoadSnapshot(ctx, userID)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, 3, snapshot.Lines[0].Qty)
	assert.Equal(t, "12", snapshot.Lines[0].PriceSnapshot.String())
}

func TestAddItemValidation(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	_, err := repo.AddItem(context.Background(), uuid.New(), uuid.New(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = repo.AddItem(context.Background(), uuid.New(), uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestClearUserItemsKeepsCart(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	repo := NewRepository(conn)
	ctx := context.Background()
	userID, otherID := uuid.New(), uuid.New()
	variant := dbtest.SeedVariant(t, conn, uuid.New(), "4.00", 10)

	_, err := repo.AddItem(ctx, userID, variant.ID, 1)
	require.NoError(t, err)
	_, err = repo.AddItem(ctx, otherID, variant.ID, 1)
	require.NoError(t, err)

	require.NoError(t, repo.ClearUserItems(ctx, userID))

	snapshot, err := repo.LoadSnapshot(ctx, userID)
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty())
	assert.NotEqual(t, uuid.Nil, snapshot.CartID)

	other, err := repo.LoadSnapshot(ctx, otherID)
	require.NoError(t, err)
	assert.Len(t, other.Lines, 1)
	assert.EqualValues(t, 2, dbtest.Count(t, conn, &models.Cart{}))
}

func TestClearItems(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	variant := dbtest.SeedVariant(t, conn, uuid.New(), "4.00", 10)

	item, err := repo.AddItem(ctx, userID, variant.ID, 2)
	require.NoError(t, err)
	require.NoError(t, repo.ClearItems(ctx, item.CartID))
	assert.EqualValues(t, 0, dbtest.Count(t, conn, &models.CartItem{}))
}
