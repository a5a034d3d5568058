package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketcore/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

func TestReserveDecrementsStock(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	variant := dbtest.SeedVariant(t, conn, uuid.New(), "10.00", 5)

	err := Reserve(context.Background(), conn, []Request{{VariantID: variant.ID, Qty: 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, dbtest.Stock(t, conn, variant.ID))
}

func TestReserveInsufficientStockRollsBackEarlierLines(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	plenty := dbtest.SeedVariant(t, conn, uuid.New(), "10.00", 10)
	scarce := dbtest.SeedVariant(t, conn, uuid.New(), "5.00", 1)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return Engine{}.Reserve(context.Background(), tx, []Request{
			{VariantID: plenty.ID, Qty: 4},
			{VariantID: scarce.ID, Qty: 2},
		})
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), scarce.ID.String())

	assert.Equal(t, 10, dbtest.Stock(t, conn, plenty.ID))
	assert.Equal(t, 1, dbtest.Stock(t, conn, scarce.ID))
}

func TestReserveRejectsInvalidRequests(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()

	err := Reserve(context.Background(), conn, []Request{{VariantID: uuid.New(), Qty: 0}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = Reserve(context.Background(), conn, []Request{{Qty: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRestockIncrements(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	variant := dbtest.SeedVariant(t, conn, uuid.New(), "10.00", 0)

	require.NoError(t, Engine{}.Restock(context.Background(), conn, []Request{{VariantID: variant.ID, Qty: 7}}))
	assert.Equal(t, 7, dbtest.Stock(t, conn, variant.ID))

	err := Engine{}.Restock(context.Background(), conn, []Request{{VariantID: uuid.New(), Qty: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()
	variant := dbtest.SeedVariant(t, conn, uuid.New(), "3.00", 5)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
				return Engine{}.Reserve(context.Background(), tx, []Request{{VariantID: variant.ID, Qty: 2}})
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, dbtest.Stock(t, conn, variant.ID))
}
