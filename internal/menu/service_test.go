package menu

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/kartupintar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

func newService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)), logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc
}

func boolPtr(b bool) *bool { return &b }

func TestCreateAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Nasi Goreng", Category: enums.MenuCategoryFood, Price: 15000})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Es Jeruk", Category: enums.MenuCategoryDrink, Price: 5000})
	require.NoError(t, err)
	hidden, err := svc.Create(ctx, CreateInput{Name: "Kopi", Category: enums.MenuCategoryDrink, Price: 4000, IsAvailable: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, hidden.IsAvailable)
	stored, err := svc.Get(ctx, hidden.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAvailable)

	all, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	drink := enums.MenuCategoryDrink
	available, err := svc.List(ctx, ListParams{Category: &drink, AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Es Jeruk", available[0].Name)
	assert.Equal(t, "Rp 5.000", available[0].PriceFormatted)
}

func TestCreateValidation(t *testing.T) {
	svc := newService(t)
	for _, in := range []CreateInput{
		{Name: "", Category: enums.MenuCategoryFood, Price: 1},
		{Name: "Roti", Category: "dessert", Price: 1},
		{Name: "Roti", Category: enums.MenuCategorySnack, Price: 0},
	} {
		_, err := svc.Create(context.Background(), in)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "%+v", in)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	item, err := svc.Create(ctx, CreateInput{Name: "Bakso", Category: enums.MenuCategoryFood, Price: 12000})
	require.NoError(t, err)

	price := int64(13000)
	updated, err := svc.Update(ctx, item.ID, UpdateInput{Price: &price, IsAvailable: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, int64(13000), updated.Price)
	assert.False(t, updated.IsAvailable)

	zero := int64(0)
	_, err = svc.Update(ctx, item.ID, UpdateInput{Price: &zero})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.Delete(ctx, item.ID))
	_, err = svc.Get(ctx, item.ID)
	assert.True(t, errors.Is(err, ErrItemNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, uuid.New()), ErrItemNotFound))
}
