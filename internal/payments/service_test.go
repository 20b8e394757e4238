package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/pkg/db/dbtest"
	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/enums"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/pagination"
)

func TestListAndGet(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, licenses.NewRepository(client.DB()))
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"pay_a", "pay_b", "pay_c"} {
		require.NoError(t, repo.Create(ctx, &models.Payment{
			ID: id, Email: "a@x.com", Amount: 49900, Currency: "INR",
			Status: enums.PaymentStatusCaptured, ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	exists, err := repo.Exists(ctx, "pay_b")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "pay_z")
	require.NoError(t, err)
	assert.False(t, exists)

	first, err := svc.List(ctx, ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "pay_c", first.Items[0].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, ListParams{Params: pagination.Params{Limit: 2, Cursor: first.Cursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "pay_a", second.Items[0].ID)
	assert.Empty(t, second.Cursor)

	got, err := svc.Get(ctx, "pay_b")
	require.NoError(t, err)
	assert.Equal(t, int64(49900), got.Amount)
	assert.Nil(t, got.LicenseKey)

	const key = "WTS-7KQ2M-XH9PD-3RTVA-N8BWE"
	require.NoError(t, client.DB().Create(&models.License{Key: key, Email: "a@x.com", PaymentID: "pay_b"}).Error)
	got, err = svc.Get(ctx, "pay_b")
	require.NoError(t, err)
	require.NotNil(t, got.LicenseKey)
	assert.Equal(t, key, *got.LicenseKey)

	_, err = svc.Get(ctx, "pay_missing")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCreateDuplicateFails(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	p := &models.Payment{ID: "pay_1", Email: "a@x.com", Amount: 1, Currency: "INR", Status: enums.PaymentStatusCaptured, ReceivedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), p))
	dup := *p
	require.Error(t, repo.Create(context.Background(), &dup))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
	_, err = NewService(NewRepository(dbtest.Open(t).DB()), nil)
	assert.Error(t, err)
}
