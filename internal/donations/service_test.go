package donations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, ledger.Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	dbtest.SeedCycleConfig(t, client, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), client)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), ledgerSvc, client, nil)
	require.NoError(t, err)
	return svc, ledgerSvc, client
}

func makeCreator(t *testing.T, client *db.Client) models.User {
	t.Helper()
	user := dbtest.CreateUser(t, client, 0)
	tier := enums.LowestCreatorTier
	require.NoError(t, client.DB().Model(&models.User{}).Where("id = ?", user.ID).Update("creator_tier", tier).Error)
	user.CreatorTier = &tier
	return user
}

func TestDonateMovesSeedsAndScore(t *testing.T) {
	svc, ledgerSvc, client := newTestService(t)
	ctx := context.Background()
	donor := dbtest.CreateUser(t, client, 100)
	creator := makeCreator(t, client)

	donation, err := svc.Donate(ctx, DonateInput{DonorID: donor.ID, CreatorID: creator.ID, Amount: 40})
	require.NoError(t, err)
	require.Equal(t, 1, donation.CycleNumber)

	donorBalance, err := ledgerSvc.Balance(ctx, donor.ID)
	require.NoError(t, err)
	require.EqualValues(t, 60, donorBalance)
	creatorBalance, err := ledgerSvc.Balance(ctx, creator.ID)
	require.NoError(t, err)
	require.EqualValues(t, 40, creatorBalance)

	var got models.User
	require.NoError(t, client.DB().First(&got, "id = ?", creator.ID).Error)
	require.EqualValues(t, 40, got.Score)

	listed, err := svc.ListForCreator(ctx, creator.ID, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestDonateInsufficientBalanceRollsBack(t *testing.T) {
	svc, ledgerSvc, client := newTestService(t)
	ctx := context.Background()
	donor := dbtest.CreateUser(t, client, 10)
	creator := makeCreator(t, client)

	_, err := svc.Donate(ctx, DonateInput{DonorID: donor.ID, CreatorID: creator.ID, Amount: 11})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientBalance), "got %v", err)

	creatorBalance, err := ledgerSvc.Balance(ctx, creator.ID)
	require.NoError(t, err)
	require.Zero(t, creatorBalance)
	var count int64
	require.NoError(t, client.DB().Model(&models.Donation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDonateRequiresCreator(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()
	donor := dbtest.CreateUser(t, client, 100)
	plain := dbtest.CreateUser(t, client, 0)

	_, err := svc.Donate(ctx, DonateInput{DonorID: donor.ID, CreatorID: plain.ID, Amount: 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	_, err = svc.Donate(ctx, DonateInput{DonorID: donor.ID, CreatorID: uuid.New(), Amount: 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Donate(ctx, DonateInput{DonorID: donor.ID, CreatorID: donor.ID, Amount: 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.Donate(ctx, DonateInput{DonorID: donor.ID, CreatorID: plain.ID, Amount: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}
