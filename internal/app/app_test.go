package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/internal/donations"
	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		Payments: config.PaymentsConfig{
			Provider:      "square",
			Currency:      "USD",
			PaymentWindow: 72 * time.Hour,
			PollBatchSize: 50,
		},
		Settlement: config.SettlementConfig{
			RemittanceRate:      "0.10",
			SpenderRate:         "0.05",
			FundRate:            "0.25",
			PlatformRate:        "0.25",
			CreatorPoolFraction: "0.50",
			RemittanceTolerance: "1",
		},
		Cycles: config.CyclesConfig{CycleDays: 15, SeasonMonths: 3},
	}
}

func TestNewServicesWiresDomain(t *testing.T) {
	client := dbtest.Open(t)
	dbtest.SeedCycleConfig(t, client, time.Now().UTC().Add(-time.Hour))

	svcs, err := NewServices(testConfig(), nil, &Clients{DB: client}, prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, svcs.Settlement)
	require.NotNil(t, svcs.Reconciler)
	require.NotNil(t, svcs.Cycles)

	// square has no credentials here, so the manual provider takes over
	def, err := svcs.Payments.Default()
	require.NoError(t, err)
	require.Equal(t, enums.PaymentProviderManual, def.Name())

	donor := dbtest.CreateUser(t, client, 10)
	creator := dbtest.CreateUser(t, client, 0)
	ctx := context.Background()
	_, err = svcs.Donations.Donate(ctx, donations.DonateInput{DonorID: donor.ID, CreatorID: creator.ID, Amount: 4})
	require.NoError(t, err)

	balance, err := svcs.Ledger.Balance(ctx, donor.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6), balance)
	balance, err = svcs.Ledger.Balance(ctx, creator.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), balance)
}

func TestNewServicesRequiresDatabase(t *testing.T) {
	_, err := NewServices(testConfig(), nil, &Clients{}, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewServicesRejectsBadConfig(t *testing.T) {
	client := dbtest.Open(t)

	cfg := testConfig()
	cfg.Payments.Provider = "paypal"
	_, err := NewServices(cfg, nil, &Clients{DB: client}, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cfg = testConfig()
	cfg.Settlement.FundRate = "a quarter"
	_, err = NewServices(cfg, nil, &Clients{DB: client}, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
