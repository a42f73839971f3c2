package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type fundService interface {
	Current(ctx context.Context) (*models.SeedFund, error)
	Distribute(ctx context.Context, fundID uuid.UUID, now time.Time) (*seedfund.Result, error)
	Distributions(ctx context.Context, fundID uuid.UUID) ([]models.FundDistribution, error)
}

// CurrentFund returns the open seed fund.
func CurrentFund(svc fundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fund, err := svc.Current(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fund)
	}
}

// AdminDistributeFund pays out a closed fund. Distributing twice is rejected
// with already_distributed.
func AdminDistributeFund(svc fundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fundID, err := pathUUID(r, "fundId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Distribute(ctx, fundID, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminFundDistributions lists the payout rows of a fund.
func AdminFundDistributions(svc fundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fundID, err := pathUUID(r, "fundId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := svc.Distributions(ctx, fundID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
