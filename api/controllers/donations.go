package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	"github.com/angelmondragon/seedfund-backend/api/validators"
	"github.com/angelmondragon/seedfund-backend/internal/donations"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type donateBody struct {
	CreatorID string `json:"creator_id" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"required,min=1"`
}

// Donate moves seeds from the caller to a creator.
func Donate(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		donorID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body donateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		creatorID, err := uuid.Parse(body.CreatorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid creator_id"))
			return
		}
		donation, err := svc.Donate(ctx, donations.DonateInput{
			DonorID:   donorID,
			CreatorID: creatorID,
			Amount:    body.Amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, donation)
	}
}

func CreatorDonations(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		creatorID, err := pathUUID(r, "creatorId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.QueryLimit(r, listWindow)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		list, err := svc.ListForCreator(ctx, creatorID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
