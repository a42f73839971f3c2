package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	"github.com/angelmondragon/seedfund-backend/api/validators"
	"github.com/angelmondragon/seedfund-backend/internal/cycles"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type pauseBody struct {
	Paused *bool `json:"paused" validate:"required"`
}

func CycleStatus(svc cycles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Status(r.Context(), time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// AdminCycleReset forces the end of the current cycle.
func AdminCycleReset(svc cycles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.ResetCycle(ctx, time.Now().UTC(), &actorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminSeasonReset forces a cycle reset that also starts a new season.
func AdminSeasonReset(svc cycles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.ResetSeason(ctx, time.Now().UTC(), &actorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminCyclePause(svc cycles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body pauseBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := svc.SetPaused(ctx, time.Now().UTC(), *body.Paused, &actorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
