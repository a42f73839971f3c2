package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/api/middleware"
	"github.com/angelmondragon/seedfund-backend/internal/settlement"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/pagination"
)

var listWindow = pagination.Window{Default: 50, Max: 200}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, key+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return id, nil
}

func parseUUIDValue(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// requestActor builds the settlement actor from the authenticated caller.
func requestActor(r *http.Request) (settlement.Actor, error) {
	userID, err := callerID(r)
	if err != nil {
		return settlement.Actor{}, err
	}
	role, err := enums.ParseRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return settlement.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return settlement.Actor{
		UserID: userID,
		Role:   role,
		IP:     middleware.ClientIP(r),
		Source: "api",
	}, nil
}

// outcome is the body returned for transitions that produce no entity.
type outcome struct {
	Status string `json:"status"`
}

func alreadyProcessed(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed)
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).WithDetails(map[string]any{"field": key})
	}
	return v, nil
}
