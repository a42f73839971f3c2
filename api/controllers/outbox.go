package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	"github.com/angelmondragon/seedfund-backend/api/validators"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

// DeadLetterLister reads the outbox dead-letter table.
type DeadLetterLister interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

// AdminDeadLetters lists outbox events the publisher gave up on.
func AdminDeadLetters(repo DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.QueryLimit(r, listWindow)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := repo.List(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
