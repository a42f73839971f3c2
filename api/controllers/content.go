package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/seedfund-backend/api/middleware"
	"github.com/angelmondragon/seedfund-backend/api/responses"
	"github.com/angelmondragon/seedfund-backend/api/validators"
	"github.com/angelmondragon/seedfund-backend/internal/content"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type publishContentBody struct {
	Title string `json:"title" validate:"required,max=200"`
}

// PublishContent creates a creator post, or a partner post when the caller
// acts for a partner.
func PublishContent(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body publishContentBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		title := validators.SanitizeString(body.Title, 200)

		var item content.ContentItem
		if raw := middleware.PartnerIDFromContext(ctx); raw != "" && middleware.RoleFromContext(ctx) == string(enums.RolePartner) {
			partnerID, perr := parseUUIDValue(raw, "partner id")
			if perr != nil {
				responses.WriteError(ctx, logg, w, perr)
				return
			}
			item, err = svc.PublishPartnerContent(ctx, partnerID, ownerID, title)
		} else {
			item, err = svc.PublishCreatorContent(ctx, ownerID, title)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// ReactToContent adds one reaction to a content item.
func ReactToContent(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind := enums.ContentKind(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind"))))
		if !kind.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid content kind"))
			return
		}
		id, err := pathUUID(r, "contentId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		item, err := svc.React(ctx, kind, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
