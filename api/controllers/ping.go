package controllers

import (
	"net/http"

	"github.com/angelmondragon/seedfund-backend/api/middleware"
	"github.com/angelmondragon/seedfund-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{
			"scope":  "private",
			"status": "ok",
			"role":   middleware.RoleFromContext(r.Context()),
		}
		if partner := middleware.PartnerIDFromContext(r.Context()); partner != "" {
			payload["partner_id"] = partner
		}
		responses.WriteSuccess(w, payload)
	}
}
