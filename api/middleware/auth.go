package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	pkgAuth "github.com/angelmondragon/seedfund-backend/pkg/auth"
	"github.com/angelmondragon/seedfund-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

var errMissingCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")

// bearerToken accepts "Bearer <t>" in any case, or a bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}

// Auth verifies the access token and puts the caller on the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(ctx, logg, w, errMissingCredentials)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			partnerID := ""
			if claims.PartnerID != nil {
				partnerID = claims.PartnerID.String()
			}
			ctx = withPrincipal(ctx, func(p *principal) {
				p.userID = claims.UserID.String()
				p.role = string(claims.Role)
				p.partnerID = partnerID
			})

			if logg != nil {
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				fields := map[string]any{"user_id": claims.UserID.String()}
				if partnerID != "" {
					fields["partner_id"] = partnerID
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
