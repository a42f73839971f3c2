package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// AccessTokenPayload is what a caller supplies when minting.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.Role
	PartnerID *uuid.UUID
	JTI       string
}

// AccessTokenClaims is the body of a seedfund access token.
type AccessTokenClaims struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      enums.Role `json:"role"`
	PartnerID *uuid.UUID `json:"partner_id,omitempty"`
	jwt.RegisteredClaims
}

var (
	errUnknownRole      = errors.New("unknown role")
	errMissingPartnerID = errors.New("partner tokens require a partner id")
	errMissingUserID    = errors.New("user id missing")
)

// Validate runs after the registered claims pass; jwt calls it on parse.
func (c AccessTokenClaims) Validate() error {
	return checkIdentity(c.UserID, c.Role, c.PartnerID)
}

func (p AccessTokenPayload) validate() error {
	return checkIdentity(p.UserID, p.Role, p.PartnerID)
}

func checkIdentity(userID uuid.UUID, role enums.Role, partnerID *uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return errMissingUserID
	case !role.IsValid():
		return errUnknownRole
	case role == enums.RolePartner && (partnerID == nil || *partnerID == uuid.Nil):
		return errMissingPartnerID
	}
	return nil
}
