package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	"github.com/angelmondragon/seedfund-backend/api/validators"
	"github.com/angelmondragon/seedfund-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type submitPurchaseRequestBody struct {
	PartnerID string `json:"partner_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required,decimal"`
}

type reasonBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

type registerRemittanceBody struct {
	Value    string `json:"value" validate:"required,decimal"`
	ProofRef string `json:"proof_ref" validate:"max=500"`
}

type payRemittanceBody struct {
	SourceID string `json:"source_id" validate:"max=255"`
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be a decimal").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

// SubmitPurchaseRequest records a buyer's purchase declaration with a partner.
func SubmitPurchaseRequest(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body submitPurchaseRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		amount, err := parseAmount(body.Amount, "amount")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		partnerID, err := uuid.Parse(body.PartnerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid partner_id"))
			return
		}
		req, err := svc.SubmitRequest(ctx, settlement.SubmitRequestInput{
			BuyerID:   buyerID,
			PartnerID: partnerID,
			Amount:    amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, req)
	}
}

// ApprovePurchaseRequest turns a pending request into a purchase awaiting remittance.
func ApprovePurchaseRequest(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		purchase, err := svc.ApproveRequest(ctx, requestID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}

// RejectPurchaseRequest closes a pending request without a purchase.
func RejectPurchaseRequest(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body reasonBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.RejectRequest(ctx, requestID, actor, validators.SanitizeString(body.Reason, 500)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome{Status: "rejected"})
	}
}

// RegisterRemittance attaches the partner's remittance to a purchase.
func RegisterRemittance(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		purchaseID, err := pathUUID(r, "purchaseId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body registerRemittanceBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		value, err := parseAmount(body.Value, "value")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		remittance, err := svc.RegisterRemittance(ctx, settlement.RegisterRemittanceInput{
			PurchaseID: purchaseID,
			Value:      value,
			ProofRef:   validators.SanitizeString(body.ProofRef, 500),
			Actor:      actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, remittance)
	}
}

// PayRemittance charges the partner through the configured provider.
func PayRemittance(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		remittanceID, err := pathUUID(r, "remittanceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body payRemittanceBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		charge, err := svc.StartPayment(ctx, remittanceID, actor, body.SourceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, charge)
	}
}

// AdminPending lists requests, purchases and remittances waiting on someone.
func AdminPending(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.QueryLimit(r, listWindow)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pending, err := svc.ListPending(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, pending)
	}
}

// AdminApproveRemittance confirms a remittance manually. A repeat approval
// answers with the already_processed status instead of an error.
func AdminApproveRemittance(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		remittanceID, err := pathUUID(r, "remittanceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		confirmation, err := svc.AdminApprove(ctx, remittanceID, actor)
		if alreadyProcessed(err) {
			responses.WriteSuccess(w, outcome{Status: "already_processed"})
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmation)
	}
}

// AdminRejectRemittance rejects a remittance and its purchase.
func AdminRejectRemittance(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		remittanceID, err := pathUUID(r, "remittanceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body reasonBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		err = svc.RejectRemittance(ctx, remittanceID, actor, validators.SanitizeString(body.Reason, 500))
		if alreadyProcessed(err) {
			responses.WriteSuccess(w, outcome{Status: "already_processed"})
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome{Status: "rejected"})
	}
}

// AdminRejectPurchase rejects a purchase that never received a remittance.
func AdminRejectPurchase(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		purchaseID, err := pathUUID(r, "purchaseId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body reasonBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		err = svc.RejectPurchase(ctx, purchaseID, actor, validators.SanitizeString(body.Reason, 500))
		if alreadyProcessed(err) {
			responses.WriteSuccess(w, outcome{Status: "already_processed"})
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome{Status: "rejected"})
	}
}
