// Package settlement runs the purchase request, purchase and remittance state
// machines and the confirmation unit that releases cashback.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/audit"
	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/internal/payments"
	"github.com/angelmondragon/seedfund-backend/internal/split"
	dbpkg "github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/metrics"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/seedfund-backend/pkg/pagination"
)

const (
	defaultPaymentWindow = 72 * time.Hour
	cashbackReason       = "purchase cashback"
)

// Actor identifies who triggered an operation. A zero UserID is the system
// (payment reconciler, scheduled jobs).
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
	IP     string
	Source string
}

// SystemActor returns the actor used by automated confirmation paths.
func SystemActor(source string) Actor {
	return Actor{Role: enums.RoleAdmin, Source: source}
}

func (a Actor) isSystem() bool { return a.UserID == uuid.Nil }

func (a Actor) ref() *uuid.UUID {
	if a.isSystem() {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) outboxRef() *outbox.ActorRef {
	if a.isSystem() {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

func (a Actor) source() string {
	if a.Source != "" {
		return a.Source
	}
	if a.Role != "" {
		return string(a.Role)
	}
	return "system"
}

// SubmitRequestInput is a buyer's purchase declaration.
type SubmitRequestInput struct {
	BuyerID   uuid.UUID
	PartnerID uuid.UUID
	Amount    decimal.Decimal
}

// RegisterRemittanceInput is a partner's remittance against one purchase.
type RegisterRemittanceInput struct {
	PurchaseID uuid.UUID
	Value      decimal.Decimal
	ProofRef   string
	Actor      Actor
}

// Confirmation is the outcome of one confirmed remittance.
type Confirmation struct {
	RemittanceID uuid.UUID    `json:"remittance_id"`
	PurchaseID   uuid.UUID    `json:"purchase_id"`
	BuyerID      uuid.UUID    `json:"buyer_id"`
	FundID       uuid.UUID    `json:"fund_id"`
	Shares       split.Shares `json:"shares"`
	ConfirmedAt  time.Time    `json:"confirmed_at"`
}

// Pending groups the items waiting on a partner or an admin.
type Pending struct {
	Requests    []models.PurchaseRequest `json:"requests"`
	Purchases   []models.Purchase        `json:"purchases"`
	Remittances []models.Remittance      `json:"remittances"`
}

// Service is the settlement state machine.
type Service interface {
	SubmitRequest(ctx context.Context, input SubmitRequestInput) (*models.PurchaseRequest, error)
	ApproveRequest(ctx context.Context, requestID uuid.UUID, actor Actor) (*models.Purchase, error)
	RejectRequest(ctx context.Context, requestID uuid.UUID, actor Actor, reason string) error
	RegisterRemittance(ctx context.Context, input RegisterRemittanceInput) (*models.Remittance, error)
	StartPayment(ctx context.Context, remittanceID uuid.UUID, actor Actor, sourceID string) (*payments.Charge, error)
	Confirm(ctx context.Context, remittanceID uuid.UUID, actor Actor) (*Confirmation, error)
	AdminApprove(ctx context.Context, remittanceID uuid.UUID, actor Actor) (*Confirmation, error)
	RejectRemittance(ctx context.Context, remittanceID uuid.UUID, actor Actor, reason string) error
	RejectPurchase(ctx context.Context, purchaseID uuid.UUID, actor Actor, reason string) error
	ListPending(ctx context.Context, limit int) (*Pending, error)
	FindRemittanceByExternalID(ctx context.Context, externalID string) (*models.Remittance, error)
	ListAwaitingPayment(ctx context.Context, now time.Time, expired bool, limit int) ([]models.Remittance, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fundAccumulator interface {
	AddShare(ctx context.Context, tx *gorm.DB, amount decimal.Decimal, now time.Time) (uuid.UUID, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type chargeProviders interface {
	Default() (payments.Provider, error)
}

type notifier interface {
	NotifyMany(ctx context.Context, msgs []notifications.Message)
}

// ServiceParams wires the settlement service.
type ServiceParams struct {
	Repository    Repository
	Ledger        ledger.Service
	Funds         fundAccumulator
	Outbox        eventEmitter
	Payments      chargeProviders
	Notifier      notifier
	Audit         audit.Logger
	Metrics       *metrics.SettlementMetrics
	DB            txRunner
	Policy        split.Policy
	PaymentWindow time.Duration
	Currency      string
	Logger        *logger.Logger
	Clock         func() time.Time
}

type service struct {
	repo          Repository
	ledger        ledger.Service
	funds         fundAccumulator
	outbox        eventEmitter
	payments      chargeProviders
	notifier      notifier
	audit         audit.Logger
	metrics       *metrics.SettlementMetrics
	tx            txRunner
	policy        split.Policy
	paymentWindow time.Duration
	currency      string
	logg          *logger.Logger
	clock         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Funds == nil {
		return nil, fmt.Errorf("seed fund service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if err := params.Policy.Validate(); err != nil {
		return nil, err
	}
	window := params.PaymentWindow
	if window <= 0 {
		window = defaultPaymentWindow
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "USD"
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	auditLog := params.Audit
	if auditLog == nil {
		auditLog = audit.NewService(nil, params.Logger)
	}
	return &service{
		repo:          params.Repository,
		ledger:        params.Ledger,
		funds:         params.Funds,
		outbox:        params.Outbox,
		payments:      params.Payments,
		notifier:      params.Notifier,
		audit:         auditLog,
		metrics:       params.Metrics,
		tx:            params.DB,
		policy:        params.Policy,
		paymentWindow: window,
		currency:      currency,
		logg:          params.Logger,
		clock:         clock,
	}, nil
}

func (s *service) now() time.Time { return s.clock().UTC() }

func (s *service) SubmitRequest(ctx context.Context, input SubmitRequestInput) (*models.PurchaseRequest, error) {
	if input.BuyerID == uuid.Nil || input.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id and partner id are required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if _, err := s.loadPartner(ctx, s.repo, input.PartnerID); err != nil {
		return nil, err
	}
	req := &models.PurchaseRequest{
		ID:        uuid.New(),
		BuyerID:   input.BuyerID,
		PartnerID: input.PartnerID,
		Amount:    input.Amount,
		Status:    enums.PurchaseRequestStatusPending,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase request")
	}
	return req, nil
}

// ApproveRequest turns a pending request into a purchase awaiting remittance
// and books the expected remittance as partner debt.
func (s *service) ApproveRequest(ctx context.Context, requestID uuid.UUID, actor Actor) (*models.Purchase, error) {
	now := s.now()
	var purchase *models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := s.loadRequest(ctx, repo, requestID)
		if err != nil {
			return err
		}
		if err := s.authorizePartner(ctx, repo, actor, req.PartnerID); err != nil {
			return err
		}
		if req.Status != enums.PurchaseRequestStatusPending {
			return alreadyProcessed("purchase request", string(req.Status))
		}

		purchaseID := uuid.New()
		rows, err := repo.DecideRequest(ctx, requestID, requestDecision{
			Status:     enums.PurchaseRequestStatusApproved,
			DecidedBy:  actor.ref(),
			DecidedAt:  now,
			PurchaseID: &purchaseID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve purchase request")
		}
		if rows == 0 {
			return alreadyProcessed("purchase request", "decided")
		}

		purchase = &models.Purchase{
			ID:        purchaseID,
			RequestID: req.ID,
			BuyerID:   req.BuyerID,
			PartnerID: req.PartnerID,
			Amount:    req.Amount,
			Status:    enums.PurchaseStatusAwaitingRemittance,
		}
		if err := repo.CreatePurchase(ctx, purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
		}
		if err := s.ledger.IncreasePartnerDebt(ctx, tx, req.PartnerID, s.policy.ExpectedRemittance(req.Amount)); err != nil {
			return err
		}
		return s.ledger.RecordPartnerSale(ctx, tx, req.PartnerID, req.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.Message{
		UserID: purchase.BuyerID,
		Kind:   enums.NotificationPurchaseDecided,
		Title:  "Purchase approved",
		Body:   fmt.Sprintf("Your purchase of %s was approved. Cashback is released once the partner settles.", purchase.Amount.StringFixed(2)),
	})
	s.audit.Log(ctx, audit.Entry{
		ActorID: actor.ref(),
		Action:  audit.ActionRequestApproved,
		Details: map[string]any{"request_id": requestID.String(), "purchase_id": purchase.ID.String()},
		IP:      actor.IP,
	})
	return purchase, nil
}

func (s *service) RejectRequest(ctx context.Context, requestID uuid.UUID, actor Actor, reason string) error {
	now := s.now()
	reason = strings.TrimSpace(reason)
	var req *models.PurchaseRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		req, err = s.loadRequest(ctx, repo, requestID)
		if err != nil {
			return err
		}
		if err := s.authorizePartner(ctx, repo, actor, req.PartnerID); err != nil {
			return err
		}
		rows, err := repo.DecideRequest(ctx, requestID, requestDecision{
			Status:    enums.PurchaseRequestStatusRejected,
			DecidedBy: actor.ref(),
			DecidedAt: now,
			Reason:    optionalString(reason),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject purchase request")
		}
		if rows == 0 {
			return alreadyProcessed("purchase request", string(req.Status))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, notifications.Message{
		UserID: req.BuyerID,
		Kind:   enums.NotificationPurchaseDecided,
		Title:  "Purchase rejected",
		Body:   rejectionBody("Your purchase request was rejected", reason),
	})
	s.audit.Log(ctx, audit.Entry{
		ActorID: actor.ref(),
		Action:  audit.ActionRequestRejected,
		Details: map[string]any{"request_id": requestID.String(), "reason": reason},
		IP:      actor.IP,
	})
	return nil
}

func (s *service) RegisterRemittance(ctx context.Context, input RegisterRemittanceInput) (*models.Remittance, error) {
	var remittance *models.Remittance
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := s.loadPurchase(ctx, repo, input.PurchaseID)
		if err != nil {
			return err
		}
		if err := s.authorizePartner(ctx, repo, input.Actor, purchase.PartnerID); err != nil {
			return err
		}
		if purchase.Status != enums.PurchaseStatusAwaitingRemittance {
			return invalidState("purchase", string(purchase.Status), string(enums.PurchaseStatusAwaitingRemittance))
		}
		if err := s.policy.ValidateRemittance(purchase.Amount, input.Value); err != nil {
			return err
		}

		rows, err := repo.TransitionPurchase(ctx, purchase.ID,
			[]enums.PurchaseStatus{enums.PurchaseStatusAwaitingRemittance},
			enums.PurchaseStatusRemittanceRegistered, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register remittance")
		}
		if rows == 0 {
			return invalidState("purchase", "changed", string(enums.PurchaseStatusAwaitingRemittance))
		}

		remittance = &models.Remittance{
			ID:         uuid.New(),
			PurchaseID: purchase.ID,
			PartnerID:  purchase.PartnerID,
			Value:      input.Value,
			Status:     enums.RemittanceStatusPending,
			ProofRef:   optionalString(strings.TrimSpace(input.ProofRef)),
		}
		if err := repo.CreateRemittance(ctx, remittance); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "purchase already has an active remittance")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create remittance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		ActorID: input.Actor.ref(),
		Action:  audit.ActionRemittanceRegister,
		Details: map[string]any{
			"remittance_id": remittance.ID.String(),
			"purchase_id":   remittance.PurchaseID.String(),
			"value":         remittance.Value.String(),
		},
		IP: input.Actor.IP,
	})
	return remittance, nil
}

// StartPayment creates the provider charge outside any transaction, then
// records it and moves the remittance and purchase to awaiting_payment.
func (s *service) StartPayment(ctx context.Context, remittanceID uuid.UUID, actor Actor, sourceID string) (*payments.Charge, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment providers not configured")
	}
	remittance, err := s.loadRemittance(ctx, s.repo, remittanceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizePartner(ctx, s.repo, actor, remittance.PartnerID); err != nil {
		return nil, err
	}
	switch {
	case remittance.Status.IsTerminal():
		return nil, alreadyProcessed("remittance", string(remittance.Status))
	case remittance.Status != enums.RemittanceStatusPending:
		return nil, invalidState("remittance", string(remittance.Status), string(enums.RemittanceStatusPending))
	}

	provider, err := s.payments.Default()
	if err != nil {
		return nil, err
	}
	charge, err := provider.CreateCharge(ctx, payments.ChargeRequest{
		Amount:    remittance.Value,
		Currency:  s.currency,
		Reference: remittance.ID.String(),
		SourceID:  sourceID,
	})
	if err != nil {
		return nil, err
	}

	deadline := s.now().Add(s.paymentWindow)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.MarkAwaitingPayment(ctx, remittanceID, provider.Name(), charge.PaymentID, deadline)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record remittance payment")
		}
		if rows == 0 {
			return invalidState("remittance", "changed", string(enums.RemittanceStatusPending))
		}
		rows, err = repo.TransitionPurchase(ctx, remittance.PurchaseID,
			[]enums.PurchaseStatus{enums.PurchaseStatusRemittanceRegistered},
			enums.PurchaseStatusAwaitingPayment, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance purchase")
		}
		if rows == 0 {
			return invalidState("purchase", "changed", string(enums.PurchaseStatusRemittanceRegistered))
		}
		return nil
	})
	if err != nil {
		s.logError(ctx, "payment started but not recorded", err, map[string]any{
			"remittance_id": remittanceID.String(),
			"payment_id":    charge.PaymentID,
		})
		return nil, err
	}

	if charge.Status == enums.PaymentStatusApproved {
		if _, err := s.Confirm(ctx, remittanceID, SystemActor("payment")); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
			// the reconciler picks the remittance up on its next pass
			s.logError(ctx, "immediate confirmation failed", err, map[string]any{"remittance_id": remittanceID.String()})
		}
	}
	return charge, nil
}

// Confirm settles a remittance as one unit: remittance confirmed, purchase
// released, partner debt reduced, spender credited, fund share accumulated.
// A remittance that is no longer open yields ALREADY_PROCESSED.
func (s *service) Confirm(ctx context.Context, remittanceID uuid.UUID, actor Actor) (*Confirmation, error) {
	now := s.now()
	var conf *Confirmation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		remittance, err := s.loadRemittance(ctx, repo, remittanceID)
		if err != nil {
			return err
		}
		if remittance.Status.IsTerminal() {
			return alreadyProcessed("remittance", string(remittance.Status))
		}
		purchase, err := s.loadPurchase(ctx, repo, remittance.PurchaseID)
		if err != nil {
			return err
		}
		if err := s.policy.ValidateRemittance(purchase.Amount, remittance.Value); err != nil {
			return err
		}
		shares, err := s.policy.Split(purchase.Amount, remittance.Value)
		if err != nil {
			return err
		}

		rows, err := repo.ConfirmRemittance(ctx, remittanceID, remittanceConfirmation{
			ConfirmedBy:   actor.ref(),
			ConfirmedAt:   now,
			SpenderShare:  shares.Spender,
			FundShare:     shares.Fund,
			PlatformShare: shares.Platform,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm remittance")
		}
		if rows == 0 {
			return alreadyProcessed("remittance", "confirmed")
		}

		rows, err = repo.TransitionPurchase(ctx, purchase.ID,
			[]enums.PurchaseStatus{enums.PurchaseStatusRemittanceRegistered, enums.PurchaseStatusAwaitingPayment},
			enums.PurchaseStatusCashbackReleased,
			map[string]any{"released_at": now, "cashback_seeds": shares.Spender})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release purchase")
		}
		if rows == 0 {
			return invalidState("purchase", string(purchase.Status), string(enums.PurchaseStatusAwaitingPayment))
		}

		if err := s.ledger.DecreasePartnerDebt(ctx, tx, remittance.PartnerID, remittance.Value); err != nil {
			return err
		}
		if shares.Spender > 0 {
			ref := remittance.ID
			if _, err := s.ledger.Credit(ctx, tx, ledger.MutationInput{
				UserID:      purchase.BuyerID,
				Amount:      shares.Spender,
				Type:        enums.SeedHistoryEarned,
				Reason:      cashbackReason,
				ReferenceID: &ref,
			}); err != nil {
				return err
			}
		}
		fundID, err := s.funds.AddShare(ctx, tx, shares.Fund, now)
		if err != nil {
			return err
		}

		conf = &Confirmation{
			RemittanceID: remittance.ID,
			PurchaseID:   purchase.ID,
			BuyerID:      purchase.BuyerID,
			FundID:       fundID,
			Shares:       shares,
			ConfirmedAt:  now,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRemittanceConfirmed,
			AggregateType: enums.AggregateRemittance,
			AggregateID:   remittance.ID,
			Actor:         actor.outboxRef(),
			OccurredAt:    now,
			Data: payloads.RemittanceConfirmedEvent{
				RemittanceID:  remittance.ID,
				PurchaseID:    purchase.ID,
				PartnerID:     remittance.PartnerID,
				BuyerID:       purchase.BuyerID,
				Value:         remittance.Value,
				SpenderShare:  shares.Spender,
				FundShare:     shares.Fund,
				PlatformShare: shares.Platform,
				FundID:        fundID,
				ConfirmedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveConfirmed(actor.source(), conf.Shares.Spender, conf.Shares.Fund)
	s.notify(ctx, notifications.Message{
		UserID: conf.BuyerID,
		Kind:   enums.NotificationCashbackReleased,
		Title:  "Cashback released",
		Body:   fmt.Sprintf("%d seeds were added to your balance.", conf.Shares.Spender),
	})
	s.audit.Log(ctx, audit.Entry{
		ActorID: actor.ref(),
		Action:  audit.ActionRemittanceConfirmed,
		Details: map[string]any{
			"remittance_id":  remittanceID.String(),
			"spender_share":  conf.Shares.Spender,
			"fund_share":     conf.Shares.Fund.String(),
			"platform_share": conf.Shares.Platform.String(),
			"source":         actor.source(),
		},
		IP: actor.IP,
	})
	return conf, nil
}

// AdminApprove is the manual fast path; it runs the same unit as Confirm.
func (s *service) AdminApprove(ctx context.Context, remittanceID uuid.UUID, actor Actor) (*Confirmation, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if actor.Source == "" {
		actor.Source = "admin"
	}
	return s.Confirm(ctx, remittanceID, actor)
}

// RejectRemittance rejects an open remittance and its purchase.
func (s *service) RejectRemittance(ctx context.Context, remittanceID uuid.UUID, actor Actor, reason string) error {
	if actor.Role != enums.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	now := s.now()
	reason = strings.TrimSpace(reason)
	var (
		remittance *models.Remittance
		purchase   *models.Purchase
		partner    *models.Partner
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		remittance, err = s.loadRemittance(ctx, repo, remittanceID)
		if err != nil {
			return err
		}
		if remittance.Status.IsTerminal() {
			return alreadyProcessed("remittance", string(remittance.Status))
		}
		if err := s.rejectRemittanceTx(ctx, tx, repo, remittance, actor, reason, now); err != nil {
			return err
		}
		rows, err := repo.TransitionPurchase(ctx, remittance.PurchaseID,
			[]enums.PurchaseStatus{enums.PurchaseStatusRemittanceRegistered, enums.PurchaseStatusAwaitingPayment},
			enums.PurchaseStatusRejected, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject purchase")
		}
		if rows == 0 {
			return invalidState("purchase", "changed", string(enums.PurchaseStatusAwaitingPayment))
		}
		if purchase, err = s.loadPurchase(ctx, repo, remittance.PurchaseID); err != nil {
			return err
		}
		partner, err = s.loadPartner(ctx, repo, remittance.PartnerID)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.IncRejected(actor.source())
	body := rejectionBody("A remittance was rejected", reason)
	s.notify(ctx,
		notifications.Message{UserID: partner.OwnerUserID, Kind: enums.NotificationRemittanceDenied, Title: "Remittance rejected", Body: body},
		notifications.Message{UserID: purchase.BuyerID, Kind: enums.NotificationRemittanceDenied, Title: "Purchase rejected", Body: body},
	)
	s.audit.Log(ctx, audit.Entry{
		ActorID: actor.ref(),
		Action:  audit.ActionRemittanceRejected,
		Details: map[string]any{"remittance_id": remittanceID.String(), "reason": reason, "source": actor.source()},
		IP:      actor.IP,
	})
	return nil
}

// RejectPurchase rejects a purchase that has not settled, together with its open remittance.
func (s *service) RejectPurchase(ctx context.Context, purchaseID uuid.UUID, actor Actor, reason string) error {
	if actor.Role != enums.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	now := s.now()
	reason = strings.TrimSpace(reason)
	var purchase *models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		purchase, err = s.loadPurchase(ctx, repo, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status.IsTerminal() {
			return alreadyProcessed("purchase", string(purchase.Status))
		}
		open, err := repo.FindOpenRemittanceForPurchase(ctx, purchaseID)
		switch {
		case err == nil:
			if err := s.rejectRemittanceTx(ctx, tx, repo, open, actor, reason, now); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open remittance")
		}
		rows, err := repo.TransitionPurchase(ctx, purchaseID,
			[]enums.PurchaseStatus{
				enums.PurchaseStatusAwaitingRemittance,
				enums.PurchaseStatusRemittanceRegistered,
				enums.PurchaseStatusAwaitingPayment,
			},
			enums.PurchaseStatusRejected, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject purchase")
		}
		if rows == 0 {
			return alreadyProcessed("purchase", "decided")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, notifications.Message{
		UserID: purchase.BuyerID,
		Kind:   enums.NotificationPurchaseDecided,
		Title:  "Purchase rejected",
		Body:   rejectionBody("Your purchase was rejected", reason),
	})
	s.audit.Log(ctx, audit.Entry{
		ActorID: actor.ref(),
		Action:  audit.ActionPurchaseRejected,
		Details: map[string]any{"purchase_id": purchaseID.String(), "reason": reason},
		IP:      actor.IP,
	})
	return nil
}

func (s *service) rejectRemittanceTx(ctx context.Context, tx *gorm.DB, repo Repository, remittance *models.Remittance, actor Actor, reason string, now time.Time) error {
	rows, err := repo.RejectRemittance(ctx, remittance.ID, reason, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject remittance")
	}
	if rows == 0 {
		return alreadyProcessed("remittance", "decided")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRemittanceRejected,
		AggregateType: enums.AggregateRemittance,
		AggregateID:   remittance.ID,
		Actor:         actor.outboxRef(),
		OccurredAt:    now,
		Data: payloads.RemittanceRejectedEvent{
			RemittanceID: remittance.ID,
			PurchaseID:   remittance.PurchaseID,
			PartnerID:    remittance.PartnerID,
			Reason:       reason,
			RejectedAt:   now,
		},
	})
}

func (s *service) ListPending(ctx context.Context, limit int) (*Pending, error) {
	limit = listWindow.Clamp(limit)
	requests, err := s.repo.ListPendingRequests(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending requests")
	}
	purchases, err := s.repo.ListPurchasesAwaitingRemittance(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases awaiting remittance")
	}
	remittances, err := s.repo.ListOpenRemittances(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open remittances")
	}
	return &Pending{Requests: requests, Purchases: purchases, Remittances: remittances}, nil
}

func (s *service) FindRemittanceByExternalID(ctx context.Context, externalID string) (*models.Remittance, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external payment id required")
	}
	remittance, err := s.repo.FindRemittanceByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "remittance not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load remittance")
	}
	return remittance, nil
}

func (s *service) ListAwaitingPayment(ctx context.Context, now time.Time, expired bool, limit int) ([]models.Remittance, error) {
	rows, err := s.repo.ListAwaitingPayment(ctx, now.UTC(), expired, listWindow.Clamp(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list awaiting payment")
	}
	return rows, nil
}

func (s *service) authorizePartner(ctx context.Context, repo Repository, actor Actor, partnerID uuid.UUID) error {
	if actor.isSystem() || actor.Role == enums.RoleAdmin {
		return nil
	}
	if actor.Role != enums.RolePartner {
		return pkgerrors.New(pkgerrors.CodeForbidden, "partner role required")
	}
	partner, err := s.loadPartner(ctx, repo, partnerID)
	if err != nil {
		return err
	}
	if partner.OwnerUserID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "partner does not belong to caller")
	}
	return nil
}

func (s *service) loadPartner(ctx context.Context, repo Repository, id uuid.UUID) (*models.Partner, error) {
	partner, err := repo.FindPartner(ctx, id)
	return partner, notFoundOr(err, "partner")
}

func (s *service) loadRequest(ctx context.Context, repo Repository, id uuid.UUID) (*models.PurchaseRequest, error) {
	req, err := repo.FindRequest(ctx, id)
	return req, notFoundOr(err, "purchase request")
}

func (s *service) loadPurchase(ctx context.Context, repo Repository, id uuid.UUID) (*models.Purchase, error) {
	purchase, err := repo.FindPurchase(ctx, id)
	return purchase, notFoundOr(err, "purchase")
}

func (s *service) loadRemittance(ctx context.Context, repo Repository, id uuid.UUID) (*models.Remittance, error) {
	remittance, err := repo.FindRemittance(ctx, id)
	return remittance, notFoundOr(err, "remittance")
}

func (s *service) notify(ctx context.Context, msgs ...notifications.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyMany(ctx, msgs)
}

func (s *service) logError(ctx context.Context, msg string, err error, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithFields(ctx, fields), msg, err)
}

func notFoundOr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}

func alreadyProcessed(entity, status string) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, fmt.Sprintf("%s already %s", entity, status))
}

func invalidState(entity, current, expected string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is not %s", entity, expected)).WithDetails(map[string]any{
		"current":  current,
		"expected": expected,
	})
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func rejectionBody(prefix, reason string) string {
	if reason == "" {
		return prefix + "."
	}
	return prefix + ": " + reason
}

var listWindow = pagination.Window{Default: 100, Max: 500}
