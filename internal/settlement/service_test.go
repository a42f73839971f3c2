package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/internal/audit"
	"github.com/angelmondragon/seedfund-backend/internal/content"
	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/internal/payments"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/internal/split"
	"github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (r *recordingNotifier) NotifyMany(ctx context.Context, msgs []notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
}

func (r *recordingNotifier) kinds(userID uuid.UUID) []enums.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []enums.NotificationKind
	for _, m := range r.msgs {
		if m.UserID == userID {
			out = append(out, m.Kind)
		}
	}
	return out
}

type stubProvider struct {
	status enums.PaymentStatus
	calls  int
}

func (p *stubProvider) Name() enums.PaymentProvider { return enums.PaymentProviderSquare }

func (p *stubProvider) CreateCharge(ctx context.Context, req payments.ChargeRequest) (*payments.Charge, error) {
	p.calls++
	return &payments.Charge{PaymentID: "sq_" + req.Reference, Provider: enums.PaymentProviderSquare, Status: p.status}, nil
}

func (p *stubProvider) GetStatus(ctx context.Context, paymentID string) (enums.PaymentStatus, error) {
	return p.status, nil
}

type fixture struct {
	client   *db.Client
	svc      Service
	ledger   ledger.Service
	funds    seedfund.Service
	provider *stubProvider
	notifier *recordingNotifier
	buyer    models.User
	partner  models.Partner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	dbtest.SeedCycleConfig(t, client, fixedNow.AddDate(0, 0, -4))

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), client)
	require.NoError(t, err)
	contentSvc, err := content.NewService(content.NewRepository(client.DB()))
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	notifier := &recordingNotifier{}

	funds, err := seedfund.NewService(seedfund.ServiceParams{
		Repository:  seedfund.NewRepository(client.DB()),
		Ledger:      ledgerSvc,
		Content:     contentSvc,
		Outbox:      emitter,
		Notifier:    notifier,
		DB:          client,
		Policy:      split.DefaultPolicy(),
		CycleLength: 15 * 24 * time.Hour,
	})
	require.NoError(t, err)

	provider := &stubProvider{status: enums.PaymentStatusPending}
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(client.DB()),
		Ledger:     ledgerSvc,
		Funds:      funds,
		Outbox:     emitter,
		Payments:   payments.NewRegistry(provider),
		Notifier:   notifier,
		Audit:      audit.NewService(audit.NewRepository(client.DB()), nil),
		DB:         client,
		Policy:     split.DefaultPolicy(),
		Clock:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return &fixture{
		client:   client,
		svc:      svc,
		ledger:   ledgerSvc,
		funds:    funds,
		provider: provider,
		notifier: notifier,
		buyer:    dbtest.CreateUser(t, client, 0),
		partner:  dbtest.CreatePartner(t, client),
	}
}

func (f *fixture) partnerActor() Actor {
	return Actor{UserID: f.partner.OwnerUserID, Role: enums.RolePartner}
}

func adminActor() Actor {
	return Actor{UserID: uuid.New(), Role: enums.RoleAdmin, Source: "admin"}
}

func (f *fixture) approvedPurchase(t *testing.T, amount string) *models.Purchase {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.SubmitRequest(ctx, SubmitRequestInput{
		BuyerID:   f.buyer.ID,
		PartnerID: f.partner.ID,
		Amount:    decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	purchase, err := f.svc.ApproveRequest(ctx, req.ID, f.partnerActor())
	require.NoError(t, err)
	return purchase
}

func (f *fixture) registered(t *testing.T, amount, value string) (*models.Purchase, *models.Remittance) {
	t.Helper()
	purchase := f.approvedPurchase(t, amount)
	remittance, err := f.svc.RegisterRemittance(context.Background(), RegisterRemittanceInput{
		PurchaseID: purchase.ID,
		Value:      decimal.RequireFromString(value),
		ProofRef:   "receipt-1",
		Actor:      f.partnerActor(),
	})
	require.NoError(t, err)
	return purchase, remittance
}

func (f *fixture) partnerRow(t *testing.T) models.Partner {
	t.Helper()
	var p models.Partner
	require.NoError(t, f.client.DB().First(&p, "id = ?", f.partner.ID).Error)
	return p
}

func (f *fixture) purchaseRow(t *testing.T, id uuid.UUID) models.Purchase {
	t.Helper()
	var p models.Purchase
	require.NoError(t, f.client.DB().First(&p, "id = ?", id).Error)
	return p
}

func (f *fixture) remittanceRow(t *testing.T, id uuid.UUID) models.Remittance {
	t.Helper()
	var r models.Remittance
	require.NoError(t, f.client.DB().First(&r, "id = ?", id).Error)
	return r
}

func TestApproveRequestBooksPartnerDebt(t *testing.T) {
	f := newFixture(t)
	purchase := f.approvedPurchase(t, "1000")

	require.Equal(t, enums.PurchaseStatusAwaitingRemittance, purchase.Status)
	partner := f.partnerRow(t)
	require.True(t, partner.DebtBalance.Equal(decimal.NewFromInt(100)), "debt %s", partner.DebtBalance)
	require.EqualValues(t, 1, partner.SalesCount)
	require.Contains(t, f.notifier.kinds(f.buyer.ID), enums.NotificationPurchaseDecided)

	var req models.PurchaseRequest
	require.NoError(t, f.client.DB().First(&req, "id = ?", purchase.RequestID).Error)
	require.Equal(t, enums.PurchaseRequestStatusApproved, req.Status)
	require.Equal(t, purchase.ID, *req.PurchaseID)

	_, err := f.svc.ApproveRequest(context.Background(), req.ID, f.partnerActor())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)
	require.True(t, f.partnerRow(t).DebtBalance.Equal(decimal.NewFromInt(100)))
}

func TestApproveRequestRequiresOwningPartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.SubmitRequest(ctx, SubmitRequestInput{BuyerID: f.buyer.ID, PartnerID: f.partner.ID, Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)

	_, err = f.svc.ApproveRequest(ctx, req.ID, Actor{UserID: uuid.New(), Role: enums.RolePartner})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.ApproveRequest(ctx, req.ID, Actor{UserID: f.buyer.ID, Role: enums.RoleUser})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = f.svc.ApproveRequest(ctx, uuid.New(), f.partnerActor())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestRejectRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.SubmitRequest(ctx, SubmitRequestInput{BuyerID: f.buyer.ID, PartnerID: f.partner.ID, Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)

	require.NoError(t, f.svc.RejectRequest(ctx, req.ID, f.partnerActor(), "no such sale"))
	err = f.svc.RejectRequest(ctx, req.ID, f.partnerActor(), "again")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)
	require.True(t, f.partnerRow(t).DebtBalance.IsZero())
}

func TestSubmitRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitRequest(ctx, SubmitRequestInput{BuyerID: f.buyer.ID, PartnerID: f.partner.ID, Amount: decimal.Zero})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.SubmitRequest(ctx, SubmitRequestInput{BuyerID: f.buyer.ID, PartnerID: uuid.New(), Amount: decimal.NewFromInt(10)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConfirmReleasesCashbackAndSplitsRemittance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchase, remittance := f.registered(t, "1000", "100")
	require.Equal(t, enums.PurchaseStatusRemittanceRegistered, f.purchaseRow(t, purchase.ID).Status)

	conf, err := f.svc.AdminApprove(ctx, remittance.ID, adminActor())
	require.NoError(t, err)
	require.EqualValues(t, 50, conf.Shares.Spender)
	require.True(t, conf.Shares.Fund.Equal(decimal.NewFromInt(25)), "fund %s", conf.Shares.Fund)
	require.True(t, conf.Shares.Platform.Equal(decimal.NewFromInt(25)), "platform %s", conf.Shares.Platform)

	balance, err := f.ledger.Balance(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.EqualValues(t, 50, balance)

	require.True(t, f.partnerRow(t).DebtBalance.IsZero())

	got := f.purchaseRow(t, purchase.ID)
	require.Equal(t, enums.PurchaseStatusCashbackReleased, got.Status)
	require.EqualValues(t, 50, got.CashbackSeeds)
	require.NotNil(t, got.ReleasedAt)

	rem := f.remittanceRow(t, remittance.ID)
	require.Equal(t, enums.RemittanceStatusConfirmed, rem.Status)
	require.EqualValues(t, 50, rem.SpenderShare)

	fund, err := f.funds.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, conf.FundID, fund.ID)
	require.True(t, fund.Total.Equal(decimal.NewFromInt(25)), "fund total %s", fund.Total)

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Where("event_type = ?", enums.EventRemittanceConfirmed).Find(&events).Error)
	require.Len(t, events, 1)

	var audits int64
	require.NoError(t, f.client.DB().Model(&models.AuditLog{}).Where("action = ?", audit.ActionRemittanceConfirmed).Count(&audits).Error)
	require.EqualValues(t, 1, audits)

	require.Contains(t, f.notifier.kinds(f.buyer.ID), enums.NotificationCashbackReleased)
}

func TestConfirmTwiceIsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, remittance := f.registered(t, "1000", "100")

	_, err := f.svc.Confirm(ctx, remittance.ID, SystemActor("webhook"))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, remittance.ID, SystemActor("poller"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)

	balance, err := f.ledger.Balance(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.EqualValues(t, 50, balance)

	history, err := f.ledger.History(ctx, f.buyer.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestConcurrentConfirmationsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, remittance := f.registered(t, "1000", "100")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		processed int
		other     []error
	)
	for i := 0; i < callers; i++ {
		source := "webhook"
		if i%2 == 1 {
			source = "poller"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Confirm(ctx, remittance.ID, SystemActor(source))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed):
				processed++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	require.Equal(t, 1, succeeded)
	require.Equal(t, callers-1, processed)

	balance, err := f.ledger.Balance(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.EqualValues(t, 50, balance)

	history, err := f.ledger.History(ctx, f.buyer.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	fund, err := f.funds.Current(ctx)
	require.NoError(t, err)
	require.True(t, fund.Total.Equal(decimal.NewFromInt(25)), "fund total %s", fund.Total)
	require.True(t, f.partnerRow(t).DebtBalance.IsZero())

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventRemittanceConfirmed).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestAdminApproveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, remittance := f.registered(t, "1000", "100")

	_, err := f.svc.AdminApprove(context.Background(), remittance.ID, f.partnerActor())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
	require.Equal(t, enums.RemittanceStatusPending, f.remittanceRow(t, remittance.ID).Status)
}

func TestRegisterRemittanceValueMismatch(t *testing.T) {
	f := newFixture(t)
	purchase := f.approvedPurchase(t, "1000")

	_, err := f.svc.RegisterRemittance(context.Background(), RegisterRemittanceInput{
		PurchaseID: purchase.ID,
		Value:      decimal.NewFromInt(80),
		Actor:      f.partnerActor(),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValueMismatch), "got %v", err)
	require.Equal(t, enums.PurchaseStatusAwaitingRemittance, f.purchaseRow(t, purchase.ID).Status)
}

func TestRegisterRemittanceOnlyOncePerPurchase(t *testing.T) {
	f := newFixture(t)
	purchase, _ := f.registered(t, "1000", "100")

	_, err := f.svc.RegisterRemittance(context.Background(), RegisterRemittanceInput{
		PurchaseID: purchase.ID,
		Value:      decimal.NewFromInt(100),
		Actor:      f.partnerActor(),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Remittance{}).Where("purchase_id = ?", purchase.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRejectRemittanceLeavesDebt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchase, remittance := f.registered(t, "1000", "100")

	require.NoError(t, f.svc.RejectRemittance(ctx, remittance.ID, adminActor(), "bank transfer bounced"))
	require.Equal(t, enums.RemittanceStatusRejected, f.remittanceRow(t, remittance.ID).Status)
	require.Equal(t, enums.PurchaseStatusRejected, f.purchaseRow(t, purchase.ID).Status)
	require.True(t, f.partnerRow(t).DebtBalance.Equal(decimal.NewFromInt(100)))
	require.Contains(t, f.notifier.kinds(f.partner.OwnerUserID), enums.NotificationRemittanceDenied)
	require.Contains(t, f.notifier.kinds(f.buyer.ID), enums.NotificationRemittanceDenied)

	err := f.svc.RejectRemittance(ctx, remittance.ID, adminActor(), "again")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)

	_, err = f.svc.Confirm(ctx, remittance.ID, SystemActor("webhook"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)
	balance, err := f.ledger.Balance(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestRejectPurchaseClosesOpenRemittance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchase, remittance := f.registered(t, "1000", "100")

	require.NoError(t, f.svc.RejectPurchase(ctx, purchase.ID, adminActor(), "fraud"))
	require.Equal(t, enums.PurchaseStatusRejected, f.purchaseRow(t, purchase.ID).Status)
	require.Equal(t, enums.RemittanceStatusRejected, f.remittanceRow(t, remittance.ID).Status)

	err := f.svc.RejectPurchase(ctx, purchase.ID, adminActor(), "again")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)

	fresh := f.approvedPurchase(t, "500")
	require.NoError(t, f.svc.RejectPurchase(ctx, fresh.ID, adminActor(), ""))
	require.Equal(t, enums.PurchaseStatusRejected, f.purchaseRow(t, fresh.ID).Status)
}

func TestStartPaymentMovesToAwaitingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchase, remittance := f.registered(t, "1000", "100")

	charge, err := f.svc.StartPayment(ctx, remittance.ID, f.partnerActor(), "cnon:card")
	require.NoError(t, err)
	require.Equal(t, "sq_"+remittance.ID.String(), charge.PaymentID)

	rem := f.remittanceRow(t, remittance.ID)
	require.Equal(t, enums.RemittanceStatusAwaitingPayment, rem.Status)
	require.Equal(t, charge.PaymentID, *rem.ExternalPaymentID)
	require.Equal(t, enums.PaymentProviderSquare, *rem.Provider)
	require.True(t, rem.PaymentDeadline.Equal(fixedNow.Add(defaultPaymentWindow)))
	require.Equal(t, enums.PurchaseStatusAwaitingPayment, f.purchaseRow(t, purchase.ID).Status)

	found, err := f.svc.FindRemittanceByExternalID(ctx, charge.PaymentID)
	require.NoError(t, err)
	require.Equal(t, remittance.ID, found.ID)

	open, err := f.svc.ListAwaitingPayment(ctx, fixedNow, false, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	expired, err := f.svc.ListAwaitingPayment(ctx, fixedNow.Add(defaultPaymentWindow+time.Minute), true, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	_, err = f.svc.StartPayment(ctx, remittance.ID, f.partnerActor(), "cnon:card")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	require.Equal(t, 1, f.provider.calls)
}

func TestStartPaymentConfirmsApprovedCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.status = enums.PaymentStatusApproved
	purchase, remittance := f.registered(t, "1000", "100")

	_, err := f.svc.StartPayment(ctx, remittance.ID, f.partnerActor(), "cnon:card")
	require.NoError(t, err)
	require.Equal(t, enums.RemittanceStatusConfirmed, f.remittanceRow(t, remittance.ID).Status)
	require.Equal(t, enums.PurchaseStatusCashbackReleased, f.purchaseRow(t, purchase.ID).Status)
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SubmitRequest(ctx, SubmitRequestInput{BuyerID: f.buyer.ID, PartnerID: f.partner.ID, Amount: decimal.NewFromInt(300)})
	require.NoError(t, err)
	f.approvedPurchase(t, "400")
	f.registered(t, "1000", "100")

	pending, err := f.svc.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending.Requests, 1)
	require.Len(t, pending.Purchases, 1)
	require.Len(t, pending.Remittances, 1)
}

func TestFindRemittanceByExternalIDUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FindRemittanceByExternalID(context.Background(), "pay_missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}
