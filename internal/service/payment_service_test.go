package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/gateway"
	"alcyxob/gym-app/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stubGateway signs and verifies like the real client but never calls out.
type stubGateway struct {
	*gateway.Client
	mu       sync.Mutex
	requests []gateway.PaymentRequest
	err      error
}

func newStubGateway() *stubGateway {
	return &stubGateway{Client: gateway.NewClient(gateway.Config{
		PartnerCode: "GYMTEST",
		AccessKey:   "access",
		SecretKey:   "secret",
	})}
}

func (g *stubGateway) CreatePayment(_ context.Context, req gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.PaymentResponse{OrderID: req.OrderID, PayURL: "https://pay.example.com/" + req.OrderID}, nil
}

type paymentFixture struct {
	env     *testEnv
	gw      *stubGateway
	archive *storage.MemoryStorage
	svc     PaymentService
	member  domain.Actor
	pkg     *domain.Package
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &paymentFixture{
		env:     env,
		gw:      newStubGateway(),
		archive: storage.NewMemoryStorage(),
		member:  env.addUser(t, domain.RoleMember),
		pkg:     &domain.Package{Name: "Monthly 8", Price: 500000, DurationDays: 30, TrainingSessions: 8, Active: true},
	}
	if _, err := env.packages.Create(context.Background(), f.pkg); err != nil {
		t.Fatal(err)
	}
	f.svc = NewPaymentService(env.payments, env.events, env.memberships, env.packages, env.users,
		f.gw, f.archive, nil, env.clock, PaymentOptions{ActivationGrace: 2 * time.Minute})
	return f
}

func (f *paymentFixture) request(t *testing.T) *CreatePaymentResult {
	t.Helper()
	res, err := f.svc.CreatePaymentRequest(context.Background(), f.member.ID, f.pkg.ID)
	if err != nil {
		t.Fatalf("create payment request: %v", err)
	}
	return res
}

// notification builds a signed gateway callback for the request.
func (f *paymentFixture) notification(t *testing.T, res *CreatePaymentResult, resultCode int) *gateway.Notification {
	t.Helper()
	f.gw.mu.Lock()
	var req gateway.PaymentRequest
	for _, r := range f.gw.requests {
		if r.OrderID == res.TransactionID {
			req = r
		}
	}
	f.gw.mu.Unlock()

	n := &gateway.Notification{
		PartnerCode:  "GYMTEST",
		OrderID:      req.OrderID,
		RequestID:    req.RequestID,
		Amount:       req.Amount,
		OrderInfo:    req.OrderInfo,
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   resultCode,
		Message:      "ok",
		PayType:      "qr",
		ResponseTime: 1741000000000,
		ExtraData:    req.ExtraData,
	}
	f.gw.Sign(n)
	return n
}

func rawBody(t *testing.T, n *gateway.Notification) []byte {
	t.Helper()
	b, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCreatePaymentRequest(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)

	if !strings.HasPrefix(res.TransactionID, "GYM-") {
		t.Errorf("transaction id = %q", res.TransactionID)
	}
	if res.PayURL == "" {
		t.Error("empty pay url")
	}

	payment, err := f.env.payments.GetByID(context.Background(), res.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if payment.Status != domain.PaymentPending || payment.Amount != f.pkg.Price {
		t.Errorf("payment = %s %d", payment.Status, payment.Amount)
	}
	m, err := f.env.memberships.GetByID(context.Background(), res.MembershipID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != domain.MembershipPending {
		t.Errorf("membership status = %s, want pending", m.Status)
	}

	extra, err := gateway.DecodeExtraData(f.gw.requests[0].ExtraData)
	if err != nil {
		t.Fatal(err)
	}
	if extra.MemberID != f.member.ID.Hex() || extra.PackageID != f.pkg.ID.Hex() {
		t.Errorf("extra data = %+v", extra)
	}

	// A second attempt reuses the pending membership.
	again := f.request(t)
	if again.MembershipID != res.MembershipID {
		t.Errorf("second request created a new pending membership")
	}
}

func TestCreatePaymentRequestErrors(t *testing.T) {
	f := newPaymentFixture(t)
	if _, err := f.svc.CreatePaymentRequest(context.Background(), f.member.ID, primitive.NewObjectID()); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("unknown package err = %v", err)
	}
	if _, err := f.svc.CreatePaymentRequest(context.Background(), primitive.NewObjectID(), f.pkg.ID); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("unknown member err = %v", err)
	}
	f.gw.err = gateway.ErrGatewayRejected
	if _, err := f.svc.CreatePaymentRequest(context.Background(), f.member.ID, f.pkg.ID); !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("gateway failure err = %v", err)
	}
}

func TestReconcileConcurrentDeliveriesActivateOnce(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)
	n := f.notification(t, res, gateway.ResultSuccess)
	raw := rawBody(t, n)

	const deliveries = 12
	var wg sync.WaitGroup
	results := make([]*ReconcileResult, deliveries)
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			copyN := *n
			source := SourceIPN
			if i%2 == 1 {
				source = SourceRedirect
			}
			results[i], errs[i] = f.svc.Reconcile(context.Background(), source, &copyN, raw)
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("delivery %d: %v", i, errs[i])
		}
		if !results[i].Duplicate {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("non-duplicate deliveries = %d, want 1", fresh)
	}

	memberships, err := f.env.memberships.ListByMember(context.Background(), f.member.ID)
	if err != nil {
		t.Fatal(err)
	}
	active := 0
	for _, m := range memberships {
		if m.Status == domain.MembershipActive {
			active++
			if m.AvailableSessions != 8 || m.SessionGrant != 8 {
				t.Errorf("sessions = %d/%d, want 8/8", m.AvailableSessions, m.SessionGrant)
			}
			if m.PaymentID == nil || *m.PaymentID != res.PaymentID {
				t.Errorf("membership not linked to payment")
			}
		}
	}
	if active != 1 || len(memberships) != 1 {
		t.Errorf("memberships = %d (active %d), want 1 activated", len(memberships), active)
	}

	payment, err := f.env.payments.GetByID(context.Background(), res.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if payment.Status != domain.PaymentCompleted || payment.MembershipID == nil || *payment.MembershipID != res.MembershipID {
		t.Errorf("payment = %s membership=%v", payment.Status, payment.MembershipID)
	}
}

func TestReconcileRejectsInvalidSignature(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)
	n := f.notification(t, res, gateway.ResultSuccess)
	n.Amount = 1 // tampered after signing

	out, err := f.svc.Reconcile(context.Background(), SourceIPN, n, rawBody(t, n))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	event, err := f.env.events.GetByID(context.Background(), out.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if event.Outcome != domain.EventRejected || event.SignatureValid {
		t.Errorf("event = %s valid=%v", event.Outcome, event.SignatureValid)
	}
	if event.ArchiveKey != "" || f.archive.Len() != 0 {
		t.Errorf("unverified body archived: key=%q objects=%d", event.ArchiveKey, f.archive.Len())
	}
	payment, _ := f.env.payments.GetByID(context.Background(), res.PaymentID)
	if payment.Status != domain.PaymentPending {
		t.Errorf("payment status = %s, want pending", payment.Status)
	}
}

func TestReconcileUnsignedAllowedWhenConfigured(t *testing.T) {
	f := newPaymentFixture(t)
	f.svc = NewPaymentService(f.env.payments, f.env.events, f.env.memberships, f.env.packages, f.env.users,
		f.gw, f.archive, nil, f.env.clock, PaymentOptions{AllowUnsigned: true})
	res := f.request(t)
	n := f.notification(t, res, gateway.ResultSuccess)
	n.Signature = ""

	out, err := f.svc.Reconcile(context.Background(), SourceRedirect, n, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.PaymentStatus != domain.PaymentCompleted {
		t.Errorf("status = %s", out.PaymentStatus)
	}
}

func TestReconcileValidationFailures(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)

	t.Run("amount mismatch", func(t *testing.T) {
		n := f.notification(t, res, gateway.ResultSuccess)
		n.Amount = f.pkg.Price - 1
		f.gw.Sign(n)
		if _, err := f.svc.Reconcile(context.Background(), SourceIPN, n, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("extra data for another member", func(t *testing.T) {
		n := f.notification(t, res, gateway.ResultSuccess)
		n.ExtraData, _ = gateway.EncodeExtraData(gateway.ExtraData{PackageID: f.pkg.ID.Hex(), MemberID: primitive.NewObjectID().Hex()})
		f.gw.Sign(n)
		if _, err := f.svc.Reconcile(context.Background(), SourceIPN, n, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		n := f.notification(t, res, gateway.ResultSuccess)
		n.OrderID = "GYM-UNKNOWN"
		f.gw.Sign(n)
		if _, err := f.svc.Reconcile(context.Background(), SourceIPN, n, nil); !errors.Is(err, ErrPaymentNotFound) {
			t.Errorf("err = %v, want ErrPaymentNotFound", err)
		}
	})

	payment, _ := f.env.payments.GetByID(context.Background(), res.PaymentID)
	if payment.Status != domain.PaymentPending {
		t.Errorf("payment mutated by rejected notifications: %s", payment.Status)
	}
}

func TestReconcileFailureThenSuccess(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)

	failed, err := f.svc.Reconcile(context.Background(), SourceIPN, f.notification(t, res, 1006), nil)
	if err != nil {
		t.Fatal(err)
	}
	if failed.PaymentStatus != domain.PaymentFailed {
		t.Errorf("status = %s, want failed", failed.PaymentStatus)
	}

	if _, err := f.svc.Reconcile(context.Background(), SourceIPN, f.notification(t, res, gateway.ResultSuccess), nil); !errors.Is(err, ErrPaymentAlreadySettled) {
		t.Errorf("late success err = %v, want ErrPaymentAlreadySettled", err)
	}
	m, _ := f.env.memberships.GetByID(context.Background(), res.MembershipID)
	if m.Status != domain.MembershipPending {
		t.Errorf("membership = %s, want pending", m.Status)
	}
}

func TestReconcileNeverDowngradesCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)
	if _, err := f.svc.Reconcile(context.Background(), SourceIPN, f.notification(t, res, gateway.ResultSuccess), nil); err != nil {
		t.Fatal(err)
	}

	out, err := f.svc.Reconcile(context.Background(), SourceRedirect, f.notification(t, res, 1006), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Duplicate || out.PaymentStatus != domain.PaymentCompleted {
		t.Errorf("failure after success = %+v", out)
	}
}

func TestReconcileRepairsMissingActivation(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)
	n := f.notification(t, res, gateway.ResultSuccess)

	// Simulate a crash between the payment transition and the activation.
	if _, err := f.env.payments.Transition(context.Background(), res.TransactionID, domain.PaymentPending, domain.PaymentCompleted, n.Info(), f.env.clock.Now()); err != nil {
		t.Fatal(err)
	}

	// Inside the grace period a redelivery leaves it alone.
	out, err := f.svc.Reconcile(context.Background(), SourceIPN, n, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.MembershipID != nil {
		t.Fatalf("activated inside grace period")
	}

	f.env.clock.Advance(5 * time.Minute)
	out, err = f.svc.Reconcile(context.Background(), SourceIPN, n, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.MembershipID == nil || *out.MembershipID != res.MembershipID {
		t.Fatalf("repair membership = %v, want %s", out.MembershipID, res.MembershipID.Hex())
	}
	m, _ := f.env.memberships.GetByID(context.Background(), res.MembershipID)
	if m.Status != domain.MembershipActive {
		t.Errorf("membership = %s, want active", m.Status)
	}
}

func TestReconcileArchivesRawBody(t *testing.T) {
	f := newPaymentFixture(t)
	res := f.request(t)
	n := f.notification(t, res, gateway.ResultSuccess)
	raw := rawBody(t, n)

	out, err := f.svc.Reconcile(context.Background(), SourceIPN, n, raw)
	if err != nil {
		t.Fatal(err)
	}
	event, err := f.env.events.GetByID(context.Background(), out.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if event.Outcome != domain.EventProcessed {
		t.Errorf("outcome = %s, want processed", event.Outcome)
	}
	stored, ok := f.archive.Object(event.ArchiveKey)
	if !ok || string(stored) != string(raw) {
		t.Fatalf("archive %q missing or different", event.ArchiveKey)
	}

	url, err := f.svc.GetEventArchiveURL(context.Background(), out.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if url != "memory://"+event.ArchiveKey {
		t.Errorf("url = %q", url)
	}
}
