package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/gateway"
	"alcyxob/gym-app/internal/notify"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification sources recorded on payment events.
const (
	SourceIPN      = "ipn"
	SourceRedirect = "redirect"
)

// PaymentGateway is the subset of the gateway client the service needs.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentResponse, error)
	Verify(n *gateway.Notification) bool
}

// PaymentOptions are fixed at startup.
type PaymentOptions struct {
	// AllowUnsigned accepts notifications whose signature does not verify.
	// main only sets it outside production.
	AllowUnsigned bool
	// ActivationGrace is how long a completed payment may stay without a
	// membership before a redelivery repairs it.
	ActivationGrace time.Duration
}

// CreatePaymentResult is returned to the member who starts a purchase.
type CreatePaymentResult struct {
	PaymentID     primitive.ObjectID `json:"paymentId"`
	MembershipID  primitive.ObjectID `json:"membershipId"`
	TransactionID string             `json:"transactionId"`
	PayURL        string             `json:"payUrl"`
}

// ReconcileResult describes what a notification did.
type ReconcileResult struct {
	Accepted      bool                 `json:"accepted"`
	Duplicate     bool                 `json:"duplicate"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus,omitempty"`
	MembershipID  *primitive.ObjectID  `json:"membershipId,omitempty"`
	EventID       primitive.ObjectID   `json:"eventId"`
}

type PaymentService interface {
	CreatePaymentRequest(ctx context.Context, memberID, packageID primitive.ObjectID) (*CreatePaymentResult, error)
	Reconcile(ctx context.Context, source string, n *gateway.Notification, raw []byte) (*ReconcileResult, error)
	GetEventArchiveURL(ctx context.Context, eventID primitive.ObjectID) (string, error)
}

type paymentService struct {
	paymentRepo    repository.PaymentRepository
	eventRepo      repository.PaymentEventRepository
	membershipRepo repository.MembershipRepository
	packageRepo    repository.PackageRepository
	userRepo       repository.UserRepository
	gateway        PaymentGateway
	archive        storage.FileStorage // nil disables the raw archive
	notifier       notify.Notifier
	clock          Clock
	opts           PaymentOptions
}

// NewPaymentService wires the payment request flow and the reconciler.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	eventRepo repository.PaymentEventRepository,
	membershipRepo repository.MembershipRepository,
	packageRepo repository.PackageRepository,
	userRepo repository.UserRepository,
	gw PaymentGateway,
	archive storage.FileStorage,
	notifier notify.Notifier,
	clock Clock,
	opts PaymentOptions,
) PaymentService {
	return &paymentService{
		paymentRepo:    paymentRepo,
		eventRepo:      eventRepo,
		membershipRepo: membershipRepo,
		packageRepo:    packageRepo,
		userRepo:       userRepo,
		gateway:        gw,
		archive:        archive,
		notifier:       notifier,
		clock:          clock,
		opts:           opts,
	}
}

func (s *paymentService) loadPackage(ctx context.Context, id primitive.ObjectID) (*domain.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return pkg, nil
}

func (s *paymentService) loadMember(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if !user.IsMember() {
		return nil, ErrMemberNotFound
	}
	return user, nil
}

// CreatePaymentRequest asks the gateway for a pay URL and records a pending
// payment plus a pending membership for the package.
func (s *paymentService) CreatePaymentRequest(ctx context.Context, memberID, packageID primitive.ObjectID) (*CreatePaymentResult, error) {
	// 1. Load and check package and member
	pkg, err := s.loadPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, fmt.Errorf("%w: package is not available for purchase", ErrInvalidInput)
	}
	if _, err := s.loadMember(ctx, memberID); err != nil {
		return nil, err
	}

	// 2. Order reference and extra data
	orderID := "GYM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	requestID := uuid.NewString()
	extra, err := gateway.EncodeExtraData(gateway.ExtraData{PackageID: packageID.Hex(), MemberID: memberID.Hex()})
	if err != nil {
		return nil, err
	}

	// 3. Gateway call; nothing is stored if it fails
	resp, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		OrderID:   orderID,
		RequestID: requestID,
		Amount:    pkg.Price,
		OrderInfo: "Membership: " + pkg.Name,
		ExtraData: extra,
	})
	if err != nil {
		log.Printf("ERROR: Payment request for order %s failed: %v", orderID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	// 4. Persist pending payment
	now := s.clock.Now()
	payment := &domain.Payment{
		MemberID:      memberID,
		PackageID:     packageID,
		Amount:        pkg.Price,
		Status:        domain.PaymentPending,
		TransactionID: orderID,
		RequestID:     requestID,
		PayURL:        resp.PayURL,
		CreatedAt:     now,
	}
	paymentID, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		return nil, err
	}

	// 5. Pending membership, reusing an earlier unpaid one
	membership, err := s.membershipRepo.FindPending(ctx, memberID, packageID)
	if errors.Is(err, repository.ErrNotFound) {
		membership = &domain.Membership{
			MemberID:     memberID,
			PackageID:    packageID,
			Status:       domain.MembershipPending,
			SessionGrant: pkg.TrainingSessions,
			CreatedAt:    now,
		}
		membership.ID, err = s.membershipRepo.Create(ctx, membership)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: Payment %s created for member %s, package %s, order %s", paymentID.Hex(), memberID.Hex(), packageID.Hex(), orderID)
	return &CreatePaymentResult{
		PaymentID:     paymentID,
		MembershipID:  membership.ID,
		TransactionID: orderID,
		PayURL:        resp.PayURL,
	}, nil
}

// Reconcile applies one gateway notification. Every delivery is logged as a
// PaymentEvent. The pending->completed transition is a compare-and-swap; only
// its winner activates the membership, so redeliveries and concurrent
// deliveries of the same transaction activate at most once.
func (s *paymentService) Reconcile(ctx context.Context, source string, n *gateway.Notification, raw []byte) (*ReconcileResult, error) {
	now := s.clock.Now()

	// 1. Signature
	signatureValid := s.gateway.Verify(n)
	accept := signatureValid || s.opts.AllowUnsigned

	// 2. Record the delivery. Only accepted bodies are archived.
	event := &domain.PaymentEvent{
		TransactionID:  n.OrderID,
		Source:         source,
		ResultCode:     n.ResultCode,
		SignatureValid: signatureValid,
		Outcome:        domain.EventReceived,
		ReceivedAt:     now,
	}
	if accept {
		event.ArchiveKey = s.archiveRaw(ctx, n.OrderID, raw)
	}
	eventID, err := s.eventRepo.Create(ctx, event)
	if err != nil {
		return nil, err
	}
	result := &ReconcileResult{EventID: eventID}

	if !accept {
		log.Printf("SECURITY: Rejected payment notification with invalid signature, order %q, source %s", n.OrderID, source)
		s.finish(eventID, domain.EventRejected, ErrInvalidSignature)
		return result, ErrInvalidSignature
	}
	if !signatureValid {
		log.Printf("WARN: Accepting unsigned payment notification for order %q (signature verification disabled)", n.OrderID)
	}

	// 3. Apply
	result, outcome, err := s.apply(ctx, n, now, result)
	s.finish(eventID, outcome, err)
	return result, err
}

func (s *paymentService) apply(ctx context.Context, n *gateway.Notification, now time.Time, result *ReconcileResult) (*ReconcileResult, domain.PaymentEventOutcome, error) {
	if n.OrderID == "" {
		return result, domain.EventRejected, fmt.Errorf("%w: orderId is required", ErrInvalidInput)
	}

	payment, err := s.paymentRepo.GetByTransactionID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("ERROR: Payment notification for unknown order %s", n.OrderID)
			return result, domain.EventFailed, ErrPaymentNotFound
		}
		return result, domain.EventFailed, err
	}
	if n.Amount != payment.Amount {
		return result, domain.EventRejected, fmt.Errorf("%w: amount %d does not match payment amount %d", ErrInvalidInput, n.Amount, payment.Amount)
	}

	if !n.Succeeded() {
		return s.applyFailure(ctx, n, payment, now, result)
	}

	// Success path: validate the payload fully before any mutation.
	extra, err := gateway.DecodeExtraData(n.ExtraData)
	if err != nil {
		return result, domain.EventRejected, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	packageID, err1 := primitive.ObjectIDFromHex(extra.PackageID)
	memberID, err2 := primitive.ObjectIDFromHex(extra.MemberID)
	if err1 != nil || err2 != nil {
		return result, domain.EventRejected, fmt.Errorf("%w: extra data ids are not valid object ids", ErrInvalidInput)
	}
	if packageID != payment.PackageID || memberID != payment.MemberID {
		return result, domain.EventRejected, fmt.Errorf("%w: extra data does not match the payment", ErrInvalidInput)
	}
	pkg, err := s.loadPackage(ctx, packageID)
	if err != nil {
		log.Printf("ERROR: Payment %s references missing package %s", n.OrderID, packageID.Hex())
		return result, domain.EventFailed, err
	}
	if _, err := s.loadMember(ctx, memberID); err != nil {
		log.Printf("ERROR: Payment %s references missing member %s", n.OrderID, memberID.Hex())
		return result, domain.EventFailed, err
	}

	// Idempotency gate
	completed, err := s.paymentRepo.Transition(ctx, n.OrderID, domain.PaymentPending, domain.PaymentCompleted, n.Info(), now)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return s.applyRedelivery(ctx, n.OrderID, pkg, now, result)
		}
		return result, domain.EventFailed, err
	}

	membership, err := s.activate(ctx, completed, pkg, now)
	if err != nil {
		log.Printf("ERROR: Payment %s completed but membership activation failed: %v", n.OrderID, err)
		return result, domain.EventFailed, err
	}
	log.Printf("INFO: Payment %s completed, membership %s active until %s", n.OrderID, membership.ID.Hex(), membership.EndDate.Format(time.RFC3339))

	result.Accepted = true
	result.PaymentStatus = domain.PaymentCompleted
	result.MembershipID = &membership.ID
	return result, domain.EventProcessed, nil
}

// applyFailure marks a pending payment failed. A completed payment is never
// downgraded.
func (s *paymentService) applyFailure(ctx context.Context, n *gateway.Notification, payment *domain.Payment, now time.Time, result *ReconcileResult) (*ReconcileResult, domain.PaymentEventOutcome, error) {
	result.Accepted = true
	if payment.Status != domain.PaymentPending {
		if payment.Status == domain.PaymentCompleted {
			log.Printf("WARN: Ignoring failure notification (result %d) for completed payment %s", n.ResultCode, n.OrderID)
		}
		result.Duplicate = true
		result.PaymentStatus = payment.Status
		result.MembershipID = payment.MembershipID
		return result, domain.EventDuplicate, nil
	}

	failed, err := s.paymentRepo.Transition(ctx, n.OrderID, domain.PaymentPending, domain.PaymentFailed, n.Info(), now)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			// A concurrent delivery settled it first
			current, getErr := s.paymentRepo.GetByTransactionID(ctx, n.OrderID)
			if getErr != nil {
				return result, domain.EventFailed, getErr
			}
			result.Duplicate = true
			result.PaymentStatus = current.Status
			result.MembershipID = current.MembershipID
			return result, domain.EventDuplicate, nil
		}
		return result, domain.EventFailed, err
	}
	log.Printf("INFO: Payment %s failed at gateway: result %d %s", n.OrderID, n.ResultCode, n.Message)
	result.PaymentStatus = failed.Status
	return result, domain.EventProcessed, nil
}

// applyRedelivery handles a success notification that lost the CAS: the
// payment is already settled.
func (s *paymentService) applyRedelivery(ctx context.Context, orderID string, pkg *domain.Package, now time.Time, result *ReconcileResult) (*ReconcileResult, domain.PaymentEventOutcome, error) {
	payment, err := s.paymentRepo.GetByTransactionID(ctx, orderID)
	if err != nil {
		return result, domain.EventFailed, err
	}
	if payment.Status != domain.PaymentCompleted {
		log.Printf("WARN: Success notification for payment %s already settled as %s", orderID, payment.Status)
		return result, domain.EventRejected, fmt.Errorf("%w: payment is %s", ErrPaymentAlreadySettled, payment.Status)
	}

	result.Accepted = true
	result.Duplicate = true
	result.PaymentStatus = payment.Status
	if payment.MembershipID != nil {
		result.MembershipID = payment.MembershipID
		return result, domain.EventDuplicate, nil
	}

	membership, err := s.membershipRepo.GetByPaymentID(ctx, payment.ID)
	if err == nil {
		s.linkMembership(ctx, payment.ID, membership.ID)
		result.MembershipID = &membership.ID
		return result, domain.EventDuplicate, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return result, domain.EventFailed, err
	}

	// Completed with no membership. Either the winner is still working, or it
	// died between the two writes; only repair once the grace period is over.
	if payment.CompletedAt == nil || now.Sub(*payment.CompletedAt) < s.opts.ActivationGrace {
		return result, domain.EventDuplicate, nil
	}
	log.Printf("WARN: Repairing payment %s: completed at %s without a membership", orderID, payment.CompletedAt.Format(time.RFC3339))
	membership, err = s.activate(ctx, payment, pkg, now)
	if err != nil {
		return result, domain.EventFailed, err
	}
	result.MembershipID = &membership.ID
	return result, domain.EventProcessed, nil
}

// activate turns the member's pending membership for the package into an
// active one, or creates one. The unique paymentId makes it idempotent.
func (s *paymentService) activate(ctx context.Context, payment *domain.Payment, pkg *domain.Package, now time.Time) (*domain.Membership, error) {
	endDate := now.AddDate(0, 0, pkg.DurationDays)
	in := repository.ActivateMembershipInput{
		MemberID:     payment.MemberID,
		PackageID:    payment.PackageID,
		PaymentID:    payment.ID,
		StartDate:    now,
		EndDate:      endDate,
		SessionGrant: pkg.TrainingSessions,
		Now:          now,
	}

	membership, err := s.membershipRepo.ActivatePending(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicate):
		membership, err = s.membershipRepo.GetByPaymentID(ctx, payment.ID)
	case errors.Is(err, repository.ErrNotFound):
		paymentID := payment.ID
		membership = &domain.Membership{
			MemberID:          payment.MemberID,
			PackageID:         payment.PackageID,
			PaymentID:         &paymentID,
			Status:            domain.MembershipActive,
			StartDate:         &now,
			EndDate:           &endDate,
			SessionGrant:      pkg.TrainingSessions,
			AvailableSessions: pkg.TrainingSessions,
			LastSessionsReset: now,
			CreatedAt:         now,
		}
		membership.ID, err = s.membershipRepo.Create(ctx, membership)
		if errors.Is(err, repository.ErrDuplicate) {
			membership, err = s.membershipRepo.GetByPaymentID(ctx, payment.ID)
		}
	}
	if err != nil {
		return nil, err
	}

	s.linkMembership(ctx, payment.ID, membership.ID)
	notify.Dispatch(s.notifier, notify.Message{
		Kind:        notify.MembershipActivated,
		RecipientID: payment.MemberID,
		Subject:     "Your membership is active",
		Data:        map[string]string{"membershipId": membership.ID.Hex(), "package": pkg.Name},
	})
	return membership, nil
}

func (s *paymentService) linkMembership(ctx context.Context, paymentID, membershipID primitive.ObjectID) {
	if err := s.paymentRepo.SetMembership(ctx, paymentID, membershipID); err != nil {
		// Redelivery finds the membership by paymentId anyway
		log.Printf("WARN: Failed to link payment %s to membership %s: %v", paymentID.Hex(), membershipID.Hex(), err)
	}
}

// archiveRaw stores the raw notification body and returns its key, or "".
func (s *paymentService) archiveRaw(ctx context.Context, orderID string, raw []byte) string {
	if s.archive == nil || len(raw) == 0 {
		return ""
	}
	folder := orderID
	if folder == "" {
		folder = "unknown"
	}
	key := fmt.Sprintf("payment-events/%s/%s.json", folder, uuid.NewString())
	if err := s.archive.PutObject(ctx, key, "application/json", raw); err != nil {
		log.Printf("WARN: Failed to archive payment notification for order %s: %v", orderID, err)
		return ""
	}
	return key
}

func (s *paymentService) finish(eventID primitive.ObjectID, outcome domain.PaymentEventOutcome, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	// Detached from the request so a dropped connection still records the outcome
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.eventRepo.Finish(ctx, eventID, outcome, msg, s.clock.Now()); err != nil {
		log.Printf("WARN: Failed to record outcome %s for payment event %s: %v", outcome, eventID.Hex(), err)
	}
}

// GetEventArchiveURL returns a short-lived download URL for an event's raw body.
func (s *paymentService) GetEventArchiveURL(ctx context.Context, eventID primitive.ObjectID) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveUnavailable
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrEventNotFound
		}
		return "", err
	}
	if event.ArchiveKey == "" {
		return "", fmt.Errorf("%w: event has no archived payload", ErrEventNotFound)
	}
	return s.archive.GeneratePresignedDownloadURL(ctx, event.ArchiveKey, storage.DefaultPresignedURLExpiry)
}
