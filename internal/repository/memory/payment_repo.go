package memory

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type paymentRepository struct {
	mu       sync.Mutex
	payments map[primitive.ObjectID]*domain.Payment
	byTxID   map[string]primitive.ObjectID
}

// NewPaymentRepository creates an empty in-memory payment repository.
func NewPaymentRepository() repository.PaymentRepository {
	return &paymentRepository{
		payments: make(map[primitive.ObjectID]*domain.Payment),
		byTxID:   make(map[string]primitive.ObjectID),
	}
}

func copyPayment(p *domain.Payment) *domain.Payment {
	out := *p
	if p.PaymentInfo != nil {
		out.PaymentInfo = make(map[string]interface{}, len(p.PaymentInfo))
		for k, v := range p.PaymentInfo {
			out.PaymentInfo[k] = v
		}
	}
	if p.MembershipID != nil {
		id := *p.MembershipID
		out.MembershipID = &id
	}
	out.CompletedAt = copyTime(p.CompletedAt)
	out.FailedAt = copyTime(p.FailedAt)
	return &out
}

func (r *paymentRepository) Create(_ context.Context, payment *domain.Payment) (primitive.ObjectID, error) {
	if payment.TransactionID == "" {
		return primitive.NilObjectID, errors.New("payment requires a transactionId")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byTxID[payment.TransactionID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}

	payment.ID = primitive.NewObjectID()
	// Services stamp CreatedAt from their clock; default to wall time
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.UpdatedAt = payment.CreatedAt
	if payment.Status == "" {
		payment.Status = domain.PaymentPending
	}
	r.payments[payment.ID] = copyPayment(payment)
	r.byTxID[payment.TransactionID] = payment.ID
	return payment.ID, nil
}

func (r *paymentRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPayment(p), nil
}

func (r *paymentRepository) GetByTransactionID(_ context.Context, transactionID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byTxID[transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPayment(r.payments[id]), nil
}

func (r *paymentRepository) Transition(_ context.Context, transactionID string, from, to domain.PaymentStatus, info map[string]interface{}, now time.Time) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byTxID[transactionID]
	if !ok {
		return nil, repository.ErrConditionFailed
	}
	p := r.payments[id]
	if p.Status != from {
		return nil, repository.ErrConditionFailed
	}

	p.Status = to
	p.UpdatedAt = now
	if info != nil {
		p.PaymentInfo = info
	}
	switch to {
	case domain.PaymentCompleted:
		p.CompletedAt = timePtr(now)
	case domain.PaymentFailed, domain.PaymentCancelled:
		p.FailedAt = timePtr(now)
	}
	return copyPayment(p), nil
}

func (r *paymentRepository) SetMembership(_ context.Context, id, membershipID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.MembershipID = &membershipID
	p.UpdatedAt = time.Now().UTC()
	return nil
}

type paymentEventRepository struct {
	mu     sync.Mutex
	events map[primitive.ObjectID]*domain.PaymentEvent
}

// NewPaymentEventRepository creates an empty in-memory payment event log.
func NewPaymentEventRepository() repository.PaymentEventRepository {
	return &paymentEventRepository{events: make(map[primitive.ObjectID]*domain.PaymentEvent)}
}

func copyEvent(e *domain.PaymentEvent) *domain.PaymentEvent {
	out := *e
	if e.PaymentID != nil {
		id := *e.PaymentID
		out.PaymentID = &id
	}
	out.ProcessedAt = copyTime(e.ProcessedAt)
	return &out
}

func (r *paymentEventRepository) Create(_ context.Context, event *domain.PaymentEvent) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = primitive.NewObjectID()
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = domain.EventReceived
	}
	r.events[event.ID] = copyEvent(event)
	return event.ID, nil
}

func (r *paymentEventRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEvent(e), nil
}

func (r *paymentEventRepository) Finish(_ context.Context, id primitive.ObjectID, outcome domain.PaymentEventOutcome, errMsg string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Outcome = outcome
	if errMsg != "" {
		e.Error = errMsg
	}
	e.ProcessedAt = timePtr(now)
	return nil
}
