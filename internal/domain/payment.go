package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus type for payment lifecycle
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is a gateway payment for a package purchase. TransactionID is the
// order reference sent to the gateway and echoed back on every notification;
// it is the reconciliation idempotency key.
type Payment struct {
	ID            primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	MemberID      primitive.ObjectID     `bson:"memberId" json:"memberId"`
	PackageID     primitive.ObjectID     `bson:"packageId" json:"packageId"`
	Amount        int64                  `bson:"amount" json:"amount"`
	Status        PaymentStatus          `bson:"status" json:"status"`
	TransactionID string                 `bson:"transactionId" json:"transactionId"` // Unique
	RequestID     string                 `bson:"requestId" json:"requestId"`
	PayURL        string                 `bson:"payUrl,omitempty" json:"payUrl,omitempty"`
	PaymentInfo   map[string]interface{} `bson:"paymentInfo,omitempty" json:"paymentInfo,omitempty"` // Opaque gateway payload
	MembershipID  *primitive.ObjectID    `bson:"membershipId,omitempty" json:"membershipId,omitempty"`
	CompletedAt   *time.Time             `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	FailedAt      *time.Time             `bson:"failedAt,omitempty" json:"failedAt,omitempty"`
	CreatedAt     time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// PaymentEventOutcome records what the reconciler did with one delivery.
type PaymentEventOutcome string

const (
	EventReceived  PaymentEventOutcome = "received"
	EventProcessed PaymentEventOutcome = "processed"
	EventDuplicate PaymentEventOutcome = "duplicate"
	EventRejected  PaymentEventOutcome = "rejected"
	EventFailed    PaymentEventOutcome = "failed"
)

// PaymentEvent is the log entry for one inbound gateway notification.
type PaymentEvent struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TransactionID  string              `bson:"transactionId" json:"transactionId"`
	PaymentID      *primitive.ObjectID `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Source         string              `bson:"source" json:"source"` // "ipn" or "redirect"
	ResultCode     int                 `bson:"resultCode" json:"resultCode"`
	SignatureValid bool                `bson:"signatureValid" json:"signatureValid"`
	Outcome        PaymentEventOutcome `bson:"outcome" json:"outcome"`
	Error          string              `bson:"error,omitempty" json:"error,omitempty"`
	ArchiveKey     string              `bson:"archiveKey,omitempty" json:"archiveKey,omitempty"` // Raw payload location in object storage
	ReceivedAt     time.Time           `bson:"receivedAt" json:"receivedAt"`
	ProcessedAt    *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}
