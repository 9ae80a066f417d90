// Package notify sends user-facing notifications. Delivery is best effort:
// callers fire and forget, and a failed send never changes a business outcome.
package notify

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies the template of a message.
type Kind string

const (
	AppointmentBooked    Kind = "appointment_booked"
	AppointmentCancelled Kind = "appointment_cancelled"
	AppointmentConfirmed Kind = "appointment_confirmed"
	MembershipActivated  Kind = "membership_activated"
)

// Message is one notification to one user.
type Message struct {
	Kind        Kind
	RecipientID primitive.ObjectID
	Subject     string
	Data        map[string]string
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the process log.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, msg Message) error {
	log.Printf("INFO: notify %s to %s: %s %v", msg.Kind, msg.RecipientID.Hex(), msg.Subject, msg.Data)
	return nil
}

// Dispatch sends msg in the background with its own timeout and logs failures.
func Dispatch(n Notifier, msg Message) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.Send(ctx, msg); err != nil {
			log.Printf("WARN: notification %s to %s failed: %v", msg.Kind, msg.RecipientID.Hex(), err)
		}
	}()
}
