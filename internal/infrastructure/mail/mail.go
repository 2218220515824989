// Package mail delivers account emails. Delivery failures are reported to the
// caller, which decides whether they matter.
package mail

import (
	"context"
	"errors"
	"fmt"

	"hostel-hub.backend/internal/config"
)

// ErrDelivery wraps every transport failure.
var ErrDelivery = errors.New("mail delivery failed")

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender is the delivery transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the transport selected by cfg.Driver.
func NewSender(cfg config.MailConfig) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogSender(), nil
	case "smtp":
		return NewSMTPSender(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
