package notify

import (
	"context"
	"time"
)

// OTPMessage is a one-time code queued for delivery.
type OTPMessage struct {
	Email    string        `json:"email"`
	Code     string        `json:"code"`
	Validity time.Duration `json:"validity"`
}

// Notifier delivers a one-time code to its recipient.
type Notifier interface {
	NotifyOTP(ctx context.Context, msg OTPMessage) error
}

// NotifierFunc adapts a function to the [Notifier] interface.
type NotifierFunc func(ctx context.Context, msg OTPMessage) error

func (f NotifierFunc) NotifyOTP(ctx context.Context, msg OTPMessage) error {
	return f(ctx, msg)
}
