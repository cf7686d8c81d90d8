package notify

import (
	"context"
	"time"
)

// Notification types.
const (
	TypeOrderConfirmation  = "order_confirmation"
	TypePaymentReceived    = "payment_received"
	TypeOrderShipped       = "order_shipped"
	TypeOrderDelivered     = "order_delivered"
	TypeOrderCancelled     = "order_cancelled"
	TypeTrackingUpdate     = "tracking_update"
	TypeNewReturnRequest   = "new_return_request"
	TypeReturnStatusUpdate = "return_status_update"
)

// Request asks for a user to be told about something. The in-app record is
// always written; Subject+Body and SMSBody are optional channel content.
type Request struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	SMSBody string `json:"sms_body,omitempty"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dispatcher delivers requests without reporting failure to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
