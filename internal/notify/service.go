package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/users"
)

const listLimit = 50

type Recipients interface {
	Get(ctx context.Context, userID string) (users.User, error)
}

type Service struct {
	store Store
	users Recipients
	email EmailSender
	sms   SMSSender
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store Store, rcpt Recipients, email EmailSender, sms SMSSender, log zerolog.Logger) *Service {
	return &Service{store: store, users: rcpt, email: email, sms: sms, log: log, now: time.Now}
}

// Notify writes the in-app record and then tries the outbound channels the
// user opted into. Channel failures are logged and dropped. An unknown user
// is a no-op.
func (s *Service) Notify(ctx context.Context, req Request) (*Notification, error) {
	const op = "notify.Notify"
	u, err := s.users.Get(ctx, req.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		s.log.Debug().Str("user_id", req.UserID).Str("type", req.Type).Msg("notify: unknown user, skipped")
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Type:      req.Type,
		Message:   req.Message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, *n); err != nil {
		return nil, apperr.Internal(op, err)
	}

	if u.Preferences.Email && req.Subject != "" && req.Body != "" {
		if err := s.email.SendEmail(ctx, u.Email, req.Subject, req.Body); err != nil {
			s.log.Warn().Err(err).Str("user_id", u.ID).Str("type", req.Type).Msg("email send failed")
		}
	}
	if u.Preferences.SMS && u.Phone != "" && req.SMSBody != "" {
		if err := s.sms.SendSMS(ctx, u.Phone, req.SMSBody); err != nil {
			s.log.Warn().Err(err).Str("user_id", u.ID).Str("type", req.Type).Msg("sms send failed")
		}
	}
	return n, nil
}

// Dispatch runs Notify and swallows its error.
func (s *Service) Dispatch(ctx context.Context, req Request) {
	if _, err := s.Notify(ctx, req); err != nil {
		s.log.Warn().Err(err).Str("user_id", req.UserID).Str("type", req.Type).Msg("notification dropped")
	}
}

func (s *Service) List(ctx context.Context, actor users.Identity) ([]Notification, error) {
	out, err := s.store.ListByUser(ctx, actor.UserID, listLimit)
	if err != nil {
		return nil, apperr.Internal("notify.List", err)
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, actor users.Identity, id string) error {
	const op = "notify.MarkRead"
	if err := apperr.CheckID(op, "notification id", id); err != nil {
		return err
	}
	err := s.store.MarkRead(ctx, actor.UserID, id)
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	if err != nil {
		return apperr.Internal(op, err)
	}
	return nil
}
