package notify

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier turns account and booking events into queued email, SMS and
// event-stream jobs. Any channel may be nil, in which case it is skipped.
type Notifier struct {
	dispatcher  *Dispatcher
	mailer      Mailer
	sms         SMSSender
	events      Publisher
	frontendURL string
	now         func() time.Time
}

// Options configures a Notifier.
type Options struct {
	Mailer      Mailer
	SMS         SMSSender
	Events      Publisher
	FrontendURL string
}

// NewNotifier returns a Notifier submitting work to d.
func NewNotifier(d *Dispatcher, opts Options) *Notifier {
	n := &Notifier{
		dispatcher:  d,
		frontendURL: opts.FrontendURL,
		now:         time.Now,
	}
	// typed nil pointers must not be stored as non-nil interfaces
	if !isNil(opts.Mailer) {
		n.mailer = opts.Mailer
	}
	if !isNil(opts.SMS) {
		n.sms = opts.SMS
	}
	if !isNil(opts.Events) {
		n.events = opts.Events
	}
	return n
}

func isNil(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *SMTPMailer:
		return x == nil
	case *GupshupSMS:
		return x == nil
	case *KafkaPublisher:
		return x == nil
	}
	return false
}

// Welcome greets a newly registered user.
func (n *Notifier) Welcome(email, name string) {
	n.email("welcome", email, "Welcome to Wild Welcome!", struct{ Name string }{name})
}

// EmailVerification sends the verify-email link.
func (n *Notifier) EmailVerification(email, name, token string) {
	n.email("verify", email, "Verify your email - Wild Welcome", struct{ Name, Link string }{
		Name: name,
		Link: n.link("/verify-email", token),
	})
}

// PasswordReset sends the reset-password link.
func (n *Notifier) PasswordReset(email, token string) {
	n.email("reset", email, "Password Reset - Wild Welcome", struct{ Link string }{
		Link: n.link("/reset-password", token),
	})
}

// BookingRequested tells the tenant the request was received, by email and
// by SMS when a phone is known, and tells the landlord a request is waiting.
func (n *Notifier) BookingRequested(b BookingNotice) {
	n.email("booking_tenant", b.TenantEmail, "Booking Request Received - Wild Welcome", b)
	n.text(b.TenantPhone, bookingRequestSMS(b))
	n.email("booking_landlord", b.LandlordEmail, "New Booking Request - Wild Welcome", b)
	n.publish(EventBookingRequested, b)
}

// BookingDecided tells the tenant whether the landlord approved or rejected
// the request.
func (n *Notifier) BookingDecided(b BookingNotice) {
	subject := "Booking Declined - Wild Welcome"
	event := EventBookingRejected
	if b.Status == "confirmed" {
		subject = "Booking Confirmation - Wild Welcome"
		event = EventBookingConfirmed
	}
	n.email("booking_decision", b.TenantEmail, subject, b)
	n.text(b.TenantPhone, bookingDecisionSMS(b))
	n.publish(event, b)
}

// BookingChanged records a tenant update or cancellation on the event stream.
func (n *Notifier) BookingChanged(b BookingNotice) {
	event := EventBookingUpdated
	if b.Status == "cancelled" {
		event = EventBookingCancelled
	}
	n.publish(event, b)
}

func (n *Notifier) link(path, token string) string {
	return n.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (n *Notifier) email(tmpl, to, subject string, data any) {
	if to == "" {
		return
	}
	if n.mailer == nil {
		log.Debug().Str("template", tmpl).Msg("email skipped: mailer not configured")
		return
	}
	html, err := render(tmpl, data)
	if err != nil {
		log.Error().Err(err).Str("template", tmpl).Msg("render email")
		return
	}
	mailer := n.mailer
	n.dispatcher.Submit("email:"+tmpl, func(ctx context.Context) error {
		return mailer.Send(ctx, Email{To: to, Subject: subject, HTML: html})
	})
}

func (n *Notifier) text(phone, message string) {
	if phone == "" || n.sms == nil {
		return
	}
	sms := n.sms
	n.dispatcher.Submit("sms", func(ctx context.Context) error {
		return sms.SendSMS(ctx, phone, message)
	})
}

func (n *Notifier) publish(kind string, b BookingNotice) {
	if n.events == nil {
		return
	}
	e := Event{
		Type:       kind,
		BookingID:  b.BookingID,
		PropertyID: b.PropertyID,
		UserID:     b.TenantID,
		Status:     b.Status,
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
		OccurredAt: n.now().UTC(),
	}
	events := n.events
	n.dispatcher.Submit("event:"+kind, func(ctx context.Context) error {
		return events.Publish(ctx, e)
	})
}
