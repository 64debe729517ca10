package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsAndDrains(t *testing.T) {
	d := NewDispatcher(2, 10, time.Second)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, d.Submit("job", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.EqualValues(t, 5, ran.Load())

	assert.False(t, d.Submit("late", func(ctx context.Context) error { return nil }))
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, 1, time.Second)
	release := make(chan struct{})
	started := make(chan struct{})

	require.True(t, d.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.True(t, d.Submit("queued", func(ctx context.Context) error { return nil }))
	assert.False(t, d.Submit("dropped", func(ctx context.Context) error { return nil }))

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_SurvivesFailingJobs(t *testing.T) {
	d := NewDispatcher(1, 4, time.Second)
	var ok atomic.Bool

	d.Submit("error", func(ctx context.Context) error { return errors.New("smtp down") })
	d.Submit("panic", func(ctx context.Context) error { panic("boom") })
	d.Submit("after", func(ctx context.Context) error {
		ok.Store(true)
		return nil
	})
	require.NoError(t, d.Close(context.Background()))
	assert.True(t, ok.Load())
}

func TestDispatcher_JobTimeout(t *testing.T) {
	d := NewDispatcher(1, 1, 20*time.Millisecond)
	var deadlineHit atomic.Bool
	d.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		deadlineHit.Store(true)
		return ctx.Err()
	})
	require.NoError(t, d.Close(context.Background()))
	assert.True(t, deadlineHit.Load())
}

func TestGupshupSMS_Send(t *testing.T) {
	var got url.Values
	var apiKey, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("apikey")
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewGupshupSMS(config.SMSConfig{APIKey: "k-123", AppName: "WildWelcome", SourceNumber: "917834811114", BaseURL: srv.URL + "/"})
	require.NotNil(t, s)
	require.NoError(t, s.SendSMS(context.Background(), "+250 788-123-456", "hello"))

	assert.Equal(t, "/msg", path)
	assert.Equal(t, "k-123", apiKey)
	assert.Equal(t, "sms", got.Get("channel"))
	assert.Equal(t, "250788123456", got.Get("destination"))
	assert.Equal(t, "917834811114", got.Get("source"))
	assert.Equal(t, "hello", got.Get("message"))
	assert.Equal(t, "WildWelcome", got.Get("src.name"))
}

func TestGupshupSMS_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"error"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewGupshupSMS(config.SMSConfig{APIKey: "bad", BaseURL: srv.URL})
	err := s.SendSMS(context.Background(), "+250788123456", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	assert.Error(t, s.SendSMS(context.Background(), "n/a", "hello"))
	assert.Nil(t, NewGupshupSMS(config.SMSConfig{}))
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_KeysByBooking(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), Event{Type: EventBookingRequested, BookingID: "b1", Status: "pending", OccurredAt: at}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("b1"), w.msgs[0].Key)
	assert.Equal(t, at, w.msgs[0].Time)

	var e Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &e))
	assert.Equal(t, EventBookingRequested, e.Type)
	assert.Equal(t, "pending", e.Status)

	assert.Nil(t, NewKafkaPublisher(nil, "booking-events"))
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
}

func (m *recordingMailer) Send(ctx context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSMS) SendSMS(ctx context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+"|"+message)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEvents) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func notice(status string) BookingNotice {
	return BookingNotice{
		BookingID:     "b1",
		PropertyTitle: "Gorilla View Lodge",
		TenantName:    "Ada Lovelace",
		TenantEmail:   "ada@example.com",
		TenantPhone:   "+250788000111",
		LandlordName:  "Lan Lord",
		LandlordEmail: "host@example.com",
		CheckIn:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Guests:        2,
		TotalPrice:    480,
		Status:        status,
	}
}

func TestNotifier_BookingRequested(t *testing.T) {
	d := NewDispatcher(2, 16, time.Second)
	mailer, sms, events := &recordingMailer{}, &recordingSMS{}, &recordingEvents{}
	n := NewNotifier(d, Options{Mailer: mailer, SMS: sms, Events: events, FrontendURL: "https://wild.example"})

	n.BookingRequested(notice("pending"))
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, mailer.sent, 2)
	to := []string{mailer.sent[0].To, mailer.sent[1].To}
	assert.ElementsMatch(t, []string{"ada@example.com", "host@example.com"}, to)
	for _, m := range mailer.sent {
		assert.Contains(t, m.HTML, "Gorilla View Lodge")
		assert.Contains(t, m.HTML, "$480.00")
	}
	require.Len(t, sms.sent, 1)
	assert.True(t, strings.HasPrefix(sms.sent[0], "+250788000111|"))
	require.Len(t, events.events, 1)
	assert.Equal(t, EventBookingRequested, events.events[0].Type)
}

func TestNotifier_DecisionAndChange(t *testing.T) {
	d := NewDispatcher(1, 16, time.Second)
	mailer, events := &recordingMailer{}, &recordingEvents{}
	n := NewNotifier(d, Options{Mailer: mailer, Events: events})

	b := notice("confirmed")
	b.LandlordResponse = "<b>see you</b>"
	n.BookingDecided(b)
	n.BookingChanged(notice("cancelled"))
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Booking Confirmation - Wild Welcome", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "Booking Confirmed!")
	assert.Contains(t, mailer.sent[0].HTML, "&lt;b&gt;see you&lt;/b&gt;")

	require.Len(t, events.events, 2)
	assert.Equal(t, EventBookingConfirmed, events.events[0].Type)
	assert.Equal(t, EventBookingCancelled, events.events[1].Type)
}

func TestNotifier_Links(t *testing.T) {
	d := NewDispatcher(1, 4, time.Second)
	mailer := &recordingMailer{}
	n := NewNotifier(d, Options{Mailer: mailer, FrontendURL: "https://wild.example"})

	n.PasswordReset("ada@example.com", "tok.en")
	n.EmailVerification("ada@example.com", "Ada", "v-tok")
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[0].HTML, "https://wild.example/reset-password?token=tok.en")
	assert.Contains(t, mailer.sent[1].HTML, "https://wild.example/verify-email?token=v-tok")
}

func TestNotifier_UnconfiguredChannelsAreSkipped(t *testing.T) {
	d := NewDispatcher(1, 1, time.Second)
	var typedNil *SMTPMailer
	n := NewNotifier(d, Options{Mailer: typedNil, SMS: NewGupshupSMS(config.SMSConfig{}), Events: NewKafkaPublisher(nil, "")})

	n.Welcome("ada@example.com", "Ada")
	n.BookingRequested(notice("pending"))
	n.BookingDecided(notice("cancelled"))
	require.NoError(t, d.Close(context.Background()))
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("Wild Welcome", "noreply@example.com", Email{To: "ada@example.com", Subject: "Hi", HTML: "<p>x</p>"}))
	assert.Contains(t, msg, "To: ada@example.com\r\n")
	assert.Contains(t, msg, `Content-Type: text/html; charset="UTF-8"`)
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>x</p>"))

	assert.Nil(t, NewSMTPMailer(config.SMTPConfig{Host: "smtp.gmail.com", Port: 587}))
	assert.ErrorIs(t, (&SMTPMailer{}).Send(context.Background(), Email{}), errNoRecipient)
}
