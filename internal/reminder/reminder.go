// Package reminder wraps the Twilio API for appointment reminder SMS.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"citabot/internal/i18n"
	"citabot/internal/models"
)

// DefaultLeadTime is how far ahead of the appointment start the reminder
// goes out.
const DefaultLeadTime = 24 * time.Hour

// Sender delivers a single SMS body to a phone number.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client sends SMS through the Twilio REST API.
type Client struct {
	client *twilio.RestClient
	from   string
}

// NewClient builds a Twilio SMS client. Unset options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("reminder.NewClient: Twilio config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{client: client, from: cfg.FromNumber}, nil
}

// SendSMS sends one SMS through Twilio.
func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Client.SendSMS: Twilio send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	slog.Debug("Client.SendSMS: SMS sent", "to", to)
	return nil
}

// MockSender records sent messages for tests.
type MockSender struct {
	mu   sync.Mutex
	Sent []SentSMS
}

// SentSMS is one recorded message.
type SentSMS struct {
	To   string
	Body string
}

// NewMockSender creates an empty mock sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) SendSMS(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentSMS{To: to, Body: body})
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockSender) Messages() []SentSMS {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentSMS, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// Service walks confirmed appointments and sends one reminder per
// appointment as its start time approaches. Delivery failures are logged and
// retried on the next pass.
type Service struct {
	sender   Sender
	leadTime time.Duration
	mu       sync.Mutex
	sent     map[string]bool
}

// NewService creates a reminder service on top of the given sender.
func NewService(sender Sender, leadTime time.Duration) *Service {
	if leadTime <= 0 {
		leadTime = DefaultLeadTime
	}
	return &Service{sender: sender, leadTime: leadTime, sent: make(map[string]bool)}
}

// Run sends reminders for every due appointment in the list and returns how
// many went out. An appointment is due when it is confirmed, opted in, has a
// phone number, and starts within the lead window.
func (s *Service) Run(ctx context.Context, appointments []models.Appointment, now time.Time) int {
	count := 0
	for _, a := range appointments {
		if !s.due(a, now) {
			continue
		}
		body := i18n.Textf(i18n.KeyReminderSMS, a.Language,
			a.ID, i18n.FormatDateTime(a.StartTime, a.Language, nil), a.Technician)
		if err := s.sender.SendSMS(ctx, a.Phone, body); err != nil {
			slog.Warn("Service.Run: reminder send failed, will retry", "id", a.ID, "error", err)
			continue
		}
		s.markSent(a.ID)
		count++
		slog.Info("Service.Run: reminder sent", "id", a.ID)
	}
	return count
}

func (s *Service) due(a models.Appointment, now time.Time) bool {
	if a.Status != models.AppointmentStatusConfirmed || !a.ReminderEnabled || a.Phone == "" {
		return false
	}
	if !a.StartTime.After(now) || a.StartTime.Sub(now) > s.leadTime {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.sent[a.ID]
}

func (s *Service) markSent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
}
