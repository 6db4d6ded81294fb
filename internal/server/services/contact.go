package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/folio/internal/logging"
)

// ContactSuccessMessage is returned to the visitor when the relay accepted
// the message.
const ContactSuccessMessage = "Thank you for your message! We'll get back to you soon."

const defaultService = "Not specified"

// ErrRelayRejected means the relay answered but refused the message.
var ErrRelayRejected = errors.New("relay rejected message")

// ContactMessage is a contact form submission.
type ContactMessage struct {
	Name        string
	Email       string
	Service     string
	Description string
}

// Validate applies the form rules and fills in defaults.
func (m *ContactMessage) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Service = strings.TrimSpace(m.Service)
	m.Description = strings.TrimSpace(m.Description)

	errs := FieldErrors{}
	switch {
	case m.Name == "":
		errs["name"] = "Name is required"
	case len([]rune(m.Name)) < 2:
		errs["name"] = "Name must be at least 2 characters"
	}
	switch {
	case m.Email == "":
		errs["email"] = "Email is required"
	case !emailRe.MatchString(m.Email):
		errs["email"] = "Please enter a valid email address"
	}
	switch {
	case m.Description == "":
		errs["description"] = "Description is required"
	case len([]rune(m.Description)) < 10:
		errs["description"] = "Description must be at least 10 characters"
	}
	if m.Service == "" {
		m.Service = defaultService
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ContactService forwards contact form submissions to a form relay.
type ContactService struct {
	relayURL  string
	accessKey string
	client    *http.Client
	logger    logging.Logger
}

func NewContactService(relayURL, accessKey string, client *http.Client, logger logging.Logger) *ContactService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ContactService{
		relayURL:  relayURL,
		accessKey: accessKey,
		client:    client,
		logger:    logger.With("module", "contact"),
	}
}

type relayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Send validates m and relays it. The returned string is the message to
// show the visitor.
func (s *ContactService) Send(ctx context.Context, m ContactMessage) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("access_key", s.accessKey)
	form.Set("name", m.Name)
	form.Set("email", m.Email)
	form.Set("service", m.Service)
	form.Set("message", m.Description)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact relay: %w", err)
	}
	defer resp.Body.Close()

	var out relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("contact relay: status %d: %w", resp.StatusCode, err)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "Something went wrong. Please try again."
		}
		s.logger.Warn(ctx, "contact relay refused message", "status", resp.StatusCode, "message", out.Message)
		return "", fmt.Errorf("%w: %s", ErrRelayRejected, msg)
	}

	s.logger.Info(ctx, "contact message relayed")
	return ContactSuccessMessage, nil
}
