package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/projecthub/invited/internal/config"
	"github.com/projecthub/invited/pkg/request"
)

var ErrNotConfigured = errors.New("email service not configured")

type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

var _ Sender = &ResendClient{}

// ResendClient sends mail through the Resend HTTP API.
type ResendClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func NewResendClient(s config.EmailSettings, client *http.Client) (*ResendClient, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	if client == nil {
		client = &http.Client{Timeout: s.Timeout}
	}

	return &ResendClient{
		endpoint: s.Endpoint,
		apiKey:   s.APIKey,
		client:   client,
		logger:   slog.With("logger", "resend"),
	}, nil
}

func (c *ResendClient) Send(ctx context.Context, msg *Message) error {
	if c == nil || c.apiKey == "" {
		return ErrNotConfigured
	}

	err := request.New(c.client, c.logger).
		URL(c.endpoint + "/emails").
		Post().
		Token(c.apiKey).
		JSON(msg).
		Exec(ctx)

	if err != nil {
		var apiErr *request.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("send email: %w (%s)", err, string(apiErr.Body))
		}

		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
