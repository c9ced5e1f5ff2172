package mail

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/provider"
)

const (
	resendProviderName = "resend"
	DefaultResendURL   = "https://api.resend.com"
)

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// ResendTransport sends mail through the Resend HTTP API.
type ResendTransport struct {
	client  *resty.Client
	baseURL string
}

func NewResendTransport(client *resty.Client, baseURL string) (*ResendTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	return &ResendTransport{client: client, baseURL: baseURL}, nil
}

func (t *ResendTransport) Send(ctx context.Context, settings domain.EmailSettings, msg Message) error {
	response, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(settings.ResendAPIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(resendRequest{
			From:    senderAddress(settings),
			To:      []string{strings.TrimSpace(msg.To)},
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		}).
		Post(t.baseURL + "/emails")
	if err != nil {
		return provider.RequestFailed(resendProviderName, err)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return provider.UnexpectedStatus(resendProviderName, statusCode, response.String())
}
