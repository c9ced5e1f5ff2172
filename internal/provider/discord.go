package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	discordProviderName = "discord"
	maxDiscordContent   = 2000
)

type discordMessage struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// DiscordNotifier posts plain messages to a Discord incoming webhook.
type DiscordNotifier struct {
	client   *resty.Client
	username string
}

func NewDiscordNotifier(client *resty.Client, username string) (*DiscordNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	ensureTimeout(client)

	return &DiscordNotifier{
		client:   client,
		username: strings.TrimSpace(username),
	}, nil
}

func (n *DiscordNotifier) Notify(ctx context.Context, webhookURL string, content string) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("discord notifier is not initialized")
	}

	endpoint := strings.TrimSpace(webhookURL)
	if endpoint == "" {
		return fmt.Errorf("discord webhook url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return fmt.Errorf("invalid discord webhook url: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("discord message content is required")
	}
	if utf8.RuneCountInString(content) > maxDiscordContent {
		content = string([]rune(content)[:maxDiscordContent])
	}

	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(discordMessage{Content: content, Username: n.username}).
		Post(endpoint)
	if err != nil {
		return RequestFailed(discordProviderName, err)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return UnexpectedStatus(discordProviderName, statusCode, response.String())
}
