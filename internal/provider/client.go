package provider

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns a resty client with an explicit timeout and no
// implicit retries; callers opt into retries per integration.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	return client
}

func ensureTimeout(client *resty.Client) {
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultTimeout)
	}
}
