package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
)

const (
	recaptchaProviderName = "recaptcha"
	DefaultRecaptchaURL   = "https://recaptchaenterprise.googleapis.com"
)

type recaptchaRequest struct {
	Event recaptchaEvent `json:"event"`
}

type recaptchaEvent struct {
	Token          string `json:"token"`
	SiteKey        string `json:"siteKey"`
	ExpectedAction string `json:"expectedAction,omitempty"`
}

type recaptchaResponse struct {
	TokenProperties struct {
		Valid         bool   `json:"valid"`
		InvalidReason string `json:"invalidReason"`
		Action        string `json:"action"`
	} `json:"tokenProperties"`
	RiskAnalysis struct {
		Score float64 `json:"score"`
	} `json:"riskAnalysis"`
}

// Assessment is the subset of a reCAPTCHA Enterprise assessment we act on.
type Assessment struct {
	Valid         bool
	InvalidReason string
	Action        string
	Score         float64
}

// Passed reports whether the token is valid, was minted for expectedAction
// and scored at least threshold.
func (a *Assessment) Passed(expectedAction string, threshold float64) bool {
	if a == nil || !a.Valid {
		return false
	}
	if expectedAction != "" && !strings.EqualFold(a.Action, expectedAction) {
		return false
	}
	return a.Score >= threshold
}

// RecaptchaAssessor creates reCAPTCHA Enterprise assessments.
type RecaptchaAssessor struct {
	client  *resty.Client
	baseURL string
}

func NewRecaptchaAssessor(client *resty.Client, baseURL string) (*RecaptchaAssessor, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	ensureTimeout(client)

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultRecaptchaURL
	}

	return &RecaptchaAssessor{client: client, baseURL: baseURL}, nil
}

func (a *RecaptchaAssessor) Assess(
	ctx context.Context,
	settings domain.RecaptchaSettings,
	token string,
	expectedAction string,
) (*Assessment, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("recaptcha assessor is not initialized")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return &Assessment{InvalidReason: "MISSING_TOKEN"}, nil
	}

	var result recaptchaResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("key", settings.APIKey).
		SetPathParam("project", settings.ProjectID).
		SetHeader("Content-Type", "application/json").
		SetBody(recaptchaRequest{Event: recaptchaEvent{
			Token:          token,
			SiteKey:        settings.SiteKey,
			ExpectedAction: expectedAction,
		}}).
		SetResult(&result).
		Post(a.baseURL + "/v1/projects/{project}/assessments")
	if err != nil {
		return nil, RequestFailed(recaptchaProviderName, err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, UnexpectedStatus(recaptchaProviderName, statusCode, response.String())
	}

	return &Assessment{
		Valid:         result.TokenProperties.Valid,
		InvalidReason: result.TokenProperties.InvalidReason,
		Action:        result.TokenProperties.Action,
		Score:         result.RiskAnalysis.Score,
	}, nil
}
