package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"github.com/kursadbilgin/donation-engine/internal/service"
)

func TestCronIntegration_RunDrip(t *testing.T) {
	t.Parallel()

	runner := &stubDripRunner{
		runFn: func(ctx context.Context) (*service.DripRunResult, error) {
			return &service.DripRunResult{
				Status: service.DripRunCompleted,
				Steps: []service.DripStepResult{
					{Step: domain.DripStepSecond, Sent: 1},
					{Step: domain.DripStepFirst, Sent: 2, Failed: 1},
				},
			}, nil
		},
	}
	app := newTestApp()
	if err := RegisterCronRoutes(app, runner, "cron-secret"); err != nil {
		t.Fatalf("RegisterCronRoutes() error = %v", err)
	}

	resp, body := performRequestWithHeaders(t, app, http.MethodPost, "/v1/cron/drip", "", map[string]string{
		fiber.HeaderAuthorization: "Bearer cron-secret",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed dripRunResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Status != "completed" || parsed.Processed != 3 || len(parsed.Steps) != 2 {
		t.Fatalf("response = %+v", parsed)
	}
}

func TestCronIntegration_Authorization(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		secret string
		header string
	}{
		{name: "missing header", secret: "cron-secret"},
		{name: "wrong token", secret: "cron-secret", header: "Bearer guess"},
		{name: "basic scheme", secret: "cron-secret", header: "Basic Y3Jvbi1zZWNyZXQ="},
		{name: "secret not configured", secret: "", header: "Bearer "},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			runner := &stubDripRunner{runFn: func(ctx context.Context) (*service.DripRunResult, error) {
				t.Error("unauthorized request reached the drip runner")
				return nil, errors.New("unreachable")
			}}
			app := newTestApp()
			if err := RegisterCronRoutes(app, runner, tc.secret); err != nil {
				t.Fatalf("RegisterCronRoutes() error = %v", err)
			}

			headers := map[string]string{}
			if tc.header != "" {
				headers[fiber.HeaderAuthorization] = tc.header
			}
			resp, _ := performRequestWithHeaders(t, app, http.MethodPost, "/v1/cron/drip", "", headers)
			if resp.StatusCode != fiber.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestCronIntegration_RunFatalError(t *testing.T) {
	t.Parallel()

	runner := &stubDripRunner{runFn: func(ctx context.Context) (*service.DripRunResult, error) {
		return nil, domain.ErrConfigMissing
	}}
	app := newTestApp()
	if err := RegisterCronRoutes(app, runner, "cron-secret"); err != nil {
		t.Fatalf("RegisterCronRoutes() error = %v", err)
	}

	resp, _ := performRequestWithHeaders(t, app, http.MethodPost, "/v1/cron/drip", "", map[string]string{
		fiber.HeaderAuthorization: "Bearer cron-secret",
	})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
