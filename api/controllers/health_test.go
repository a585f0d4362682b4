package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/domeo/backoffice/pkg/config"
	"github.com/domeo/backoffice/pkg/logger"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg)(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if resp.Header().Get("X-Domeo-Env") != "dev" {
		t.Fatalf("missing env header")
	}
}

func TestHealthReadyReportsChecks(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	ok := pingerFunc(func(context.Context) error { return nil })

	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(),
		ReadinessCheck{Name: "database", Pinger: ok},
		ReadinessCheck{Name: "redis"},
	)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Checks["database"] != "ok" || envelope.Data.Checks["redis"] != "disabled" {
		t.Fatalf("unexpected checks %v", envelope.Data.Checks)
	}
}

func TestHealthReadyFailsOnDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	down := pingerFunc(func(context.Context) error { return errors.New("refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), ReadinessCheck{Name: "database", Pinger: down})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
