package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/domain"
	"merchant-update-gate/middleware/throttle/infra"
)

func TestExampleServer_PatchThenThrottle(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	gate := &application.Gate{Storage: infra.NewMemoryStorage(), Policy: domain.DefaultPolicy(), Logger: log}
	stats := infra.NewMemoryStatsStore()
	h := newHandler(gate, stats, log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/merchants/m_9", strings.NewReader(`{}`)))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"merchant_id":"m_9"`) {
		t.Fatalf("first patch: got %d %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Merchant-Update-Decision"); got != "allowed" {
		t.Fatalf("expected allowed decision header, got %q", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/merchants/m_9", strings.NewReader(`{}`)))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second patch: expected 429, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/merchants/m_9/update-status", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"reason":"cooldown"`) {
		t.Fatalf("status: got %d %s", rr.Code, rr.Body.String())
	}

	if tot := stats.Total(); tot.Allowed != 1 || tot.Denied != 1 {
		t.Fatalf("expected 1 allowed / 1 denied, got %+v", tot)
	}
}
