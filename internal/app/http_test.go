package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nosotros/api/internal/challenges"
	"nosotros/api/internal/couple"
	"nosotros/api/internal/pairing"
	"nosotros/api/internal/pet"
	"nosotros/api/internal/plans"
	"nosotros/api/internal/reasons"
	"nosotros/api/internal/session"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) (int, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestPlanRoutes(t *testing.T) {
	svc := newTestService(t, openTestStore(t), session.NewMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	status, env := doJSON(t, handler, http.MethodPost, "/api/pair/create", nil)
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("create couple: %d %+v", status, env)
	}

	status, env = doJSON(t, handler, http.MethodPost, "/api/plans", plans.Input{Titulo: "Karaoke", Categoria: "fiesta"})
	if status != http.StatusCreated {
		t.Fatalf("add plan: %d %+v", status, env)
	}
	var plan couple.Plan
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}

	status, env = doJSON(t, handler, http.MethodPost, "/api/calendar", map[string]string{"planId": plan.ID, "fecha": "2026-02-14"})
	if status != http.StatusCreated && status != http.StatusOK {
		t.Fatalf("schedule: %d %+v", status, env)
	}
	status, env = doJSON(t, handler, http.MethodPost, "/api/calendar", map[string]string{"planId": plan.ID, "fecha": "14/02/2026"})
	if status != http.StatusUnprocessableEntity || env.Code != "VALIDATION_ERROR" {
		t.Fatalf("schedule with bad date: %d %+v", status, env)
	}

	status, env = doJSON(t, handler, http.MethodGet, "/api/calendar?date=2026-02-14", nil)
	if status != http.StatusOK || !strings.Contains(string(env.Data), plan.ID) {
		t.Fatalf("calendar: %d %s", status, env.Data)
	}

	status, env = doJSON(t, handler, http.MethodPost, "/api/roulette/spin", nil)
	if status != http.StatusOK || !strings.Contains(string(env.Data), "Karaoke") {
		t.Fatalf("spin: %d %+v", status, env)
	}

	status, env = doJSON(t, handler, http.MethodDelete, "/api/plans/missing", nil)
	if status != http.StatusNotFound || env.Success {
		t.Fatalf("delete missing plan: %d %+v", status, env)
	}
}

func TestUnpairedRequestsAreRejected(t *testing.T) {
	svc := newTestService(t, openTestStore(t), session.NewMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	status, env := doJSON(t, handler, http.MethodGet, "/api/notes", nil)
	if status != http.StatusConflict || env.Code != "NOT_PAIRED" || env.Error != pairing.ErrNotPaired.Error() {
		t.Fatalf("notes while unpaired: %d %+v", status, env)
	}

	status, env = doJSON(t, handler, http.MethodPost, "/api/pair/join", map[string]string{"code": "NOPE00"})
	if status != http.StatusNotFound || env.Code != "COUPLE_NOT_FOUND" {
		t.Fatalf("join unknown code: %d %+v", status, env)
	}
}

func TestOnlyTheAuthorEditsAReason(t *testing.T) {
	a, b, _ := pairedDevices(t)
	handlerA := NewHTTPServer(a, "*").Handler()
	handlerB := NewHTTPServer(b, "*").Handler()

	users, _ := b.Users()
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	status, env := doJSON(t, handlerB, http.MethodPost, "/api/users/select", map[string]string{"userId": users[1].ID})
	if status != http.StatusOK {
		t.Fatalf("select user: %d %+v", status, env)
	}

	status, env = doJSON(t, handlerA, http.MethodPost, "/api/reasons", map[string]string{"texto": "por tus abrazos"})
	if status != http.StatusCreated {
		t.Fatalf("add reason: %d %+v", status, env)
	}
	var reason couple.Reason
	if err := json.Unmarshal(env.Data, &reason); err != nil {
		t.Fatalf("decode reason: %v", err)
	}

	require.Eventually(t, func() bool {
		doc := b.State().Document
		return doc != nil && len(doc.Razones) == 1
	}, waitFor, tick)

	status, env = doJSON(t, handlerB, http.MethodPut, "/api/reasons/"+reason.ID, map[string]string{"texto": "cambiada"})
	if status != http.StatusForbidden || env.Code != "NOT_AUTHOR" {
		t.Fatalf("edit by partner: %d %+v", status, env)
	}
	status, env = doJSON(t, handlerA, http.MethodPut, "/api/reasons/"+reason.ID, map[string]string{"texto": "por tus abrazos largos"})
	if status != http.StatusOK {
		t.Fatalf("edit by author: %d %+v", status, env)
	}
}

func TestPetCooldownDetails(t *testing.T) {
	a, _, _ := pairedDevices(t)
	handler := NewHTTPServer(a, "*").Handler()

	status, env := doJSON(t, handler, http.MethodPost, "/api/pet/interact", map[string]string{"tipo": pet.Feed})
	if status != http.StatusOK {
		t.Fatalf("first interaction: %d %+v", status, env)
	}
	status, env = doJSON(t, handler, http.MethodPost, "/api/pet/interact", map[string]string{"tipo": pet.Feed})
	if status != http.StatusTooManyRequests || env.Code != "COOLDOWN" {
		t.Fatalf("second interaction: %d %+v", status, env)
	}
	var details struct {
		Kind      string `json:"tipo"`
		Remaining int    `json:"restanteSegundos"`
	}
	if err := json.Unmarshal(env.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.Kind != pet.Feed || details.Remaining <= 0 {
		t.Fatalf("details = %+v", details)
	}
}

func TestUploadWithoutStorageIsUnavailable(t *testing.T) {
	a, _, _ := pairedDevices(t)
	handler := NewHTTPServer(a, "*").Handler()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "foto.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	_, _ = part.Write([]byte("jpeg"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "UPLOADS_UNAVAILABLE") {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
}

func TestEmailInviteWithoutSMTPIsUnavailable(t *testing.T) {
	a, _, _ := pairedDevices(t)
	handler := NewHTTPServer(a, "*").Handler()

	status, env := doJSON(t, handler, http.MethodPost, "/api/pair/invite", map[string]string{"email": "ana@example.com"})
	if status != http.StatusServiceUnavailable || env.Code != "EMAIL_UNAVAILABLE" {
		t.Fatalf("email invite: %d %+v", status, env)
	}
	status, env = doJSON(t, handler, http.MethodGet, "/api/pair/invite", nil)
	if status != http.StatusOK || !strings.Contains(string(env.Data), "token") {
		t.Fatalf("invite token: %d %+v", status, env)
	}
}

func TestUnknownRoute(t *testing.T) {
	svc := newTestService(t, openTestStore(t), session.NewMemoryCache(), nil)
	handler := NewHTTPServer(svc, "*").Handler()

	status, env := doJSON(t, handler, http.MethodGet, "/api/nowhere/else", nil)
	if status != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Fatalf("unknown route: %d %+v", status, env)
	}
}

func TestEventsStreamStartsWithSnapshot(t *testing.T) {
	a, _, _ := pairedDevices(t)
	server := httptest.NewServer(NewHTTPServer(a, "*").Handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/events error = %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}
	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		for {
			next, err := reader.ReadString('\n')
			if err != nil || next == "\n" {
				break
			}
		}
		return strings.TrimSpace(line)
	}

	if got := readEvent(); got != "event: "+EventSnapshot {
		t.Fatalf("first event = %q", got)
	}
	if _, err := a.AddNote(context.Background(), "ver la lluvia", ""); err != nil {
		t.Fatalf("AddNote() error = %v", err)
	}
	if got := readEvent(); got != "event: "+EventSnapshot {
		t.Fatalf("event after write = %q", got)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{pairing.ErrNotPaired, http.StatusConflict, "NOT_PAIRED"},
		{fmt.Errorf("wrapped: %w", plans.ErrNoPlansAvailable), http.StatusConflict, "NO_PLANS_AVAILABLE"},
		{&reasons.AuthorError{Action: "eliminar"}, http.StatusForbidden, "NOT_AUTHOR"},
		{&pet.CooldownError{Kind: pet.Play, Remaining: 90 * time.Second}, http.StatusTooManyRequests, "COOLDOWN"},
		{challenges.ErrNoChangesLeft, http.StatusConflict, "NO_CHANGES_LEFT"},
		{fmt.Errorf("%w: timeout", couple.ErrStore), http.StatusBadGateway, "STORE_ERROR"},
		{couple.ErrNotHydrated, http.StatusConflict, "NOT_READY"},
		{domainError(http.StatusTeapot, "TEAPOT", "short and stout", nil), http.StatusTeapot, "TEAPOT"},
		{errors.New("boom"), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tc := range tests {
		status, code, message, _ := mapError(tc.err)
		if status != tc.wantStatus || code != tc.wantCode {
			t.Fatalf("mapError(%v) = %d %s, want %d %s", tc.err, status, code, tc.wantStatus, tc.wantCode)
		}
		if message == "" {
			t.Fatalf("mapError(%v) has empty message", tc.err)
		}
	}
}
