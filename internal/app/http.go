package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nosotros/api/internal/export"
	"nosotros/api/internal/pet"
	"nosotros/api/internal/plans"
	"nosotros/api/internal/search"
)

const (
	maxUploadBytes    = 10 << 20
	eventsHeartbeat   = 25 * time.Second
	defaultMoodsLimit = 30
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger.Named("http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/health" {
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		checks := s.service.Ping(ctx)
		if checks["store"] != "ok" || checks["cache"] != "ok" {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "Dependencies unavailable", checks)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true, "checks": checks})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/state" {
		writeData(w, http.StatusOK, s.service.State())
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/events" {
		s.handleEvents(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/stats" {
		stats, err := s.service.Stats(r.Context())
		s.respond(w, http.StatusOK, stats, err)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	switch parts[1] {
	case "pair":
		s.handlePair(w, r, parts[2:])
	case "users":
		s.handleUsers(w, r, parts[2:])
	case "plans":
		s.handlePlans(w, r, parts[2:])
	case "calendar":
		s.handleCalendar(w, r, parts[2:])
	case "roulette":
		s.handleRoulette(w, r, parts[2:])
	case "notes":
		s.handleNotes(w, r, parts[2:])
	case "reasons":
		s.handleReasons(w, r, parts[2:])
	case "moods":
		s.handleMoods(w, r, parts[2:])
	case "challenge":
		s.handleChallenge(w, r, parts[2:])
	case "pet":
		s.handlePet(w, r, parts[2:])
	case "profile":
		s.handleProfile(w, r, parts[2:])
	case "history":
		s.handleHistory(w, r, parts[2:])
	default:
		s.handleMisc(w, r, parts[1:])
	}
}

func (s *HTTPServer) handlePair(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		notFound(w)
		return
	}
	switch {
	case r.Method == http.MethodPost && parts[0] == "create":
		state, err := s.service.CreateCouple(r.Context())
		s.respond(w, http.StatusCreated, state, err)
	case r.Method == http.MethodPost && parts[0] == "join":
		var body struct {
			Code string `json:"code"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		state, err := s.service.JoinCouple(r.Context(), body.Code)
		s.respond(w, http.StatusOK, state, err)
	case r.Method == http.MethodPost && parts[0] == "unlink":
		err := s.service.Unlink(r.Context())
		s.respond(w, http.StatusOK, map[string]any{"unlinked": true}, err)
	case r.Method == http.MethodGet && parts[0] == "invite":
		token, expiresAt, err := s.service.Invite()
		s.respond(w, http.StatusOK, map[string]any{"token": token, "expiresAt": expiresAt.UTC().Format(time.RFC3339)}, err)
	case r.Method == http.MethodPost && parts[0] == "invite":
		var body struct {
			Email string `json:"email"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		expiresAt, err := s.service.SendInvite(body.Email)
		s.respond(w, http.StatusAccepted, map[string]any{"sent": true, "expiresAt": expiresAt.UTC().Format(time.RFC3339)}, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		users, current := s.service.Users()
		writeData(w, http.StatusOK, map[string]any{"users": users, "currentUser": current})
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "select":
		var body struct {
			UserID string `json:"userId"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		user, err := s.service.SelectUser(r.Context(), body.UserID)
		s.respond(w, http.StatusOK, user, err)
	case r.Method == http.MethodPatch && len(parts) == 1 && parts[0] == "me":
		var body struct {
			Nombre    *string `json:"nombre"`
			AvatarURL *string `json:"avatarUrl"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		user, err := s.service.UpdateMe(r.Context(), body.Nombre, body.AvatarURL)
		s.respond(w, http.StatusOK, user, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handlePlans(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		items, err := s.service.Plans(ctx)
		s.respond(w, http.StatusOK, items, err)
	case r.Method == http.MethodPost && len(parts) == 0:
		var in plans.Input
		if !decodeInto(w, r, &in) {
			return
		}
		plan, err := s.service.AddPlan(ctx, in)
		s.respond(w, http.StatusCreated, plan, err)
	case r.Method == http.MethodPut && len(parts) == 1:
		var in plans.Input
		if !decodeInto(w, r, &in) {
			return
		}
		plan, err := s.service.UpdatePlan(ctx, parts[0], in)
		s.respond(w, http.StatusOK, plan, err)
	case r.Method == http.MethodDelete && len(parts) == 1:
		err := s.service.DeletePlan(ctx, parts[0])
		s.respond(w, http.StatusOK, map[string]any{"deleted": parts[0]}, err)
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "complete":
		var body struct {
			Completado bool `json:"completado"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		plan, err := s.service.SetPlanCompleted(ctx, parts[0], body.Completado)
		s.respond(w, http.StatusOK, plan, err)
	default:
		notFound(w)
	}
}

// handleCalendar serves /api/calendar and /api/calendar/{date}/{planId}/...
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			calendar, err := s.service.Calendar(ctx, strings.TrimSpace(r.URL.Query().Get("date")))
			s.respond(w, http.StatusOK, calendar, err)
		case http.MethodPost:
			var body struct {
				PlanID string `json:"planId"`
				Fecha  string `json:"fecha"`
			}
			if !decodeInto(w, r, &body) {
				return
			}
			if strings.TrimSpace(body.PlanID) == "" {
				s.fail(w, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "planId is required", nil))
				return
			}
			entry, err := s.service.Schedule(ctx, body.PlanID, body.Fecha)
			s.respond(w, http.StatusCreated, entry, err)
		default:
			notFound(w)
		}
		return
	}
	if len(parts) < 2 {
		notFound(w)
		return
	}

	date, planID := parts[0], parts[1]
	action := ""
	if len(parts) == 3 {
		action = parts[2]
	}
	switch {
	case r.Method == http.MethodDelete && len(parts) == 2:
		err := s.service.Unschedule(ctx, planID, date)
		s.respond(w, http.StatusOK, map[string]any{"planId": planID, "fecha": date}, err)
	case r.Method == http.MethodPost && action == "complete":
		var body struct {
			Completado bool `json:"completado"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		entry, err := s.service.CompleteEntry(ctx, planID, date, body.Completado)
		s.respond(w, http.StatusOK, entry, err)
	case r.Method == http.MethodPost && action == "review":
		var body struct {
			Opinion    string `json:"opinion"`
			Puntuacion *int   `json:"puntuacion"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		entry, err := s.service.ReviewEntry(ctx, planID, date, body.Opinion, body.Puntuacion)
		s.respond(w, http.StatusOK, entry, err)
	case r.Method == http.MethodPost && action == "photos":
		var body struct {
			URL string `json:"url"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		entry, err := s.service.AddPhoto(ctx, planID, date, body.URL)
		s.respond(w, http.StatusOK, entry, err)
	case r.Method == http.MethodDelete && action == "photos":
		entry, err := s.service.RemovePhoto(ctx, planID, date, r.URL.Query().Get("url"))
		s.respond(w, http.StatusOK, entry, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleRoulette(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 1 {
		notFound(w)
		return
	}
	switch parts[0] {
	case "spin":
		result, err := s.service.Spin(r.Context())
		s.respond(w, http.StatusOK, result, err)
	case "reset":
		err := s.service.ResetRoulette(r.Context())
		s.respond(w, http.StatusOK, map[string]any{"reset": true}, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	var body struct {
		Texto     string `json:"texto"`
		Categoria string `json:"categoria"`
	}
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		items, err := s.service.Notes(ctx, strings.TrimSpace(r.URL.Query().Get("categoria")))
		s.respond(w, http.StatusOK, items, err)
	case r.Method == http.MethodPost && len(parts) == 0:
		if !decodeInto(w, r, &body) {
			return
		}
		note, err := s.service.AddNote(ctx, body.Texto, body.Categoria)
		s.respond(w, http.StatusCreated, note, err)
	case r.Method == http.MethodPut && len(parts) == 1:
		if !decodeInto(w, r, &body) {
			return
		}
		note, err := s.service.UpdateNote(ctx, parts[0], body.Texto, body.Categoria)
		s.respond(w, http.StatusOK, note, err)
	case r.Method == http.MethodDelete && len(parts) == 1:
		err := s.service.DeleteNote(ctx, parts[0])
		s.respond(w, http.StatusOK, map[string]any{"deleted": parts[0]}, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleReasons(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	var body struct {
		Texto string `json:"texto"`
	}
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		view, err := s.service.Reasons(ctx)
		s.respond(w, http.StatusOK, view, err)
	case r.Method == http.MethodPost && len(parts) == 0:
		if !decodeInto(w, r, &body) {
			return
		}
		reason, err := s.service.AddReason(ctx, body.Texto)
		s.respond(w, http.StatusCreated, reason, err)
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "reroll":
		reason, err := s.service.RerollReason(ctx)
		s.respond(w, http.StatusOK, reason, err)
	case r.Method == http.MethodPut && len(parts) == 1:
		if !decodeInto(w, r, &body) {
			return
		}
		reason, err := s.service.EditReason(ctx, parts[0], body.Texto)
		s.respond(w, http.StatusOK, reason, err)
	case r.Method == http.MethodDelete && len(parts) == 1:
		err := s.service.DeleteReason(ctx, parts[0])
		s.respond(w, http.StatusOK, map[string]any{"deleted": parts[0]}, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleMoods(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		limit, ok := queryInt(w, r, "limit", defaultMoodsLimit)
		if !ok {
			return
		}
		view, err := s.service.Moods(ctx, limit)
		s.respond(w, http.StatusOK, view, err)
	case r.Method == http.MethodPost && len(parts) == 0:
		var body struct {
			Mood string `json:"mood"`
			Nota string `json:"nota"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		row, err := s.service.RegisterMood(ctx, body.Mood, body.Nota)
		s.respond(w, http.StatusCreated, row, err)
	case r.Method == http.MethodDelete && len(parts) == 1:
		err := s.service.DeleteMood(ctx, parts[0])
		s.respond(w, http.StatusOK, map[string]any{"deleted": parts[0]}, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleChallenge(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		state, err := s.service.Challenge(ctx)
		s.respond(w, http.StatusOK, state, err)
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "assign":
		state, err := s.service.AssignChallenge(ctx)
		s.respond(w, http.StatusOK, state, err)
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "change":
		state, err := s.service.ChangeChallenge(ctx)
		s.respond(w, http.StatusOK, state, err)
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "progress":
		result, err := s.service.ProgressChallenge(ctx)
		s.respond(w, http.StatusOK, result, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handlePet(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()
	if r.Method == http.MethodGet {
		switch {
		case len(parts) == 0:
			state, err := s.service.Pet(ctx)
			s.respond(w, http.StatusOK, state, err)
		case len(parts) == 1 && parts[0] == "shop":
			writeData(w, http.StatusOK, map[string]any{"accesorios": pet.Shop, "interacciones": pet.Interactions()})
		default:
			notFound(w)
		}
		return
	}
	if r.Method != http.MethodPost || len(parts) != 1 {
		notFound(w)
		return
	}

	var body struct {
		Tipo        string `json:"tipo"`
		AccesorioID string `json:"accesorioId"`
		Equipado    bool   `json:"equipado"`
		Nombre      string `json:"nombre"`
	}
	if !decodeInto(w, r, &body) {
		return
	}
	var (
		state PetState
		err   error
	)
	switch parts[0] {
	case "interact":
		state, err = s.service.Interact(ctx, body.Tipo)
	case "buy":
		state, err = s.service.BuyAccessory(ctx, body.AccesorioID)
	case "equip":
		state, err = s.service.EquipAccessory(ctx, body.AccesorioID, body.Equipado)
	case "rename":
		state, err = s.service.RenamePet(ctx, body.Nombre)
	default:
		notFound(w)
		return
	}
	s.respond(w, http.StatusOK, state, err)
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 1 {
		notFound(w)
		return
	}
	switch parts[0] {
	case "anniversary":
		var body struct {
			Fecha string `json:"fecha"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		view, err := s.service.SetAnniversary(r.Context(), body.Fecha)
		s.respond(w, http.StatusOK, view, err)
	case "avatar":
		file, size, name, ok := s.formFile(w, r)
		if !ok {
			return
		}
		defer file.Close()
		view, err := s.service.SetCoupleAvatar(r.Context(), file, size, name)
		s.respond(w, http.StatusOK, view, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}
	switch len(parts) {
	case 0:
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		commits, err := s.service.History(limit)
		s.respond(w, http.StatusOK, map[string]any{"commits": commits}, err)
	case 1:
		snapshot, err := s.service.HistorySnapshot(parts[0])
		s.respond(w, http.StatusOK, snapshot, err)
	default:
		notFound(w)
	}
}

// handleMisc serves the single-segment routes.
func (s *HTTPServer) handleMisc(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		notFound(w)
		return
	}
	ctx := r.Context()
	switch {
	case r.Method == http.MethodGet && parts[0] == "achievements":
		view, err := s.service.Achievements(ctx)
		s.respond(w, http.StatusOK, view, err)
	case r.Method == http.MethodGet && parts[0] == "notifications":
		writeData(w, http.StatusOK, map[string]any{"notifications": s.service.Notifications()})
	case r.Method == http.MethodGet && parts[0] == "search":
		query := r.URL.Query()
		limit, ok := queryInt(w, r, "limit", search.DefaultLimit)
		if !ok {
			return
		}
		response, err := s.service.Search(search.Query{
			Text:  strings.TrimSpace(query.Get("q")),
			Kind:  search.Kind(strings.TrimSpace(query.Get("kind"))),
			Limit: limit,
		})
		s.respond(w, http.StatusOK, response, err)
	case r.Method == http.MethodGet && parts[0] == "export":
		s.handleExport(w, r)
	case r.Method == http.MethodPost && parts[0] == "uploads":
		file, size, name, ok := s.formFile(w, r)
		if !ok {
			return
		}
		defer file.Close()
		url, err := s.service.Upload(ctx, file, size, name)
		s.respond(w, http.StatusCreated, map[string]any{"url": url}, err)
	case r.Method == http.MethodGet && parts[0] == "active-feature":
		writeData(w, http.StatusOK, map[string]any{"feature": s.service.ActiveFeature()})
	case r.Method == http.MethodPost && parts[0] == "active-feature":
		var body struct {
			Feature string `json:"feature"`
		}
		if !decodeInto(w, r, &body) {
			return
		}
		err := s.service.SetActiveFeature(body.Feature)
		s.respond(w, http.StatusOK, map[string]any{"feature": strings.TrimSpace(body.Feature)}, err)
	default:
		notFound(w)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.Format(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
	if format == "" {
		format = export.FormatPDF
	}
	result, err := s.service.Export(r.Context(), format)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// handleEvents streams snapshots and notifications as Server-Sent Events.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}
	events, cancel := s.service.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, Event{Type: EventSnapshot, Data: s.service.State()}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event := <-events:
			if err := writeEvent(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}

func (s *HTTPServer) formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, int64, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form with a file field is required", nil)
		return nil, 0, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file is required", nil)
		return nil, 0, "", false
	}
	return file, header.Size, header.Filename, true
}

// respond writes data, or the mapped error when err is set.
func (s *HTTPServer) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, status, data)
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("code", code), zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"code":    code,
		"error":   message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

// decodeInto decodes the JSON body into target, writing a 400 on failure.
func decodeInto(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", key+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
