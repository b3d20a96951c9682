package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"nosotros/api/internal/achievements"
	"nosotros/api/internal/challenges"
	"nosotros/api/internal/couple"
	"nosotros/api/internal/email"
	"nosotros/api/internal/export"
	"nosotros/api/internal/history"
	"nosotros/api/internal/media"
	"nosotros/api/internal/moods"
	"nosotros/api/internal/pairing"
	"nosotros/api/internal/plans"
	"nosotros/api/internal/search"
	"nosotros/api/internal/store"
)

// State is the device view served by /api/state and streamed as snapshots.
type State struct {
	Paired         bool                    `json:"paired"`
	CoupleID       string                  `json:"coupleId,omitempty"`
	Users          []store.User            `json:"users"`
	CurrentUser    *store.User             `json:"currentUser,omitempty"`
	ActiveFeature  string                  `json:"activeFeature,omitempty"`
	Document       *couple.Document        `json:"document,omitempty"`
	ReasonOfTheDay *couple.Reason          `json:"razonDelDia,omitempty"`
	Roulette       *RouletteState          `json:"ruleta,omitempty"`
	Challenge      *challenges.State       `json:"desafio,omitempty"`
	Moods          *MoodState              `json:"moods,omitempty"`
	Pet            *PetState               `json:"mascota,omitempty"`
	Achievements   []achievements.Progress `json:"logros,omitempty"`
	Pending        int                     `json:"notificacionesPendientes"`
}

type RouletteState struct {
	Current   *couple.Plan  `json:"actual,omitempty"`
	Attempts  int           `json:"intentos"`
	Available []couple.Plan `json:"disponibles"`
}

type MoodState struct {
	Recent []store.MoodRow          `json:"recientes"`
	Today  map[string]store.MoodRow `json:"hoy"`
	Total  int                      `json:"total"`
	Moods  []moods.Mood             `json:"catalogo"`
}

type PetState struct {
	Pet       couple.Pet     `json:"mascota"`
	Points    int            `json:"puntos"`
	Cooldowns map[string]int `json:"enfriamientoSegundos"`
}

// AchievementsView lists the catalog with the couple's progress.
type AchievementsView struct {
	Points   int                     `json:"puntos"`
	Unlocked []string                `json:"desbloqueados"`
	Progress []achievements.Progress `json:"progreso"`
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Service) stateLocked() State {
	state := State{
		Paired:        s.pairing.State() == pairing.StatePaired,
		CoupleID:      s.pairing.CoupleID(),
		Users:         s.pairing.Users(),
		ActiveFeature: s.activeFeature,
		Pending:       len(s.notifications),
	}
	if state.Users == nil {
		state.Users = []store.User{}
	}
	if user, ok := s.pairing.CurrentUser(); ok {
		state.CurrentUser = &user
	}
	m := s.modules
	if m == nil {
		return state
	}

	doc := s.doc.Clone()
	state.Document = &doc
	if reason, ok := m.reasons.OfTheDay(); ok {
		state.ReasonOfTheDay = &reason
	}
	state.Roulette = &RouletteState{Attempts: m.plans.Attempts(), Available: m.plans.Available()}
	if plan, ok := m.plans.Current(); ok {
		state.Roulette.Current = &plan
	}
	challenge := m.challenges.State()
	state.Challenge = &challenge
	state.Moods = &MoodState{Recent: m.moods.Recent(0), Today: m.moods.Today(), Total: m.moods.Total(), Moods: moods.Catalog}
	state.Pet = s.petStateLocked(m)
	state.Achievements = m.achievements.Progress(achievements.CollectMetrics(s.doc, m.moods.Total()))
	return state
}

func (s *Service) petStateLocked(m *modules) *PetState {
	cooldowns := map[string]int{}
	for kind, remaining := range m.pet.Remaining() {
		cooldowns[kind] = int(remaining.Round(time.Second) / time.Second)
	}
	return &PetState{Pet: m.pet.Pet(), Points: m.pet.Points(), Cooldowns: cooldowns}
}

// Stats is the aggregate metrics snapshot of the couple.
func (s *Service) Stats(ctx context.Context) (achievements.Metrics, error) {
	return withCouple(ctx, s, func(m *modules) (achievements.Metrics, error) {
		s.refreshMoodsLocked(ctx, m)
		return achievements.CollectMetrics(s.doc, m.moods.Total()), nil
	})
}

// Subscribe streams snapshots and notifications until cancel is called.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

func (s *Service) SetActiveFeature(name string) error {
	name = strings.TrimSpace(name)
	if name != "" && !slices.Contains(features, name) {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFeature = name
	return nil
}

func (s *Service) ActiveFeature() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFeature
}

// Notifications drains the pending unlock notifications.
func (s *Service) Notifications() []achievements.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notifications
	s.notifications = []achievements.Notification{}
	return out
}

// Pairing

func (s *Service) CreateCouple(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pairing.Create(ctx); err != nil {
		return State{}, err
	}
	if err := s.activateLocked(ctx); err != nil {
		return State{}, err
	}
	return s.stateLocked(), nil
}

// JoinCouple accepts a couple code or an invite token.
func (s *Service) JoinCouple(ctx context.Context, input string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pairing.Join(ctx, input); err != nil {
		return State{}, err
	}
	if err := s.activateLocked(ctx); err != nil {
		return State{}, err
	}
	return s.stateLocked(), nil
}

// Unlink forgets the couple on this device only.
func (s *Service) Unlink(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coupleID := s.pairing.CoupleID()
	s.deactivateLocked()
	if err := s.pairing.Unlink(ctx); err != nil {
		return err
	}
	s.activeFeature = ""
	s.notifications = []achievements.Notification{}
	s.logger.Info("device unlinked", zap.String("couple_id", coupleID))
	s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
	return nil
}

// Invite signs an invite token for the couple.
func (s *Service) Invite() (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.pairing.Invite(s.cfg.InviteTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().Add(s.cfg.InviteTTL), nil
}

// SendInvite mails a fresh invite to the partner's address.
func (s *Service) SendInvite(to string) (time.Time, error) {
	if !s.mailer.IsConfigured() {
		return time.Time{}, email.ErrNotConfigured
	}
	token, expiresAt, err := s.Invite()
	if err != nil {
		return time.Time{}, err
	}
	s.mu.Lock()
	data := email.InviteData{Code: s.pairing.CoupleID(), Token: token, ExpiresAt: expiresAt}
	if user, ok := s.pairing.CurrentUser(); ok {
		data.FromName = user.Nombre
	}
	s.mu.Unlock()
	if err := s.mailer.SendInvite(to, data); err != nil {
		return time.Time{}, err
	}
	s.logger.Info("invite sent", zap.String("couple_id", data.Code))
	return expiresAt, nil
}

func (s *Service) Users() ([]store.User, *store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.pairing.Users()
	if user, ok := s.pairing.CurrentUser(); ok {
		return users, &user
	}
	return users, nil
}

func (s *Service) SelectUser(ctx context.Context, userID string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.pairing.SelectUser(ctx, userID)
	if err != nil {
		return store.User{}, err
	}
	s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
	return user, nil
}

// UpdateMe changes the current user's name or avatar and reloads the users.
func (s *Service) UpdateMe(ctx context.Context, name, avatarURL *string) (store.User, error) {
	return withCouple(ctx, s, func(m *modules) (store.User, error) {
		if err := m.profile.UpdateUser(ctx, name, avatarURL); err != nil {
			return store.User{}, err
		}
		members, err := s.store.ListUsers(ctx, m.coupleID)
		if err != nil {
			return store.User{}, fmt.Errorf("%w: %w", couple.ErrStore, err)
		}
		s.pairing.ApplyUsers(members)
		user, _ := s.pairing.CurrentUser()
		s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
		return user, nil
	})
}

// Plans and calendar

func (s *Service) Plans(ctx context.Context) ([]couple.Plan, error) {
	return withCouple(ctx, s, func(m *modules) ([]couple.Plan, error) {
		return m.plans.Plans(), nil
	})
}

func (s *Service) AddPlan(ctx context.Context, in plans.Input) (couple.Plan, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Plan, error) {
		return m.plans.Add(ctx, in)
	})
}

func (s *Service) UpdatePlan(ctx context.Context, planID string, in plans.Input) (couple.Plan, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Plan, error) {
		return m.plans.Update(ctx, planID, in)
	})
}

func (s *Service) DeletePlan(ctx context.Context, planID string) error {
	_, err := withCouple(ctx, s, func(m *modules) (struct{}, error) {
		return struct{}{}, m.plans.Delete(ctx, planID)
	})
	return err
}

func (s *Service) SetPlanCompleted(ctx context.Context, planID string, completed bool) (couple.Plan, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Plan, error) {
		return m.plans.SetCompleted(ctx, planID, completed)
	})
}

func (s *Service) Calendar(ctx context.Context, date string) (map[string][]couple.DatedPlanEntry, error) {
	return withCouple(ctx, s, func(m *modules) (map[string][]couple.DatedPlanEntry, error) {
		if date == "" {
			return m.plans.Calendar(), nil
		}
		if !couple.ValidDate(date) {
			return nil, plans.ErrInvalidDate
		}
		return map[string][]couple.DatedPlanEntry{date: m.plans.EntriesOn(date)}, nil
	})
}

func (s *Service) Schedule(ctx context.Context, planID, date string) (couple.DatedPlanEntry, error) {
	return withCouple(ctx, s, func(m *modules) (couple.DatedPlanEntry, error) {
		return m.plans.Schedule(ctx, planID, date)
	})
}

func (s *Service) Unschedule(ctx context.Context, planID, date string) error {
	_, err := withCouple(ctx, s, func(m *modules) (struct{}, error) {
		return struct{}{}, m.plans.Unschedule(ctx, planID, date)
	})
	return err
}

func (s *Service) CompleteEntry(ctx context.Context, planID, date string, completed bool) (couple.DatedPlanEntry, error) {
	return withCouple(ctx, s, func(m *modules) (couple.DatedPlanEntry, error) {
		return m.plans.CompleteEntry(ctx, planID, date, completed)
	})
}

func (s *Service) ReviewEntry(ctx context.Context, planID, date, opinion string, score *int) (couple.DatedPlanEntry, error) {
	return withCouple(ctx, s, func(m *modules) (couple.DatedPlanEntry, error) {
		return m.plans.Review(ctx, planID, date, opinion, score)
	})
}

func (s *Service) AddPhoto(ctx context.Context, planID, date, url string) (couple.DatedPlanEntry, error) {
	return withCouple(ctx, s, func(m *modules) (couple.DatedPlanEntry, error) {
		return m.plans.AddPhoto(ctx, planID, date, url)
	})
}

func (s *Service) RemovePhoto(ctx context.Context, planID, date, url string) (couple.DatedPlanEntry, error) {
	return withCouple(ctx, s, func(m *modules) (couple.DatedPlanEntry, error) {
		return m.plans.RemovePhoto(ctx, planID, date, url)
	})
}

// Spin draws a roulette plan. Spin never writes.
func (s *Service) Spin(ctx context.Context) (RouletteState, error) {
	return withCouple(ctx, s, func(m *modules) (RouletteState, error) {
		plan, err := m.plans.Pick()
		if err != nil {
			return RouletteState{}, err
		}
		return RouletteState{Current: &plan, Attempts: m.plans.Attempts(), Available: m.plans.Available()}, nil
	})
}

func (s *Service) ResetRoulette(ctx context.Context) error {
	_, err := withCouple(ctx, s, func(m *modules) (struct{}, error) {
		m.plans.ResetRoulette()
		return struct{}{}, nil
	})
	return err
}

// Notes

func (s *Service) Notes(ctx context.Context, category string) ([]couple.Note, error) {
	return withCouple(ctx, s, func(m *modules) ([]couple.Note, error) {
		if category != "" {
			return m.notes.ByCategory(category), nil
		}
		return m.notes.List(), nil
	})
}

func (s *Service) AddNote(ctx context.Context, text, category string) (couple.Note, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Note, error) {
		return m.notes.Add(ctx, text, category)
	})
}

func (s *Service) UpdateNote(ctx context.Context, noteID, text, category string) (couple.Note, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Note, error) {
		return m.notes.Update(ctx, noteID, text, category)
	})
}

func (s *Service) DeleteNote(ctx context.Context, noteID string) error {
	_, err := withCouple(ctx, s, func(m *modules) (struct{}, error) {
		return struct{}{}, m.notes.Delete(ctx, noteID)
	})
	return err
}

// Reasons

type ReasonsView struct {
	Reasons  []couple.Reason `json:"razones"`
	OfTheDay *couple.Reason  `json:"razonDelDia"`
}

func (s *Service) Reasons(ctx context.Context) (ReasonsView, error) {
	return withCouple(ctx, s, func(m *modules) (ReasonsView, error) {
		view := ReasonsView{Reasons: m.reasons.List()}
		if reason, ok := m.reasons.OfTheDay(); ok {
			view.OfTheDay = &reason
		}
		return view, nil
	})
}

func (s *Service) AddReason(ctx context.Context, text string) (couple.Reason, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Reason, error) {
		return m.reasons.Add(ctx, text)
	})
}

func (s *Service) EditReason(ctx context.Context, reasonID, text string) (couple.Reason, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Reason, error) {
		return m.reasons.Edit(ctx, reasonID, text)
	})
}

func (s *Service) DeleteReason(ctx context.Context, reasonID string) error {
	_, err := withCouple(ctx, s, func(m *modules) (struct{}, error) {
		return struct{}{}, m.reasons.Delete(ctx, reasonID)
	})
	return err
}

func (s *Service) RerollReason(ctx context.Context) (couple.Reason, error) {
	return withCouple(ctx, s, func(m *modules) (couple.Reason, error) {
		return m.reasons.Reroll(ctx)
	})
}

// Moods

func (s *Service) Moods(ctx context.Context, limit int) (MoodState, error) {
	return withCouple(ctx, s, func(m *modules) (MoodState, error) {
		// The partner's rows never arrive through the change feed.
		if err := m.moods.Load(ctx); err != nil {
			return MoodState{}, err
		}
		return MoodState{Recent: m.moods.Recent(limit), Today: m.moods.Today(), Total: m.moods.Total(), Moods: moods.Catalog}, nil
	})
}

// RegisterMood replaces the current user's mood for today. Mood rows live
// outside the document, so the achievement pass is scheduled here.
func (s *Service) RegisterMood(ctx context.Context, mood, note string) (store.MoodRow, error) {
	return withCouple(ctx, s, func(m *modules) (store.MoodRow, error) {
		row, err := m.moods.Register(ctx, mood, note)
		if err != nil {
			return store.MoodRow{}, err
		}
		s.scheduleAchievementsLocked()
		s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
		return row, nil
	})
}

func (s *Service) DeleteMood(ctx context.Context, moodID string) error {
	_, err := withCouple(ctx, s, func(m *modules) (struct{}, error) {
		if err := m.moods.Delete(ctx, moodID); err != nil {
			return struct{}{}, err
		}
		s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
		return struct{}{}, nil
	})
	return err
}

// Challenges

func (s *Service) Challenge(ctx context.Context) (challenges.State, error) {
	return withCouple(ctx, s, func(m *modules) (challenges.State, error) {
		return m.challenges.State(), nil
	})
}

func (s *Service) AssignChallenge(ctx context.Context) (challenges.State, error) {
	return withCouple(ctx, s, func(m *modules) (challenges.State, error) {
		if _, err := m.challenges.Assign(ctx); err != nil {
			return challenges.State{}, err
		}
		return m.challenges.State(), nil
	})
}

func (s *Service) ChangeChallenge(ctx context.Context) (challenges.State, error) {
	return withCouple(ctx, s, func(m *modules) (challenges.State, error) {
		if _, err := m.challenges.Change(ctx); err != nil {
			return challenges.State{}, err
		}
		return m.challenges.State(), nil
	})
}

// ProgressChallenge adds a step. A completed challenge is cleared after the
// configured display delay.
func (s *Service) ProgressChallenge(ctx context.Context) (challenges.ProgressResult, error) {
	return withCouple(ctx, s, func(m *modules) (challenges.ProgressResult, error) {
		result, err := m.challenges.Progress(ctx)
		if err != nil {
			return challenges.ProgressResult{}, err
		}
		if result.Completed {
			s.scheduleClearLocked()
		}
		return result, nil
	})
}

// Pet

func (s *Service) Pet(ctx context.Context) (PetState, error) {
	return withCouple(ctx, s, func(m *modules) (PetState, error) {
		return *s.petStateLocked(m), nil
	})
}

func (s *Service) Interact(ctx context.Context, kind string) (PetState, error) {
	return withCouple(ctx, s, func(m *modules) (PetState, error) {
		if _, err := m.pet.Interact(ctx, kind); err != nil {
			return PetState{}, err
		}
		return *s.petStateLocked(m), nil
	})
}

func (s *Service) BuyAccessory(ctx context.Context, accessoryID string) (PetState, error) {
	return withCouple(ctx, s, func(m *modules) (PetState, error) {
		if _, err := m.pet.Buy(ctx, accessoryID); err != nil {
			return PetState{}, err
		}
		return *s.petStateLocked(m), nil
	})
}

func (s *Service) EquipAccessory(ctx context.Context, accessoryID string, equipped bool) (PetState, error) {
	return withCouple(ctx, s, func(m *modules) (PetState, error) {
		if _, err := m.pet.SetEquipped(ctx, accessoryID, equipped); err != nil {
			return PetState{}, err
		}
		return *s.petStateLocked(m), nil
	})
}

func (s *Service) RenamePet(ctx context.Context, name string) (PetState, error) {
	return withCouple(ctx, s, func(m *modules) (PetState, error) {
		if _, err := m.pet.Rename(ctx, name); err != nil {
			return PetState{}, err
		}
		return *s.petStateLocked(m), nil
	})
}

// Achievements

func (s *Service) Achievements(ctx context.Context) (AchievementsView, error) {
	return withCouple(ctx, s, func(m *modules) (AchievementsView, error) {
		s.refreshMoodsLocked(ctx, m)
		metrics := achievements.CollectMetrics(s.doc, m.moods.Total())
		return AchievementsView{
			Points:   m.achievements.Points(),
			Unlocked: m.achievements.Unlocked(),
			Progress: m.achievements.Progress(metrics),
		}, nil
	})
}

// Profile and media

type ProfileView struct {
	Anniversary string `json:"fechaAniversario,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

func (s *Service) SetAnniversary(ctx context.Context, date string) (ProfileView, error) {
	return withCouple(ctx, s, func(m *modules) (ProfileView, error) {
		if err := m.profile.SetAnniversary(ctx, date); err != nil {
			return ProfileView{}, err
		}
		if err := s.pairing.RememberAnniversary(ctx, strings.TrimSpace(date)); err != nil {
			s.logger.Warn("cache anniversary", zap.Error(err))
		}
		return profileView(m), nil
	})
}

func (s *Service) SetCoupleAvatar(ctx context.Context, r io.Reader, size int64, fileName string) (ProfileView, error) {
	return withCouple(ctx, s, func(m *modules) (ProfileView, error) {
		if _, err := m.profile.SetCoupleAvatarFrom(ctx, r, size, fileName); err != nil {
			return ProfileView{}, err
		}
		return profileView(m), nil
	})
}

// Upload stores a photo under the couple's prefix and returns its URL.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, fileName string) (string, error) {
	s.mu.Lock()
	coupleID := s.pairing.CoupleID()
	s.mu.Unlock()
	if coupleID == "" {
		return "", pairing.ErrNotPaired
	}
	if s.uploader == nil {
		return "", media.ErrUnavailable
	}
	return s.uploader.UploadReader(ctx, r, size, fileName, "parejas/"+coupleID+"/fotos")
}

func profileView(m *modules) ProfileView {
	date, _ := m.profile.Anniversary()
	return ProfileView{Anniversary: date, AvatarURL: m.profile.AvatarURL()}
}

// Search, history and export

func (s *Service) Search(q search.Query) (search.Response, error) {
	s.mu.Lock()
	coupleID := s.pairing.CoupleID()
	s.mu.Unlock()
	if coupleID == "" {
		return search.Response{}, pairing.ErrNotPaired
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	q.CoupleID = coupleID
	if q.Limit <= 0 {
		q.Limit = search.DefaultLimit
	}
	return s.search.Search(q), nil
}

// HistoryEnabled reports whether document snapshots are kept.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

func (s *Service) History(limit int) ([]history.Commit, error) {
	coupleID, err := s.historyCouple()
	if err != nil {
		return nil, err
	}
	return s.history.History(coupleID, limit)
}

// HistorySnapshot is a stored document version and the fields that differ
// from the current document.
type HistorySnapshot struct {
	Hash          string          `json:"hash"`
	Content       json.RawMessage `json:"content"`
	ChangedFields []string        `json:"changedFields"`
}

func (s *Service) HistorySnapshot(hash string) (HistorySnapshot, error) {
	coupleID, err := s.historyCouple()
	if err != nil {
		return HistorySnapshot{}, err
	}
	content, err := s.history.Snapshot(coupleID, hash)
	if err != nil {
		return HistorySnapshot{}, err
	}
	s.mu.Lock()
	current := s.raw
	s.mu.Unlock()
	return HistorySnapshot{Hash: hash, Content: content, ChangedFields: history.ChangedFields(content, current)}, nil
}

func (s *Service) historyCouple() (string, error) {
	if s.history == nil {
		return "", history.ErrNoHistory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modules == nil {
		return "", pairing.ErrNotPaired
	}
	return s.modules.coupleID, nil
}

// Export renders the memory book. The conversion runs outside the service
// lock.
func (s *Service) Export(ctx context.Context, format export.Format) (*export.Result, error) {
	s.mu.Lock()
	if s.modules == nil {
		s.mu.Unlock()
		return nil, pairing.ErrNotPaired
	}
	coupleID := s.modules.coupleID
	doc := s.doc.Clone()
	s.mu.Unlock()
	return s.exporter.Export(ctx, coupleID, doc, format)
}
