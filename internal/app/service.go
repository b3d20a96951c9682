package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nosotros/api/internal/achievements"
	"nosotros/api/internal/challenges"
	"nosotros/api/internal/config"
	"nosotros/api/internal/couple"
	"nosotros/api/internal/email"
	"nosotros/api/internal/export"
	"nosotros/api/internal/history"
	"nosotros/api/internal/media"
	"nosotros/api/internal/moods"
	"nosotros/api/internal/notes"
	"nosotros/api/internal/pairing"
	"nosotros/api/internal/pet"
	"nosotros/api/internal/plans"
	"nosotros/api/internal/profile"
	"nosotros/api/internal/reasons"
	"nosotros/api/internal/search"
	"nosotros/api/internal/store"
)

// MaxNotifications bounds the pending notification queue.
const MaxNotifications = 50

// Features a client may report as active.
var features = []string{
	"planes", "calendario", "ruleta", "notas", "razones", "moods",
	"desafios", "mascota", "logros", "perfil", "estadisticas", "configuracion",
}

var ErrUnknownFeature = errors.New("unknown feature")

// Cache is the device-local cache the service pairs through.
type Cache interface {
	pairing.LocalCache
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators a Service is built from. Uploader,
// Search, History, Export and Mailer may be nil.
type Dependencies struct {
	Store    store.Store
	Cache    Cache
	Uploader media.Uploader
	Search   *search.Service
	History  *history.Service
	Export   *export.Service
	Mailer   *email.Service
	Logger   *zap.Logger

	Now  func() time.Time
	IntN func(n int) int
}

// modules holds the feature modules of the paired couple.
type modules struct {
	coupleID     string
	writer       *couple.Writer
	plans        *plans.Module
	notes        *notes.Module
	reasons      *reasons.Module
	moods        *moods.Module
	challenges   *challenges.Module
	pet          *pet.Module
	profile      *profile.Module
	achievements *achievements.Module
}

// Service orchestrates one device: pairing, the feature modules of the
// paired couple, the change feed and the background achievement pass. All
// module access is serialized by mu.
type Service struct {
	cfg      config.Config
	store    store.Store
	cache    Cache
	uploader media.Uploader
	search   *search.Service
	history  *history.Service
	exporter *export.Service
	mailer   *email.Service
	logger   *zap.Logger
	now      func() time.Time
	intN     func(n int) int
	events   *broadcaster

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	pairing       *pairing.Manager
	modules       *modules
	doc           couple.Document
	raw           json.RawMessage
	pending       *couple.Document
	pendingRaw    json.RawMessage
	sub           *store.Subscription
	notifications []achievements.Notification
	activeFeature string

	achievementTimer *time.Timer
	clearTimer       *time.Timer
}

func New(cfg config.Config, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IntN == nil {
		deps.IntN = rand.IntN
	}
	if deps.Export == nil {
		deps.Export = export.NewService()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:           cfg,
		store:         deps.Store,
		cache:         deps.Cache,
		uploader:      deps.Uploader,
		search:        deps.Search,
		history:       deps.History,
		exporter:      deps.Export,
		mailer:        deps.Mailer,
		logger:        logger.Named("app"),
		now:           deps.Now,
		intN:          deps.IntN,
		events:        newBroadcaster(),
		baseCtx:       ctx,
		cancel:        cancel,
		notifications: []achievements.Notification{},
	}
	s.pairing = pairing.New(deps.Cache, deps.Store, deps.Store, pairing.Options{
		InviteSecret: []byte(cfg.InviteSecret),
		Now:          deps.Now,
		Logger:       logger,
	})
	return s
}

// Start restores the pairing from the local cache and, when paired, loads
// the couple.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	paired, err := s.pairing.Restore(ctx)
	if err != nil {
		return err
	}
	if !paired {
		s.logger.Info("device not paired")
		return nil
	}
	return s.activateLocked(ctx)
}

// Close stops the change feed and background timers.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.deactivateLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if s.search != nil {
		s.search.Wait()
	}
}

// Ping checks the store and the local cache.
func (s *Service) Ping(ctx context.Context) map[string]string {
	checks := map[string]string{"store": "ok", "cache": "ok", "search": "memory"}
	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
	}
	if err := s.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
	}
	if s.search != nil && s.search.MeiliHealthy() {
		checks["search"] = "meilisearch"
	}
	return checks
}

// activateLocked builds the couple's modules, loads the document, users and
// moods in parallel, hydrates, runs a silent achievement pass and follows
// the change feed. On failure the device is left unpaired in memory.
func (s *Service) activateLocked(ctx context.Context) error {
	if err := s.loadCoupleLocked(ctx); err != nil {
		s.deactivateLocked()
		s.pairing.Forget()
		return err
	}
	return nil
}

func (s *Service) loadCoupleLocked(ctx context.Context) error {
	s.deactivateLocked()
	coupleID := s.pairing.CoupleID()
	m := s.buildModules(coupleID)

	var (
		raw      json.RawMessage
		missing  bool
		usersErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = s.store.GetDocument(gctx, coupleID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			raw, missing = nil, true
		case err != nil:
			return fmt.Errorf("%w: load couple %s: %w", couple.ErrStore, coupleID, err)
		}
		return nil
	})
	g.Go(func() error {
		// Users of a deleted couple cannot be created; judged after Wait.
		_, usersErr = s.pairing.EnsureUsers(gctx)
		return nil
	})
	g.Go(func() error {
		return m.moods.Load(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if usersErr != nil && !missing {
		return usersErr
	}
	if missing {
		s.logger.Warn("couple document missing, loading empty content",
			zap.String("couple_id", coupleID), zap.NamedError("users", usersErr))
	}
	loaded, err := couple.Normalize(raw)
	if err != nil {
		return err
	}

	s.modules = m
	s.applySnapshotLocked(ctx, loaded, raw)

	// Silent pass: back-fills unlocks without notifying.
	s.evaluateLocked(ctx, false)
	if m.challenges.State().AwaitingClear {
		s.scheduleClearLocked()
	}

	sub, err := s.store.Subscribe(s.baseCtx, coupleID)
	if err != nil {
		s.logger.Warn("change feed unavailable", zap.String("couple_id", coupleID), zap.Error(err))
		return nil
	}
	s.sub = sub
	s.wg.Add(1)
	go s.pump(sub, coupleID)
	s.logger.Info("couple loaded", zap.String("couple_id", coupleID), zap.Int("users", len(s.pairing.Users())))
	return nil
}

func (s *Service) deactivateLocked() {
	s.stopTimerLocked(&s.achievementTimer)
	s.stopTimerLocked(&s.clearTimer)
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.modules = nil
	s.doc = couple.Document{}
	s.raw = nil
	s.pending = nil
	s.pendingRaw = nil
}

func (s *Service) buildModules(coupleID string) *modules {
	writer := couple.NewWriter(s.store, coupleID)
	env := couple.Env{Actor: s.actor, Now: s.now, IntN: s.intN}
	m := &modules{
		coupleID:     coupleID,
		writer:       writer,
		plans:        plans.New(writer, env),
		notes:        notes.New(writer, env),
		reasons:      reasons.New(writer, env),
		moods:        moods.New(s.store, coupleID, env),
		challenges:   challenges.New(writer, env),
		pet:          pet.New(writer, env),
		profile:      profile.New(writer, env, s.uploader, s.store),
		achievements: achievements.New(writer, nil),
	}
	writer.OnCommit(s.onCommit)
	return m
}

// actor is only called from module operations, which run under mu.
func (s *Service) actor() couple.Actor {
	user, ok := s.pairing.CurrentUser()
	if !ok {
		return couple.Actor{}
	}
	return couple.Actor{ID: user.ID, Name: user.Nombre}
}

func (s *Service) pump(sub *store.Subscription, coupleID string) {
	defer s.wg.Done()
	for raw := range sub.Snapshots() {
		doc, err := couple.Normalize(raw)
		if err != nil {
			s.logger.Warn("discarding malformed snapshot", zap.String("couple_id", coupleID), zap.Error(err))
			continue
		}
		s.mu.Lock()
		if s.sub == sub && !s.closed {
			ctx, cancel := context.WithTimeout(s.baseCtx, 10*time.Second)
			s.applySnapshotLocked(ctx, doc, raw)
			s.scheduleAchievementsLocked()
			cancel()
		}
		s.mu.Unlock()
	}
}

// applySnapshotLocked is the only hydration path: it replaces every mirror
// with doc, including mirrors with local writes in flight.
func (s *Service) applySnapshotLocked(ctx context.Context, doc couple.Document, raw json.RawMessage) {
	m := s.modules
	if m == nil {
		return
	}
	previousAnniversary := anniversary(s.doc)
	s.doc = doc
	s.raw = raw

	m.plans.Hydrate(doc)
	m.notes.Hydrate(doc)
	m.reasons.Hydrate(doc)
	m.challenges.Hydrate(doc)
	m.pet.Hydrate(doc)
	m.profile.Hydrate(doc)
	m.achievements.Hydrate(doc)

	if current := anniversary(doc); current != previousAnniversary {
		if err := s.pairing.RememberAnniversary(ctx, current); err != nil {
			s.logger.Warn("cache anniversary", zap.Error(err))
		}
	}
	if s.search != nil {
		s.search.Index(m.coupleID, doc)
	}
	s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
}

// onCommit runs inside Writer.Update, which only module operations call
// under mu. The follow-up work happens in settleLocked once the operation
// returns.
func (s *Service) onCommit(_ context.Context, _ string, doc couple.Document, raw json.RawMessage) {
	s.pending = &doc
	s.pendingRaw = raw
}

// settleLocked processes the commits of the last operation: history,
// search, points mirroring and pet level rewards, then schedules the
// debounced achievement pass.
func (s *Service) settleLocked(ctx context.Context) {
	if s.pending == nil {
		return
	}
	for s.pending != nil && s.modules != nil {
		doc, raw := *s.pending, s.pendingRaw
		s.pending, s.pendingRaw = nil, nil
		m := s.modules

		fields := history.ChangedFields(s.raw, raw)
		previousPoints := s.doc.Puntos
		s.doc = doc
		s.raw = raw
		m.pet.ObservePoints(doc.Puntos)
		m.achievements.ObservePoints(doc.Puntos)

		s.recordHistory(m.coupleID, raw, fields)
		if s.search != nil {
			s.search.Index(m.coupleID, doc)
		}
		if doc.Puntos != previousPoints {
			if leveled, err := m.pet.SyncLevel(ctx, doc.Puntos); err != nil {
				s.logger.Warn("sync pet level", zap.Error(err))
			} else if leveled {
				s.logger.Info("pet leveled up", zap.String("couple_id", m.coupleID), zap.Int("nivel", couple.PetLevel(doc.Puntos)))
			}
		}
		s.events.publish(Event{Type: EventSnapshot, Data: s.stateLocked()})
	}
	s.scheduleAchievementsLocked()
}

func (s *Service) recordHistory(coupleID string, raw json.RawMessage, fields []string) {
	if s.history == nil {
		return
	}
	author := s.actor().Name
	if author == "" {
		author = "nosotros"
	}
	message := "Actualiza documento"
	if len(fields) > 0 {
		message = "Actualiza " + strings.Join(fields, ", ")
	}
	commit, created, err := s.history.Record(coupleID, raw, author, message)
	if err != nil {
		s.logger.Warn("record history", zap.String("couple_id", coupleID), zap.Error(err))
		return
	}
	if created {
		s.logger.Debug("history recorded", zap.String("couple_id", coupleID), zap.String("hash", commit.Hash))
	}
}

func (s *Service) scheduleAchievementsLocked() {
	if s.closed || s.modules == nil {
		return
	}
	s.stopTimerLocked(&s.achievementTimer)
	s.wg.Add(1)
	s.achievementTimer = time.AfterFunc(s.cfg.AchievementDebounce, func() {
		defer s.wg.Done()
		s.runLocked(func(ctx context.Context) { s.evaluateLocked(ctx, true) })
	})
}

func (s *Service) scheduleClearLocked() {
	if s.closed || s.modules == nil {
		return
	}
	s.stopTimerLocked(&s.clearTimer)
	s.wg.Add(1)
	s.clearTimer = time.AfterFunc(s.cfg.ChallengeClearDelay, func() {
		defer s.wg.Done()
		s.runLocked(func(ctx context.Context) {
			if _, err := s.modules.challenges.ClearCompleted(ctx); err != nil {
				s.logger.Warn("clear completed challenge", zap.Error(err))
				return
			}
			s.settleLocked(ctx)
		})
	})
}

// stopTimerLocked releases the wait group slot of a timer that never fired.
func (s *Service) stopTimerLocked(timer **time.Timer) {
	if *timer != nil && (*timer).Stop() {
		s.wg.Done()
	}
	*timer = nil
}

// runLocked runs fn for a background task when the service is still
// active.
func (s *Service) runLocked(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.modules == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, 15*time.Second)
	defer cancel()
	fn(ctx)
}

func (s *Service) evaluateLocked(ctx context.Context, notify bool) {
	m := s.modules
	s.refreshMoodsLocked(ctx, m)
	metrics := achievements.CollectMetrics(s.doc, m.moods.Total())
	evaluation, err := m.achievements.Apply(ctx, metrics, notify)
	if err != nil {
		s.logger.Warn("apply achievements", zap.String("couple_id", m.coupleID), zap.Error(err))
		return
	}
	if evaluation == nil {
		return
	}
	s.logger.Info("achievements unlocked",
		zap.String("couple_id", m.coupleID),
		zap.Strings("ids", evaluation.NewlyUnlocked),
		zap.Int("points", evaluation.PointsGained),
	)
	for _, notification := range evaluation.Notifications {
		s.notifications = append(s.notifications, notification)
		s.events.publish(Event{Type: EventNotification, Data: notification})
	}
	if over := len(s.notifications) - MaxNotifications; over > 0 {
		s.notifications = slices.Clone(s.notifications[over:])
	}
	// Settling schedules another pass, which stops once nothing new unlocks.
	s.settleLocked(ctx)
}

// refreshMoodsLocked rereads the mood table, which the change feed does not
// cover. A failed read keeps the previous rows.
func (s *Service) refreshMoodsLocked(ctx context.Context, m *modules) {
	if err := m.moods.Load(ctx); err != nil {
		s.logger.Warn("reload moods", zap.String("couple_id", m.coupleID), zap.Error(err))
	}
}

// withCouple runs fn on the paired couple's modules under the service lock
// and settles the commits it made.
func withCouple[T any](ctx context.Context, s *Service, fn func(m *modules) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if s.modules == nil {
		return zero, pairing.ErrNotPaired
	}
	value, err := fn(s.modules)
	s.settleLocked(ctx)
	if err != nil {
		return zero, err
	}
	return value, nil
}

func anniversary(doc couple.Document) string {
	if doc.FechaAniversario == nil {
		return ""
	}
	return *doc.FechaAniversario
}
