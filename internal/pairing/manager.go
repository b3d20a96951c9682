// Package pairing links a device to a couple document and remembers the
// couple code and the selected user in the local cache.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"nosotros/api/internal/auth"
	"nosotros/api/internal/couple"
	"nosotros/api/internal/session"
	"nosotros/api/internal/store"
	"nosotros/api/internal/util"
)

type State string

const (
	StateUnpaired State = "unpaired"
	StatePaired   State = "paired"
)

var (
	ErrCoupleNotFound = errors.New("El código no existe")
	ErrEmptyCode      = errors.New("couple code is required")
	ErrNotPaired      = errors.New("device is not paired")
	ErrUnknownUser    = errors.New("user does not belong to this couple")
)

// LocalCache is the device-local key/value store.
type LocalCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	ClearAll(ctx context.Context) error
}

type DocumentStore interface {
	GetDocument(ctx context.Context, coupleID string) (json.RawMessage, error)
	InsertDocument(ctx context.Context, coupleID string, content json.RawMessage) error
}

type UserStore interface {
	ListUsers(ctx context.Context, coupleID string) ([]store.User, error)
	InsertUsers(ctx context.Context, users []store.User) ([]store.User, error)
}

type Options struct {
	// InviteSecret signs invite tokens. Without it only raw codes join.
	InviteSecret []byte
	Now          func() time.Time
	NewCode      func() string
	Logger       *zap.Logger
}

type Manager struct {
	cache  LocalCache
	docs   DocumentStore
	users  UserStore
	opts   Options
	logger *zap.Logger

	coupleID      string
	members       []store.User
	currentUserID string
}

func New(cache LocalCache, docs DocumentStore, users UserStore, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewCode == nil {
		opts.NewCode = util.NewCoupleCode
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cache: cache, docs: docs, users: users, opts: opts, logger: logger}
}

func (m *Manager) State() State {
	if m.coupleID == "" {
		return StateUnpaired
	}
	return StatePaired
}

func (m *Manager) CoupleID() string {
	return m.coupleID
}

func (m *Manager) Users() []store.User {
	return slices.Clone(m.members)
}

// CurrentUser returns the user selected on this device.
func (m *Manager) CurrentUser() (store.User, bool) {
	for _, user := range m.members {
		if user.ID == m.currentUserID {
			return user, true
		}
	}
	return store.User{}, false
}

// Create inserts an empty couple document under a fresh code and pairs this
// device with it. The code is not checked against existing couples.
func (m *Manager) Create(ctx context.Context) (string, error) {
	code := m.opts.NewCode()
	raw, err := couple.Encode(couple.NewDocument())
	if err != nil {
		return "", err
	}
	if err := m.docs.InsertDocument(ctx, code, raw); err != nil {
		return "", fmt.Errorf("create couple: %w", err)
	}
	if err := m.cache.Set(ctx, session.KeyCoupleID, code); err != nil {
		return "", fmt.Errorf("remember couple: %w", err)
	}
	m.pair(code)
	m.logger.Info("couple created", zap.String("couple_id", code))
	return code, nil
}

// Join pairs this device with an existing couple. input is a raw code or
// an invite token. Nothing local changes when the couple does not exist.
func (m *Manager) Join(ctx context.Context, input string) (couple.Document, error) {
	code, err := m.resolveCode(input)
	if err != nil {
		return couple.Document{}, err
	}
	raw, err := m.docs.GetDocument(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return couple.Document{}, ErrCoupleNotFound
		}
		return couple.Document{}, fmt.Errorf("%w: join couple %s: %w", couple.ErrStore, code, err)
	}
	doc, err := couple.Normalize(raw)
	if err != nil {
		return couple.Document{}, fmt.Errorf("%w: %w", couple.ErrStore, err)
	}

	if err := m.cache.Set(ctx, session.KeyCoupleID, code); err != nil {
		return couple.Document{}, fmt.Errorf("remember couple: %w", err)
	}
	if doc.FechaAniversario != nil && *doc.FechaAniversario != "" {
		if err := m.RememberAnniversary(ctx, *doc.FechaAniversario); err != nil {
			return couple.Document{}, err
		}
	}
	m.pair(code)
	m.logger.Info("couple joined", zap.String("couple_id", code))
	return doc, nil
}

func (m *Manager) resolveCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyCode
	}
	if auth.LooksLikeInvite(input) {
		invite, err := auth.ParseInvite(m.opts.InviteSecret, input, m.opts.Now())
		if err != nil {
			return "", fmt.Errorf("join with invite: %w", err)
		}
		return invite.CoupleID, nil
	}
	return strings.ToUpper(input), nil
}

// Restore pairs from the cached code without checking the store.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	code, ok, err := m.cache.Get(ctx, session.KeyCoupleID)
	if err != nil {
		return false, fmt.Errorf("restore couple: %w", err)
	}
	if !ok || strings.TrimSpace(code) == "" {
		return false, nil
	}
	m.pair(code)
	return true, nil
}

// Forget drops the in-memory pairing and leaves the cached code in place,
// so the next Restore retries the same couple.
func (m *Manager) Forget() {
	m.coupleID = ""
	m.members = nil
	m.currentUserID = ""
}

// Unlink forgets the couple on this device. The remote document is kept.
func (m *Manager) Unlink(ctx context.Context) error {
	if err := m.cache.ClearAll(ctx); err != nil {
		return fmt.Errorf("unlink: %w", err)
	}
	m.Forget()
	return nil
}

// EnsureUsers loads the couple's two users, creating them the first time.
// When the partner device creates them concurrently the insert conflicts
// and the rows it wrote are loaded instead. The selected user is restored
// from the cache, falling back to the lowest user number.
func (m *Manager) EnsureUsers(ctx context.Context) ([]store.User, error) {
	if m.coupleID == "" {
		return nil, ErrNotPaired
	}
	members, err := m.users.ListUsers(ctx, m.coupleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", couple.ErrStore, err)
	}
	if len(members) == 0 {
		members, err = m.users.InsertUsers(ctx, []store.User{
			{CoupleID: m.coupleID, Nombre: "Usuario 1", UsuarioNumero: 1},
			{CoupleID: m.coupleID, Nombre: "Usuario 2", UsuarioNumero: 2},
		})
		if errors.Is(err, store.ErrConflict) {
			m.logger.Debug("users created by partner device", zap.String("couple_id", m.coupleID))
			members, err = m.users.ListUsers(ctx, m.coupleID)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", couple.ErrStore, err)
		}
	}
	slices.SortFunc(members, func(a, b store.User) int { return a.UsuarioNumero - b.UsuarioNumero })
	m.members = members

	selected, ok, err := m.cache.Get(ctx, session.KeyCurrentUser)
	if err != nil {
		return nil, fmt.Errorf("restore user: %w", err)
	}
	m.currentUserID = ""
	if ok && m.member(selected) {
		m.currentUserID = selected
	} else if len(members) > 0 {
		m.currentUserID = members[0].ID
	}
	return m.Users(), nil
}

// SelectUser records which partner is using this device. Each device keeps
// its own selection.
func (m *Manager) SelectUser(ctx context.Context, userID string) (store.User, error) {
	if !m.member(userID) {
		return store.User{}, ErrUnknownUser
	}
	if err := m.cache.Set(ctx, session.KeyCurrentUser, userID); err != nil {
		return store.User{}, fmt.Errorf("remember user: %w", err)
	}
	m.currentUserID = userID
	user, _ := m.CurrentUser()
	return user, nil
}

// ApplyUsers replaces the loaded users, keeping the selection when the
// selected user still exists.
func (m *Manager) ApplyUsers(members []store.User) {
	m.members = slices.Clone(members)
	if !m.member(m.currentUserID) && len(m.members) > 0 {
		m.currentUserID = m.members[0].ID
	}
}

// RememberAnniversary keeps the anniversary date in the local cache.
func (m *Manager) RememberAnniversary(ctx context.Context, date string) error {
	if date == "" {
		return m.cache.Remove(ctx, session.KeyAnniversary)
	}
	if err := m.cache.Set(ctx, session.KeyAnniversary, date); err != nil {
		return fmt.Errorf("remember anniversary: %w", err)
	}
	return nil
}

// Invite signs a token carrying the couple code, valid for ttl.
func (m *Manager) Invite(ttl time.Duration) (string, error) {
	if m.coupleID == "" {
		return "", ErrNotPaired
	}
	inviter := ""
	if user, ok := m.CurrentUser(); ok {
		inviter = user.Nombre
	}
	return auth.IssueInvite(m.opts.InviteSecret, m.coupleID, inviter, ttl, m.opts.Now())
}

func (m *Manager) pair(code string) {
	if code != m.coupleID {
		m.members = nil
		m.currentUserID = ""
	}
	m.coupleID = code
}

func (m *Manager) member(userID string) bool {
	return userID != "" && slices.ContainsFunc(m.members, func(u store.User) bool { return u.ID == userID })
}
