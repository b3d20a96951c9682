// Package profile owns the couple-level profile fields (anniversary and
// shared avatar) and edits to the partner rows.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/media"
	"nosotros/api/internal/store"
)

var (
	ErrInvalidDate = errors.New("fecha de aniversario inválida")
	ErrEmptyName   = errors.New("user name is required")
	ErrNoUser      = errors.New("no user selected")
	ErrNoChanges   = errors.New("nothing to update")
	ErrUnknownUser = errors.New("user not found")
)

// UserStore updates partner rows.
type UserStore interface {
	UpdateUser(ctx context.Context, userID string, fields store.UserUpdate) error
}

type Module struct {
	guard    couple.Guard
	env      couple.Env
	coupleID string
	uploader media.Uploader
	users    UserStore

	anniversary *string
	avatarURL   *string
}

// New builds the profile module. uploader may be nil when object storage is
// not configured; avatar changes then fail with media.ErrUnavailable.
func New(writer *couple.Writer, env couple.Env, uploader media.Uploader, users UserStore) *Module {
	return &Module{
		guard:    couple.NewGuard(writer),
		env:      env.WithDefaults(),
		coupleID: writer.CoupleID(),
		uploader: uploader,
		users:    users,
	}
}

func (m *Module) Hydrate(doc couple.Document) {
	m.anniversary = cloneString(doc.FechaAniversario)
	m.avatarURL = cloneString(doc.AvatarURL)
	m.guard.MarkHydrated()
}

func (m *Module) Hydrated() bool {
	return m.guard.Hydrated()
}

// Anniversary returns the stored anniversary date, if any.
func (m *Module) Anniversary() (string, bool) {
	if m.anniversary == nil {
		return "", false
	}
	return *m.anniversary, true
}

func (m *Module) AvatarURL() string {
	if m.avatarURL == nil {
		return ""
	}
	return *m.avatarURL
}

// SetAnniversary stores date (YYYY-MM-DD). An empty date clears it.
func (m *Module) SetAnniversary(ctx context.Context, date string) error {
	date = strings.TrimSpace(date)
	var value *string
	if date != "" {
		if !couple.ValidDate(date) {
			return ErrInvalidDate
		}
		value = &date
	}
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldFechaAniversario: value}, nil
	})
	if err != nil {
		return err
	}
	m.anniversary = cloneString(doc.FechaAniversario)
	return nil
}

// SetCoupleAvatar uploads a local image and stores its public URL.
func (m *Module) SetCoupleAvatar(ctx context.Context, localPath string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	url, err := m.uploader.Upload(ctx, localPath, m.avatarDestination())
	if err != nil {
		return "", fmt.Errorf("upload couple avatar: %w", err)
	}
	if err := m.storeAvatar(ctx, url); err != nil {
		return "", err
	}
	return url, nil
}

// SetCoupleAvatarFrom uploads an image stream and stores its public URL.
func (m *Module) SetCoupleAvatarFrom(ctx context.Context, r io.Reader, size int64, fileName string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	url, err := m.uploader.UploadReader(ctx, r, size, fileName, m.avatarDestination())
	if err != nil {
		return "", fmt.Errorf("upload couple avatar: %w", err)
	}
	if err := m.storeAvatar(ctx, url); err != nil {
		return "", err
	}
	return url, nil
}

// UpdateUser changes the acting user's name and/or avatar URL.
func (m *Module) UpdateUser(ctx context.Context, name, avatarURL *string) error {
	userID := m.env.Actor().ID
	if userID == "" {
		return ErrNoUser
	}
	if name == nil && avatarURL == nil {
		return ErrNoChanges
	}
	fields := store.UserUpdate{AvatarURL: avatarURL}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return ErrEmptyName
		}
		fields.Nombre = &trimmed
	}
	if err := m.users.UpdateUser(ctx, userID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("update user %s: %w", userID, ErrUnknownUser)
		}
		return fmt.Errorf("%w: update user %s: %w", couple.ErrStore, userID, err)
	}
	return nil
}

// ready rejects avatar uploads that could never be persisted.
func (m *Module) ready() error {
	if !m.guard.Hydrated() {
		return couple.ErrNotHydrated
	}
	if m.uploader == nil {
		return media.ErrUnavailable
	}
	return nil
}

func (m *Module) avatarDestination() string {
	return "parejas/" + m.coupleID + "/avatar"
}

func (m *Module) storeAvatar(ctx context.Context, url string) error {
	doc, err := m.guard.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldAvatarURL: url}, nil
	})
	if err != nil {
		return err
	}
	m.avatarURL = cloneString(doc.AvatarURL)
	return nil
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}
