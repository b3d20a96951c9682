package pairing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/session"
	"nosotros/api/internal/store"
)

type device struct {
	manager *Manager
	cache   *session.RedisCache
}

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "nosotros.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	s := store.NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDevice(t *testing.T, redis *miniredis.Miniredis, prefix string, s *store.SQLiteStore, opts Options) device {
	t.Helper()
	cache, err := session.NewRedisCache("redis://"+redis.Addr(), prefix)
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return device{manager: New(cache, s, s, opts), cache: cache}
}

func TestCreateCouple(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a := newDevice(t, miniredis.RunT(t), "a:", s, Options{NewCode: func() string { return "ABC123" }})

	code, err := a.manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if code != "ABC123" || a.manager.State() != StatePaired {
		t.Fatalf("Create() = %q, state %s", code, a.manager.State())
	}

	raw, err := s.GetDocument(ctx, code)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	doc, err := couple.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if doc.Puntos != 0 || len(doc.LogrosDesbloqueados) != 0 || len(doc.Planes) != 0 {
		t.Fatalf("new couple document not empty: %+v", doc)
	}

	cached, ok, err := a.cache.Get(ctx, session.KeyCoupleID)
	if err != nil || !ok || cached != code {
		t.Fatalf("cached code = %q, %v, %v", cached, ok, err)
	}
}

func TestJoinUnknownCodeKeepsDeviceUnpaired(t *testing.T) {
	ctx := context.Background()
	b := newDevice(t, miniredis.RunT(t), "b:", openTestStore(t), Options{})

	_, err := b.manager.Join(ctx, "zzz999")
	if !errors.Is(err, ErrCoupleNotFound) {
		t.Fatalf("Join() error = %v, want ErrCoupleNotFound", err)
	}
	if err.Error() != "El código no existe" {
		t.Fatalf("Join() message = %q", err.Error())
	}
	if b.manager.State() != StateUnpaired {
		t.Fatalf("state = %s, want unpaired", b.manager.State())
	}
	if _, ok, _ := b.cache.Get(ctx, session.KeyCoupleID); ok {
		t.Fatal("code cached after failed join")
	}
}

func TestJoinAdoptsAnniversaryAndRestores(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	redis := miniredis.RunT(t)
	a := newDevice(t, redis, "a:", s, Options{NewCode: func() string { return "ABC123" }})
	code, err := a.manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	anniversary := "2020-02-14"
	doc := couple.NewDocument()
	doc.FechaAniversario = &anniversary
	raw, err := couple.Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := s.UpdateDocument(ctx, code, raw); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	b := newDevice(t, redis, "b:", s, Options{})
	if _, err := b.manager.Join(ctx, " abc123 "); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got, _, _ := b.cache.Get(ctx, session.KeyAnniversary); got != anniversary {
		t.Fatalf("cached anniversary = %q", got)
	}

	restarted := New(b.cache, s, s, Options{})
	paired, err := restarted.Restore(ctx)
	if err != nil || !paired || restarted.CoupleID() != code {
		t.Fatalf("Restore() = %v, %v, couple %q", paired, err, restarted.CoupleID())
	}
}

func TestEnsureUsersCreatesPairOnceAndRestoresSelection(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	redis := miniredis.RunT(t)
	a := newDevice(t, redis, "a:", s, Options{NewCode: func() string { return "ABC123" }})
	if _, err := a.manager.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	users, err := a.manager.EnsureUsers(ctx)
	if err != nil {
		t.Fatalf("EnsureUsers() error = %v", err)
	}
	if len(users) != 2 || users[0].UsuarioNumero != 1 || users[1].UsuarioNumero != 2 {
		t.Fatalf("unexpected users: %+v", users)
	}
	if current, _ := a.manager.CurrentUser(); current.ID != users[0].ID {
		t.Fatalf("default user = %+v, want user 1", current)
	}

	b := newDevice(t, redis, "b:", s, Options{})
	if _, err := b.manager.Join(ctx, "ABC123"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	again, err := b.manager.EnsureUsers(ctx)
	if err != nil {
		t.Fatalf("EnsureUsers() error = %v", err)
	}
	if again[0].ID != users[0].ID || again[1].ID != users[1].ID {
		t.Fatalf("second device created new users: %+v", again)
	}
	if _, err := b.manager.SelectUser(ctx, users[1].ID); err != nil {
		t.Fatalf("SelectUser() error = %v", err)
	}
	if _, err := b.manager.SelectUser(ctx, "usr_missing"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("SelectUser() error = %v, want ErrUnknownUser", err)
	}

	// Selections are per device.
	restartedB := New(b.cache, s, s, Options{})
	if _, err := restartedB.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, err := restartedB.EnsureUsers(ctx); err != nil {
		t.Fatalf("EnsureUsers() error = %v", err)
	}
	if current, _ := restartedB.CurrentUser(); current.ID != users[1].ID {
		t.Fatalf("restored user = %+v, want user 2", current)
	}
	if current, _ := a.manager.CurrentUser(); current.ID != users[0].ID {
		t.Fatalf("device A user changed: %+v", current)
	}
}

type racingUsers struct {
	*store.SQLiteStore
	partner func()
}

func (r racingUsers) InsertUsers(ctx context.Context, users []store.User) ([]store.User, error) {
	r.partner()
	return r.SQLiteStore.InsertUsers(ctx, users)
}

func TestEnsureUsersResolvesConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.InsertDocument(ctx, "ABC123", []byte(`{}`)); err != nil {
		t.Fatalf("InsertDocument() error = %v", err)
	}
	var partnerUsers []store.User
	racing := racingUsers{SQLiteStore: s, partner: func() {
		var err error
		partnerUsers, err = s.InsertUsers(ctx, []store.User{
			{CoupleID: "ABC123", Nombre: "Ana", UsuarioNumero: 1},
			{CoupleID: "ABC123", Nombre: "Beto", UsuarioNumero: 2},
		})
		if err != nil {
			t.Errorf("partner InsertUsers() error = %v", err)
		}
	}}

	cache := session.NewMemoryCache()
	if err := cache.Set(ctx, session.KeyCoupleID, "ABC123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	manager := New(cache, s, racing, Options{})
	if _, err := manager.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	users, err := manager.EnsureUsers(ctx)
	if err != nil {
		t.Fatalf("EnsureUsers() error = %v", err)
	}
	if len(users) != 2 || users[0].ID != partnerUsers[0].ID || users[1].Nombre != "Beto" {
		t.Fatalf("users = %+v, want partner rows", users)
	}
}

func TestUnlinkClearsOnlyLocalState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a := newDevice(t, miniredis.RunT(t), "a:", s, Options{NewCode: func() string { return "ABC123" }})
	if _, err := a.manager.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := a.manager.Unlink(ctx); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
	if a.manager.State() != StateUnpaired {
		t.Fatalf("state = %s, want unpaired", a.manager.State())
	}
	if paired, _ := a.manager.Restore(ctx); paired {
		t.Fatal("Restore() paired after unlink")
	}
	if _, err := s.GetDocument(ctx, "ABC123"); err != nil {
		t.Fatalf("remote document removed: %v", err)
	}
}

func TestJoinWithInvite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	redis := miniredis.RunT(t)
	secret := []byte("invite-secret")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a := newDevice(t, redis, "a:", s, Options{InviteSecret: secret, Now: clock, NewCode: func() string { return "ABC123" }})
	if _, err := a.manager.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	token, err := a.manager.Invite(time.Hour)
	if err != nil {
		t.Fatalf("Invite() error = %v", err)
	}

	b := newDevice(t, redis, "b:", s, Options{InviteSecret: secret, Now: clock})
	if _, err := b.manager.Join(ctx, token); err != nil {
		t.Fatalf("Join(invite) error = %v", err)
	}
	if b.manager.CoupleID() != "ABC123" {
		t.Fatalf("CoupleID() = %q", b.manager.CoupleID())
	}

	later := newDevice(t, redis, "c:", s, Options{InviteSecret: secret, Now: func() time.Time { return now.Add(2 * time.Hour) }})
	if _, err := later.manager.Join(ctx, token); err == nil {
		t.Fatal("expired invite accepted")
	}
}
