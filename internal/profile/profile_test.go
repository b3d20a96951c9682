package profile

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/couple/coupletest"
	"nosotros/api/internal/media"
	"nosotros/api/internal/store"
)

type fakeUploader struct {
	destinations []string
	err          error
}

func (f *fakeUploader) Upload(_ context.Context, localPath, destination string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.destinations = append(f.destinations, destination)
	return "https://cdn.test/" + destination + "/" + localPath, nil
}

func (f *fakeUploader) UploadReader(_ context.Context, r io.Reader, _ int64, fileName, destination string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return f.Upload(context.Background(), fileName, destination)
}

type fakeUsers struct {
	updates map[string]store.UserUpdate
	err     error
}

func (f *fakeUsers) UpdateUser(_ context.Context, userID string, fields store.UserUpdate) error {
	if f.err != nil {
		return f.err
	}
	if f.updates == nil {
		f.updates = map[string]store.UserUpdate{}
	}
	f.updates[userID] = fields
	return nil
}

func newTestModule(t *testing.T, uploader media.Uploader) (*Module, *coupletest.MemoryStore, *fakeUsers) {
	t.Helper()
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", couple.NewDocument())
	users := &fakeUsers{}
	module := New(couple.NewWriter(mem, "ABC123"), couple.Env{
		Actor: func() couple.Actor { return couple.Actor{ID: "u1", Name: "Ana"} },
	}, uploader, users)
	module.Hydrate(mem.Document(t, "ABC123"))
	return module, mem, users
}

func TestSetAnniversary(t *testing.T) {
	ctx := context.Background()
	module, mem, _ := newTestModule(t, nil)

	if err := module.SetAnniversary(ctx, "14/02/2020"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("SetAnniversary() error = %v, want ErrInvalidDate", err)
	}
	if err := module.SetAnniversary(ctx, "2020-02-14"); err != nil {
		t.Fatalf("SetAnniversary() error = %v", err)
	}
	if date, ok := module.Anniversary(); !ok || date != "2020-02-14" {
		t.Fatalf("Anniversary() = %q, %v", date, ok)
	}
	stored := mem.Document(t, "ABC123")
	if stored.FechaAniversario == nil || *stored.FechaAniversario != "2020-02-14" {
		t.Fatalf("stored anniversary = %v", stored.FechaAniversario)
	}

	if err := module.SetAnniversary(ctx, ""); err != nil {
		t.Fatalf("SetAnniversary(clear) error = %v", err)
	}
	if _, ok := module.Anniversary(); ok {
		t.Fatal("anniversary should be cleared")
	}
}

func TestSetCoupleAvatar(t *testing.T) {
	ctx := context.Background()
	uploader := &fakeUploader{}
	module, mem, _ := newTestModule(t, uploader)

	url, err := module.SetCoupleAvatar(ctx, "foto.png")
	if err != nil {
		t.Fatalf("SetCoupleAvatar() error = %v", err)
	}
	if url != "https://cdn.test/parejas/ABC123/avatar/foto.png" {
		t.Fatalf("url = %q", url)
	}
	if module.AvatarURL() != url {
		t.Fatalf("AvatarURL() = %q, want %q", module.AvatarURL(), url)
	}
	if stored := mem.Document(t, "ABC123"); stored.AvatarURL == nil || *stored.AvatarURL != url {
		t.Fatalf("stored avatar = %v", stored.AvatarURL)
	}

	url, err = module.SetCoupleAvatarFrom(ctx, strings.NewReader("img"), 3, "otra.jpg")
	if err != nil {
		t.Fatalf("SetCoupleAvatarFrom() error = %v", err)
	}
	if module.AvatarURL() != url {
		t.Fatalf("AvatarURL() = %q, want %q", module.AvatarURL(), url)
	}
}

func TestSetCoupleAvatarFailures(t *testing.T) {
	ctx := context.Background()
	module, mem, _ := newTestModule(t, nil)
	if _, err := module.SetCoupleAvatar(ctx, "foto.png"); !errors.Is(err, media.ErrUnavailable) {
		t.Fatalf("SetCoupleAvatar() error = %v, want ErrUnavailable", err)
	}

	uploader := &fakeUploader{err: errors.New("bucket missing")}
	module, mem, _ = newTestModule(t, uploader)
	if _, err := module.SetCoupleAvatar(ctx, "foto.png"); err == nil {
		t.Fatal("expected upload error")
	}
	if _, updates := mem.Calls(); updates != 0 {
		t.Fatalf("updates = %d, want 0", updates)
	}
	if module.AvatarURL() != "" {
		t.Fatalf("AvatarURL() = %q, want empty", module.AvatarURL())
	}

	unhydrated := New(couple.NewWriter(mem, "ABC123"), couple.Env{}, &fakeUploader{}, &fakeUsers{})
	if _, err := unhydrated.SetCoupleAvatar(ctx, "foto.png"); !errors.Is(err, couple.ErrNotHydrated) {
		t.Fatalf("SetCoupleAvatar() error = %v, want ErrNotHydrated", err)
	}
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	module, _, users := newTestModule(t, nil)

	blank := "  "
	if err := module.UpdateUser(ctx, &blank, nil); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("UpdateUser() error = %v, want ErrEmptyName", err)
	}
	if err := module.UpdateUser(ctx, nil, nil); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("UpdateUser() error = %v, want ErrNoChanges", err)
	}

	name := " Ana María "
	if err := module.UpdateUser(ctx, &name, nil); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	got := users.updates["u1"]
	if got.Nombre == nil || *got.Nombre != "Ana María" || got.AvatarURL != nil {
		t.Fatalf("update = %+v", got)
	}
}

func TestUpdateUserStoreFailures(t *testing.T) {
	ctx := context.Background()
	module, _, users := newTestModule(t, nil)
	name := "Ana"

	users.err = store.ErrNotFound
	err := module.UpdateUser(ctx, &name, nil)
	if !errors.Is(err, ErrUnknownUser) || errors.Is(err, couple.ErrStore) {
		t.Fatalf("UpdateUser() error = %v, want ErrUnknownUser", err)
	}

	users.err = errors.New("connection refused")
	err = module.UpdateUser(ctx, &name, nil)
	if !errors.Is(err, couple.ErrStore) || !errors.Is(err, users.err) {
		t.Fatalf("UpdateUser() error = %v, want wrapped ErrStore", err)
	}
}
