package couple

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"nosotros/api/internal/store"
)

var (
	// ErrNotHydrated rejects writes issued before a module's initial load.
	ErrNotHydrated = errors.New("module not hydrated")
	// ErrNotFound reports a couple id absent from the store.
	ErrNotFound = store.ErrNotFound
	// ErrStore wraps any read or write failure of the document store.
	ErrStore = errors.New("document store error")
)

// DocumentStore is the point read/update surface of the remote store.
type DocumentStore interface {
	GetDocument(ctx context.Context, coupleID string) (json.RawMessage, error)
	UpdateDocument(ctx context.Context, coupleID string, content json.RawMessage) error
}

// MergeFunc receives the freshly read document and returns the top-level
// fields to replace. Returning no fields skips the write.
type MergeFunc func(fresh Document) (map[string]any, error)

// CommitHook observes every successful write.
type CommitHook func(ctx context.Context, coupleID string, doc Document, raw json.RawMessage)

// Writer performs read-merge-write cycles against one couple's document.
type Writer struct {
	store    DocumentStore
	coupleID string

	hookMu sync.RWMutex
	hooks  []CommitHook
}

func NewWriter(documentStore DocumentStore, coupleID string) *Writer {
	return &Writer{store: documentStore, coupleID: coupleID}
}

func (w *Writer) CoupleID() string {
	return w.coupleID
}

// OnCommit registers a hook run after each successful update.
func (w *Writer) OnCommit(hook CommitHook) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.hooks = append(w.hooks, hook)
}

// Load reads and normalizes the current document.
func (w *Writer) Load(ctx context.Context) (Document, error) {
	raw, err := w.read(ctx)
	if err != nil {
		return Document{}, err
	}
	return Normalize(raw)
}

// Update reads the current document, lets fn pick the fields to replace,
// and writes the merged document back. Fields fn does not return are kept
// byte for byte, including ones this package does not know about.
func (w *Writer) Update(ctx context.Context, fn MergeFunc) (Document, error) {
	raw, err := w.read(ctx)
	if err != nil {
		return Document{}, err
	}

	fields := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return Document{}, fmt.Errorf("%w: decode couple %s: %w", ErrStore, w.coupleID, err)
		}
	}
	fresh, err := Normalize(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	changes, err := fn(fresh.Clone())
	if err != nil {
		return Document{}, err
	}
	if len(changes) == 0 {
		return fresh, nil
	}

	for key, value := range changes {
		encoded, err := json.Marshal(value)
		if err != nil {
			return Document{}, fmt.Errorf("encode field %s: %w", key, err)
		}
		fields[key] = encoded
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("encode couple %s: %w", w.coupleID, err)
	}

	if err := w.store.UpdateDocument(ctx, w.coupleID, merged); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Document{}, fmt.Errorf("update couple %s: %w", w.coupleID, ErrNotFound)
		}
		return Document{}, fmt.Errorf("%w: update couple %s: %w", ErrStore, w.coupleID, err)
	}

	doc, err := Normalize(merged)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	w.hookMu.RLock()
	hooks := append([]CommitHook(nil), w.hooks...)
	w.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, w.coupleID, doc.Clone(), merged)
	}
	return doc, nil
}

func (w *Writer) read(ctx context.Context) (json.RawMessage, error) {
	raw, err := w.store.GetDocument(ctx, w.coupleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("read couple %s: %w", w.coupleID, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: read couple %s: %w", ErrStore, w.coupleID, err)
	}
	return raw, nil
}
