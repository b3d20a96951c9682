package couple_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/couple/coupletest"
)

func TestUpdatePreservesSiblingChangedRemotely(t *testing.T) {
	ctx := context.Background()
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", couple.NewDocument())
	writer := couple.NewWriter(mem, "ABC123")

	// Device B adds a note after this device hydrated but before it writes plans.
	mem.Mutate(t, "ABC123", func(doc *couple.Document) {
		doc.Notas = append(doc.Notas, couple.Note{ID: "n1", Texto: "remote", Categoria: "general"})
	})

	staleMirrorPlans := []couple.Plan{{ID: "p1", Titulo: "Cine"}}
	doc, err := writer.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldPlanes: staleMirrorPlans}, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	stored := mem.Document(t, "ABC123")
	if diff := cmp.Diff(staleMirrorPlans, stored.Planes); diff != "" {
		t.Fatalf("stored plans mismatch (-want +got):\n%s", diff)
	}
	if len(stored.Notas) != 1 || stored.Notas[0].Texto != "remote" {
		t.Fatalf("remote note lost: %+v", stored.Notas)
	}
	if diff := cmp.Diff(stored, doc); diff != "" {
		t.Fatalf("returned document differs from stored (-stored +returned):\n%s", diff)
	}
}

func TestUpdateSeesWriteBetweenReadAndMerge(t *testing.T) {
	ctx := context.Background()
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", couple.NewDocument())
	writer := couple.NewWriter(mem, "ABC123")

	var sawRemote bool
	_, err := writer.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		sawRemote = len(fresh.Razones) == 1
		return map[string]any{couple.FieldNotas: []couple.Note{}}, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if sawRemote {
		t.Fatal("fresh document should not contain reasons yet")
	}

	mem.Mutate(t, "ABC123", func(doc *couple.Document) {
		doc.Razones = []couple.Reason{{ID: "r1", Texto: "tu risa", AutorID: "u1"}}
	})
	_, err = writer.Update(ctx, func(fresh couple.Document) (map[string]any, error) {
		sawRemote = len(fresh.Razones) == 1
		return map[string]any{couple.FieldNotas: []couple.Note{}}, nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !sawRemote {
		t.Fatal("merge callback must receive the freshly read document")
	}
}

func TestUpdateKeepsUnknownFields(t *testing.T) {
	ctx := context.Background()
	mem := coupletest.NewMemoryStore()
	mem.SeedRaw("ABC123", json.RawMessage(`{"planes":[],"temaColor":"rosa","puntos":7}`))
	writer := couple.NewWriter(mem, "ABC123")

	if _, err := writer.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldNotas: []couple.Note{{ID: "n1", Texto: "hola"}}}, nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(mem.Raw("ABC123"), &fields); err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if string(fields["temaColor"]) != `"rosa"` {
		t.Fatalf("unknown field lost: %s", mem.Raw("ABC123"))
	}
	if string(fields["puntos"]) != "7" {
		t.Fatalf("sibling field changed: %s", fields["puntos"])
	}
}

func TestUpdateStoreFailureWrapsErrStore(t *testing.T) {
	ctx := context.Background()
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", couple.NewDocument())
	mem.UpdateErr = errors.New("connection reset")
	writer := couple.NewWriter(mem, "ABC123")

	var hookCalled bool
	writer.OnCommit(func(context.Context, string, couple.Document, json.RawMessage) { hookCalled = true })

	_, err := writer.Update(ctx, func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldPuntos: 10}, nil
	})
	if !errors.Is(err, couple.ErrStore) {
		t.Fatalf("Update() error = %v, want ErrStore", err)
	}
	if hookCalled {
		t.Fatal("commit hook must not run on failed writes")
	}
	if got := mem.Document(t, "ABC123").Puntos; got != 0 {
		t.Fatalf("stored points = %d, want 0", got)
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	writer := couple.NewWriter(coupletest.NewMemoryStore(), "NOPE00")
	_, err := writer.Update(context.Background(), func(couple.Document) (map[string]any, error) {
		return map[string]any{couple.FieldPuntos: 1}, nil
	})
	if !errors.Is(err, couple.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateWithoutChangesSkipsWrite(t *testing.T) {
	mem := coupletest.NewMemoryStore()
	mem.Seed(t, "ABC123", couple.NewDocument())
	writer := couple.NewWriter(mem, "ABC123")

	if _, err := writer.Update(context.Background(), func(couple.Document) (map[string]any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, updates := mem.Calls(); updates != 0 {
		t.Fatalf("updates = %d, want 0", updates)
	}
}
