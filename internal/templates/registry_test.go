package templates

import (
	"path/filepath"
	"testing"

	"autoglm/internal/kv"
)

func newTestRegistry(t *testing.T) (*Registry, *kv.FileStore) {
	t.Helper()
	plain := kv.NewFileStore(filepath.Join(t.TempDir(), "settings.json"), nil)
	return NewRegistry(plain, nil), plain
}

func TestTemplateCRUD(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	tpl := TaskTemplate{ID: reg.NewID(), Name: "Order coffee", Description: "Open the app and order a latte"}
	if err := reg.Save(tpl); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok := reg.Get(tpl.ID)
	if !ok || got != tpl {
		t.Fatalf("Get() = %+v ok=%v, want %+v", got, ok, tpl)
	}

	tpl.Description = "Order two lattes"
	if err := reg.Save(tpl); err != nil {
		t.Fatalf("upsert error = %v", err)
	}
	if list := reg.List(); len(list) != 1 || list[0].Description != "Order two lattes" {
		t.Fatalf("upsert mismatch: %+v", list)
	}

	if err := reg.Delete(tpl.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(reg.List()) != 0 {
		t.Fatal("template not deleted")
	}
}

func TestUpsertPreservesOrder(t *testing.T) {
	t.Parallel()

	reg, _ := newTestRegistry(t)
	a := TaskTemplate{ID: "template-a", Name: "A"}
	b := TaskTemplate{ID: "template-b", Name: "B"}
	for _, tpl := range []TaskTemplate{a, b} {
		if err := reg.Save(tpl); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	a.Name = "A2"
	if err := reg.Save(a); err != nil {
		t.Fatalf("upsert error = %v", err)
	}
	list := reg.List()
	if len(list) != 2 || list[0].Name != "A2" || list[1].Name != "B" {
		t.Fatalf("order not preserved: %+v", list)
	}
}

func TestMalformedBlobYieldsEmptyList(t *testing.T) {
	t.Parallel()

	reg, plain := newTestRegistry(t)
	if err := plain.Set(KeyTemplates, "{oops"); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	if got := reg.List(); len(got) != 0 {
		t.Fatalf("malformed blob must yield empty list, got %+v", got)
	}
}
