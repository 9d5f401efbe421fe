package checkpoint

import (
	"os"
	"testing"
)

func corruptCanonical(store *FileStore, seedID string) error {
	return os.WriteFile(store.canonicalPath(seedID), []byte("not json"), 0o644)
}

func TestNew_ComputesVerifiableHash(t *testing.T) {
	cp, err := New("seed-1", "planning", map[string]interface{}{"step": float64(1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cp.Hash == "" {
		t.Fatalf("expected a non-empty hash")
	}
	if !cp.Verify() {
		t.Errorf("expected a freshly created checkpoint to verify")
	}
}

func TestCheckpoint_VerifyDetectsTamper(t *testing.T) {
	cp, err := New("seed-1", "planning", map[string]interface{}{"step": float64(1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cp.Phase = "execution"
	if cp.Verify() {
		t.Errorf("expected tampering with Phase to invalidate the hash")
	}
}

func TestFileStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 3, nil)

	cp, err := New("seed-1", "planning", map[string]interface{}{"step": float64(1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Save(cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, level, err := store.Load("seed-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if level != 0 {
		t.Errorf("expected the canonical level 0, got %d", level)
	}
	if loaded.Hash != cp.Hash {
		t.Errorf("expected loaded checkpoint to match the saved one")
	}
}

func TestFileStore_LoadFallsBackToRotationOnCanonicalCorruption(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 3, nil)

	first, err := New("seed-1", "planning", map[string]interface{}{"step": float64(1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Save(first); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	second, err := New("seed-1", "execution", map[string]interface{}{"step": float64(2)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Save(second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	// corrupt the canonical file so Load must fall through to level 1.
	if err := corruptCanonical(store, "seed-1"); err != nil {
		t.Fatalf("corruptCanonical: %v", err)
	}

	loaded, level, err := store.Load("seed-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if level != 1 {
		t.Errorf("expected fallback to rollback level 1, got %d", level)
	}
	if loaded.Phase != "planning" {
		t.Errorf("expected the rotated-in checkpoint to be the first save, got phase %q", loaded.Phase)
	}
}

func TestFileStore_LoadUnknownSeedReturnsError(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, 3, nil)
	if _, _, err := store.Load("never-saved"); err == nil {
		t.Fatalf("expected an error for a seed with no saved checkpoint")
	}
}
