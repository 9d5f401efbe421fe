// Package checkpoint implements the Checkpoint Store (C2): hash-verified
// snapshots of derived session state with bounded rollback (spec §4.2).
// A FileStore keeps the canonical file plus up to MaxRollbackDepth
// rotation files (.1, .2, .3) per seed; save rotates under an exclusive
// lock and load falls through rollback levels on hash mismatch.
//
// Grounded on _examples/original_source/src/ouroboros/persistence/checkpoint.py
// (canonical-JSON SHA-256 hash, .1/.2/.3 rotation with a sidecar .lock
// file rather than flock on the canonical file) and the teacher's
// atomic-rename pattern used throughout its checkpoint-adjacent stores
// (orchestration/hitl_checkpoint_store.go).
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/forgewell/acengine/core"
)

// Checkpoint is a point-in-time snapshot of derived session state
// (spec §3). Hash is the SHA-256 of the canonical JSON of
// {seed_id, phase, state, timestamp} with sorted keys.
type Checkpoint struct {
	SeedID    string                 `json:"seed_id"`
	Phase     string                 `json:"phase"`
	State     map[string]interface{} `json:"state"`
	Timestamp time.Time              `json:"timestamp"`
	Hash      string                 `json:"hash"`
}

// canonicalPayload returns the sorted-key JSON of the hashed fields,
// matching spec §6's "canonical JSON ... with sorted keys and no
// extraneous whitespace". json.Marshal already sorts map keys and a
// struct's fields are written in declaration order, so a minimal
// struct with only the hashed fields, declared in sorted key order,
// gives deterministic sorted-key output.
type canonicalPayload struct {
	Phase     string                 `json:"phase"`
	SeedID    string                 `json:"seed_id"`
	State     map[string]interface{} `json:"state"`
	Timestamp string                 `json:"timestamp"`
}

func computeHash(seedID, phase string, state map[string]interface{}, ts time.Time) (string, error) {
	payload := canonicalPayload{
		SeedID:    seedID,
		Phase:     phase,
		State:     state,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// New builds a Checkpoint with its hash computed over the canonical form.
func New(seedID, phase string, state map[string]interface{}) (Checkpoint, error) {
	ts := time.Now().UTC()
	hash, err := computeHash(seedID, phase, state, ts)
	if err != nil {
		return Checkpoint{}, core.New("checkpoint.New", core.KindPersistence, err)
	}
	return Checkpoint{SeedID: seedID, Phase: phase, State: state, Timestamp: ts, Hash: hash}, nil
}

// Verify reports whether c's stored hash matches a fresh recomputation
// over its fields — tamper detection per spec §4.2/§8.7.
func (c Checkpoint) Verify() bool {
	want, err := computeHash(c.SeedID, c.Phase, c.State, c.Timestamp)
	if err != nil {
		return false
	}
	return want == c.Hash
}

// Store is the Checkpoint Store's operation contract.
type Store interface {
	Save(checkpoint Checkpoint) error
	// Load returns the most recent checkpoint whose hash verifies,
	// trying levels 0..MaxRollbackDepth, and the rollback level it was
	// recovered from (0 = canonical file).
	Load(seedID string) (Checkpoint, int, error)
}

// FileStore persists checkpoints as JSON files under dir, one canonical
// file per seed plus up to maxDepth rotation files.
type FileStore struct {
	dir      string
	maxDepth int
	mu       sync.Mutex
	logger   core.Logger
}

func NewFileStore(dir string, maxDepth int, logger core.Logger) *FileStore {
	if maxDepth < 1 {
		maxDepth = 3
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/checkpoint")
	}
	return &FileStore{dir: dir, maxDepth: maxDepth, logger: logger}
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) canonicalPath(seedID string) string {
	return filepath.Join(s.dir, seedID+".json")
}

func (s *FileStore) rotationPath(seedID string, level int) string {
	return filepath.Join(s.dir, seedID+".json."+itoa(level))
}

func (s *FileStore) lockPath(seedID string) string {
	return filepath.Join(s.dir, seedID+".json.lock")
}

func itoa(n int) string {
	// small, allocation-free enough for rollback depths (1..9)
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}

// Save rotates the existing canonical file down the rollback chain
// (.1→.2, .2→.3, deleting anything past maxDepth), then atomically
// installs the new checkpoint as canonical. Guarded by a sidecar .lock
// file, matching the source's choice not to flock the canonical file
// itself.
func (s *FileStore) Save(cp Checkpoint) error {
	if cp.SeedID == "" {
		return core.Newf("checkpoint.Save", core.KindValidation, "seed_id is required")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := acquireLock(s.lockPath(cp.SeedID))
	if err != nil {
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}
	defer unlock()

	os.Remove(s.rotationPath(cp.SeedID, s.maxDepth+1)) // delete anything past maxDepth
	for level := s.maxDepth - 1; level >= 1; level-- {
		from := s.rotationPath(cp.SeedID, level)
		to := s.rotationPath(cp.SeedID, level+1) // replaces the oldest level
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return core.New("checkpoint.Save", core.KindPersistence, err)
			}
		}
	}
	if _, err := os.Stat(s.canonicalPath(cp.SeedID)); err == nil {
		if err := os.Rename(s.canonicalPath(cp.SeedID), s.rotationPath(cp.SeedID, 1)); err != nil {
			return core.New("checkpoint.Save", core.KindPersistence, err)
		}
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}
	tmp := s.canonicalPath(cp.SeedID) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}
	if err := f.Close(); err != nil {
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}
	if err := os.Rename(tmp, s.canonicalPath(cp.SeedID)); err != nil {
		return core.New("checkpoint.Save", core.KindPersistence, err)
	}

	s.logger.Info("checkpoint saved", map[string]interface{}{"seed_id": cp.SeedID, "phase": cp.Phase})
	return nil
}

// Load tries levels 0..maxDepth in order, returning the first
// checkpoint whose hash verifies. All levels failing is a
// "no valid checkpoint" error (spec §4.2).
func (s *FileStore) Load(seedID string) (Checkpoint, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for level := 0; level <= s.maxDepth; level++ {
		path := s.canonicalPath(seedID)
		if level > 0 {
			path = s.rotationPath(seedID, level)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			s.logger.Warn("checkpoint parse failure, trying next level", map[string]interface{}{"seed_id": seedID, "level": level})
			continue
		}
		if !cp.Verify() {
			s.logger.Warn("checkpoint hash mismatch, trying next level", map[string]interface{}{"seed_id": seedID, "level": level})
			continue
		}
		return cp, level, nil
	}
	return Checkpoint{}, 0, core.New("checkpoint.Load", core.KindPersistence, core.ErrNoValidCheckpoint).WithID(seedID)
}

func acquireLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	for err != nil && os.IsExist(err) {
		time.Sleep(5 * time.Millisecond)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return nil, err
	}
	f.Close()
	return func() { os.Remove(path) }, nil
}
