package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/blang/semver/v4"
	"github.com/fxamacker/cbor/v2"

	"battleship-rampage/internal/game"
)

// FormatVersion is written into every snapshot. Snapshots from another
// major version are refused.
var FormatVersion = semver.MustParse("1.0.0")

type snapshot struct {
	Version string    `cbor:"version"`
	Seq     int64     `cbor:"seq"`
	Games   []*record `cbor:"games"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano, Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// WriteSnapshot encodes every game as CBOR.
func (m *Memory) WriteSnapshot(w io.Writer) error {
	m.mu.RLock()
	snap := snapshot{Version: FormatVersion.String(), Seq: m.seq}
	for _, r := range m.games {
		snap.Games = append(snap.Games, r)
	}
	err := encMode.NewEncoder(w).Encode(&snap)
	m.mu.RUnlock()
	return err
}

// ReadSnapshot replaces the store's contents with a snapshot.
func (m *Memory) ReadSnapshot(r io.Reader) error {
	var snap snapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	v, err := semver.Parse(snap.Version)
	if err != nil {
		return fmt.Errorf("snapshot version %q: %w", snap.Version, err)
	}
	if v.Major != FormatVersion.Major {
		return fmt.Errorf("snapshot version %s incompatible with %s", v, FormatVersion)
	}

	games := make(map[string]*record, len(snap.Games))
	for _, rec := range snap.Games {
		if rec.Fleets == nil {
			rec.Fleets = make(map[string]game.Fleet)
		}
		games[rec.Game.ID] = rec
	}

	m.mu.Lock()
	m.games = games
	m.seq = snap.Seq
	m.dirty = false
	m.mu.Unlock()
	return nil
}

// OpenFile loads a store from path. A missing file yields an empty store.
func OpenFile(path string) (*Memory, error) {
	m := NewMemory()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := m.ReadSnapshot(f); err != nil {
		return nil, err
	}
	return m, nil
}

// Flush writes a snapshot to path if anything changed since the last one.
// The file is replaced atomically.
func (m *Memory) Flush(path string) (bool, error) {
	m.mu.Lock()
	dirty := m.dirty
	m.dirty = false
	m.mu.Unlock()
	if !dirty {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		m.markDirty()
		return false, err
	}
	defer os.Remove(tmp.Name())
	if err := m.WriteSnapshot(tmp); err != nil {
		_ = tmp.Close()
		m.markDirty()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		m.markDirty()
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		m.markDirty()
		return false, err
	}
	return true, nil
}

func (m *Memory) markDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}
