package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fableforge.ai/internal/persistence/snapshot"
	"fableforge.ai/internal/sim/clock"
	"fableforge.ai/internal/sim/events"
)

// SaveRecorder is told about every snapshot the world writes. The
// persistence index implements it.
type SaveRecorder interface {
	RecordSave(path string, snap snapshot.SnapshotV1) error
}

// ExportSnapshot captures the full world state. The RNG stream
// position is deliberately not part of it: a snapshot records what the
// world is, not where the dice were.
func (w *World) ExportSnapshot() (snapshot.SnapshotV1, error) {
	st := snapshot.WorldStateV1{
		Name: w.cfg.Name,
		Seed: w.gen.Seed(),
		Time: snapshot.TimeV1{
			TotalMinutes: w.clock.Now().TotalMinutes,
			Scale:        w.clock.Scale,
		},
		Locations: make(map[string]json.RawMessage, len(w.locations)),
		NPCs:      make(map[string]json.RawMessage, len(w.npcs)),
	}

	for _, id := range sortedKeys(w.locations) {
		b, err := w.locations[id].MarshalState()
		if err != nil {
			return snapshot.SnapshotV1{}, fmt.Errorf("marshal location %s: %w", id, err)
		}
		st.Locations[id] = b
	}
	for _, id := range sortedKeys(w.npcs) {
		b, err := w.npcs[id].MarshalState()
		if err != nil {
			return snapshot.SnapshotV1{}, fmt.Errorf("marshal npc %s: %w", id, err)
		}
		st.NPCs[id] = b
	}
	for _, ev := range w.bus.History() {
		st.History = append(st.History, snapshot.EventV1{
			ID:        ev.ID,
			Type:      string(ev.Type),
			Timestamp: ev.Timestamp,
			Source:    ev.Source,
			Target:    ev.Target,
			Location:  ev.Location,
		})
	}

	return snapshot.SnapshotV1{
		Version:   snapshot.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		World:     st,
	}, nil
}

// ImportSnapshot replaces the world's population, clock and event
// history with the snapshot's. With lenient set (version-mismatched
// snapshots), entities that fail to decode are skipped with a logged
// warning instead of failing the load.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1, lenient bool) error {
	w.clock.Restore(clock.TimeState{TotalMinutes: snap.World.Time.TotalMinutes})
	if snap.World.Time.Scale > 0 {
		w.clock.Scale = snap.World.Time.Scale
	}
	w.lastHour = snap.World.Time.TotalMinutes / clock.MinutesPerHour
	w.lastDay = snap.World.Time.TotalMinutes / clock.MinutesPerDay

	w.locations = make(map[string]*LivingLocation, len(snap.World.Locations))
	for _, id := range sortedKeys(snap.World.Locations) {
		ll := &LivingLocation{}
		if err := ll.UnmarshalState(snap.World.Locations[id]); err != nil {
			if !lenient {
				return fmt.Errorf("decode location %s: %w", id, err)
			}
			if w.logger != nil {
				w.logger.Printf("warning: skipping location %s: %v", id, err)
			}
			continue
		}
		w.locations[id] = ll
	}

	w.npcs = make(map[string]*LivingNPC, len(snap.World.NPCs))
	for _, id := range sortedKeys(snap.World.NPCs) {
		ln := &LivingNPC{}
		if err := ln.UnmarshalState(snap.World.NPCs[id]); err != nil {
			if !lenient {
				return fmt.Errorf("decode npc %s: %w", id, err)
			}
			if w.logger != nil {
				w.logger.Printf("warning: skipping npc %s: %v", id, err)
			}
			continue
		}
		w.npcs[id] = ln
	}

	history := make([]events.Event, 0, len(snap.World.History))
	for _, ev := range snap.World.History {
		history = append(history, events.Event{
			ID:        ev.ID,
			Type:      events.Type(ev.Type),
			Timestamp: ev.Timestamp,
			Source:    ev.Source,
			Target:    ev.Target,
			Location:  ev.Location,
		})
	}
	w.bus.RestoreHistory(history)
	return nil
}

// Save writes a snapshot under DataDir/saves and returns the path.
func (w *World) Save(name string, format snapshot.Format, compressed bool) (string, error) {
	snap, err := w.ExportSnapshot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(w.cfg.DataDir, "saves")
	path := filepath.Join(dir, snapshot.FileName(name, format, compressed))
	if err := snapshot.Write(path, snap, format, compressed); err != nil {
		return "", err
	}
	if w.logger != nil {
		w.logger.Printf("saved %s at %s", w.cfg.Name, path)
	}
	if w.recorder != nil {
		if err := w.recorder.RecordSave(path, snap); err != nil && w.logger != nil {
			w.logger.Printf("warning: save index: %v", err)
		}
	}
	return path, nil
}

// LoadWorld rebuilds a world from the named save under
// cfg.DataDir/saves, trying the uncompressed file name first and the
// .zst variant second. The snapshot's name and seed override cfg's.
//
// The generator is reseeded from the stored seed: the RNG stream
// position is not persisted, so generation after a load replays the
// stream from its start rather than continuing the saved run.
func LoadWorld(cfg Config, name string, format snapshot.Format) (*World, error) {
	dir := filepath.Join(cfg.DataDir, "saves")
	path := filepath.Join(dir, snapshot.FileName(name, format, false))
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, snapshot.FileName(name, format, true))
	}
	return LoadWorldFile(cfg, path)
}

// LoadWorldFile rebuilds a world from a snapshot file at an explicit
// path. A version mismatch is a logged warning, not an error; the load
// proceeds best-effort.
func LoadWorldFile(cfg Config, path string) (*World, error) {
	snap, _, err := snapshot.Read(path)
	if err != nil {
		return nil, err
	}

	lenient := false
	if snap.Version != snapshot.Version {
		lenient = true
		if cfg.Logger != nil {
			cfg.Logger.Printf("warning: snapshot version %d, expected %d; loading best-effort",
				snap.Version, snapshot.Version)
		}
	}

	cfg.Name = snap.World.Name
	cfg.Seed = snap.World.Seed
	w, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap, lenient); err != nil {
		return nil, err
	}
	if w.logger != nil {
		w.logger.Printf("loaded %s from %s: %d locations, %d npcs, %s",
			w.cfg.Name, path, len(w.locations), len(w.npcs), w.clock.Now())
	}
	return w, nil
}

// StateDigest hashes the exported world state (wall timestamp
// excluded). Identical worlds produce identical digests; map keys sort
// during marshalling, so the digest is stable.
func (w *World) StateDigest() (string, error) {
	snap, err := w.ExportSnapshot()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(snap.World)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
