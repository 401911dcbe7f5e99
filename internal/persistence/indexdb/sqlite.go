// Package indexdb maintains a queryable SQLite index next to the save
// files: which saves exist, what they contain, and a searchable event
// journal. The index is secondary data; losing it never loses a world.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"fableforge.ai/internal/persistence/snapshot"
	"fableforge.ai/internal/sim/catalogs"
	"fableforge.ai/internal/sim/events"
	"fableforge.ai/internal/sim/tuning"
)

// SQLiteIndex writes asynchronously: callers enqueue rows and a single
// writer goroutine batches them into transactions. A full queue drops
// the row rather than stalling the simulation.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSave reqKind = iota + 1
	reqEvent
)

type req struct {
	kind  reqKind
	save  SaveRow
	event events.Event
}

// SaveRow is one indexed snapshot file.
type SaveRow struct {
	Path       string
	Name       string
	Version    int
	SavedAt    string
	SimMinutes int64
	Seed       int64
	Locations  int
	NPCs       int
	History    int
}

// EventRow is one indexed journal entry.
type EventRow struct {
	Seq       int64
	ID        string
	Type      string
	Timestamp int64
	Source    string
	Target    string
	Location  string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Generous buffer: event bursts (market edges, arrivals) should
		// not stall the world loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads. NORMAL is a decent
	// durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			path TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			sim_minutes INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			locations INTEGER NOT NULL,
			npcs INTEGER NOT NULL,
			history INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_name ON saves(name, saved_at);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			sim_minutes INTEGER NOT NULL,
			source TEXT,
			target TEXT,
			location TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, sim_minutes);`,
		`CREATE INDEX IF NOT EXISTS idx_events_source ON events(source, sim_minutes);`,
		`CREATE INDEX IF NOT EXISTS idx_events_location ON events(location, sim_minutes);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordSave indexes a snapshot file. Satisfies world.SaveRecorder.
func (s *SQLiteIndex) RecordSave(path string, snap snapshot.SnapshotV1) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	r := SaveRow{
		Path:       path,
		Name:       snap.World.Name,
		Version:    snap.Version,
		SavedAt:    snap.Timestamp,
		SimMinutes: snap.World.Time.TotalMinutes,
		Seed:       snap.World.Seed,
		Locations:  len(snap.World.Locations),
		NPCs:       len(snap.World.NPCs),
		History:    len(snap.World.History),
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		// Drop if the indexer falls behind; the save file itself is the
		// source of truth.
	}
	return nil
}

// WriteEvent appends an event to the journal index. Handed to the bus
// as a global subscriber.
func (s *SQLiteIndex) WriteEvent(ev events.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: ev}:
	default:
	}
	return nil
}

// UpsertCatalogs stores each catalog file with its digest plus the
// canonical JSON of the tuning actually in effect, so a save can be
// matched to the exact content it ran with.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv

	digests := cats.Digests()
	for _, name := range sortedDigestNames(digests) {
		b, err := os.ReadFile(filepath.Join(configDir, name+".json"))
		if err != nil || len(b) == 0 {
			continue
		}
		rows = append(rows, kv{name: name, digest: digests[name], json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListSaves returns indexed saves, newest first; name "" lists all
// worlds, limit <= 0 means no limit.
func (s *SQLiteIndex) ListSaves(name string, limit int) ([]SaveRow, error) {
	q := `SELECT path,name,version,saved_at,sim_minutes,seed,locations,npcs,history FROM saves`
	var args []any
	if name != "" {
		q += ` WHERE name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY saved_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRow
	for rows.Next() {
		var r SaveRow
		if err := rows.Scan(&r.Path, &r.Name, &r.Version, &r.SavedAt,
			&r.SimMinutes, &r.Seed, &r.Locations, &r.NPCs, &r.History); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListEvents returns journal entries in sequence order; typ "" matches
// every type, limit <= 0 means no limit.
func (s *SQLiteIndex) ListEvents(typ string, limit int) ([]EventRow, error) {
	q := `SELECT seq,id,type,sim_minutes,COALESCE(source,''),COALESCE(target,''),COALESCE(location,'') FROM events`
	var args []any
	if typ != "" {
		q += ` WHERE type = ?`
		args = append(args, typ)
	}
	q += ` ORDER BY seq`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.Seq, &r.ID, &r.Type, &r.Timestamp, &r.Source, &r.Target, &r.Location); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(path,name,version,saved_at,sim_minutes,seed,locations,npcs,history) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(seq,id,type,sim_minutes,source,target,location,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertSave != nil {
			_ = insertSave.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
	}()

	// Continue the event sequence across runs.
	var eventSeq int64
	_ = s.db.QueryRow(`SELECT COALESCE(MAX(seq),0) FROM events`).Scan(&eventSeq)

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSave:
			if insertSave == nil {
				continue
			}
			sv := r.save
			if _, err := tx.Stmt(insertSave).Exec(
				sv.Path, sv.Name, sv.Version, sv.SavedAt,
				sv.SimMinutes, sv.Seed, sv.Locations, sv.NPCs, sv.History,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqEvent:
			if insertEvent == nil {
				continue
			}
			eventSeq++
			ev := r.event
			raw, _ := json.Marshal(ev)
			if _, err := tx.Stmt(insertEvent).Exec(
				eventSeq, ev.ID, string(ev.Type), ev.Timestamp,
				ev.Source, ev.Target, ev.Location, string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}

func sortedDigestNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
