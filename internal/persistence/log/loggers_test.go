package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"fableforge.ai/internal/sim/events"
)

func readJSONL(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var lines []string
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestChronicleLogger_AppendsOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	l := NewChronicleLogger(dir)

	evs := []events.Event{
		{ID: "ev_1", Type: "npc_spawned", Timestamp: 10, Source: "npc_1", Location: "village_1"},
		{ID: "ev_2", Type: "weather_changed", Timestamp: 60, Location: "village_1"},
		{ID: "ev_3", Type: "npc_departed", Timestamp: 75, Source: "npc_1", Target: "village_2"},
	}
	for _, ev := range evs {
		if err := l.WriteEvent(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "chronicle", "events-*.jsonl.zst"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("chronicle files: %v", files)
	}

	lines := readJSONL(t, files[0])
	if len(lines) != 3 {
		t.Fatalf("lines: got %d want 3", len(lines))
	}
	var got events.Event
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "ev_1" || got.Type != "npc_spawned" || got.Location != "village_1" {
		t.Fatalf("first line: %+v", got)
	}
}

func TestTickLogger_RoundTripsEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	in := []TickEntry{
		{Minutes: 15, TotalMinutes: 15, Day: 1, Hour: 0, Events: 2},
		{Minutes: 15, TotalMinutes: 30, Day: 1, Hour: 0, Events: 0, Faults: 1, Digest: "abc123"},
	}
	for _, e := range in {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "ticks", "ticks-*.jsonl.zst"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("tick files: %v", files)
	}

	lines := readJSONL(t, files[0])
	if len(lines) != 2 {
		t.Fatalf("lines: got %d want 2", len(lines))
	}
	var got TickEntry
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != in[1] {
		t.Fatalf("entry: got %+v want %+v", got, in[1])
	}
}
