package snapshot

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func sampleSnapshot() SnapshotV1 {
	return SnapshotV1{
		Version:   Version,
		Timestamp: "2026-08-25T10:00:00Z",
		World: WorldStateV1{
			Name: "elder_mere",
			Seed: 42,
			Time: TimeV1{TotalMinutes: 1500, Scale: 1},
			Locations: map[string]json.RawMessage{
				"village_1a2b": json.RawMessage(`{"location":{"id":"village_1a2b"}}`),
			},
			NPCs: map[string]json.RawMessage{
				"npc_0001": json.RawMessage(`{"energy":80}`),
				"npc_0002": json.RawMessage(`{"energy":55}`),
			},
			History: []EventV1{
				{ID: "ev_1", Type: "npc_spawned", Timestamp: 10, Source: "npc_0001"},
			},
		},
	}
}

func TestWriteRead_CompressedJSON(t *testing.T) {
	snap := sampleSnapshot()
	path := filepath.Join(t.TempDir(), FileName("run", FormatJSON, true))
	if err := Write(path, snap, FormatJSON, true); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, format, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if format != FormatJSON {
		t.Fatalf("format: got %q", format)
	}
	if got.World.Name != "elder_mere" || got.World.Time.TotalMinutes != 1500 {
		t.Fatalf("world state: %+v", got.World)
	}
	if len(got.World.NPCs) != 2 || string(got.World.NPCs["npc_0001"]) != `{"energy":80}` {
		t.Fatalf("npc payloads: %v", got.World.NPCs)
	}
	if len(got.World.History) != 1 || got.World.History[0].Type != "npc_spawned" {
		t.Fatalf("history: %+v", got.World.History)
	}
}

func TestReadHeader_GobPeeksWithoutBody(t *testing.T) {
	snap := sampleSnapshot()
	path := filepath.Join(t.TempDir(), FileName("run", FormatGob, false))
	if err := Write(path, snap, FormatGob, false); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.Version != Version || h.Name != "elder_mere" || h.Timestamp != "2026-08-25T10:00:00Z" {
		t.Fatalf("header: %+v", h)
	}

	// The full read still decodes the body behind the header line.
	got, format, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if format != FormatGob || got.World.Seed != 42 {
		t.Fatalf("gob body: format %q seed %d", format, got.World.Seed)
	}
}

func TestFileName_Suffixes(t *testing.T) {
	cases := []struct {
		format     Format
		compressed bool
		want       string
	}{
		{FormatJSON, false, "spring-run.json"},
		{FormatJSON, true, "spring-run.json.zst"},
		{FormatGob, false, "spring-run.gob"},
		{FormatGob, true, "spring-run.gob.zst"},
	}
	for _, tc := range cases {
		if got := FileName("spring-run", tc.format, tc.compressed); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestParseFormat_RejectsUnknown(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Fatalf("json: %v %q", err, f)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("xml: got %v", err)
	}
}

func TestRead_UnknownExtensionFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.txt")
	if _, _, err := Read(path); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("got %v", err)
	}
}
