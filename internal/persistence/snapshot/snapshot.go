// Package snapshot defines the versioned save-file contract. The V1
// types are the persistence schema: runtime types convert into them
// and never marshal directly.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrBadFormat = errors.New("unknown snapshot format")

type Format string

const (
	FormatJSON Format = "json"
	FormatGob  Format = "gob"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatGob:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadFormat, s)
}

type Header struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

type SnapshotV1 struct {
	Version   int          `json:"version"`
	Timestamp string       `json:"timestamp"`
	World     WorldStateV1 `json:"world_state"`
}

// WorldStateV1 carries entity states as opaque documents produced by
// each entity's own marshaller, keyed by entity id.
type WorldStateV1 struct {
	Name      string                     `json:"name"`
	Seed      int64                      `json:"seed"`
	Time      TimeV1                     `json:"time"`
	Locations map[string]json.RawMessage `json:"locations"`
	NPCs      map[string]json.RawMessage `json:"npcs"`
	History   []EventV1                  `json:"history,omitempty"`
}

type TimeV1 struct {
	TotalMinutes int64   `json:"total_minutes"`
	Scale        float64 `json:"scale,omitempty"`
}

// EventV1 is a history summary entry; payload data is not retained.
type EventV1 struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`
	Location  string `json:"location,omitempty"`
}

func (s SnapshotV1) Header() Header {
	return Header{Version: s.Version, Name: s.World.Name, Timestamp: s.Timestamp}
}

// FileName combines save name, format, and compression into the
// on-disk file name, e.g. "spring-run.json.zst".
func FileName(name string, format Format, compressed bool) string {
	fn := name + "." + string(format)
	if compressed {
		fn += ".zst"
	}
	return fn
}

// Write stores snap at path in the given format, wrapping the stream
// in zstd when compressed. Gob files start with a one-line JSON header
// so readers can peek without decoding the body.
func Write(path string, snap SnapshotV1, format Format, compressed bool) error {
	if format != FormatJSON && format != FormatGob {
		return fmt.Errorf("%w: %q", ErrBadFormat, format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	var zenc *zstd.Encoder
	if compressed {
		zenc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		w = zenc
	}
	bw := bufio.NewWriterSize(w, 256*1024)

	switch format {
	case FormatJSON:
		if err := json.NewEncoder(bw).Encode(&snap); err != nil {
			return fmt.Errorf("json encode: %w", err)
		}
	case FormatGob:
		hb, _ := json.Marshal(snap.Header())
		if _, err := bw.Write(hb); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if zenc != nil {
		if err := zenc.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Read loads a snapshot, inferring format and compression from the
// file name suffixes.
func Read(path string) (SnapshotV1, Format, error) {
	var snap SnapshotV1
	format, compressed, err := sniff(path)
	if err != nil {
		return snap, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return snap, "", err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zdec, err := zstd.NewReader(f)
		if err != nil {
			return snap, "", err
		}
		defer zdec.Close()
		r = zdec
	}
	br := bufio.NewReaderSize(r, 256*1024)

	switch format {
	case FormatJSON:
		if err := json.NewDecoder(br).Decode(&snap); err != nil {
			return snap, "", fmt.Errorf("json decode: %w", err)
		}
	case FormatGob:
		// Header line; the gob body repeats it.
		if _, err := br.ReadBytes('\n'); err != nil {
			return snap, "", err
		}
		if err := gob.NewDecoder(br).Decode(&snap); err != nil {
			return snap, "", fmt.Errorf("gob decode: %w", err)
		}
	}
	return snap, format, nil
}

// ReadHeader peeks a snapshot's header without keeping the body.
func ReadHeader(path string) (Header, error) {
	format, compressed, err := sniff(path)
	if err != nil {
		return Header{}, err
	}
	if format == FormatJSON {
		snap, _, err := Read(path)
		if err != nil {
			return Header{}, err
		}
		return snap.Header(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zdec, err := zstd.NewReader(f)
		if err != nil {
			return Header{}, err
		}
		defer zdec.Close()
		r = zdec
	}
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Header{}, err
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("header line: %w", err)
	}
	return h, nil
}

func sniff(path string) (Format, bool, error) {
	name := filepath.Base(path)
	compressed := strings.HasSuffix(name, ".zst")
	if compressed {
		name = strings.TrimSuffix(name, ".zst")
	}
	switch {
	case strings.HasSuffix(name, ".json"):
		return FormatJSON, compressed, nil
	case strings.HasSuffix(name, ".gob"):
		return FormatGob, compressed, nil
	}
	return "", false, fmt.Errorf("%w: %s", ErrBadFormat, filepath.Base(path))
}
