package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	persistlog "fableforge.ai/internal/persistence/log"
	"fableforge.ai/internal/persistence/snapshot"
	"fableforge.ai/internal/sim/catalogs"
	"fableforge.ai/internal/sim/clock"
	"fableforge.ai/internal/sim/world"
)

func main() {
	var (
		savePath  = flag.String("save", "", "path to a snapshot file (.json/.gob, optionally .zst)")
		showNPCs  = flag.Bool("npcs", false, "print the npc roster")
		showLocs  = flag.Bool("locations", false, "print the location roster")
		history   = flag.Int("history", 0, "print the last N history entries")
		resumeMin = flag.Int("resume", 0, "rebuild the world and step N minutes (needs -configs)")
		configDir = flag.String("configs", "./configs", "config directory (for -resume)")
		ticksDir  = flag.String("ticks", "", "tick journal directory to summarize (optional)")
	)
	flag.Parse()

	if *savePath == "" && *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -save or -ticks")
		os.Exit(2)
	}

	if *ticksDir != "" {
		if err := summarizeTicks(*ticksDir); err != nil {
			fmt.Fprintln(os.Stderr, "ticks:", err)
			os.Exit(1)
		}
		if *savePath == "" {
			return
		}
	}

	snap, format, err := snapshot.Read(*savePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	now := clock.At(snap.World.Time.TotalMinutes)
	fmt.Printf("snapshot v%d world=%s format=%s seed=%d %s locations=%d npcs=%d history=%d\n",
		snap.Version, snap.World.Name, format, snap.World.Seed, now,
		len(snap.World.Locations), len(snap.World.NPCs), len(snap.World.History))

	if *showLocs {
		printLocations(snap)
	}
	if *showNPCs {
		printNPCs(snap)
	}
	if *history > 0 {
		printHistory(snap, *history)
	}

	if *resumeMin > 0 {
		if err := resume(snap, *savePath, *configDir, *resumeMin); err != nil {
			fmt.Fprintln(os.Stderr, "resume:", err)
			os.Exit(1)
		}
	}
}

func printLocations(snap snapshot.SnapshotV1) {
	for _, id := range sortedStateIDs(snap.World.Locations) {
		var loc world.LivingLocation
		if err := json.Unmarshal(snap.World.Locations[id], &loc); err != nil {
			fmt.Printf("  %s: <undecodable: %v>\n", id, err)
			continue
		}
		market := ""
		if loc.MarketOpen {
			market = " market-open"
		}
		fmt.Printf("  %-28s %-10s %-10s weather=%-8s present=%d%s\n",
			loc.Loc.Name, loc.Loc.Type, loc.Loc.Biome, loc.Weather.Kind, len(loc.Present), market)
	}
}

func printNPCs(snap snapshot.SnapshotV1) {
	for _, id := range sortedStateIDs(snap.World.NPCs) {
		var npc world.LivingNPC
		if err := json.Unmarshal(snap.World.NPCs[id], &npc); err != nil {
			fmt.Printf("  %s: <undecodable: %v>\n", id, err)
			continue
		}
		fmt.Printf("  %-24s %-22s %-12s e=%5.1f h=%5.1f m=%5.1f at=%s\n",
			npc.NPC.Name, npc.NPC.Title, npc.Activity, npc.Energy, npc.Hunger, npc.Mood, npc.LocationID)
	}
}

func printHistory(snap snapshot.SnapshotV1, n int) {
	evs := snap.World.History
	if len(evs) > n {
		evs = evs[len(evs)-n:]
	}
	for _, ev := range evs {
		fmt.Printf("  %s  %-16s src=%s loc=%s\n", clock.At(ev.Timestamp), ev.Type, ev.Source, ev.Location)
	}
}

func resume(snap snapshot.SnapshotV1, path, configDir string, minutes int) error {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	w, err := world.LoadWorldFile(world.Config{
		DataDir:  filepath.Dir(filepath.Dir(path)),
		Catalogs: cats,
	}, path)
	if err != nil {
		return err
	}

	before, err := w.StateDigest()
	if err != nil {
		return err
	}
	rep := w.Step(float64(minutes))
	after, err := w.StateDigest()
	if err != nil {
		return err
	}

	fmt.Printf("resumed %d minutes: %s -> %s, %d events\n", minutes, snapDigest(before), snapDigest(after), rep.Events)
	if err := rep.Err(); err != nil {
		fmt.Printf("tick faults: %v\n", err)
	}
	return nil
}

func summarizeTicks(dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "ticks-") && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return fmt.Errorf("no tick journals found in %s", dir)
	}

	var (
		count   int
		minutes int
		faults  int
		last    persistlog.TickEntry
	)
	for _, path := range files {
		if err := scanTicks(path, func(e persistlog.TickEntry) {
			count++
			minutes += e.Minutes
			faults += e.Faults
			last = e
		}); err != nil {
			return err
		}
	}
	fmt.Printf("ticks: %d entries, %d minutes simulated, %d faults, last at day %d hour %d\n",
		count, minutes, faults, last.Day, last.Hour)
	return nil
}

func scanTicks(path string, fn func(persistlog.TickEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var entry persistlog.TickEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(entry)
	}
	return sc.Err()
}

func sortedStateIDs(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func snapDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
