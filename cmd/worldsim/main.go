package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"fableforge.ai/internal/persistence/archive"
	"fableforge.ai/internal/persistence/indexdb"
	persistlog "fableforge.ai/internal/persistence/log"
	"fableforge.ai/internal/persistence/snapshot"
	"fableforge.ai/internal/sim/catalogs"
	"fableforge.ai/internal/sim/clock"
	"fableforge.ai/internal/sim/tuning"
	"fableforge.ai/internal/sim/world"
)

func main() {
	var (
		name       = flag.String("name", "aldervale", "world name")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory (empty to skip validation)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")

		locations = flag.Int("locations", 5, "root locations for a fresh world")
		days      = flag.Int("days", 3, "days to simulate")
		stepMin   = flag.Int("step", 15, "minutes per tick")

		load     = flag.String("load", "", "save name to resume from (empty starts fresh)")
		saveName = flag.String("save", "autosave", "save name to write")
		format   = flag.String("format", "json", "save format: json|gob")
		compress = flag.Bool("compress", true, "zstd-compress saves")

		disableDB = flag.Bool("disable_db", false, "disable the sqlite save/event index")
		listSaves = flag.Bool("list", false, "list indexed saves and exit")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldsim] ", log.LstdFlags|log.Lmicroseconds)

	saveFormat, err := snapshot.ParseFormat(*format)
	if err != nil {
		logger.Fatalf("format: %v", err)
	}
	if *stepMin <= 0 {
		logger.Fatalf("step must be positive, got %d", *stepMin)
	}

	var cats *catalogs.Catalogs
	if strings.TrimSpace(*schemaDir) != "" {
		cats, err = catalogs.LoadValidated(*configDir, *schemaDir)
	} else {
		cats, err = catalogs.Load(*configDir)
	}
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *name)
	_ = os.MkdirAll(worldDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(worldDir, "index", "saves.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	if *listSaves {
		if idx == nil {
			logger.Fatalf("-list needs the index enabled")
		}
		rows, err := idx.ListSaves("", 50)
		if err != nil {
			logger.Fatalf("list saves: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("%s  v%d  day %d  %d locations  %d npcs  %s\n",
				r.SavedAt, r.Version, r.SimMinutes/clock.MinutesPerDay+1, r.Locations, r.NPCs, r.Path)
		}
		return
	}

	cfg := world.Config{
		Name:     *name,
		Seed:     *seed,
		DataDir:  worldDir,
		Catalogs: cats,
		Tuning:   &tune,
		Logger:   logger,
	}

	var w *world.World
	if *load != "" {
		w, err = world.LoadWorld(cfg, *load, saveFormat)
		if err != nil {
			logger.Fatalf("load world: %v", err)
		}
	} else {
		w, err = world.New(cfg)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := w.Generate(*locations); err != nil {
			logger.Fatalf("generate world: %v", err)
		}
		printWorldSummary(w)
	}

	chronicle := persistlog.NewChronicleLogger(worldDir)
	tickLog := persistlog.NewTickLogger(worldDir)
	defer chronicle.Close()
	defer tickLog.Close()

	w.Bus().SubscribeAll(chronicle.WriteEvent)
	if idx != nil {
		w.Bus().SubscribeAll(idx.WriteEvent)
		w.SetSaveRecorder(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	total := *days * clock.MinutesPerDay
	var (
		ticks        int
		eventsTotal  int
		faultsTotal  int
		lastSavedDay int64
	)

	logger.Printf("running %d days at %d min/tick from %s", *days, *stepMin, w.Clock().Now())

run:
	for elapsed := 0; elapsed < total; elapsed += *stepMin {
		select {
		case <-ctx.Done():
			logger.Printf("interrupted at %s", w.Clock().Now())
			break run
		default:
		}

		rep := w.Step(float64(*stepMin))
		ticks++
		eventsTotal += rep.Events

		entry := persistlog.TickEntry{
			Minutes:      rep.Minutes,
			TotalMinutes: rep.Time.TotalMinutes,
			Day:          rep.Time.Day,
			Hour:         rep.Time.Hour,
			Events:       rep.Events,
		}
		if err := rep.Err(); err != nil {
			entry.Faults = len(rep.ClockFaults) + len(rep.EntityFaults) + len(rep.BusFaults)
			faultsTotal += entry.Faults
			logger.Printf("tick faults at %s: %v", rep.Time, err)
		}
		if err := tickLog.WriteTick(entry); err != nil {
			logger.Printf("tick log: %v", err)
		}

		if day := rep.Time.TotalMinutes / clock.MinutesPerDay; day > lastSavedDay {
			lastSavedDay = day
			saveAndArchive(w, worldDir, fmt.Sprintf("%s-%05d", *saveName, day), saveFormat, *compress, logger)
		}
	}

	path := saveAndArchive(w, worldDir, *saveName, saveFormat, *compress, logger)
	digest, err := w.StateDigest()
	if err != nil {
		logger.Printf("digest: %v", err)
	}

	logger.Printf("done: %d ticks, %d events, %d faults, now %s", ticks, eventsTotal, faultsTotal, w.Clock().Now())
	if path != "" {
		logger.Printf("final save %s digest %s", path, digest)
	}
	printRecentEvents(w, 10)
}

func printWorldSummary(w *world.World) {
	summary := w.Summary()
	for _, id := range w.LocationIDs() {
		s, ok := summary[id]
		if !ok {
			continue
		}
		fmt.Printf("  %-28s %-10s %-10s npcs=%-3d items=%-3d roads=%d\n",
			s.Name, s.Type, s.Biome, s.NPCCount, s.ItemCount, len(s.Connections))
	}
}

func printRecentEvents(w *world.World, n int) {
	for _, ev := range w.Bus().Recent(n) {
		t := clock.At(ev.Timestamp)
		fmt.Printf("  %s  %-16s src=%s loc=%s\n", t, ev.Type, ev.Source, ev.Location)
	}
}

func saveAndArchive(w *world.World, worldDir, name string, format snapshot.Format, compressed bool, logger *log.Logger) string {
	path, err := w.Save(name, format, compressed)
	if err != nil {
		logger.Printf("save %s: %v", name, err)
		return ""
	}
	snap, err := w.ExportSnapshot()
	if err != nil {
		return path
	}
	if year, archived, ok, err := archive.ArchiveYearSnapshot(worldDir, path, snap); err != nil {
		logger.Printf("archive year snapshot: %v", err)
	} else if ok {
		logger.Printf("archived year %d to %s", year, archived)
	}
	return path
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
