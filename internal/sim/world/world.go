// Package world runs the living simulation: a calendar clock, an event
// bus and a population of NPCs and locations stepped in a fixed,
// deterministic order.
//
// A World is single-threaded. All state must be accessed from the
// goroutine driving Step; the type does no locking of its own.
package world

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"fableforge.ai/internal/sim/catalogs"
	"fableforge.ai/internal/sim/clock"
	"fableforge.ai/internal/sim/events"
	"fableforge.ai/internal/sim/gen"
	"fableforge.ai/internal/sim/tuning"
)

var (
	ErrNoSuchNPC      = errors.New("world: no such npc")
	ErrNoSuchLocation = errors.New("world: no such location")
	ErrNotConnected   = errors.New("world: locations not connected")
)

// Config carries everything a world needs at construction. Tuning nil
// means defaults, Logger nil means silent, DataDir is where saves land.
type Config struct {
	Name     string
	Seed     int64
	DataDir  string
	Catalogs *catalogs.Catalogs
	Tuning   *tuning.Tuning
	Logger   *log.Logger
}

// World owns the simulation state and the deterministic RNG stream
// that generated it. Two worlds built from the same seed, catalogs and
// tuning and stepped identically stay byte-identical.
type World struct {
	cfg  Config
	cats *catalogs.Catalogs
	tune tuning.Tuning

	gen   *gen.Generator
	clock *clock.Clock
	bus   *events.Bus

	npcs      map[string]*LivingNPC
	locations map[string]*LivingLocation
	summary   map[string]gen.LocationSummary

	lastHour int64
	lastDay  int64

	logger   *log.Logger
	recorder SaveRecorder
}

func New(cfg Config) (*World, error) {
	if cfg.Catalogs == nil {
		return nil, errors.New("world: nil catalogs")
	}
	if cfg.Name == "" {
		cfg.Name = "world"
	}
	tune := tuning.Defaults()
	if cfg.Tuning != nil {
		tune = *cfg.Tuning
	}

	w := &World{
		cfg:       cfg,
		cats:      cfg.Catalogs,
		tune:      tune,
		gen:       gen.New(cfg.Seed, cfg.Catalogs),
		clock:     clock.New(),
		npcs:      map[string]*LivingNPC{},
		locations: map[string]*LivingLocation{},
		summary:   map[string]gen.LocationSummary{},
		logger:    cfg.Logger,
	}
	w.clock.Scale = tune.Clock.Scale
	w.clock.CatchUp = tune.Clock.CatchUp

	w.bus = events.New(tune.Events.HistoryCap)
	w.bus.SetClock(func() int64 { return w.clock.Now().TotalMinutes })
	w.bus.SetLogger(cfg.Logger)
	return w, nil
}

// SetSaveRecorder wires a sink that is told about every snapshot the
// world writes. The persistence layer implements it; nil unwires.
func (w *World) SetSaveRecorder(r SaveRecorder) { w.recorder = r }

// Generate populates an empty world with a fresh location graph and
// seats every embedded NPC as a living resident.
func (w *World) Generate(count int) error {
	if len(w.locations) > 0 {
		return errors.New("world: already populated")
	}
	content, err := w.gen.GenerateWorld(count)
	if err != nil {
		return err
	}
	w.adoptContent(content)
	if w.logger != nil {
		w.logger.Printf("world %s: generated %d locations, %d npcs (seed %d)",
			w.cfg.Name, len(w.locations), len(w.npcs), w.gen.Seed())
	}
	return nil
}

func (w *World) adoptContent(content *gen.WorldContent) {
	for _, id := range sortedKeys(content.Locations) {
		loc := content.Locations[id]
		w.locations[id] = newLivingLocation(loc)
		for i := range loc.NPCs {
			npc := loc.NPCs[i]
			w.npcs[npc.ID] = newLivingNPC(npc, id, w.gen)
		}
	}
	for id, s := range content.Summary {
		w.summary[id] = s
	}
}

// TickReport summarizes one Step: how far time moved, how many events
// were dispatched, and every fault collected along the way. Faults
// never abort a tick.
type TickReport struct {
	Minutes      int
	Time         clock.TimeState
	Events       int
	ClockFaults  []error
	EntityFaults []error
	BusFaults    []error
}

// Err folds every fault in the report into one error, nil when clean.
func (r TickReport) Err() error {
	var all []error
	all = append(all, r.ClockFaults...)
	all = append(all, r.EntityFaults...)
	all = append(all, r.BusFaults...)
	return errors.Join(all...)
}

// Step advances the simulation by whole minutes (fractions truncate)
// and runs one tick: the clock with its scheduled callbacks, then
// locations, then NPCs, then a full drain of the event queue, then the
// hour and day boundary events. Entities are visited in sorted id
// order so identical worlds step identically.
func (w *World) Step(minutes float64) TickReport {
	rep := TickReport{Minutes: int(minutes)}
	if rep.Minutes <= 0 {
		rep.Time = w.clock.Now()
		return rep
	}

	rep.ClockFaults = w.clock.Advance(rep.Minutes)
	now := w.clock.Now()
	rep.Time = now
	delta := float64(rep.Minutes)

	for _, id := range sortedKeys(w.locations) {
		loc := w.locations[id]
		if !loc.IsActive() {
			continue
		}
		if err := loc.Update(delta, w); err != nil {
			rep.EntityFaults = append(rep.EntityFaults, fmt.Errorf("location %s: %w", id, err))
		}
	}
	for _, id := range sortedKeys(w.npcs) {
		n := w.npcs[id]
		if !n.IsActive() {
			continue
		}
		if err := n.Update(delta, w); err != nil {
			rep.EntityFaults = append(rep.EntityFaults, fmt.Errorf("npc %s: %w", id, err))
		}
	}

	rep.Events, rep.BusFaults = w.bus.Process(0)

	if hour := now.TotalMinutes / clock.MinutesPerHour; hour != w.lastHour {
		w.lastHour = hour
		w.bus.Publish(events.Event{
			Type: events.TypeHourPassed,
			Data: map[string]any{"hour": now.Hour, "day": now.Day, "year": now.Year},
		}, true)
	}
	if day := now.TotalMinutes / clock.MinutesPerDay; day != w.lastDay {
		w.lastDay = day
		w.bus.Publish(events.Event{
			Type: events.TypeDayPassed,
			Data: map[string]any{"day": now.Day, "year": now.Year},
		}, true)
	}
	return rep
}

// StepReal converts elapsed wall time to simulation minutes through
// the clock scale and steps by that much.
func (w *World) StepReal(elapsed time.Duration) TickReport {
	return w.Step(elapsed.Minutes() * w.clock.Scale)
}

// SpawnNPC generates a fresh NPC and seats it at the location. An
// empty professionIDs rolls a commoner; raceID "" lets the generator
// pick one the professions allow.
func (w *World) SpawnNPC(locationID string, professionIDs []string, raceID string) (*LivingNPC, error) {
	loc, ok := w.locations[locationID]
	if !ok || !loc.IsActive() {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchLocation, locationID)
	}
	npc, err := w.gen.GenerateNPC(professionIDs, raceID, "")
	if err != nil {
		return nil, err
	}
	ln := newLivingNPC(npc, locationID, w.gen)
	w.npcs[npc.ID] = ln
	loc.addNPC(npc.ID)
	w.bus.Publish(events.Event{
		Type:     events.TypeNPCSpawned,
		Source:   npc.ID,
		Location: locationID,
		Data:     map[string]any{"name": npc.Name, "title": npc.Title},
	}, true)
	return ln, nil
}

// RemoveNPC retires an NPC: it leaves its location's presence set and
// is marked inactive. The record stays registered so snapshots keep
// it; updates and world ops skip it from here on.
func (w *World) RemoveNPC(id string) error {
	n, ok := w.npcs[id]
	if !ok || !n.IsActive() {
		return fmt.Errorf("%w: %q", ErrNoSuchNPC, id)
	}
	if loc, ok := w.locations[n.LocationID]; ok {
		loc.removeNPC(id)
	}
	n.cancelTravel()
	n.Removed = true
	w.bus.Publish(events.Event{
		Type:     events.TypeNPCRemoved,
		Source:   id,
		Location: n.LocationID,
		Data:     map[string]any{"name": n.NPC.Name},
	}, true)
	return nil
}

// SendNPC starts an NPC traveling to a directly connected location.
// The NPC stays in the origin's presence set until it arrives.
func (w *World) SendNPC(id, destID string) error {
	n, ok := w.npcs[id]
	if !ok || !n.IsActive() {
		return fmt.Errorf("%w: %q", ErrNoSuchNPC, id)
	}
	dest, ok := w.locations[destID]
	if !ok || !dest.IsActive() {
		return fmt.Errorf("%w: %q", ErrNoSuchLocation, destID)
	}
	if destID == n.LocationID {
		return fmt.Errorf("world: npc %s already at %s", id, destID)
	}
	origin, ok := w.locations[n.LocationID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchLocation, n.LocationID)
	}
	connected := false
	for _, neighbor := range origin.Loc.Connections {
		if neighbor == destID {
			connected = true
			break
		}
	}
	if !connected {
		return fmt.Errorf("%w: %s -> %s", ErrNotConnected, n.LocationID, destID)
	}

	n.Destination = destID
	n.Progress = 0
	n.setActivity(ActivityTraveling, w)
	w.bus.Publish(events.Event{
		Type:     events.TypeNPCDeparted,
		Source:   id,
		Target:   destID,
		Location: n.LocationID,
	}, true)
	return nil
}

// arriveNPC completes a trip: presence swaps from origin to
// destination and the arrival is announced.
func (w *World) arriveNPC(n *LivingNPC) error {
	destID := n.Destination
	dest, ok := w.locations[destID]
	if !ok || !dest.IsActive() {
		n.cancelTravel()
		n.setActivity(ActivityIdle, w)
		return fmt.Errorf("%w: travel target %q", ErrNoSuchLocation, destID)
	}
	if origin, ok := w.locations[n.LocationID]; ok {
		origin.removeNPC(n.NPC.ID)
	}
	from := n.LocationID
	n.LocationID = destID
	dest.addNPC(n.NPC.ID)
	n.cancelTravel()
	n.setActivity(ActivityIdle, w)
	n.remember("arrived at "+dest.Loc.Name, w)
	w.bus.Publish(events.Event{
		Type:     events.TypeNPCArrived,
		Source:   n.NPC.ID,
		Location: destID,
		Data:     map[string]any{"from": from},
	}, false)
	return nil
}

func (w *World) Name() string                 { return w.cfg.Name }
func (w *World) Clock() *clock.Clock          { return w.clock }
func (w *World) Bus() *events.Bus             { return w.bus }
func (w *World) Generator() *gen.Generator    { return w.gen }
func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }
func (w *World) Tuning() tuning.Tuning        { return w.tune }

// NPC returns a registered NPC, retired ones included.
func (w *World) NPC(id string) (*LivingNPC, bool) {
	n, ok := w.npcs[id]
	return n, ok
}

func (w *World) Location(id string) (*LivingLocation, bool) {
	l, ok := w.locations[id]
	return l, ok
}

func (w *World) NPCIDs() []string      { return sortedKeys(w.npcs) }
func (w *World) LocationIDs() []string { return sortedKeys(w.locations) }

// Summary returns a copy of the per-location summaries captured at
// generation time.
func (w *World) Summary() map[string]gen.LocationSummary {
	out := make(map[string]gen.LocationSummary, len(w.summary))
	for k, v := range w.summary {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
