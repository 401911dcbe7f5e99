package world

import (
	"math"
	"strings"
	"testing"

	"fableforge.ai/internal/sim/catalogs"
	"fableforge.ai/internal/sim/clock"
	"fableforge.ai/internal/sim/events"
	"fableforge.ai/internal/sim/gen"
)

func newBareWorld(t *testing.T, seed int64) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := New(Config{Name: "test", Seed: seed, Catalogs: cats, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

// seatTestLocations hand-builds two connected villages and an isolated
// mine so travel paths are under the test's control.
func seatTestLocations(t *testing.T, w *World) {
	t.Helper()
	locs := []*gen.Location{
		{ID: "village_a", Template: "village", Type: "village", Name: "Ash Hollow",
			Biome: "dalelands", Connections: map[string]string{"village": "village_b"}},
		{ID: "village_b", Template: "village", Type: "village", Name: "Birch Ford",
			Biome: "dalelands", Connections: map[string]string{"village": "village_a"}},
		{ID: "mine_c", Template: "mine", Type: "mine", Name: "Cold Delve",
			Biome: "ironhills", Connections: map[string]string{}},
	}
	for _, loc := range locs {
		w.locations[loc.ID] = newLivingLocation(loc)
	}
}

func spawnAt(t *testing.T, w *World, locID string, professions []string) *LivingNPC {
	t.Helper()
	n, err := w.SpawnNPC(locID, professions, "human")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return n
}

func near(got, want float64) bool { return math.Abs(got-want) < 1e-6 }

func TestTickNeeds_RatesPerActivity(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	cases := []struct {
		activity   Activity
		energy     float64
		hunger     float64
		wantEnergy float64
		wantHunger float64
	}{
		{ActivityWorking, 50, 40, 48.5, 41},
		{ActivityIdle, 50, 40, 49.5, 41},
		{ActivitySleeping, 50, 40, 55, 41},
		{ActivityEating, 50, 40, 52, 30},
		{ActivityTraveling, 50, 40, 49.5, 41},
	}
	for _, tc := range cases {
		n.Activity = tc.activity
		n.Energy, n.Hunger = tc.energy, tc.hunger
		n.tickNeeds(10, w)
		if !near(n.Energy, tc.wantEnergy) {
			t.Fatalf("%s energy: got %v want %v", tc.activity, n.Energy, tc.wantEnergy)
		}
		if !near(n.Hunger, tc.wantHunger) {
			t.Fatalf("%s hunger: got %v want %v", tc.activity, n.Hunger, tc.wantHunger)
		}
	}
}

func TestTickNeeds_MoodDriftFollowsNeeds(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivityIdle
	n.Energy, n.Hunger, n.Mood = 80, 10, 50
	n.tickNeeds(10, w)
	if !near(n.Mood, 50.5) {
		t.Fatalf("content mood: got %v want 50.5", n.Mood)
	}

	// Energy under the low-water mark drags mood down.
	n.Energy, n.Hunger, n.Mood = 25, 10, 50
	n.tickNeeds(10, w)
	if !near(n.Mood, 49.5) {
		t.Fatalf("tired mood: got %v want 49.5", n.Mood)
	}

	// So does hunger over the high-water mark.
	n.Energy, n.Hunger, n.Mood = 80, 75, 50
	n.tickNeeds(10, w)
	if !near(n.Mood, 49.5) {
		t.Fatalf("hungry mood: got %v want 49.5", n.Mood)
	}
}

func TestTickNeeds_ClampToRange(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivityWorking
	n.Energy, n.Hunger = 1, 95
	n.tickNeeds(100, w)
	if n.Energy != 0 {
		t.Fatalf("energy floor: got %v", n.Energy)
	}
	if n.Hunger != 100 {
		t.Fatalf("hunger ceiling: got %v", n.Hunger)
	}

	n.Activity = ActivitySleeping
	n.Energy = 95
	n.tickNeeds(100, w)
	if n.Energy != 100 {
		t.Fatalf("energy ceiling: got %v", n.Energy)
	}
}

func TestPreempt_ExhaustionWinsOverHunger(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	// Exhaustion drops a worker mid-shift in a single update.
	n.Activity = ActivityWorking
	n.Energy, n.Hunger = 15, 0
	if err := n.Update(5, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySleeping {
		t.Fatalf("working preempt: got %s want Sleeping", n.Activity)
	}

	// Starving and exhausted at once: sleep takes priority.
	n.Activity = ActivityEating
	n.Energy, n.Hunger = 15, 90
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySleeping {
		t.Fatalf("activity: got %s want Sleeping", n.Activity)
	}

	// And a critically tired sleeper is not woken by hunger.
	n.Energy, n.Hunger = 10, 95
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySleeping {
		t.Fatalf("sleeper preempted: got %s", n.Activity)
	}
}

func TestPreempt_CancelsTravelInFlight(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivityTraveling
	n.Destination = "village_b"
	n.Progress = 0.4
	n.Energy = 15
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySleeping {
		t.Fatalf("activity: got %s want Sleeping", n.Activity)
	}
	if n.Destination != "" || n.Progress != 0 {
		t.Fatalf("travel not cancelled: dest %q progress %v", n.Destination, n.Progress)
	}
	if n.LocationID != "village_a" {
		t.Fatalf("npc moved while preempted: %s", n.LocationID)
	}
}

func TestPreempt_HungerInterruptsIdle(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivityIdle
	n.Energy, n.Hunger = 50, 85
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityEating {
		t.Fatalf("activity: got %s want Eating", n.Activity)
	}
}

func TestIdle_SleepsThroughTheNight(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	w.clock.Restore(clock.TimeState{TotalMinutes: 23 * 60})
	n.Activity = ActivityIdle
	n.Energy, n.Hunger = 50, 10
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySleeping {
		t.Fatalf("activity: got %s want Sleeping", n.Activity)
	}
}

func TestIdle_WorksTheMorningShift(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", []string{"blacksmith"})

	w.clock.Restore(clock.TimeState{TotalMinutes: 9 * 60})
	n.Activity = ActivityIdle
	n.Energy, n.Hunger = 80, 10
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityWorking {
		t.Fatalf("activity: got %s want Working", n.Activity)
	}
}

func TestIdle_TooTiredToWorkEatsInstead(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", []string{"blacksmith"})

	w.clock.Restore(clock.TimeState{TotalMinutes: 9 * 60})
	n.Activity = ActivityIdle
	n.Energy, n.Hunger = 25, 60
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityEating {
		t.Fatalf("activity: got %s want Eating", n.Activity)
	}
}

func TestIdle_CommonersNeverWork(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	w.clock.Restore(clock.TimeState{TotalMinutes: 9 * 60})
	n.Activity = ActivityIdle
	n.Energy, n.Hunger = 80, 10
	for i := 0; i < 20; i++ {
		if err := n.Update(1, w); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if n.Activity != ActivityIdle && n.Activity != ActivitySocializing {
			t.Fatalf("update %d: commoner took up %s", i, n.Activity)
		}
	}
}

func TestWorking_CraftsFromProfessionPool(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", []string{"blacksmith"})

	w.clock.Restore(clock.TimeState{TotalMinutes: 9 * 60})
	w.tune.Behavior.CraftChanceFactor = 200 // every working minute crafts
	n.Activity = ActivityWorking
	n.Energy, n.Hunger = 80, 10

	before := len(n.NPC.Inventory)
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(n.NPC.Inventory) != before+1 {
		t.Fatalf("inventory: got %d want %d", len(n.NPC.Inventory), before+1)
	}
	crafted := n.NPC.Inventory[len(n.NPC.Inventory)-1]
	switch crafted.Template {
	case "longsword", "woodsman_axe", "iron_ingot":
	default:
		t.Fatalf("crafted %q outside blacksmith pool", crafted.Template)
	}
	if len(n.Memory) == 0 || !strings.HasPrefix(n.Memory[len(n.Memory)-1], "crafted ") {
		t.Fatalf("memory: %v", n.Memory)
	}

	w.bus.Process(0)
	made := w.bus.ByType(events.TypeItemCrafted)
	if len(made) != 1 || made[0].Source != n.NPC.ID {
		t.Fatalf("craft events: %+v", made)
	}
}

func TestWorking_KnocksOffAtShiftEnd(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", []string{"blacksmith"})

	w.clock.Restore(clock.TimeState{TotalMinutes: 18 * 60})
	n.Activity = ActivityWorking
	n.Energy, n.Hunger = 80, 10
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityIdle {
		t.Fatalf("activity: got %s want Idle", n.Activity)
	}
}

func TestSleeping_WakesRestedOrForTheShift(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivitySleeping
	n.Energy = 90
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityIdle {
		t.Fatalf("rested sleeper: got %s want Idle", n.Activity)
	}

	// Half-rested wakes only when the work day is on.
	w.clock.Restore(clock.TimeState{TotalMinutes: 3 * 60})
	n.Activity = ActivitySleeping
	n.Energy = 55
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySleeping {
		t.Fatalf("3am sleeper woke: got %s", n.Activity)
	}

	w.clock.Restore(clock.TimeState{TotalMinutes: 9 * 60})
	if err := n.Update(1, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityIdle {
		t.Fatalf("9am sleeper: got %s want Idle", n.Activity)
	}
}

func TestEating_StopsWhenSated(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivityEating
	n.Energy, n.Hunger = 50, 25
	if err := n.Update(6, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityIdle {
		t.Fatalf("activity: got %s want Idle (hunger %v)", n.Activity, n.Hunger)
	}
}

func TestSocializing_TimerAndEntryMoodBump(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	n.Activity = ActivityIdle
	n.Mood = 50
	n.setActivity(ActivitySocializing, w)
	if !near(n.Mood, 55) {
		t.Fatalf("entry mood: got %v want 55", n.Mood)
	}
	// Re-entering the same state grants nothing.
	n.setActivity(ActivitySocializing, w)
	if !near(n.Mood, 55) {
		t.Fatalf("double entry mood: got %v want 55", n.Mood)
	}

	n.Energy, n.Hunger = 80, 10
	if err := n.Update(6, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivitySocializing {
		t.Fatalf("6 minutes in: got %s", n.Activity)
	}
	if err := n.Update(6, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.Activity != ActivityIdle {
		t.Fatalf("timer expiry: got %s want Idle", n.Activity)
	}
	if n.SocialMinutes != 0 {
		t.Fatalf("social minutes not reset: %v", n.SocialMinutes)
	}
}

func TestRemember_DropsOldestPastCap(t *testing.T) {
	w := newBareWorld(t, 42)
	seatTestLocations(t, w)
	n := spawnAt(t, w, "village_a", nil)

	w.tune.Behavior.MemoryCap = 3
	for _, note := range []string{"one", "two", "three", "four"} {
		n.remember(note, w)
	}
	if len(n.Memory) != 3 {
		t.Fatalf("memory size: got %d want 3", len(n.Memory))
	}
	for i, want := range []string{"two", "three", "four"} {
		if n.Memory[i] != want {
			t.Fatalf("memory[%d]: got %q want %q", i, n.Memory[i], want)
		}
	}
}
