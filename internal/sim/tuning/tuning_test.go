package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_CoreRates(t *testing.T) {
	d := Defaults()
	if d.Needs.EnergyWorkPerMin != -0.15 {
		t.Fatalf("energy work rate: got %v want -0.15", d.Needs.EnergyWorkPerMin)
	}
	if d.Needs.EnergySleepPerMin != 0.5 {
		t.Fatalf("energy sleep rate: got %v want 0.5", d.Needs.EnergySleepPerMin)
	}
	if d.Needs.EatHungerPerMin != -1.0 {
		t.Fatalf("eat hunger rate: got %v want -1.0", d.Needs.EatHungerPerMin)
	}
	if d.Behavior.SleepUrgentEnergy != 20 || d.Behavior.EatUrgentHunger != 80 {
		t.Fatalf("urgent thresholds: got %v/%v want 20/80",
			d.Behavior.SleepUrgentEnergy, d.Behavior.EatUrgentHunger)
	}
	if d.Hours.WorkStart != 8 || d.Hours.WorkEnd != 18 {
		t.Fatalf("work hours: got %d-%d want 8-18", d.Hours.WorkStart, d.Hours.WorkEnd)
	}
	if d.Clock.Scale != 1.0 || d.Clock.CatchUp {
		t.Fatalf("clock defaults: got scale=%v catch_up=%v", d.Clock.Scale, d.Clock.CatchUp)
	}
	if d.Events.HistoryCap != 256 {
		t.Fatalf("history cap: got %d want 256", d.Events.HistoryCap)
	}
}

func TestLoad_PartialFileOverridesOnlyNamedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	partial := `behavior:
  memory_cap: 4
clock:
  catch_up: true
`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tune, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.Behavior.MemoryCap != 4 {
		t.Fatalf("memory cap: got %d want 4", tune.Behavior.MemoryCap)
	}
	if !tune.Clock.CatchUp {
		t.Fatalf("catch_up not applied")
	}
	// Untouched keys keep their defaults.
	if tune.Needs.EnergyWorkPerMin != -0.15 {
		t.Fatalf("default lost: energy work rate got %v", tune.Needs.EnergyWorkPerMin)
	}
	if tune.Behavior.SocializeChance != 0.10 {
		t.Fatalf("default lost: socialize chance got %v", tune.Behavior.SocializeChance)
	}
}

func TestLoad_MissingFileReturnsErrorWithDefaults(t *testing.T) {
	tune, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if tune.Events.HistoryCap != 256 {
		t.Fatalf("defaults not returned alongside error")
	}
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("behavior: [not a map"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
