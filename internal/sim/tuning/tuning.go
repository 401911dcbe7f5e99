package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Needs    Needs    `yaml:"needs"`
	Behavior Behavior `yaml:"behavior"`
	Hours    Hours    `yaml:"hours"`
	Clock    Clock    `yaml:"clock"`
	Events   Events   `yaml:"events"`
}

// Needs are per-minute deltas and mood thresholds. Decay rates are
// negative, recovery rates positive.
type Needs struct {
	EnergyWorkPerMin  float64 `yaml:"energy_work_per_min"`
	EnergyIdlePerMin  float64 `yaml:"energy_idle_per_min"`
	EnergySleepPerMin float64 `yaml:"energy_sleep_per_min"`
	HungerPerMin      float64 `yaml:"hunger_per_min"`
	EatHungerPerMin   float64 `yaml:"eat_hunger_per_min"`
	EatEnergyPerMin   float64 `yaml:"eat_energy_per_min"`
	MoodDriftPerMin   float64 `yaml:"mood_drift_per_min"`
	MoodLowEnergy     float64 `yaml:"mood_low_energy"`
	MoodHighHunger    float64 `yaml:"mood_high_hunger"`
}

type Behavior struct {
	SleepUrgentEnergy float64 `yaml:"sleep_urgent_energy"`
	EatUrgentHunger   float64 `yaml:"eat_urgent_hunger"`
	WakeEnergy        float64 `yaml:"wake_energy"`
	WorkWakeEnergy    float64 `yaml:"work_wake_energy"`
	WorkStopEnergy    float64 `yaml:"work_stop_energy"`
	EatDoneHunger     float64 `yaml:"eat_done_hunger"`
	NightSleepEnergy  float64 `yaml:"night_sleep_energy"`
	IdleEatHunger     float64 `yaml:"idle_eat_hunger"`
	SocializeChance   float64 `yaml:"socialize_chance"`
	SocializeMinutes  float64 `yaml:"socialize_minutes"`
	SocializeMood     float64 `yaml:"socialize_mood"`
	CraftChanceFactor float64 `yaml:"craft_chance_factor"`
	MemoryCap         int     `yaml:"memory_cap"`
}

type Hours struct {
	WorkStart  int `yaml:"work_start"`
	WorkEnd    int `yaml:"work_end"`
	NightStart int `yaml:"night_start"`
	NightEnd   int `yaml:"night_end"`
}

type Clock struct {
	Scale float64 `yaml:"scale"`
	// CatchUp fires scheduled callbacks whose minute was stepped over.
	// Off, a callback fires only when its exact minute is reached.
	CatchUp bool `yaml:"catch_up"`
}

type Events struct {
	HistoryCap int `yaml:"history_cap"`
}

func Defaults() Tuning {
	return Tuning{
		Needs: Needs{
			EnergyWorkPerMin:  -0.15,
			EnergyIdlePerMin:  -0.05,
			EnergySleepPerMin: 0.5,
			HungerPerMin:      0.1,
			EatHungerPerMin:   -1.0,
			EatEnergyPerMin:   0.2,
			MoodDriftPerMin:   0.05,
			MoodLowEnergy:     30,
			MoodHighHunger:    70,
		},
		Behavior: Behavior{
			SleepUrgentEnergy: 20,
			EatUrgentHunger:   80,
			WakeEnergy:        90,
			WorkWakeEnergy:    50,
			WorkStopEnergy:    30,
			EatDoneHunger:     20,
			NightSleepEnergy:  60,
			IdleEatHunger:     50,
			SocializeChance:   0.10,
			SocializeMinutes:  10,
			SocializeMood:     5,
			CraftChanceFactor: 0.01,
			MemoryCap:         16,
		},
		Hours: Hours{
			WorkStart:  8,
			WorkEnd:    18,
			NightStart: 22,
			NightEnd:   6,
		},
		Clock: Clock{
			Scale: 1.0,
		},
		Events: Events{
			HistoryCap: 256,
		},
	}
}

// Load reads a yaml tuning file over the defaults, so partial files
// override only the keys they name.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
