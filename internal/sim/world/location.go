package world

import (
	"encoding/json"
	"sort"

	"fableforge.ai/internal/sim/clock"
	"fableforge.ai/internal/sim/events"
	"fableforge.ai/internal/sim/gen"
)

// WeatherState is the last weather sample taken for a location.
// SampledHour gates resampling to once per simulation hour.
type WeatherState struct {
	Kind        string `json:"kind,omitempty"`
	Phase       string `json:"phase,omitempty"`
	SampledHour int64  `json:"sampled_hour"`
}

// LivingLocation wraps a generated location with the runtime state the
// simulation mutates: who is present, what lies around, the current
// weather and whether the market square is trading.
type LivingLocation struct {
	Loc gen.Location `json:"location"`

	Present     []string     `json:"present,omitempty"`
	GroundItems []string     `json:"ground_items,omitempty"`
	Weather     WeatherState `json:"weather"`
	MarketOpen  bool         `json:"market_open,omitempty"`
	Removed     bool         `json:"removed,omitempty"`
}

func newLivingLocation(loc *gen.Location) *LivingLocation {
	l := &LivingLocation{
		Loc:     *loc,
		Weather: WeatherState{SampledHour: -1},
	}
	for _, npc := range loc.NPCs {
		l.Present = append(l.Present, npc.ID)
	}
	sort.Strings(l.Present)
	for _, item := range loc.Items {
		l.GroundItems = append(l.GroundItems, item.ID)
	}
	sort.Strings(l.GroundItems)
	// Residents live in the world's npc map; the presence set is the
	// only membership record the location keeps.
	l.Loc.NPCs = nil
	return l
}

func (l *LivingLocation) ID() string     { return l.Loc.ID }
func (l *LivingLocation) Kind() Kind     { return KindLocation }
func (l *LivingLocation) IsActive() bool { return !l.Removed }

func (l *LivingLocation) MarshalState() ([]byte, error)    { return json.Marshal(l) }
func (l *LivingLocation) UnmarshalState(data []byte) error { return json.Unmarshal(data, l) }

// Update resamples weather at most once per simulation hour and keeps
// the market flag in step with trading hours.
func (l *LivingLocation) Update(delta float64, w *World) error {
	now := w.clock.Now()
	if hour := now.TotalMinutes / clock.MinutesPerHour; hour != l.Weather.SampledHour {
		if err := l.resampleWeather(hour, now, w); err != nil {
			return err
		}
	}
	l.updateMarket(now, w)
	return nil
}

// resampleWeather draws from the biome's table for the current season.
// The very first sample settles silently; after that a change of kind
// is announced on the bus. Biomes without a table for the season keep
// whatever weather they had.
func (l *LivingLocation) resampleWeather(hour int64, now clock.TimeState, w *World) error {
	biome, err := w.cats.Biomes.Biome(l.Loc.Biome)
	if err != nil {
		return err
	}
	l.Weather.SampledHour = hour
	l.Weather.Phase = string(now.Phase())

	table := biome.Weather[string(now.Season())]
	if len(table) == 0 {
		return nil
	}
	kind, err := w.gen.PickWeighted(table)
	if err != nil {
		return err
	}
	prev := l.Weather.Kind
	if kind == prev {
		return nil
	}
	l.Weather.Kind = kind
	if prev == "" {
		return nil
	}
	w.bus.Publish(events.Event{
		Type:     events.TypeWeatherChanged,
		Source:   l.Loc.ID,
		Location: l.Loc.ID,
		Data: map[string]any{
			"from":   prev,
			"to":     kind,
			"season": string(now.Season()),
		},
	}, false)
	return nil
}

// updateMarket opens and closes the market on the edges of trading
// hours. Only transitions publish events.
func (l *LivingLocation) updateMarket(now clock.TimeState, w *World) {
	open := l.Loc.Market && now.HourIn(w.tune.Hours.WorkStart, w.tune.Hours.WorkEnd)
	if open == l.MarketOpen {
		return
	}
	l.MarketOpen = open
	typ := events.TypeMarketClosed
	if open {
		typ = events.TypeMarketOpened
	}
	w.bus.Publish(events.Event{Type: typ, Source: l.Loc.ID, Location: l.Loc.ID}, false)
}

// addNPC and removeNPC keep the presence set sorted so iteration and
// snapshots stay deterministic.
func (l *LivingLocation) addNPC(id string) {
	i := sort.SearchStrings(l.Present, id)
	if i < len(l.Present) && l.Present[i] == id {
		return
	}
	l.Present = append(l.Present, "")
	copy(l.Present[i+1:], l.Present[i:])
	l.Present[i] = id
}

func (l *LivingLocation) removeNPC(id string) {
	i := sort.SearchStrings(l.Present, id)
	if i < len(l.Present) && l.Present[i] == id {
		l.Present = append(l.Present[:i], l.Present[i+1:]...)
	}
}
