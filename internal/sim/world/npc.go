package world

import (
	"encoding/json"

	"fableforge.ai/internal/sim/events"
	"fableforge.ai/internal/sim/gen"
)

// Activity names an NPC's current occupation.
type Activity string

const (
	ActivityIdle        Activity = "Idle"
	ActivityWorking     Activity = "Working"
	ActivityTraveling   Activity = "Traveling"
	ActivityEating      Activity = "Eating"
	ActivitySleeping    Activity = "Sleeping"
	ActivitySocializing Activity = "Socializing"
)

// travelMinutes is how long any trip between connected locations takes.
// Travel progress advances by delta/travelMinutes per tick.
const travelMinutes = 60.0

// LivingNPC wraps a generated NPC record with the runtime state the
// simulation mutates: needs, current activity, location and travel
// progress, plus a short memory of notable moments.
type LivingNPC struct {
	NPC gen.NPC `json:"npc"`

	LocationID  string  `json:"location_id"`
	Destination string  `json:"destination,omitempty"`
	Progress    float64 `json:"progress,omitempty"`

	Activity      Activity `json:"activity"`
	Energy        float64  `json:"energy"`
	Hunger        float64  `json:"hunger"`
	Mood          float64  `json:"mood"`
	SocialMinutes float64  `json:"social_minutes,omitempty"`

	Memory  []string `json:"memory,omitempty"`
	Removed bool     `json:"removed,omitempty"`
}

// newLivingNPC seats a freshly generated NPC at a location with needs
// drawn from the world's generator so spawns stay deterministic.
func newLivingNPC(npc gen.NPC, locationID string, g *gen.Generator) *LivingNPC {
	return &LivingNPC{
		NPC:        npc,
		LocationID: locationID,
		Activity:   ActivityIdle,
		Energy:     float64(g.IntBetween(70, 100)),
		Hunger:     float64(g.IntBetween(0, 30)),
		Mood:       float64(g.IntBetween(40, 60)),
	}
}

func (n *LivingNPC) ID() string     { return n.NPC.ID }
func (n *LivingNPC) Kind() Kind     { return KindNPC }
func (n *LivingNPC) IsActive() bool { return !n.Removed }

func (n *LivingNPC) MarshalState() ([]byte, error)    { return json.Marshal(n) }
func (n *LivingNPC) UnmarshalState(data []byte) error { return json.Unmarshal(data, n) }

// Update runs one tick of the NPC state machine: needs drift first,
// then urgent preemption, then the logic of whichever activity the NPC
// is (now) in. A preemption consumes the tick; the new activity's own
// logic starts on the next one.
func (n *LivingNPC) Update(delta float64, w *World) error {
	n.tickNeeds(delta, w)
	if n.preemptUrgent(w) {
		return nil
	}
	switch n.Activity {
	case ActivityIdle:
		return n.updateIdle(w)
	case ActivityWorking:
		return n.updateWorking(delta, w)
	case ActivityTraveling:
		return n.updateTraveling(delta, w)
	case ActivityEating:
		n.updateEating(w)
	case ActivitySleeping:
		n.updateSleeping(w)
	case ActivitySocializing:
		n.updateSocializing(delta, w)
	}
	return nil
}

// tickNeeds applies the per-minute need rates for the current activity
// and drifts mood toward whichever end the needs justify. All three
// needs clamp to [0, 100].
func (n *LivingNPC) tickNeeds(delta float64, w *World) {
	needs := w.tune.Needs

	switch n.Activity {
	case ActivityWorking:
		n.Energy += needs.EnergyWorkPerMin * delta
	case ActivitySleeping:
		n.Energy += needs.EnergySleepPerMin * delta
	case ActivityEating:
		n.Energy += needs.EatEnergyPerMin * delta
	default:
		n.Energy += needs.EnergyIdlePerMin * delta
	}

	if n.Activity == ActivityEating {
		n.Hunger += needs.EatHungerPerMin * delta
	} else {
		n.Hunger += needs.HungerPerMin * delta
	}

	n.Energy = clamp(n.Energy, 0, 100)
	n.Hunger = clamp(n.Hunger, 0, 100)

	if n.Energy < needs.MoodLowEnergy || n.Hunger > needs.MoodHighHunger {
		n.Mood -= needs.MoodDriftPerMin * delta
	} else {
		n.Mood += needs.MoodDriftPerMin * delta
	}
	n.Mood = clamp(n.Mood, 0, 100)
}

// preemptUrgent forces the NPC out of whatever it is doing when a need
// crosses its critical threshold. Exhaustion wins over hunger; a
// critically tired NPC stays asleep even while starving. Preempting a
// trip cancels it, the NPC never left the origin's membership.
func (n *LivingNPC) preemptUrgent(w *World) bool {
	b := w.tune.Behavior
	if n.Energy < b.SleepUrgentEnergy {
		if n.Activity == ActivitySleeping {
			return false
		}
		n.cancelTravel()
		n.setActivity(ActivitySleeping, w)
		return true
	}
	if n.Hunger > b.EatUrgentHunger {
		if n.Activity == ActivityEating {
			return false
		}
		n.cancelTravel()
		n.setActivity(ActivityEating, w)
		return true
	}
	return false
}

// updateIdle decides what to do next, in priority order: sleep through
// the night, work a shift, eat, or drift into small talk.
func (n *LivingNPC) updateIdle(w *World) error {
	b := w.tune.Behavior
	hrs := w.tune.Hours
	now := w.clock.Now()

	if now.HourIn(hrs.NightStart, hrs.NightEnd) && n.Energy < b.NightSleepEnergy {
		n.setActivity(ActivitySleeping, w)
		return nil
	}
	if now.HourIn(hrs.WorkStart, hrs.WorkEnd) && n.Energy >= b.WorkStopEnergy {
		works, err := n.hasWorkProfession(w)
		if err != nil {
			return err
		}
		if works {
			n.setActivity(ActivityWorking, w)
			return nil
		}
	}
	if n.Hunger > b.IdleEatHunger {
		n.setActivity(ActivityEating, w)
		return nil
	}
	if w.gen.Chance(b.SocializeChance) {
		n.setActivity(ActivitySocializing, w)
	}
	return nil
}

// updateWorking knocks off when the shift ends or energy runs low;
// otherwise each working minute carries a small chance of finishing a
// craftable item from the NPC's professions.
func (n *LivingNPC) updateWorking(delta float64, w *World) error {
	b := w.tune.Behavior
	now := w.clock.Now()

	if !now.HourIn(w.tune.Hours.WorkStart, w.tune.Hours.WorkEnd) || n.Energy < b.WorkStopEnergy {
		n.setActivity(ActivityIdle, w)
		return nil
	}
	if w.gen.Chance(delta * b.CraftChanceFactor) {
		return n.craftItem(w)
	}
	return nil
}

func (n *LivingNPC) updateTraveling(delta float64, w *World) error {
	if n.Destination == "" {
		n.setActivity(ActivityIdle, w)
		return nil
	}
	n.Progress += delta / travelMinutes
	if n.Progress < 1 {
		return nil
	}
	return w.arriveNPC(n)
}

func (n *LivingNPC) updateEating(w *World) {
	if n.Hunger < w.tune.Behavior.EatDoneHunger {
		n.setActivity(ActivityIdle, w)
	}
}

// updateSleeping wakes the NPC fully rested, or early when a work day
// is on and energy has recovered enough to be useful.
func (n *LivingNPC) updateSleeping(w *World) {
	b := w.tune.Behavior
	if n.Energy > b.WakeEnergy {
		n.setActivity(ActivityIdle, w)
		return
	}
	if n.Energy > b.WorkWakeEnergy && w.clock.Now().HourIn(w.tune.Hours.WorkStart, w.tune.Hours.WorkEnd) {
		n.setActivity(ActivityIdle, w)
	}
}

func (n *LivingNPC) updateSocializing(delta float64, w *World) {
	n.SocialMinutes += delta
	if n.SocialMinutes > w.tune.Behavior.SocializeMinutes {
		n.SocialMinutes = 0
		n.setActivity(ActivityIdle, w)
	}
}

// setActivity switches state and applies entry effects. Socializing
// grants its mood bump once, on entry.
func (n *LivingNPC) setActivity(next Activity, w *World) {
	if n.Activity == next {
		return
	}
	n.Activity = next
	if next == ActivitySocializing {
		n.Mood = clamp(n.Mood+w.tune.Behavior.SocializeMood, 0, 100)
		n.SocialMinutes = 0
	}
}

func (n *LivingNPC) cancelTravel() {
	n.Destination = ""
	n.Progress = 0
}

// hasWorkProfession reports whether any of the NPC's professions is
// flagged as shift work. Commoners have no professions and never work.
func (n *LivingNPC) hasWorkProfession(w *World) (bool, error) {
	for _, id := range n.NPC.Professions {
		def, err := w.cats.Professions.Profession(id)
		if err != nil {
			return false, err
		}
		if def.Works {
			return true, nil
		}
	}
	return false, nil
}

// craftPool is the union of item templates the NPC's professions can
// craft, deduplicated in first-seen order.
func (n *LivingNPC) craftPool(w *World) ([]string, error) {
	var pool []string
	seen := map[string]bool{}
	for _, id := range n.NPC.Professions {
		def, err := w.cats.Professions.Profession(id)
		if err != nil {
			return nil, err
		}
		for _, tpl := range def.Crafts {
			if !seen[tpl] {
				seen[tpl] = true
				pool = append(pool, tpl)
			}
		}
	}
	return pool, nil
}

func (n *LivingNPC) craftItem(w *World) error {
	pool, err := n.craftPool(w)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return nil
	}
	tplID := pool[w.gen.IntBetween(0, len(pool)-1)]
	item, err := w.gen.GenerateItem(tplID, gen.Constraints{})
	if err != nil {
		return err
	}
	n.NPC.Inventory = append(n.NPC.Inventory, item)
	n.remember("crafted "+item.Name, w)
	w.bus.Publish(events.Event{
		Type:     events.TypeItemCrafted,
		Source:   n.NPC.ID,
		Location: n.LocationID,
		Data: map[string]any{
			"item_id":  item.ID,
			"template": item.Template,
			"name":     item.Name,
		},
	}, false)
	return nil
}

// remember appends a short note to the NPC's memory, dropping the
// oldest entries past the configured cap.
func (n *LivingNPC) remember(note string, w *World) {
	limit := w.tune.Behavior.MemoryCap
	if limit <= 0 {
		return
	}
	n.Memory = append(n.Memory, note)
	if len(n.Memory) > limit {
		n.Memory = append([]string(nil), n.Memory[len(n.Memory)-limit:]...)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
