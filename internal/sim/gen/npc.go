package gen

import (
	"fmt"
	"sort"
	"strings"

	"fableforge.ai/internal/sim/catalogs"
)

const (
	commonerTitle = "Commoner"

	professionJitter = 1
	commonerJitter   = 2

	commonerSkillsMin = 1
	commonerSkillsMax = 2

	itemsPerProfessionMin = 1
	itemsPerProfessionMax = 3

	goldBaseMin, goldBaseMax       = 5, 25
	goldPerProfMin, goldPerProfMax = 10, 40
)

// GenerateNPC composes an NPC from the named professions. An empty
// profession list yields a commoner built from the generic pools. A
// non-empty raceID pins the race; otherwise the race is drawn from
// those every profession allows. A non-empty factionID pins the
// faction the same way.
//
// Multi-profession rules: stats are the floored per-stat mean across
// professions (racial modifiers and a ±1 jitter applied after, floored
// at 1), skills are the sorted union, titles join with " / ", and the
// single dialogue line is drawn from one uniformly chosen profession.
func (g *Generator) GenerateNPC(professionIDs []string, raceID, factionID string) (NPC, error) {
	profs := make([]catalogs.ProfessionDef, 0, len(professionIDs))
	for _, id := range professionIDs {
		p, err := g.cats.Professions.Profession(id)
		if err != nil {
			return NPC{}, err
		}
		profs = append(profs, p)
	}

	race, err := g.pickRace(profs, raceID)
	if err != nil {
		return NPC{}, err
	}
	faction, err := g.pickFaction(profs, factionID)
	if err != nil {
		return NPC{}, err
	}

	npc := NPC{
		ID:      g.mintID("npc"),
		Race:    race.ID,
		Faction: faction,
	}

	if len(profs) == 0 {
		return g.finishCommoner(npc, race)
	}

	npc.Professions = append([]string(nil), professionIDs...)

	npc.Stats = map[string]int{}
	for _, sd := range g.cats.Attributes.Stats {
		sum := 0
		for _, p := range profs {
			v, ok := p.Stats[sd.Name]
			if !ok {
				v = sd.Base
			}
			sum += v
		}
		v := sum/len(profs) + race.Modifiers[sd.Name] + g.Jitter(professionJitter)
		if v < 1 {
			v = 1
		}
		npc.Stats[sd.Name] = v
	}

	skillSet := map[string]struct{}{}
	for _, p := range profs {
		for _, s := range p.Skills {
			skillSet[s] = struct{}{}
		}
	}
	for s := range skillSet {
		npc.Skills = append(npc.Skills, s)
	}
	sort.Strings(npc.Skills)

	titles := make([]string, len(profs))
	for i, p := range profs {
		titles[i] = p.Title
	}
	npc.Title = strings.Join(titles, " / ")

	voice := profs[g.rng.Intn(len(profs))]
	if len(voice.Dialogue) > 0 {
		if npc.Dialogue, err = g.pickUniform(voice.Dialogue); err != nil {
			return NPC{}, err
		}
	}

	for _, p := range profs {
		if len(p.Items) == 0 {
			continue
		}
		n := g.IntBetween(itemsPerProfessionMin, itemsPerProfessionMax)
		for i := 0; i < n; i++ {
			tplID, err := g.pickUniform(p.Items)
			if err != nil {
				return NPC{}, err
			}
			it, err := g.GenerateItem(tplID, Constraints{})
			if err != nil {
				return NPC{}, fmt.Errorf("profession %s inventory: %w", p.ID, err)
			}
			npc.Inventory = append(npc.Inventory, it)
		}
	}

	npc.Gold = g.IntBetween(goldBaseMin, goldBaseMax)
	for range profs {
		npc.Gold += g.IntBetween(goldPerProfMin, goldPerProfMax)
	}

	if npc.Name, err = g.rollName(race); err != nil {
		return NPC{}, err
	}
	npc.Description = g.describeNPC(npc, race)
	return npc, nil
}

func (g *Generator) finishCommoner(npc NPC, race catalogs.RaceDef) (NPC, error) {
	npc.Title = commonerTitle

	npc.Stats = map[string]int{}
	for _, sd := range g.cats.Attributes.Stats {
		v := sd.Base + race.Modifiers[sd.Name] + g.Jitter(commonerJitter)
		if v < 1 {
			v = 1
		}
		npc.Stats[sd.Name] = v
	}

	if pool := g.cats.Attributes.GenericSkills; len(pool) > 0 {
		n := g.IntBetween(commonerSkillsMin, commonerSkillsMax)
		npc.Skills = g.sampleDistinct(pool, n)
		sort.Strings(npc.Skills)
	}
	var err error
	if pool := g.cats.Attributes.GenericDialogue; len(pool) > 0 {
		if npc.Dialogue, err = g.pickUniform(pool); err != nil {
			return NPC{}, err
		}
	}
	npc.Gold = g.IntBetween(goldBaseMin, goldBaseMax)

	if npc.Name, err = g.rollName(race); err != nil {
		return NPC{}, err
	}
	npc.Description = g.describeNPC(npc, race)
	return npc, nil
}

// describeNPC composes the record's one-line description from parts
// already settled: name, race, title, faction.
func (g *Generator) describeNPC(npc NPC, race catalogs.RaceDef) string {
	desc := fmt.Sprintf("%s, %s %s", npc.Name, strings.ToLower(race.Name), npc.Title)
	if npc.Faction != "" {
		if f, ok := g.cats.Factions.Defs[npc.Faction]; ok {
			desc += " of " + f.Name
		}
	}
	return desc
}

func (g *Generator) pickRace(profs []catalogs.ProfessionDef, raceID string) (catalogs.RaceDef, error) {
	if raceID != "" {
		return g.cats.Races.Race(raceID)
	}

	var cand []string
	for _, p := range profs {
		if len(p.Races) == 0 {
			continue
		}
		if cand == nil {
			cand = sortedCopy(p.Races)
			continue
		}
		cand = intersectSorted(cand, p.Races)
	}
	if len(cand) == 0 {
		cand = g.cats.Races.Order
	}

	id, err := g.pickWeightedIDs(cand, func(id string) float64 {
		return g.cats.Races.Defs[id].Weight
	})
	if err != nil {
		return catalogs.RaceDef{}, err
	}
	return g.cats.Races.Race(id)
}

func (g *Generator) pickFaction(profs []catalogs.ProfessionDef, factionID string) (string, error) {
	if factionID != "" {
		if _, err := g.cats.Factions.Faction(factionID); err != nil {
			return "", err
		}
		return factionID, nil
	}
	if len(g.cats.Factions.Order) == 0 {
		return "", nil
	}

	var cand []string
	for _, p := range profs {
		if len(p.Factions) == 0 {
			continue
		}
		if cand == nil {
			cand = sortedCopy(p.Factions)
			continue
		}
		cand = intersectSorted(cand, p.Factions)
	}
	if len(cand) == 0 {
		cand = g.cats.Factions.Order
	}

	id, err := g.pickWeightedIDs(cand, func(id string) float64 {
		return g.cats.Factions.Defs[id].Weight
	})
	if err != nil {
		return "", err
	}
	if _, err := g.cats.Factions.Faction(id); err != nil {
		return "", err
	}
	return id, nil
}

func (g *Generator) rollName(race catalogs.RaceDef) (string, error) {
	given, err := g.pickUniform(race.GivenNames)
	if err != nil {
		return "", fmt.Errorf("race %s names: %w", race.ID, err)
	}
	if len(race.Surnames) == 0 {
		return given, nil
	}
	sur, err := g.pickUniform(race.Surnames)
	if err != nil {
		return "", err
	}
	return given + " " + sur, nil
}

func intersectSorted(base, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	out := base[:0:0]
	for _, v := range base {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
