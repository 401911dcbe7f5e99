package gen

import (
	"errors"
	"fmt"
	"strings"

	"fableforge.ai/internal/sim/catalogs"
)

// ErrExhausted means no candidate satisfied the constraints within the
// attempt budget. It is distinct from lookup errors: a constraint that
// names an unknown tier or stat fails immediately instead.
var ErrExhausted = errors.New("generation exhausted")

const maxItemAttempts = 100

// Constraints restrict GenerateItem output. Zero-valued fields are
// unconstrained. Tier bounds compare by declared order in the
// attribute pool, not alphabetically.
type Constraints struct {
	MinQuality string
	MaxQuality string
	MinRarity  string
	MaxRarity  string

	// MinValue and MaxValue bound the computed value; 0 means open.
	MinValue int
	MaxValue int

	ExcludeMaterials []string

	// RequireStats are force-inserted into the accepted item, sampled
	// from each stat's configured range.
	RequireStats []string
}

type tierBounds struct {
	minQ, maxQ int
	minR, maxR int
}

// GenerateItem rolls an item from the named template, or from a
// weighted pick over all templates when templateID is empty. The roll
// repeats until a candidate satisfies cons, re-picking the template
// each attempt unless it was pinned, and gives up with ErrExhausted
// after 100 attempts.
func (g *Generator) GenerateItem(templateID string, cons Constraints) (Item, error) {
	bounds, err := g.resolveBounds(cons)
	if err != nil {
		return Item{}, err
	}
	for _, name := range cons.RequireStats {
		if _, err := g.cats.Attributes.Stat(name); err != nil {
			return Item{}, err
		}
	}

	pinned := templateID != ""
	var tpl catalogs.ItemTemplate
	if pinned {
		tpl, err = g.cats.Items.Template(templateID)
		if err != nil {
			return Item{}, err
		}
	}

	for attempt := 0; attempt < maxItemAttempts; attempt++ {
		if !pinned {
			id, err := g.pickWeightedIDs(g.cats.Items.Order, func(id string) float64 {
				return g.cats.Items.Defs[id].Weight
			})
			if err != nil {
				return Item{}, err
			}
			tpl = g.cats.Items.Defs[id]
		}

		it, err := g.rollItem(tpl)
		if err != nil {
			return Item{}, err
		}
		if !g.satisfies(it, cons, bounds) {
			continue
		}
		if err := g.forceStats(&it, cons.RequireStats); err != nil {
			return Item{}, err
		}
		return it, nil
	}
	return Item{}, fmt.Errorf("%w: no item met constraints in %d attempts", ErrExhausted, maxItemAttempts)
}

func (g *Generator) rollItem(tpl catalogs.ItemTemplate) (Item, error) {
	it := Item{
		ID:       g.mintID("itm"),
		Template: tpl.ID,
		Category: tpl.Category,
		Subtype:  tpl.Subtype,
	}

	name, err := g.PickWeighted(tpl.Names)
	if err != nil {
		return Item{}, fmt.Errorf("template %s names: %w", tpl.ID, err)
	}
	it.Name = name

	if len(tpl.Materials) > 0 {
		m, err := g.PickWeighted(tpl.Materials)
		if err != nil {
			return Item{}, fmt.Errorf("template %s materials: %w", tpl.ID, err)
		}
		it.Material = m
	}

	mult := 1.0
	if !tpl.NoQuality {
		tier, err := g.pickTier(g.cats.Attributes.Qualities)
		if err != nil {
			return Item{}, fmt.Errorf("template %s quality: %w", tpl.ID, err)
		}
		it.Quality = tier.Name
		mult *= tier.Multiplier
	}
	if !tpl.NoRarity {
		tier, err := g.pickTier(g.cats.Attributes.Rarities)
		if err != nil {
			return Item{}, fmt.Errorf("template %s rarity: %w", tpl.ID, err)
		}
		it.Rarity = tier.Name
		mult *= tier.Multiplier
	}

	if len(tpl.DamageTypes) > 0 {
		dt, err := g.PickWeighted(tpl.DamageTypes)
		if err != nil {
			return Item{}, fmt.Errorf("template %s damage types: %w", tpl.ID, err)
		}
		it.DamageType = dt
	}

	if n := g.rangeCount(tpl.StatCount); n > 0 && len(tpl.StatPool) > 0 {
		it.Stats = map[string]int{}
		for _, sname := range g.sampleDistinct(tpl.StatPool, n) {
			def, err := g.cats.Attributes.Stat(sname)
			if err != nil {
				return Item{}, fmt.Errorf("template %s: %w", tpl.ID, err)
			}
			if v := g.IntBetween(def.Min, def.Max); v != 0 {
				it.Stats[sname] = v
			}
		}
		if len(it.Stats) == 0 {
			it.Stats = nil
		}
	}

	it.Value = int(float64(tpl.BaseValue) * mult)
	if it.Value < 0 {
		it.Value = 0
	}

	if tpl.Description != "" {
		it.Description = Fill(tpl.Description, map[string]string{
			"name":     it.Name,
			"material": strings.ToLower(it.Material),
			"quality":  strings.ToLower(it.Quality),
			"rarity":   strings.ToLower(it.Rarity),
			"category": tpl.Category,
			"subtype":  tpl.Subtype,
			"damage":   strings.ToLower(it.DamageType),
		})
	}
	if len(tpl.Flags) > 0 {
		it.Flags = append([]string(nil), tpl.Flags...)
	}
	return it, nil
}

func (g *Generator) pickTier(tiers []catalogs.TierDef) (catalogs.TierDef, error) {
	if len(tiers) == 0 {
		return catalogs.TierDef{}, ErrEmptySelection
	}
	var total float64
	for _, t := range tiers {
		w, err := effWeight(t.Weight)
		if err != nil {
			return catalogs.TierDef{}, fmt.Errorf("tier %q: %w", t.Name, err)
		}
		total += w
	}
	target := g.rng.Float64() * total

	var acc float64
	for _, t := range tiers {
		w, _ := effWeight(t.Weight)
		acc += w
		if target <= acc {
			return t, nil
		}
	}
	return tiers[len(tiers)-1], nil
}

func (g *Generator) resolveBounds(cons Constraints) (tierBounds, error) {
	b := tierBounds{minQ: -1, maxQ: -1, minR: -1, maxR: -1}
	var err error
	if cons.MinQuality != "" {
		if _, b.minQ, err = g.cats.Attributes.Quality(cons.MinQuality); err != nil {
			return b, err
		}
	}
	if cons.MaxQuality != "" {
		if _, b.maxQ, err = g.cats.Attributes.Quality(cons.MaxQuality); err != nil {
			return b, err
		}
	}
	if cons.MinRarity != "" {
		if _, b.minR, err = g.cats.Attributes.Rarity(cons.MinRarity); err != nil {
			return b, err
		}
	}
	if cons.MaxRarity != "" {
		if _, b.maxR, err = g.cats.Attributes.Rarity(cons.MaxRarity); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (g *Generator) satisfies(it Item, cons Constraints, b tierBounds) bool {
	if b.minQ >= 0 || b.maxQ >= 0 {
		_, qi, err := g.cats.Attributes.Quality(it.Quality)
		if err != nil {
			// Tierless item cannot meet a tier bound.
			return false
		}
		if b.minQ >= 0 && qi < b.minQ {
			return false
		}
		if b.maxQ >= 0 && qi > b.maxQ {
			return false
		}
	}
	if b.minR >= 0 || b.maxR >= 0 {
		_, ri, err := g.cats.Attributes.Rarity(it.Rarity)
		if err != nil {
			return false
		}
		if b.minR >= 0 && ri < b.minR {
			return false
		}
		if b.maxR >= 0 && ri > b.maxR {
			return false
		}
	}
	if cons.MinValue > 0 && it.Value < cons.MinValue {
		return false
	}
	if cons.MaxValue > 0 && it.Value > cons.MaxValue {
		return false
	}
	for _, m := range cons.ExcludeMaterials {
		if it.Material == m {
			return false
		}
	}
	return true
}

func (g *Generator) forceStats(it *Item, required []string) error {
	for _, name := range required {
		if _, ok := it.Stats[name]; ok {
			continue
		}
		def, err := g.cats.Attributes.Stat(name)
		if err != nil {
			return err
		}
		v := g.IntBetween(def.Min, def.Max)
		if v == 0 {
			v = 1
		}
		if it.Stats == nil {
			it.Stats = map[string]int{}
		}
		it.Stats[name] = v
	}
	return nil
}
