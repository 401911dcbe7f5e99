// Package gen builds fantasy content (items, NPCs, locations, whole
// world graphs) from the catalog template pack.
//
// A Generator owns a single seeded RNG stream. Every random draw in a
// process that shares the Generator flows through that one stream, so
// two Generators with the same seed and catalogs produce identical
// output for identical call sequences.
package gen

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"fableforge.ai/internal/sim/catalogs"
)

var ErrEmptySelection = errors.New("empty weighted selection")

type Generator struct {
	seed int64
	rng  *rand.Rand
	cats *catalogs.Catalogs

	// Session cache of generated locations, by location id. Cleared by
	// GenerateWorld, shared by every GenerateLocation call in between.
	cache map[string]*Location
}

func New(seed int64, cats *catalogs.Catalogs) *Generator {
	return &Generator{
		seed:  seed,
		rng:   rand.New(rand.NewSource(seed)),
		cats:  cats,
		cache: map[string]*Location{},
	}
}

func (g *Generator) Seed() int64                  { return g.seed }
func (g *Generator) Catalogs() *catalogs.Catalogs { return g.cats }

// Chance draws once and reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return g.rng.Float64() < p
}

// IntBetween returns a uniform integer in [lo, hi].
func (g *Generator) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

// Jitter returns a uniform integer in [-spread, spread].
func (g *Generator) Jitter(spread int) int {
	if spread <= 0 {
		return 0
	}
	return g.rng.Intn(2*spread+1) - spread
}

// PickWeighted selects one value with probability weight/total.
// A zero weight counts as 1.0; negative weights are an error.
func (g *Generator) PickWeighted(choices []catalogs.Weighted) (string, error) {
	if len(choices) == 0 {
		return "", ErrEmptySelection
	}
	var total float64
	for _, c := range choices {
		w, err := effWeight(c.Weight)
		if err != nil {
			return "", fmt.Errorf("choice %q: %w", c.Value, err)
		}
		total += w
	}
	target := g.rng.Float64() * total

	var acc float64
	for _, c := range choices {
		w, _ := effWeight(c.Weight)
		acc += w
		if target <= acc {
			return c.Value, nil
		}
	}
	return choices[len(choices)-1].Value, nil
}

// pickWeightedIDs selects from ids using weightOf per id. Callers pass
// ids in a deterministic order (catalog Order slices are sorted).
func (g *Generator) pickWeightedIDs(ids []string, weightOf func(string) float64) (string, error) {
	if len(ids) == 0 {
		return "", ErrEmptySelection
	}
	var total float64
	for _, id := range ids {
		w, err := effWeight(weightOf(id))
		if err != nil {
			return "", fmt.Errorf("id %q: %w", id, err)
		}
		total += w
	}
	target := g.rng.Float64() * total

	var acc float64
	for _, id := range ids {
		w, _ := effWeight(weightOf(id))
		acc += w
		if target <= acc {
			return id, nil
		}
	}
	return ids[len(ids)-1], nil
}

func (g *Generator) pickUniform(vals []string) (string, error) {
	if len(vals) == 0 {
		return "", ErrEmptySelection
	}
	return vals[g.rng.Intn(len(vals))], nil
}

// sampleDistinct returns up to n distinct values from vals, preserving
// no particular order. vals is not modified.
func (g *Generator) sampleDistinct(vals []string, n int) []string {
	if n <= 0 || len(vals) == 0 {
		return nil
	}
	if n > len(vals) {
		n = len(vals)
	}
	cp := make([]string, len(vals))
	copy(cp, vals)
	g.rng.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	return cp[:n]
}

func (g *Generator) rangeCount(r catalogs.Range) int {
	return g.IntBetween(r.Min, r.Max)
}

func (g *Generator) mintID(prefix string) string {
	return fmt.Sprintf("%s_%08x", prefix, g.rng.Uint32())
}

func effWeight(w float64) (float64, error) {
	if w < 0 {
		return 0, fmt.Errorf("negative weight %v", w)
	}
	if w == 0 {
		return 1.0, nil
	}
	return w, nil
}

func sortedCopy(vals []string) []string {
	cp := make([]string, len(vals))
	copy(cp, vals)
	sort.Strings(cp)
	return cp
}
