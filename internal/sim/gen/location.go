package gen

import (
	"fmt"
	"sort"
	"strings"

	"fableforge.ai/internal/sim/catalogs"
)

const (
	// neighborReuseChance is the odds a requested neighbor is satisfied
	// from the session cache instead of generated fresh.
	neighborReuseChance = 0.5

	// neighborDepthMax bounds recursive neighbor generation: a root's
	// neighbors never generate neighbors of their own.
	neighborDepthMax = 1

	// worldRootConns caps edges added per root during world generation.
	worldRootConns = 2

	commonerChance         = 0.15
	secondProfessionChance = 0.10
)

// GenerateLocation builds one location from the named template, or a
// weighted pick when templateID is empty. With connect set, neighbors
// are attached for each template in the connects_to list, drawing from
// the session cache half the time; a non-negative maxConnections caps
// how many are attached. A non-empty biomeID forces the biome, even
// one outside the template's own list, instead of drawing it.
//
// Construction is two-phase: the node is built and registered in the
// cache first, then edges are attached, so cyclic neighbor references
// resolve against a complete node.
func (g *Generator) GenerateLocation(templateID string, connect bool, maxConnections int, biomeID string) (*Location, error) {
	return g.generateLocation(templateID, connect, biomeID, 0, maxConnections)
}

func (g *Generator) generateLocation(templateID string, connect bool, biomeID string, depth, maxEdges int) (*Location, error) {
	var tpl catalogs.LocationTemplate
	var err error
	if templateID != "" {
		tpl, err = g.cats.Locations.Template(templateID)
		if err != nil {
			return nil, err
		}
	} else {
		id, err := g.pickWeightedIDs(g.cats.Locations.Order, func(id string) float64 {
			return g.cats.Locations.Defs[id].Weight
		})
		if err != nil {
			return nil, err
		}
		tpl = g.cats.Locations.Defs[id]
	}

	loc, err := g.buildNode(tpl, biomeID)
	if err != nil {
		return nil, err
	}
	g.cache[loc.ID] = loc

	if connect && depth < neighborDepthMax {
		if err := g.linkNeighbors(loc, tpl, depth, maxEdges); err != nil {
			return nil, err
		}
	}
	return loc, nil
}

func (g *Generator) buildNode(tpl catalogs.LocationTemplate, biomeID string) (*Location, error) {
	loc := &Location{
		ID:          g.mintLocationID(tpl.ID),
		Template:    tpl.ID,
		Type:        tpl.Type,
		Market:      tpl.Market,
		Connections: map[string]string{},
	}

	if biomeID == "" {
		var err error
		biomeID, err = g.pickWeightedIDs(sortedCopy(tpl.Biomes), func(id string) float64 {
			return g.cats.Biomes.Defs[id].Weight
		})
		if err != nil {
			return nil, fmt.Errorf("template %s biomes: %w", tpl.ID, err)
		}
	}
	biome, err := g.cats.Biomes.Biome(biomeID)
	if err != nil {
		return nil, err
	}
	loc.Biome = biome.ID

	loc.Name, err = g.rollLocationName(tpl)
	if err != nil {
		return nil, err
	}

	loc.Tags = append([]string(nil), tpl.BaseTags...)
	if len(tpl.ExtraTags) > 0 {
		n := g.rangeCount(tpl.ExtraTagCount)
		for i := 0; i < n; i++ {
			tag, err := g.PickWeighted(tpl.ExtraTags)
			if err != nil {
				return nil, fmt.Errorf("template %s extra tags: %w", tpl.ID, err)
			}
			if !contains(loc.Tags, tag) {
				loc.Tags = append(loc.Tags, tag)
			}
		}
	}

	if tpl.Description != "" {
		loc.Description = Fill(tpl.Description, map[string]string{
			"name":  loc.Name,
			"biome": strings.ToLower(biome.Name),
			"type":  tpl.Type,
		})
	}

	nNPC := g.rangeCount(tpl.NPCCount)
	for i := 0; i < nNPC; i++ {
		professions, err := g.rollResidentProfessions(tpl)
		if err != nil {
			return nil, err
		}
		npc, err := g.GenerateNPC(professions, "", "")
		if err != nil {
			return nil, fmt.Errorf("template %s resident: %w", tpl.ID, err)
		}
		loc.NPCs = append(loc.NPCs, npc)
	}

	nItem := g.rangeCount(tpl.ItemCount)
	for i := 0; i < nItem; i++ {
		var tplID string
		if len(tpl.ItemPool) > 0 {
			if tplID, err = g.pickUniform(tpl.ItemPool); err != nil {
				return nil, err
			}
		}
		it, err := g.GenerateItem(tplID, Constraints{})
		if err != nil {
			return nil, fmt.Errorf("template %s items: %w", tpl.ID, err)
		}
		loc.Items = append(loc.Items, it)
	}

	return loc, nil
}

// rollResidentProfessions picks who lives here: usually one profession
// from the template pool, sometimes two, sometimes a commoner.
func (g *Generator) rollResidentProfessions(tpl catalogs.LocationTemplate) ([]string, error) {
	if len(tpl.Professions) == 0 || g.Chance(commonerChance) {
		return nil, nil
	}
	first, err := g.pickWeightedIDs(sortedCopy(tpl.Professions), func(id string) float64 {
		return g.cats.Professions.Defs[id].Weight
	})
	if err != nil {
		return nil, err
	}
	professions := []string{first}
	if len(tpl.Professions) > 1 && g.Chance(secondProfessionChance) {
		rest := without(tpl.Professions, first)
		second, err := g.pickUniform(rest)
		if err != nil {
			return nil, err
		}
		professions = append(professions, second)
	}
	return professions, nil
}

func (g *Generator) linkNeighbors(loc *Location, tpl catalogs.LocationTemplate, depth, maxEdges int) error {
	neighborTpls := append([]string(nil), tpl.ConnectsTo...)
	if maxEdges >= 0 && len(neighborTpls) > maxEdges {
		g.rng.Shuffle(len(neighborTpls), func(i, j int) {
			neighborTpls[i], neighborTpls[j] = neighborTpls[j], neighborTpls[i]
		})
		neighborTpls = neighborTpls[:maxEdges]
	}

	for _, nbTpl := range neighborTpls {
		if _, linked := loc.Connections[nbTpl]; linked {
			continue
		}

		var nb *Location
		if g.Chance(neighborReuseChance) {
			nb = g.cachedCandidate(nbTpl, loc)
		}
		if nb == nil {
			var err error
			nb, err = g.generateLocation(nbTpl, true, "", depth+1, -1)
			if err != nil {
				return fmt.Errorf("neighbor %s: %w", nbTpl, err)
			}
		}

		// Both ends of the edge, always together.
		loc.Connections[nbTpl] = nb.ID
		nb.Connections[loc.Template] = loc.ID
	}
	return nil
}

// cachedCandidate finds a cached location of the wanted template that
// can still take an edge back to loc. Nil when none qualify.
func (g *Generator) cachedCandidate(templateID string, loc *Location) *Location {
	ids := make([]string, 0, len(g.cache))
	for id := range g.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var candidates []*Location
	for _, id := range ids {
		c := g.cache[id]
		if c.Template != templateID || c.ID == loc.ID {
			continue
		}
		if _, taken := c.Connections[loc.Template]; taken {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[g.rng.Intn(len(candidates))]
}

// GenerateWorld clears the session cache and grows a fresh graph from
// count root locations, each capped at two edges. The returned content
// holds every location generated, roots and neighbors alike, plus a
// per-location summary map.
func (g *Generator) GenerateWorld(count int) (*WorldContent, error) {
	if count <= 0 {
		return nil, fmt.Errorf("world size %d: need at least one root", count)
	}
	g.cache = map[string]*Location{}

	for i := 0; i < count; i++ {
		if _, err := g.generateLocation("", true, "", 0, worldRootConns); err != nil {
			return nil, fmt.Errorf("root %d: %w", i, err)
		}
	}

	w := &WorldContent{
		Locations: make(map[string]*Location, len(g.cache)),
		Summary:   make(map[string]LocationSummary, len(g.cache)),
	}
	for id, loc := range g.cache {
		w.Locations[id] = loc

		conns := make([]string, 0, len(loc.Connections))
		for _, nbID := range loc.Connections {
			conns = append(conns, nbID)
		}
		sort.Strings(conns)
		w.Summary[id] = LocationSummary{
			Name:        loc.Name,
			Type:        loc.Type,
			Biome:       loc.Biome,
			Connections: conns,
			NPCCount:    len(loc.NPCs),
			ItemCount:   len(loc.Items),
		}
	}
	return w, nil
}

func (g *Generator) rollLocationName(tpl catalogs.LocationTemplate) (string, error) {
	prefix, err := g.pickUniform(tpl.NamePrefixes)
	if err != nil {
		return "", fmt.Errorf("template %s name prefixes: %w", tpl.ID, err)
	}
	suffix, err := g.pickUniform(tpl.NameSuffixes)
	if err != nil {
		return "", fmt.Errorf("template %s name suffixes: %w", tpl.ID, err)
	}
	return prefix + " " + suffix, nil
}

func (g *Generator) mintLocationID(templateID string) string {
	for {
		id := fmt.Sprintf("%s_%04x", templateID, g.rng.Intn(0x10000))
		if _, taken := g.cache[id]; !taken {
			return id
		}
	}
}

func contains(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

func without(vals []string, drop string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
