package catalogs

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTemplate   = errors.New("unknown item template")
	ErrUnknownProfession = errors.New("unknown profession")
	ErrUnknownRace       = errors.New("unknown race")
	ErrUnknownFaction    = errors.New("unknown faction")
	ErrUnknownBiome      = errors.New("unknown biome")
	ErrUnknownLocation   = errors.New("unknown location template")
	ErrUnknownTier       = errors.New("unknown tier")
	ErrUnknownStat       = errors.New("unknown stat")
)

func (c ItemCatalog) Template(id string) (ItemTemplate, error) {
	d, ok := c.Defs[id]
	if !ok {
		return ItemTemplate{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return d, nil
}

func (c ProfessionCatalog) Profession(id string) (ProfessionDef, error) {
	d, ok := c.Defs[id]
	if !ok {
		return ProfessionDef{}, fmt.Errorf("%w: %q", ErrUnknownProfession, id)
	}
	return d, nil
}

func (c RaceCatalog) Race(id string) (RaceDef, error) {
	d, ok := c.Defs[id]
	if !ok {
		return RaceDef{}, fmt.Errorf("%w: %q", ErrUnknownRace, id)
	}
	return d, nil
}

func (c FactionCatalog) Faction(id string) (FactionDef, error) {
	d, ok := c.Defs[id]
	if !ok {
		return FactionDef{}, fmt.Errorf("%w: %q", ErrUnknownFaction, id)
	}
	return d, nil
}

func (c BiomeCatalog) Biome(id string) (BiomeDef, error) {
	d, ok := c.Defs[id]
	if !ok {
		return BiomeDef{}, fmt.Errorf("%w: %q", ErrUnknownBiome, id)
	}
	return d, nil
}

func (c LocationCatalog) Template(id string) (LocationTemplate, error) {
	d, ok := c.Defs[id]
	if !ok {
		return LocationTemplate{}, fmt.Errorf("%w: %q", ErrUnknownLocation, id)
	}
	return d, nil
}

// Quality resolves a quality tier by name. The returned index is the
// tier's position in declared order.
func (p *AttributePool) Quality(name string) (TierDef, int, error) {
	i, ok := p.qualityIdx[name]
	if !ok {
		return TierDef{}, 0, fmt.Errorf("%w: quality %q", ErrUnknownTier, name)
	}
	return p.Qualities[i], i, nil
}

// Rarity resolves a rarity tier by name. The returned index is the
// tier's position in declared order.
func (p *AttributePool) Rarity(name string) (TierDef, int, error) {
	i, ok := p.rarityIdx[name]
	if !ok {
		return TierDef{}, 0, fmt.Errorf("%w: rarity %q", ErrUnknownTier, name)
	}
	return p.Rarities[i], i, nil
}

func (p *AttributePool) Stat(name string) (StatDef, error) {
	i, ok := p.statIdx[name]
	if !ok {
		return StatDef{}, fmt.Errorf("%w: %q", ErrUnknownStat, name)
	}
	return p.Stats[i], nil
}

// StatOrder returns stat names in declared order.
func (p *AttributePool) StatOrder() []string {
	names := make([]string, len(p.Stats))
	for i, s := range p.Stats {
		names[i] = s.Name
	}
	return names
}
