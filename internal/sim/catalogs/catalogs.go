package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Items       ItemCatalog
	Professions ProfessionCatalog
	Races       RaceCatalog
	Factions    FactionCatalog
	Biomes      BiomeCatalog
	Locations   LocationCatalog
	Attributes  AttributePool
}

// Weighted is a selectable string with an optional weight.
// A weight of zero means "unspecified" and counts as 1.0.
type Weighted struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight,omitempty"`
}

// Range is an inclusive integer range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type ItemCatalog struct {
	Defs   map[string]ItemTemplate
	Order  []string
	Digest string
}

type ItemTemplate struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	Subtype     string     `json:"subtype,omitempty"`
	Weight      float64    `json:"weight,omitempty"`
	BaseValue   int        `json:"base_value"`
	Names       []Weighted `json:"names"`
	Materials   []Weighted `json:"materials,omitempty"`
	StatPool    []string   `json:"stat_pool,omitempty"`
	StatCount   Range      `json:"stat_count,omitempty"`
	DamageTypes []Weighted `json:"damage_types,omitempty"`
	Description string     `json:"description,omitempty"`
	Flags       []string   `json:"flags,omitempty"`
	NoQuality   bool       `json:"no_quality,omitempty"`
	NoRarity    bool       `json:"no_rarity,omitempty"`
}

type ProfessionCatalog struct {
	Defs   map[string]ProfessionDef
	Order  []string
	Digest string
}

type ProfessionDef struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Weight   float64        `json:"weight,omitempty"`
	Stats    map[string]int `json:"stats"`
	Skills   []string       `json:"skills,omitempty"`
	Dialogue []string       `json:"dialogue,omitempty"`
	Races    []string       `json:"races,omitempty"`
	Factions []string       `json:"factions,omitempty"`
	Items    []string       `json:"items,omitempty"`
	Works    bool           `json:"works,omitempty"`
	Crafts   []string       `json:"crafts,omitempty"`
}

type RaceCatalog struct {
	Defs   map[string]RaceDef
	Order  []string
	Digest string
}

type RaceDef struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Weight     float64        `json:"weight,omitempty"`
	Modifiers  map[string]int `json:"modifiers,omitempty"`
	GivenNames []string       `json:"given_names"`
	Surnames   []string       `json:"surnames,omitempty"`
}

type FactionCatalog struct {
	Defs   map[string]FactionDef
	Order  []string
	Digest string
}

type FactionDef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight,omitempty"`
	Description string  `json:"description,omitempty"`
}

type BiomeCatalog struct {
	Defs   map[string]BiomeDef
	Order  []string
	Digest string
}

type BiomeDef struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Weight  float64               `json:"weight,omitempty"`
	Tags    []string              `json:"tags,omitempty"`
	Weather map[string][]Weighted `json:"weather"`
}

type LocationCatalog struct {
	Defs   map[string]LocationTemplate
	Order  []string
	Digest string
}

type LocationTemplate struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Weight        float64    `json:"weight,omitempty"`
	Biomes        []string   `json:"biomes"`
	BaseTags      []string   `json:"base_tags,omitempty"`
	ExtraTags     []Weighted `json:"extra_tags,omitempty"`
	ExtraTagCount Range      `json:"extra_tag_count,omitempty"`
	NPCCount      Range      `json:"npc_count"`
	Professions   []string   `json:"professions,omitempty"`
	ItemCount     Range      `json:"item_count,omitempty"`
	ItemPool      []string   `json:"item_pool,omitempty"`
	ConnectsTo    []string   `json:"connects_to,omitempty"`
	NamePrefixes  []string   `json:"name_prefixes"`
	NameSuffixes  []string   `json:"name_suffixes"`
	Description   string     `json:"description,omitempty"`
	Market        bool       `json:"market,omitempty"`
}

// AttributePool holds the shared tier tables and stat definitions.
// Tier severity is the declared array order, low to high.
type AttributePool struct {
	Qualities       []TierDef `json:"qualities"`
	Rarities        []TierDef `json:"rarities"`
	Stats           []StatDef `json:"stats"`
	GenericSkills   []string  `json:"generic_skills,omitempty"`
	GenericDialogue []string  `json:"generic_dialogue,omitempty"`

	Digest string `json:"-"`

	qualityIdx map[string]int
	rarityIdx  map[string]int
	statIdx    map[string]int
}

type TierDef struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight,omitempty"`
	Multiplier float64 `json:"multiplier"`
}

type StatDef struct {
	Name string `json:"name"`
	Min  int    `json:"min"`
	Max  int    `json:"max"`
	Base int    `json:"base"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadProfessions(filepath.Join(configDir, "professions.json"), &c.Professions); err != nil {
		return nil, err
	}
	if err := loadRaces(filepath.Join(configDir, "races.json"), &c.Races); err != nil {
		return nil, err
	}
	if err := loadFactions(filepath.Join(configDir, "factions.json"), &c.Factions); err != nil {
		return nil, err
	}
	if err := loadBiomes(filepath.Join(configDir, "biomes.json"), &c.Biomes); err != nil {
		return nil, err
	}
	if err := loadLocations(filepath.Join(configDir, "locations.json"), &c.Locations); err != nil {
		return nil, err
	}
	if err := loadAttributes(filepath.Join(configDir, "attributes.json"), &c.Attributes); err != nil {
		return nil, err
	}

	return &c, nil
}

// Digests maps catalog file name to the sha256 of its raw bytes.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		"items":       c.Items.Digest,
		"professions": c.Professions.Digest,
		"races":       c.Races.Digest,
		"factions":    c.Factions.Digest,
		"biomes":      c.Biomes.Digest,
		"locations":   c.Locations.Digest,
		"attributes":  c.Attributes.Digest,
	}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedIDs[D any](defs map[string]D) []string {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemTemplate
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemTemplate{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if len(d.Names) == 0 {
			return fmt.Errorf("items.json: %s: no names", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(out.Defs)
	return nil
}

func loadProfessions(path string, out *ProfessionCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ProfessionDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("professions.json: %w", err)
	}
	out.Defs = map[string]ProfessionDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("professions.json: empty id")
		}
		if d.Title == "" {
			return fmt.Errorf("professions.json: %s: empty title", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(out.Defs)
	return nil
}

func loadRaces(path string, out *RaceCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []RaceDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("races.json: %w", err)
	}
	out.Defs = map[string]RaceDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("races.json: empty id")
		}
		if len(d.GivenNames) == 0 {
			return fmt.Errorf("races.json: %s: no given_names", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(out.Defs)
	return nil
}

func loadFactions(path string, out *FactionCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []FactionDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("factions.json: %w", err)
	}
	out.Defs = map[string]FactionDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("factions.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(out.Defs)
	return nil
}

func loadBiomes(path string, out *BiomeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []BiomeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("biomes.json: %w", err)
	}
	out.Defs = map[string]BiomeDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("biomes.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(out.Defs)
	return nil
}

func loadLocations(path string, out *LocationCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []LocationTemplate
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("locations.json: %w", err)
	}
	out.Defs = map[string]LocationTemplate{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("locations.json: empty id")
		}
		if len(d.Biomes) == 0 {
			return fmt.Errorf("locations.json: %s: no biomes", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(out.Defs)
	return nil
}

func loadAttributes(path string, out *AttributePool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("attributes.json: %w", err)
	}
	out.Digest = sha256Hex(raw)

	if len(out.Qualities) == 0 {
		return fmt.Errorf("attributes.json: no qualities")
	}
	if len(out.Rarities) == 0 {
		return fmt.Errorf("attributes.json: no rarities")
	}
	if len(out.Stats) == 0 {
		return fmt.Errorf("attributes.json: no stats")
	}

	out.qualityIdx = make(map[string]int, len(out.Qualities))
	for i, t := range out.Qualities {
		if t.Name == "" {
			return fmt.Errorf("attributes.json: qualities[%d]: empty name", i)
		}
		out.qualityIdx[t.Name] = i
	}
	out.rarityIdx = make(map[string]int, len(out.Rarities))
	for i, t := range out.Rarities {
		if t.Name == "" {
			return fmt.Errorf("attributes.json: rarities[%d]: empty name", i)
		}
		out.rarityIdx[t.Name] = i
	}
	out.statIdx = make(map[string]int, len(out.Stats))
	for i, s := range out.Stats {
		if s.Name == "" {
			return fmt.Errorf("attributes.json: stats[%d]: empty name", i)
		}
		if s.Min > s.Max {
			return fmt.Errorf("attributes.json: stat %s: min > max", s.Name)
		}
		out.statIdx[s.Name] = i
	}
	return nil
}
