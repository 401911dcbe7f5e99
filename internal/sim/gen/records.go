package gen

// Generated content records are plain data: no behavior, no back
// references, safe to embed in snapshots or marshal for tooling.

type Item struct {
	ID          string         `json:"id"`
	Template    string         `json:"template"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Subtype     string         `json:"subtype,omitempty"`
	Material    string         `json:"material,omitempty"`
	Quality     string         `json:"quality,omitempty"`
	Rarity      string         `json:"rarity,omitempty"`
	DamageType  string         `json:"damage_type,omitempty"`
	Stats       map[string]int `json:"stats,omitempty"`
	Value       int            `json:"value"`
	Description string         `json:"description,omitempty"`
	Flags       []string       `json:"flags,omitempty"`
}

type NPC struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Race        string         `json:"race"`
	Faction     string         `json:"faction,omitempty"`
	Professions []string       `json:"professions,omitempty"`
	Stats       map[string]int `json:"stats"`
	Skills      []string       `json:"skills,omitempty"`
	Dialogue    string         `json:"dialogue,omitempty"`
	Description string         `json:"description,omitempty"`
	Inventory   []Item         `json:"inventory,omitempty"`
	Gold        int            `json:"gold"`
}

// Location connections are keyed by the neighbor's template id, so a
// location holds at most one edge per neighbor kind. Every edge is
// mirrored on the far side under this location's template id.
type Location struct {
	ID          string            `json:"id"`
	Template    string            `json:"template"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Biome       string            `json:"biome"`
	Tags        []string          `json:"tags,omitempty"`
	Description string            `json:"description,omitempty"`
	Market      bool              `json:"market,omitempty"`
	NPCs        []NPC             `json:"npcs,omitempty"`
	Items       []Item            `json:"items,omitempty"`
	Connections map[string]string `json:"connections,omitempty"`
}

type WorldContent struct {
	Locations map[string]*Location       `json:"locations"`
	Summary   map[string]LocationSummary `json:"summary"`
}

type LocationSummary struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Biome       string   `json:"biome"`
	Connections []string `json:"connections,omitempty"`
	NPCCount    int      `json:"npc_count"`
	ItemCount   int      `json:"item_count"`
}
