package gen

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"fableforge.ai/internal/sim/catalogs"
)

func TestGenerateLocation_PinnedTemplate(t *testing.T) {
	cats := testCatalogs(t)
	g := New(42, cats)

	loc, err := g.GenerateLocation("mine", false, -1, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if loc.Template != "mine" || loc.Type != "mine" {
		t.Fatalf("template/type: got %q/%q", loc.Template, loc.Type)
	}
	if loc.Biome != "ironhills" {
		t.Fatalf("biome: got %q, mine allows only ironhills", loc.Biome)
	}
	if !strings.Contains(loc.Name, " ") {
		t.Fatalf("name %q missing prefix/suffix join", loc.Name)
	}
	if len(loc.Connections) != 0 {
		t.Fatalf("connect=false grew %d edges", len(loc.Connections))
	}

	if n := len(loc.NPCs); n < 2 || n > 4 {
		t.Fatalf("resident count: got %d want 2-4", n)
	}
	for _, npc := range loc.NPCs {
		if npc.Title == "Commoner" {
			continue
		}
		for _, p := range npc.Professions {
			if p != "blacksmith" && p != "guard" {
				t.Fatalf("resident profession %q outside template pool", p)
			}
		}
	}

	if n := len(loc.Items); n < 1 || n > 3 {
		t.Fatalf("item count: got %d want 1-3", n)
	}
	for _, it := range loc.Items {
		if it.Template != "iron_ingot" && it.Template != "lantern" {
			t.Fatalf("item template %q outside mine pool", it.Template)
		}
	}
}

func TestGenerateLocation_ConnectLinksEveryDeclaredTemplate(t *testing.T) {
	cats := testCatalogs(t)
	g := New(42, cats)

	loc, err := g.GenerateLocation("village", true, -1, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := []string{"village", "market_town", "forest_camp", "crossroads_inn"}
	if len(loc.Connections) != len(want) {
		t.Fatalf("edges: got %d want %d (%v)", len(loc.Connections), len(want), loc.Connections)
	}
	for _, tpl := range want {
		nbID, ok := loc.Connections[tpl]
		if !ok {
			t.Fatalf("no edge for template %s", tpl)
		}
		nb, ok := g.cache[nbID]
		if !ok {
			t.Fatalf("neighbor %s not in session cache", nbID)
		}
		if nb.Connections["village"] != loc.ID {
			t.Fatalf("neighbor %s back edge: got %q want %q", nbID, nb.Connections["village"], loc.ID)
		}
	}
}

func TestGenerateLocation_BiomePinAndEdgeCap(t *testing.T) {
	cats := testCatalogs(t)
	g := New(42, cats)

	// Villages only roll dalelands, greenwood or ironhills on their
	// own; the pin forces mistfen anyway.
	loc, err := g.GenerateLocation("village", true, 1, "mistfen")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if loc.Biome != "mistfen" {
		t.Fatalf("biome: got %q want mistfen", loc.Biome)
	}
	if len(loc.Connections) != 1 {
		t.Fatalf("edge cap: got %d edges want 1 (%v)", len(loc.Connections), loc.Connections)
	}
	for tpl, nbID := range loc.Connections {
		nb := g.cache[nbID]
		if nb == nil || nb.Connections["village"] != loc.ID {
			t.Fatalf("capped edge %s -> %s not mirrored", tpl, nbID)
		}
	}

	if _, err := g.GenerateLocation("village", false, -1, "the_moon"); !errors.Is(err, catalogs.ErrUnknownBiome) {
		t.Fatalf("unknown biome: got %v", err)
	}
}

func TestGenerateWorld_EdgesAreBidirectional(t *testing.T) {
	cats := testCatalogs(t)
	g := New(42, cats)

	w, err := g.GenerateWorld(4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(w.Locations) == 0 {
		t.Fatalf("empty world")
	}
	for id, loc := range w.Locations {
		for nbTpl, nbID := range loc.Connections {
			nb, ok := w.Locations[nbID]
			if !ok {
				t.Fatalf("%s edge %s points at unknown location %s", id, nbTpl, nbID)
			}
			if nb.Connections[loc.Template] != id {
				t.Fatalf("edge %s<->%s not mirrored: neighbor side holds %q",
					id, nbID, nb.Connections[loc.Template])
			}
		}
	}
}

func TestGenerateWorld_SummaryMatchesLocations(t *testing.T) {
	cats := testCatalogs(t)
	g := New(42, cats)

	w, err := g.GenerateWorld(3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(w.Summary) != len(w.Locations) {
		t.Fatalf("summary entries: got %d want %d", len(w.Summary), len(w.Locations))
	}
	for id, sum := range w.Summary {
		loc := w.Locations[id]
		if loc == nil {
			t.Fatalf("summary for unknown location %s", id)
		}
		if sum.Name != loc.Name || sum.Type != loc.Type || sum.Biome != loc.Biome {
			t.Fatalf("summary %s: got %+v", id, sum)
		}
		if sum.NPCCount != len(loc.NPCs) || sum.ItemCount != len(loc.Items) {
			t.Fatalf("summary %s counts: got %d/%d want %d/%d",
				id, sum.NPCCount, sum.ItemCount, len(loc.NPCs), len(loc.Items))
		}
		if len(sum.Connections) != len(loc.Connections) {
			t.Fatalf("summary %s edges: got %v", id, sum.Connections)
		}
		for i := 1; i < len(sum.Connections); i++ {
			if sum.Connections[i-1] > sum.Connections[i] {
				t.Fatalf("summary %s edges unsorted: %v", id, sum.Connections)
			}
		}
	}
}

func TestGenerateWorld_SameSeedSameWorld(t *testing.T) {
	cats := testCatalogs(t)

	w1, err := New(42, cats).GenerateWorld(3)
	if err != nil {
		t.Fatalf("first world: %v", err)
	}
	w2, err := New(42, cats).GenerateWorld(3)
	if err != nil {
		t.Fatalf("second world: %v", err)
	}

	b1, err := json.Marshal(w1)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b2, err := json.Marshal(w2)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("same seed produced different worlds")
	}
}

func TestGenerateWorld_RootEdgeCapBoundsGrowth(t *testing.T) {
	cats := testCatalogs(t)

	for seed := int64(1); seed <= 10; seed++ {
		g := New(seed, cats)
		w, err := g.GenerateWorld(1)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		// One root capped at two edges, neighbors never recurse.
		if len(w.Locations) > 3 {
			t.Fatalf("seed %d: %d locations from a single root", seed, len(w.Locations))
		}
		multi := 0
		for _, loc := range w.Locations {
			if len(loc.Connections) > 1 {
				multi++
			}
		}
		if multi > 1 {
			t.Fatalf("seed %d: %d locations exceed one edge", seed, multi)
		}
	}
}

func TestGenerateWorld_RejectsNonPositiveCount(t *testing.T) {
	g := New(42, testCatalogs(t))
	if _, err := g.GenerateWorld(0); err == nil {
		t.Fatalf("count 0 accepted")
	}
}
