package world

// Kind tags an entity with its runtime family.
type Kind string

const (
	KindNPC      Kind = "npc"
	KindLocation Kind = "location"
)

// Entity is the contract every simulated thing satisfies. Update is
// called once per tick with the elapsed simulation minutes; the world
// collects returned errors into the tick report instead of aborting
// the tick. Marshal/UnmarshalState carry the entity's full runtime
// state across snapshots as a self-describing JSON document.
type Entity interface {
	ID() string
	Kind() Kind
	IsActive() bool
	Update(delta float64, w *World) error
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}
