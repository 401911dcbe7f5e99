package events

// History returns every retained event, oldest first. The bus keeps at
// most historyCap events and drops the oldest beyond that.
func (b *Bus) History() []Event {
	return append([]Event(nil), b.history...)
}

// Recent returns up to n of the newest retained events, oldest first.
func (b *Bus) Recent(n int) []Event {
	if n <= 0 || len(b.history) == 0 {
		return nil
	}
	if n > len(b.history) {
		n = len(b.history)
	}
	return append([]Event(nil), b.history[len(b.history)-n:]...)
}

func (b *Bus) ByType(t Type) []Event {
	return b.filter(func(ev Event) bool { return ev.Type == t })
}

func (b *Bus) BySource(id string) []Event {
	return b.filter(func(ev Event) bool { return ev.Source == id })
}

func (b *Bus) ByLocation(id string) []Event {
	return b.filter(func(ev Event) bool { return ev.Location == id })
}

func (b *Bus) filter(keep func(Event) bool) []Event {
	var out []Event
	for _, ev := range b.history {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}
