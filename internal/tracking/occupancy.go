package tracking

// Occupancy is the process-wide aggregate the Counting Engine maintains.
// Invariant: EntryCount >= ExitCount; PersistentOccupancy == EntryCount;
// LiveOccupancy == EntryCount - ExitCount.
type Occupancy struct {
	EntryCount          int
	ExitCount           int
	LiveOccupancy       int
	PersistentOccupancy int
}

func (o *Occupancy) onEntry() {
	o.EntryCount++
	o.LiveOccupancy++
	o.PersistentOccupancy++
}

func (o *Occupancy) onExit() {
	o.ExitCount++
	o.LiveOccupancy--
	if o.LiveOccupancy < 0 {
		o.LiveOccupancy = 0
	}
	// PersistentOccupancy is never decremented — it is the cumulative
	// distinct-entries metric, by product decision (spec.md §4.3 rationale).
}

func (o Occupancy) reset() Occupancy {
	return Occupancy{}
}
