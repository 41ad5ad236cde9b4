package memory

// AdapterUsage counts how many rows each power-of-two adapter chip emits.
// An adapter of width N consumes one width-N record and emits two width-N/2
// records, recursively, until width-1 leaves remain.
type AdapterUsage map[int]int

// merge accumulates another usage count.
func (u AdapterUsage) merge(other AdapterUsage) {
	for w, n := range other {
		u[w] += n
	}
}

// DecomposeRecord splits one record into its canonical width-1 event stream
// and reports the adapter rows the split costs. Cell i of a width-N record
// carries timestamp record.Timestamp + i, so events never collide.
func DecomposeRecord(rec *AccessRecord) ([]CellAccess, AdapterUsage) {
	usage := make(AdapterUsage)
	countAdapterRows(rec.Len(), usage)
	events := make([]CellAccess, rec.Len())
	for i := range events {
		events[i] = CellAccess{
			Space:         rec.Address.Space,
			Pointer:       rec.Address.Pointer + uint32(i),
			Timestamp:     rec.Timestamp + uint32(i),
			IsWrite:       rec.IsWrite,
			Value:         rec.Values[i],
			PrevValue:     rec.PrevValues[i],
			PrevTimestamp: rec.PrevTimestamps[i],
		}
	}
	return events, usage
}

func countAdapterRows(width int, usage AdapterUsage) {
	for w := width; w > 1; w /= 2 {
		// Splitting one width-w record costs one width-w adapter row and
		// yields two width-w/2 records; each level doubles the row count.
		usage[w] += width / w
	}
}

// DecomposeRecords flattens a record arena into the event stream the
// offline checker consumes, in arena order.
func DecomposeRecords(records []AccessRecord) ([]CellAccess, AdapterUsage) {
	events := make([]CellAccess, 0, len(records))
	usage := make(AdapterUsage)
	for i := range records {
		ev, u := DecomposeRecord(&records[i])
		events = append(events, ev...)
		usage.merge(u)
	}
	return events, usage
}
