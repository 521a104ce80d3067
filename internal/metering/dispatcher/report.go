package dispatcher

// Status is the fate of one sample in a batch.
type Status int

const (
	StatusStored Status = iota
	StatusRejected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStored:
		return "stored"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-sample result. Err is nil for stored samples.
type Outcome struct {
	Index  int
	Status Status
	Err    error
}

// Report lists outcomes in batch order.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many outcomes have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
