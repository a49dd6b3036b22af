package order

// Status is the lifecycle state of an order. Orders only ever move forward
// through the sequence; cancellation is reachable from any non-terminal
// state and is itself terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusPacking   Status = "packing"
	StatusPacked    Status = "packed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// forwardSeq maps each forward state to its position in the lifecycle.
var forwardSeq = map[Status]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPaid:      2,
	StatusPacking:   3,
	StatusPacked:    4,
	StatusShipped:   5,
	StatusDelivered: 6,
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := forwardSeq[s]
	return ok
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether the machine permits moving from one status
// directly to the next. Only single forward steps are allowed; skipping a
// state or moving backward is rejected.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.IsTerminal()
	}
	fi, ok := forwardSeq[from]
	if !ok {
		return false
	}
	ti, ok := forwardSeq[to]
	if !ok {
		return false
	}
	return ti == fi+1
}
