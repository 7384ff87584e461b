package order

import "fmt"

// Status is the fulfillment state of an order.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// validNext is the allow-list of status transitions. PROCESSING is set only
// at creation; COMPLETED and FAILED are terminal.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// InvalidTransitionError indicates an attempted status change outside the
// allow-list, e.g. re-opening a COMPLETED order.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
