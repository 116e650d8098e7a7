package order

import "github.com/go-faster/errors"

// Status is the fulfillment state of an order. The wire spellings (including
// "Not Process", "deliverd" and lowercase "cancel") are inherited from the
// upstream storefront and preserved: existing clients store and match on the
// exact strings.
type Status string

const (
	StatusNotProcess Status = "Not Process"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "deliverd"
	StatusCancelled  Status = "cancel"
)

// ErrUnknownStatus is returned when a status string is not a member of the
// lifecycle enum.
var ErrUnknownStatus = errors.New("unknown order status")

// DefaultStatus is the state every newly created order starts in.
const DefaultStatus = StatusNotProcess

var statuses = map[Status]struct{}{
	StatusNotProcess: {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ParseStatus validates a wire string against the enum.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statuses[st]; !ok {
		return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
	}
	return st, nil
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether the move follows the nominal lifecycle:
// Not Process -> Processing -> Shipped -> deliverd, with cancel reachable
// from any non-terminal state. The repository does not enforce this (the
// upstream system accepts any state from any state); callers use it for
// advisory logging only.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusNotProcess:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusShipped
	case StatusShipped:
		return next == StatusDelivered
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
