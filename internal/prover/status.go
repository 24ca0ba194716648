package prover

import (
	"fmt"
	"strings"
)

// Status is the fulfillment status of a proof request.
//
// The numeric values match the network's FulfillmentStatus enum.
type Status int32

const (
	StatusUnspecified   Status = 0
	StatusRequested     Status = 1
	StatusAssigned      Status = 2
	StatusFulfilled     Status = 3
	StatusUnfulfillable Status = 4
)

// Priority is the order in which statuses are looked up. The first status
// with a matching request wins.
var Priority = []Status{StatusAssigned, StatusFulfilled}

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "REQUESTED"
	case StatusAssigned:
		return "ASSIGNED"
	case StatusFulfilled:
		return "FULFILLED"
	case StatusUnfulfillable:
		return "UNFULFILLABLE"
	default:
		return "UNSPECIFIED"
	}
}

// ParseStatus is the inverse of Status.String. Matching is case-insensitive.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "REQUESTED":
		return StatusRequested, nil
	case "ASSIGNED":
		return StatusAssigned, nil
	case "FULFILLED":
		return StatusFulfilled, nil
	case "UNFULFILLABLE":
		return StatusUnfulfillable, nil
	}
	return StatusUnspecified, fmt.Errorf("unknown status %q", raw)
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
