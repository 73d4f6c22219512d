package enums

import "fmt"

// Stage tracks the lifecycle of a physical RFID-tagged item.
type Stage string

const (
	StageShippedOut Stage = "shipped_out"
	StageReceivedIn Stage = "received_in"
	StageReturned   Stage = "returned"
	StageCleaned    Stage = "cleaned"
	StageDiscarded  Stage = "discarded"
)

var validStages = []Stage{
	StageShippedOut,
	StageReceivedIn,
	StageReturned,
	StageCleaned,
	StageDiscarded,
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}

// Valid reports whether the stage is one of the known lifecycle stages.
func (s Stage) Valid() bool {
	for _, candidate := range validStages {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseStage converts a raw string into a Stage or fails.
func ParseStage(value string) (Stage, error) {
	stage := Stage(value)
	if !stage.Valid() {
		return "", fmt.Errorf("invalid stage %q", value)
	}
	return stage, nil
}

// Predecessor returns the stage an item must currently hold for the
// requested transition to apply. Discarded is reachable from any stage and
// returns no predecessor.
func (s Stage) Predecessor() (Stage, bool) {
	switch s {
	case StageShippedOut:
		return StageCleaned, true
	case StageReceivedIn:
		return StageShippedOut, true
	case StageReturned:
		return StageReceivedIn, true
	case StageCleaned:
		return StageReturned, true
	default:
		return "", false
	}
}

// AllowsFirstSeen reports whether an unknown serial code may enter the
// lifecycle at this stage. Only outbound shipment and returns create items;
// the other transitions require an eligible predecessor row.
func (s Stage) AllowsFirstSeen() bool {
	return s == StageShippedOut || s == StageReturned
}
