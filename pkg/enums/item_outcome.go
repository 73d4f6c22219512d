package enums

// ItemOutcome is the per-item result surfaced in scan submission responses.
type ItemOutcome string

const (
	ItemOutcomeAccepted             ItemOutcome = "accepted"
	ItemOutcomeSkippedNoPredecessor ItemOutcome = "skipped_no_predecessor"
	ItemOutcomeSkippedDuplicate     ItemOutcome = "skipped_duplicate"
	ItemOutcomeSkippedDiscarded     ItemOutcome = "skipped_discarded"
	ItemOutcomeSkippedUnknownDevice ItemOutcome = "skipped_unknown_device"
)
