package enums

// Disposition classifies how the lifecycle resolver handled one scan event.
type Disposition string

const (
	// DispositionFirstSeen marks a serial code entering the lifecycle.
	DispositionFirstSeen Disposition = "first_seen"
	// DispositionTransitioned marks an accepted stage transition.
	DispositionTransitioned Disposition = "transitioned"
	// DispositionReaffirmed marks a re-scan of the current stage inside the
	// correction window. The item does not move but still reaches the
	// duplicate guard so the prior snapshot can be corrected.
	DispositionReaffirmed Disposition = "reaffirmed"
	// DispositionSkipped marks an event excluded from aggregation.
	DispositionSkipped Disposition = "skipped"
)

// SkipReason explains why an event was skipped.
type SkipReason string

const (
	SkipReasonNoPredecessor  SkipReason = "no_predecessor"
	SkipReasonDiscarded      SkipReason = "discarded"
	SkipReasonWrongState     SkipReason = "wrong_state"
	SkipReasonStaleDuplicate SkipReason = "stale_duplicate"
	SkipReasonUnknownDevice  SkipReason = "unknown_device"
)

// Counted reports whether the disposition contributes to the group's event
// count handed to the aggregate reconciler.
func (d Disposition) Counted() bool {
	return d == DispositionFirstSeen || d == DispositionTransitioned || d == DispositionReaffirmed
}
