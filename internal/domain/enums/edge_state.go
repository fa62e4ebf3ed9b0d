package enums

// EdgeState is the lifecycle state of a directed like edge.
type EdgeState string

const (
	EdgeStatePendingHidden EdgeState = "pending_hidden"
	EdgeStateSurfaced      EdgeState = "surfaced"
	EdgeStateMatched       EdgeState = "matched"
	EdgeStateExpired       EdgeState = "expired"
)

// Alive reports whether an edge in this state can still take part in match formation.
// Expired edges stay alive so an ignored like can be revived by a later reciprocal like.
func (s EdgeState) Alive() bool {
	switch s {
	case EdgeStatePendingHidden, EdgeStateSurfaced, EdgeStateMatched, EdgeStateExpired:
		return true
	default:
		return false
	}
}
