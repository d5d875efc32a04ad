package model

// MatchState records whether a class has been established as a test class.
// It only moves away from Unknown, never back.
type MatchState int

const (
	Unknown MatchState = iota
	Matched
	NotMatched
)

func (s MatchState) String() string {
	switch s {
	case Matched:
		return "matched"
	case NotMatched:
		return "not-matched"
	default:
		return "unknown"
	}
}

// Advance returns the state after observing next. A decided state is kept;
// an Unknown state takes next.
func (s MatchState) Advance(next MatchState) MatchState {
	if s != Unknown {
		return s
	}
	return next
}

// Settle is applied once all ancestors have been examined: a state that is
// still Unknown becomes NotMatched.
func (s MatchState) Settle() MatchState {
	return s.Advance(NotMatched)
}

// Decide converts a predicate outcome into a state transition.
func (s MatchState) Decide(ok bool) MatchState {
	if ok {
		return s.Advance(Matched)
	}
	return s
}
