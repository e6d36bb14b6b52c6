package state

// Mode is how the run was invoked.
type Mode struct {
	// Test sends unconditionally and leaves the stored state untouched.
	Test bool
	// Force sends unconditionally and stores the result.
	Force bool
}

// Decision is what a run should do with its report.
type Decision struct {
	Send bool
	// Persist means the new state should be stored. When Send is also set
	// the store only happens after a confirmed delivery.
	Persist bool
	// Recovery marks a send that announces a return to OK.
	Recovery bool
	Reason   string
}

// Decide applies the deduplication policy:
//
//	--test          send, persist only together with --f
//	--f             send, persist
//	unchanged hash  nothing
//	changed, issues send, persist
//	changed, now OK send a recovery when the previous state had issues,
//	                otherwise store the new baseline silently
func Decide(mode Mode, prev *State, hash string, hasIssues bool) Decision {
	switch {
	case mode.Force && mode.Test:
		return Decision{Send: true, Persist: true, Reason: "test with force"}
	case mode.Test:
		return Decision{Send: true, Reason: "test mode"}
	case mode.Force:
		return Decision{Send: true, Persist: true, Reason: "forced"}
	}

	if prev != nil && prev.Hash == hash {
		return Decision{Reason: "problem set unchanged"}
	}
	if hasIssues {
		return Decision{Send: true, Persist: true, Reason: "problem set changed"}
	}
	if prev.HadIssues() {
		return Decision{Send: true, Persist: true, Recovery: true, Reason: "recovered"}
	}
	return Decision{Persist: true, Reason: "healthy baseline"}
}
