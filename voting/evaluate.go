package voting

// Verdict is the outcome the evaluator can currently vouch for.
type Verdict uint8

const (
	Undetermined Verdict = iota
	Passed
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Passed:
		return "passed"
	case Rejected:
		return "rejected"
	}
	return "undetermined"
}

// IsPassed reports whether votes already meet threshold. Before
// expiration a proposal only passes once no sequence of the outstanding
// votes could undo it; after expiration the cast votes are final.
func IsPassed(votes Votes, threshold Threshold, totalPower Uint, expired bool) bool {
	switch threshold.Kind {
	case AbsolutePercentage:
		options := totalPower.SaturatingSub(votes.Abstain)
		return DoesVoteCountPass(votes.Yes, options, threshold.Percentage)
	case ThresholdQuorum:
		if !DoesVoteCountPass(votes.Total(), totalPower, threshold.Quorum) {
			return false
		}
		var options Uint
		if expired {
			// abstentions count for quorum, never for the ratio
			options = votes.Total().SaturatingSub(votes.Abstain)
		} else {
			options = totalPower.SaturatingSub(votes.Abstain)
		}
		return DoesVoteCountPass(votes.Yes, options, threshold.Percentage)
	case AbsoluteCount:
		return votes.Yes.Cmp(threshold.Count) >= 0
	}
	return false
}

// IsRejected reports whether votes can no longer meet threshold.
func IsRejected(votes Votes, threshold Threshold, totalPower Uint, expired bool) bool {
	switch threshold.Kind {
	case AbsolutePercentage:
		options := totalPower.SaturatingSub(votes.Abstain)
		return DoesVoteCountFail(votes.No, options, threshold.Percentage)
	case ThresholdQuorum:
		quorum := DoesVoteCountPass(votes.Total(), totalPower, threshold.Quorum)
		switch {
		case !quorum && expired:
			return true
		case quorum && expired:
			options := votes.Total().SaturatingSub(votes.Abstain)
			return DoesVoteCountFail(votes.No, options, threshold.Percentage)
		default:
			options := totalPower.SaturatingSub(votes.Abstain)
			return DoesVoteCountFail(votes.No, options, threshold.Percentage)
		}
	case AbsoluteCount:
		outstanding := totalPower.SaturatingSub(votes.Total())
		reachable, err := votes.Yes.Add(outstanding)
		if err != nil {
			return false
		}
		return reachable.Cmp(threshold.Count) < 0
	}
	return false
}

// Evaluate decides a single choice tally. Passing is checked first; an
// expired tally that has not passed is rejected.
func Evaluate(votes Votes, threshold Threshold, totalPower Uint, expired bool) Verdict {
	switch {
	case IsPassed(votes, threshold, totalPower, expired):
		return Passed
	case expired || IsRejected(votes, threshold, totalPower, expired):
		return Rejected
	}
	return Undetermined
}
