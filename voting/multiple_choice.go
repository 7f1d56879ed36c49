package voting

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	MinNumChoices = 2
	MaxNumChoices = 20

	NoneOptionDescription = "None of the above"
)

// VotingStrategy decides multiple choice proposals. Only single choice
// voting (one option per ballot, plurality wins) is supported.
type VotingStrategy struct {
	Quorum PercentageThreshold `json:"quorum" mapstructure:"quorum" toml:"quorum"`
}

func (s VotingStrategy) Validate() error {
	return ValidateQuorum(s.Quorum)
}

type OptionType uint8

const (
	OptionStandard OptionType = iota
	// OptionNone is the "None of the above" option appended to every
	// multiple choice proposal.
	OptionNone
)

func (t OptionType) String() string {
	if t == OptionNone {
		return "none"
	}
	return "standard"
}

func (t OptionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *OptionType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*t = OptionNone
	case "standard":
		*t = OptionStandard
	default:
		return errors.Errorf("invalid option type %q", string(text))
	}
	return nil
}

// ValidateNumChoices checks the number of proposer supplied options.
func ValidateNumChoices(n int) error {
	if n < MinNumChoices || n > MaxNumChoices {
		return errors.Wrapf(ErrWrongNumberOfChoices, "got %d, want %d to %d", n, MinNumChoices, MaxNumChoices)
	}
	return nil
}

// MultipleChoiceVotes holds one accumulator per option. The last option is
// always the "None of the above" option.
type MultipleChoiceVotes struct {
	Weights []Uint `json:"vote_weights"`
}

func ZeroMultipleChoiceVotes(numChoices int) MultipleChoiceVotes {
	return MultipleChoiceVotes{Weights: make([]Uint, numChoices)}
}

func (v *MultipleChoiceVotes) AddVote(option uint32, weight Uint) error {
	if int(option) >= len(v.Weights) {
		return errors.Wrapf(ErrInvalidVote, "option %d", option)
	}
	sum, err := v.Weights[option].Add(weight)
	if err != nil {
		return err
	}
	v.Weights[option] = sum
	return nil
}

func (v *MultipleChoiceVotes) RemoveVote(option uint32, weight Uint) error {
	if int(option) >= len(v.Weights) {
		return errors.Wrapf(ErrInvalidVote, "option %d", option)
	}
	diff, err := v.Weights[option].Sub(weight)
	if err != nil {
		return err
	}
	v.Weights[option] = diff
	return nil
}

func (v MultipleChoiceVotes) Total() Uint {
	total := Uint{}
	for _, w := range v.Weights {
		var err error
		if total, err = total.Add(w); err != nil {
			panic(err)
		}
	}
	return total
}

// noneIndex is the index of the "None of the above" option.
func (v MultipleChoiceVotes) noneIndex() int {
	return len(v.Weights) - 1
}

// Winner returns the index of the option with the most power. ok is false
// on a tie for first place.
func (v MultipleChoiceVotes) Winner() (index int, ok bool) {
	if len(v.Weights) == 0 {
		return 0, false
	}
	max := lo.MaxBy(v.Weights, func(a, b Uint) bool { return a.Cmp(b) > 0 })
	top := lo.FilterMap(v.Weights, func(w Uint, i int) (int, bool) { return i, w.Equal(max) })
	if len(top) != 1 {
		return 0, false
	}
	return top[0], true
}

// unbeatable reports whether the winner keeps its lead even if every
// outstanding vote went to the runner up. A winning None option already
// decides the proposal when it merely ties that bound.
func (v MultipleChoiceVotes) unbeatable(winner int, totalPower Uint) bool {
	lead := v.Weights[winner]
	lower := lo.Filter(v.Weights, func(w Uint, _ int) bool { return w.Cmp(lead) < 0 })
	if len(lower) == 0 {
		return false
	}
	second := lo.MaxBy(lower, func(a, b Uint) bool { return a.Cmp(b) > 0 })
	remaining := totalPower.SaturatingSub(v.Total())
	bound, err := second.Add(remaining)
	if err != nil {
		return false
	}
	if winner == v.noneIndex() {
		return lead.Cmp(bound) >= 0
	}
	return lead.Cmp(bound) > 0
}

// IsPassed reports whether a standard option has won.
func (s VotingStrategy) IsPassed(votes MultipleChoiceVotes, totalPower Uint, expired bool) bool {
	if !DoesVoteCountPass(votes.Total(), totalPower, s.Quorum) {
		return false
	}
	winner, ok := votes.Winner()
	if !ok || winner == votes.noneIndex() {
		return false
	}
	if expired {
		return true
	}
	return votes.unbeatable(winner, totalPower)
}

// IsRejected reports whether the proposal can no longer pass: a tie that
// cannot move any more, a winning None option, or a missed quorum at
// expiration.
func (s VotingStrategy) IsRejected(votes MultipleChoiceVotes, totalPower Uint, expired bool) bool {
	winner, ok := votes.Winner()
	if !ok {
		return expired || totalPower.Equal(votes.Total())
	}
	quorum := DoesVoteCountPass(votes.Total(), totalPower, s.Quorum)
	switch {
	case !quorum && expired:
		return true
	case quorum && expired:
		return winner == votes.noneIndex()
	default:
		return winner == votes.noneIndex() && votes.unbeatable(winner, totalPower)
	}
}

// Evaluate decides a multiple choice tally.
func (s VotingStrategy) Evaluate(votes MultipleChoiceVotes, totalPower Uint, expired bool) Verdict {
	switch {
	case s.IsPassed(votes, totalPower, expired):
		return Passed
	case expired || s.IsRejected(votes, totalPower, expired):
		return Rejected
	}
	return Undetermined
}
