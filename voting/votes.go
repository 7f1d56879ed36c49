package voting

import (
	"strings"

	"github.com/pkg/errors"
)

// Vote is a position on a single choice proposal.
type Vote uint8

const (
	// Yes marks support for the proposal.
	Yes Vote = iota
	// No marks opposition to the proposal.
	No
	// Abstain marks participation without counting towards the ratio of
	// support to opposition.
	Abstain
)

func ParseVote(s string) (Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return Yes, nil
	case "no":
		return No, nil
	case "abstain":
		return Abstain, nil
	}
	return 0, errors.Wrapf(ErrInvalidVote, "%q", s)
}

func (v Vote) Valid() bool {
	return v <= Abstain
}

func (v Vote) String() string {
	switch v {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	}
	return "unknown"
}

func (v Vote) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, errors.Wrapf(ErrInvalidVote, "%d", uint8(v))
	}
	return []byte(v.String()), nil
}

func (v *Vote) UnmarshalText(text []byte) error {
	parsed, err := ParseVote(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Votes accumulates the power behind each position of a single choice
// proposal. Removal only ever reverses an earlier addition of the same
// magnitude, so the accumulators never go negative.
type Votes struct {
	Yes     Uint `json:"yes"`
	No      Uint `json:"no"`
	Abstain Uint `json:"abstain"`
}

func (v *Votes) bucket(vote Vote) (*Uint, error) {
	switch vote {
	case Yes:
		return &v.Yes, nil
	case No:
		return &v.No, nil
	case Abstain:
		return &v.Abstain, nil
	}
	return nil, errors.Wrapf(ErrInvalidVote, "%d", uint8(vote))
}

// AddVote adds power to the bucket of vote.
func (v *Votes) AddVote(vote Vote, power Uint) error {
	b, err := v.bucket(vote)
	if err != nil {
		return err
	}
	sum, err := b.Add(power)
	if err != nil {
		return err
	}
	*b = sum
	return nil
}

// RemoveVote reverses an earlier AddVote. Removing more than was added
// fails with ErrOverflow and leaves the tally untouched.
func (v *Votes) RemoveVote(vote Vote, power Uint) error {
	b, err := v.bucket(vote)
	if err != nil {
		return err
	}
	diff, err := b.Sub(power)
	if err != nil {
		return err
	}
	*b = diff
	return nil
}

// Total is the power cast so far, abstentions included. Every ballot is
// bounded by MaxPower, so the sum fits the 256 bit accumulator.
func (v Votes) Total() Uint {
	total, err := v.Yes.Add(v.No)
	if err == nil {
		total, err = total.Add(v.Abstain)
	}
	if err != nil {
		panic(err)
	}
	return total
}
