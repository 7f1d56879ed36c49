package core

import (
	"encoding/json"

	"github.com/axiomesh/governor/voting"
	"github.com/pkg/errors"
)

// Flavor maps ballots of one proposal kind onto its tally. The state
// machine only talks to proposals through it.
type Flavor interface {
	Kind() string

	ValidChoice(choice uint32) bool

	AddVote(choice uint32, power voting.Uint) error

	RemoveVote(choice uint32, power voting.Uint) error

	// Evaluate decides the tally against totalPower.
	Evaluate(totalPower voting.Uint, expired bool) voting.Verdict

	// Payload returns the messages dispatched on execution and, for
	// multiple choice proposals, the winning option.
	Payload() ([]json.RawMessage, *uint32)
}

const (
	SingleChoiceKind   = "single"
	MultipleChoiceKind = "multiple"
)

var (
	_ Flavor = (*SingleChoice)(nil)
	_ Flavor = (*MultipleChoice)(nil)
)

// SingleChoice is a yes/no/abstain proposal.
type SingleChoice struct {
	Threshold voting.Threshold  `json:"threshold"`
	Votes     voting.Votes      `json:"votes"`
	Msgs      []json.RawMessage `json:"msgs,omitempty"`
}

func (s *SingleChoice) Kind() string {
	return SingleChoiceKind
}

func (s *SingleChoice) ValidChoice(choice uint32) bool {
	return choice <= uint32(voting.Abstain)
}

func (s *SingleChoice) AddVote(choice uint32, power voting.Uint) error {
	if !s.ValidChoice(choice) {
		return errors.Wrapf(ErrInvalidChoice, "%d", choice)
	}
	return s.Votes.AddVote(voting.Vote(choice), power)
}

func (s *SingleChoice) RemoveVote(choice uint32, power voting.Uint) error {
	if !s.ValidChoice(choice) {
		return errors.Wrapf(ErrInvalidChoice, "%d", choice)
	}
	return s.Votes.RemoveVote(voting.Vote(choice), power)
}

func (s *SingleChoice) Evaluate(totalPower voting.Uint, expired bool) voting.Verdict {
	return voting.Evaluate(s.Votes, s.Threshold, totalPower, expired)
}

func (s *SingleChoice) Payload() ([]json.RawMessage, *uint32) {
	return s.Msgs, nil
}

// MultipleChoice is a proposal between several options where the unique
// top option wins. The last option is always "None of the above".
type MultipleChoice struct {
	Strategy voting.VotingStrategy      `json:"voting_strategy"`
	Options  []Option                   `json:"choices"`
	Votes    voting.MultipleChoiceVotes `json:"votes"`
}

func newMultipleChoice(strategy voting.VotingStrategy, inputs []OptionInput) (*MultipleChoice, error) {
	if err := voting.ValidateNumChoices(len(inputs)); err != nil {
		return nil, err
	}
	options := make([]Option, 0, len(inputs)+1)
	for i, in := range inputs {
		options = append(options, Option{
			Index:       uint32(i),
			Type:        voting.OptionStandard,
			Title:       in.Title,
			Description: in.Description,
			Msgs:        in.Msgs,
		})
	}
	options = append(options, Option{
		Index:       uint32(len(inputs)),
		Type:        voting.OptionNone,
		Title:       voting.NoneOptionDescription,
		Description: voting.NoneOptionDescription,
	})
	return &MultipleChoice{
		Strategy: strategy,
		Options:  options,
		Votes:    voting.ZeroMultipleChoiceVotes(len(options)),
	}, nil
}

func (m *MultipleChoice) Kind() string {
	return MultipleChoiceKind
}

func (m *MultipleChoice) ValidChoice(choice uint32) bool {
	return int(choice) < len(m.Options)
}

func (m *MultipleChoice) AddVote(choice uint32, power voting.Uint) error {
	if !m.ValidChoice(choice) {
		return errors.Wrapf(ErrInvalidChoice, "option %d", choice)
	}
	return m.Votes.AddVote(choice, power)
}

func (m *MultipleChoice) RemoveVote(choice uint32, power voting.Uint) error {
	if !m.ValidChoice(choice) {
		return errors.Wrapf(ErrInvalidChoice, "option %d", choice)
	}
	return m.Votes.RemoveVote(choice, power)
}

func (m *MultipleChoice) Evaluate(totalPower voting.Uint, expired bool) voting.Verdict {
	return m.Strategy.Evaluate(m.Votes, totalPower, expired)
}

func (m *MultipleChoice) Payload() ([]json.RawMessage, *uint32) {
	winner, ok := m.Votes.Winner()
	if !ok || m.Options[winner].Type == voting.OptionNone {
		return nil, nil
	}
	index := uint32(winner)
	return m.Options[winner].Msgs, &index
}
