package core

import (
	"encoding/json"

	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type ProposalStatus uint8

const (
	// Open proposals accept votes
	Open ProposalStatus = iota
	Rejected
	Passed
	Executed
	Closed
	// ExecutionFailed is set instead of reverting when the payload failed
	// and the module closes proposals on execution failure
	ExecutionFailed
	// VetoTimelock is a passed proposal the vetoer may still block
	VetoTimelock
	Vetoed
)

var statusNames = map[ProposalStatus]string{
	Open:            "open",
	Rejected:        "rejected",
	Passed:          "passed",
	Executed:        "executed",
	Closed:          "closed",
	ExecutionFailed: "execution_failed",
	VetoTimelock:    "veto_timelock",
	Vetoed:          "vetoed",
}

func (s ProposalStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, errors.Errorf("invalid proposal status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *ProposalStatus) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return errors.Errorf("invalid proposal status %q", string(text))
}

// Final reports whether no operation can move the proposal any more.
func (s ProposalStatus) Final() bool {
	return s == Executed || s == Closed || s == Vetoed
}

// CreationPolicy decides who may submit proposals. A nil Module means
// anyone may propose.
type CreationPolicy struct {
	Module *common.Address `json:"module,omitempty" mapstructure:"module" toml:"module,omitempty"`
}

func (p CreationPolicy) IsPermitted(sender common.Address) bool {
	return p.Module == nil || *p.Module == sender
}

func (p CreationPolicy) String() string {
	if p.Module == nil {
		return "anyone"
	}
	return "module " + p.Module.Hex()
}

// Config is the singleton configuration of the proposal module.
type Config struct {
	Threshold voting.Threshold `json:"threshold"`
	// VotingStrategy decides multiple choice proposals.
	VotingStrategy  voting.VotingStrategy `json:"voting_strategy"`
	MaxVotingPeriod voting.Duration       `json:"max_voting_period"`
	MinVotingPeriod *voting.Duration      `json:"min_voting_period,omitempty"`
	// OnlyMembersExecute requires voting power at the proposal snapshot
	// to execute it.
	OnlyMembersExecute bool `json:"only_members_execute"`
	AllowRevoting      bool `json:"allow_revoting"`
	// DAO is the governance entity allowed to update the config and the
	// target payloads are dispatched to.
	DAO                             common.Address     `json:"dao"`
	CloseProposalOnExecutionFailure bool               `json:"close_proposal_on_execution_failure"`
	Veto                            *voting.VetoConfig `json:"veto,omitempty"`
	CreationPolicy                  CreationPolicy     `json:"creation_policy"`
}

func (c *Config) Validate() error {
	if err := c.Threshold.Validate(); err != nil {
		return errors.Wrap(err, "invalid threshold")
	}
	if err := c.VotingStrategy.Validate(); err != nil {
		return errors.Wrap(err, "invalid voting strategy")
	}
	if c.MaxVotingPeriod.IsZero() {
		return errors.Wrap(voting.ErrInvalidDuration, "max voting period must not be zero")
	}
	if err := voting.ValidateVotingPeriod(c.MinVotingPeriod, c.MaxVotingPeriod); err != nil {
		return err
	}
	if c.Veto != nil {
		if err := c.Veto.Validate(c.MaxVotingPeriod); err != nil {
			return errors.Wrap(err, "invalid veto config")
		}
	}
	return nil
}

// Option is one choice of a multiple choice proposal.
type Option struct {
	Index       uint32            `json:"index"`
	Type        voting.OptionType `json:"option_type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Msgs        []json.RawMessage `json:"msgs,omitempty"`
}

// OptionInput is a proposer supplied option.
type OptionInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Msgs        []json.RawMessage `json:"msgs,omitempty"`
}

// Ballot is the recorded vote of one voter on one proposal. Choice is a
// voting.Vote on single choice proposals and an option index otherwise.
type Ballot struct {
	ProposalID uint64         `json:"proposal_id"`
	Voter      common.Address `json:"voter"`
	Choice     uint32         `json:"choice"`
	Power      voting.Uint    `json:"power"`
	Rationale  *string        `json:"rationale,omitempty"`
}

// Vote returns the single choice position of the ballot.
func (b *Ballot) Vote() voting.Vote {
	return voting.Vote(b.Choice)
}

// ProposeMsg submits a single choice proposal.
type ProposeMsg struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Msgs        []json.RawMessage `json:"msgs,omitempty"`
	// Proposer is set by the pre-propose module when the creation policy
	// names one, and must be empty otherwise.
	Proposer *common.Address `json:"proposer,omitempty"`
	// Latest optionally shortens the voting period.
	Latest *voting.Expiration `json:"latest,omitempty"`
}

// ProposeMultipleMsg submits a multiple choice proposal.
type ProposeMultipleMsg struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Choices     []OptionInput      `json:"choices"`
	Proposer    *common.Address    `json:"proposer,omitempty"`
	Latest      *voting.Expiration `json:"latest,omitempty"`
}

// Info describes the running module.
type Info struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}
