package core

import (
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
)

type Proposal struct {
	ID          uint64         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Proposer    common.Address `json:"proposer"`
	// StartHeight is the snapshot height for every power lookup.
	StartHeight     uint64             `json:"start_height"`
	MinVotingPeriod *voting.Expiration `json:"min_voting_period,omitempty"`
	Expiration      voting.Expiration  `json:"expiration"`
	TotalPower      voting.Uint        `json:"total_power"`
	Status          ProposalStatus     `json:"status"`
	// VetoExpiration ends the timelock while Status is VetoTimelock.
	VetoExpiration *voting.Expiration `json:"veto_expiration,omitempty"`
	AllowRevoting  bool               `json:"allow_revoting"`
	Veto           *voting.VetoConfig `json:"veto,omitempty"`

	SingleChoice   *SingleChoice   `json:"single_choice,omitempty"`
	MultipleChoice *MultipleChoice `json:"multiple_choice,omitempty"`
}

func (p *Proposal) Flavor() Flavor {
	if p.MultipleChoice != nil {
		return p.MultipleChoice
	}
	return p.SingleChoice
}

// Verdict decides the proposal as of block. Revoting proposals are
// undecided until voting is over, and nothing passes before the minimum
// voting period elapsed.
func (p *Proposal) Verdict(block voting.BlockInfo) voting.Verdict {
	expired := p.Expiration.IsExpired(block)
	if p.AllowRevoting && !expired {
		return voting.Undetermined
	}
	verdict := p.Flavor().Evaluate(p.TotalPower, expired)
	if verdict == voting.Passed && p.MinVotingPeriod != nil && !p.MinVotingPeriod.IsExpired(block) {
		if expired {
			return voting.Rejected
		}
		return voting.Undetermined
	}
	return verdict
}

// CurrentStatus returns the status the proposal has at block, along with
// the end of the veto timelock while one is running. p is not modified.
func (p *Proposal) CurrentStatus(block voting.BlockInfo) (ProposalStatus, *voting.Expiration, error) {
	if p.Status == Open {
		switch p.Verdict(block) {
		case voting.Passed:
			return p.passedStatus(block)
		case voting.Rejected:
			return Rejected, nil, nil
		}
		return Open, nil, nil
	}
	if p.Status == VetoTimelock && p.VetoExpiration != nil && p.VetoExpiration.IsExpired(block) {
		return Passed, nil, nil
	}
	// failed payloads may only be retried while voting is still running
	if p.Status == ExecutionFailed && p.Expiration.IsExpired(block) {
		return Closed, nil, nil
	}
	return p.Status, p.VetoExpiration, nil
}

// passedStatus is Passed, or VetoTimelock while the vetoer may still act.
func (p *Proposal) passedStatus(block voting.BlockInfo) (ProposalStatus, *voting.Expiration, error) {
	if p.Veto == nil {
		return Passed, nil, nil
	}
	end, err := p.Expiration.Add(p.Veto.TimelockDuration)
	if err != nil {
		return p.Status, nil, err
	}
	if end.IsExpired(block) {
		return Passed, nil, nil
	}
	return VetoTimelock, &end, nil
}

// UpdateStatus moves p to its status at block.
func (p *Proposal) UpdateStatus(block voting.BlockInfo) error {
	status, vetoEnd, err := p.CurrentStatus(block)
	if err != nil {
		return err
	}
	p.Status = status
	p.VetoExpiration = vetoEnd
	return nil
}

// checkVotingOpen fails when ballots are no longer accepted at block.
// Ballots cast after the outcome was decided still count until the
// proposal expires.
func (p *Proposal) checkVotingOpen(block voting.BlockInfo) error {
	if p.Expiration.IsExpired(block) {
		return ErrExpired
	}
	if p.Status.Final() || p.Status == ExecutionFailed {
		return ErrNotOpen
	}
	return nil
}
