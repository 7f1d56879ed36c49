package core

import (
	"github.com/axiomesh/governor/voting"
	"github.com/pkg/errors"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotOpen         = errors.New("proposal is not open")
	ErrNotPassed       = errors.New("proposal is not in 'passed' state")
	ErrAlreadyVoted    = errors.New("already voted; this proposal does not support revoting")
	ErrAlreadyCast     = errors.New("already cast a vote with that option; change your vote to revote")
	ErrNotRegistered   = errors.New("must have voting power to vote")
	ErrExpired         = errors.New("proposal is expired")
	ErrNoSuchProposal  = errors.New("no such proposal")
	ErrNoSuchVote      = errors.New("no vote exists for proposal")
	ErrInvalidProposer = errors.New("the proposer field disagrees with the proposal creation policy")
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrNotInstantiated = errors.New("module has no configuration")

	// ErrInvalidExpiration is returned when a caller supplied deadline is
	// later than the configured maximum voting period allows.
	ErrInvalidExpiration = errors.New("proposal expiration is larger than the maximum voting period")

	// ErrWrongCloseStatus wraps ErrNotOpen so callers matching the broader
	// class still see it.
	ErrWrongCloseStatus = errors.WithMessage(ErrNotOpen, "only rejected proposals may be closed")

	ErrOverflow = voting.ErrOverflow
)

var (
	ErrNoVetoConfig             = errors.New("proposal is not vetoable")
	ErrTimelocked               = errors.New("proposal is timelocked")
	ErrTimelockExpired          = errors.New("proposal veto timelock has expired")
	ErrVetoBeforePassedDisabled = errors.New("veto before passed is disabled")
	ErrEarlyExecuteDisabled     = errors.New("early execute is disabled")
	ErrInvalidVetoStatus        = errors.New("proposal status does not allow a veto")
)
