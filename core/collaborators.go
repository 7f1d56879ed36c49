package core

import (
	"context"
	"encoding/json"

	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
)

// VotingPowerOracle reports voting power at past heights. The total at a
// height is never smaller than the sum of the individual powers.
type VotingPowerOracle interface {
	VotingPowerAtHeight(ctx context.Context, addr common.Address, height uint64) (voting.Uint, error)

	TotalPowerAtHeight(ctx context.Context, height uint64) (voting.Uint, error)
}

// ExecuteRequest is the payload of a passed proposal handed to an
// Executor.
type ExecuteRequest struct {
	ProposalID uint64            `json:"proposal_id"`
	DAO        common.Address    `json:"dao"`
	Sender     common.Address    `json:"sender"`
	Msgs       []json.RawMessage `json:"msgs"`
	// Option is the winning option of a multiple choice proposal.
	Option *uint32 `json:"option,omitempty"`
}

// Executor dispatches the messages of passed proposals. A returned error
// means none of the messages took effect.
type Executor interface {
	Execute(ctx context.Context, req *ExecuteRequest) error
}

// Metrics records module activity.
type Metrics interface {
	ProposalCreated(flavor string)
	VoteCast(flavor string, revote bool)
	StatusChanged(from, to ProposalStatus)
	ExecutionFailed()
}

type nopMetrics struct{}

func (nopMetrics) ProposalCreated(string) {}
func (nopMetrics) VoteCast(string, bool) {}
func (nopMetrics) StatusChanged(ProposalStatus, ProposalStatus) {}
func (nopMetrics) ExecutionFailed() {}
