package core

import (
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
)

// Reads report proposals with the status they have at the supplied block
// without persisting it.

func (m *Module) Config() (*Config, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.store.Config()
}

func (m *Module) Info() Info {
	return Info{Contract: ContractName, Version: m.version}
}

func (m *Module) Proposal(id uint64, block voting.BlockInfo) (*Proposal, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.proposalAt(id, block)
}

func (m *Module) proposalAt(id uint64, block voting.BlockInfo) (*Proposal, error) {
	p, err := m.store.Proposal(id)
	if err != nil {
		return nil, err
	}
	if err := p.UpdateStatus(block); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProposals returns proposals in ascending id order after startAfter.
func (m *Module) ListProposals(startAfter uint64, limit int, block voting.BlockInfo) ([]*Proposal, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count, err := m.store.ProposalCount()
	if err != nil {
		return nil, err
	}
	limit = pageSize(limit)

	proposals := make([]*Proposal, 0, limit)
	for id := startAfter + 1; id <= count && len(proposals) < limit; id++ {
		p, err := m.proposalAt(id, block)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// ReverseProposals returns proposals in descending id order before
// startBefore, or from the newest one when startBefore is nil.
func (m *Module) ReverseProposals(startBefore *uint64, limit int, block voting.BlockInfo) ([]*Proposal, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	id, err := m.store.ProposalCount()
	if err != nil {
		return nil, err
	}
	if startBefore != nil && *startBefore <= id {
		if *startBefore == 0 {
			return []*Proposal{}, nil
		}
		id = *startBefore - 1
	}
	limit = pageSize(limit)

	proposals := make([]*Proposal, 0, limit)
	for ; id > 0 && len(proposals) < limit; id-- {
		p, err := m.proposalAt(id, block)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

func (m *Module) ProposalCount() (uint64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.store.ProposalCount()
}

func (m *Module) NextProposalID() (uint64, error) {
	count, err := m.ProposalCount()
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// GetVote fails with ErrNoSuchVote when voter has no ballot.
func (m *Module) GetVote(proposalID uint64, voter common.Address) (*Ballot, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, err := m.store.Proposal(proposalID); err != nil {
		return nil, err
	}
	return m.store.Ballot(proposalID, voter)
}

func (m *Module) ListVotes(proposalID uint64, startAfter *common.Address, limit int) ([]*Ballot, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, err := m.store.Proposal(proposalID); err != nil {
		return nil, err
	}
	return m.store.Ballots(proposalID, startAfter, pageSize(limit))
}

func pageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}
