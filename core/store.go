package core

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Store persists the config, proposals and ballots of a module. Reads
// return copies the caller may mutate freely.
type Store interface {
	// Config fails with ErrNotInstantiated before the first PutConfig.
	Config() (*Config, error)

	// Proposal fails with ErrNoSuchProposal for unknown ids.
	Proposal(id uint64) (*Proposal, error)

	ProposalCount() (uint64, error)

	// Ballot fails with ErrNoSuchVote when voter has not voted.
	Ballot(proposalID uint64, voter common.Address) (*Ballot, error)

	// Ballots lists ballots of a proposal ordered by voter address,
	// starting after startAfter when it is set.
	Ballots(proposalID uint64, startAfter *common.Address, limit int) ([]*Ballot, error)

	NewBatch() Batch
}

// Batch collects writes that become visible together on Commit.
type Batch interface {
	PutConfig(cfg *Config)

	PutProposal(p *Proposal)

	PutProposalCount(count uint64)

	PutBallot(b *Ballot)

	Commit() error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in maps. Values are stored as JSON so no
// reference is shared with callers.
type MemoryStore struct {
	config    []byte
	count     uint64
	proposals map[uint64][]byte
	ballots   map[uint64]map[common.Address][]byte
	mutex     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[uint64][]byte),
		ballots:   make(map[uint64]map[common.Address][]byte),
	}
}

func (s *MemoryStore) Config() (*Config, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.config == nil {
		return nil, ErrNotInstantiated
	}
	cfg := &Config{}
	if err := json.Unmarshal(s.config, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *MemoryStore) Proposal(id uint64) (*Proposal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	raw, ok := s.proposals[id]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchProposal, "id %d", id)
	}
	p := &Proposal{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *MemoryStore) ProposalCount() (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.count, nil
}

func (s *MemoryStore) Ballot(proposalID uint64, voter common.Address) (*Ballot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	raw, ok := s.ballots[proposalID][voter]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchVote, "proposal %d voter %s", proposalID, voter)
	}
	b := &Ballot{}
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *MemoryStore) Ballots(proposalID uint64, startAfter *common.Address, limit int) ([]*Ballot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	voters := make([]common.Address, 0, len(s.ballots[proposalID]))
	for voter := range s.ballots[proposalID] {
		if startAfter != nil && bytes.Compare(voter.Bytes(), startAfter.Bytes()) <= 0 {
			continue
		}
		voters = append(voters, voter)
	}
	sort.Slice(voters, func(i, j int) bool {
		return bytes.Compare(voters[i].Bytes(), voters[j].Bytes()) < 0
	})
	if limit > 0 && len(voters) > limit {
		voters = voters[:limit]
	}

	ballots := make([]*Ballot, 0, len(voters))
	for _, voter := range voters {
		b := &Ballot{}
		if err := json.Unmarshal(s.ballots[proposalID][voter], b); err != nil {
			return nil, err
		}
		ballots = append(ballots, b)
	}
	return ballots, nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s}
}

type memoryBatch struct {
	store *MemoryStore
	ops   []func(s *MemoryStore)
	err   error
}

func (b *memoryBatch) encode(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil && b.err == nil {
		b.err = err
	}
	return raw
}

func (b *memoryBatch) PutConfig(cfg *Config) {
	raw := b.encode(cfg)
	b.ops = append(b.ops, func(s *MemoryStore) { s.config = raw })
}

func (b *memoryBatch) PutProposal(p *Proposal) {
	id, raw := p.ID, b.encode(p)
	b.ops = append(b.ops, func(s *MemoryStore) { s.proposals[id] = raw })
}

func (b *memoryBatch) PutProposalCount(count uint64) {
	b.ops = append(b.ops, func(s *MemoryStore) { s.count = count })
}

func (b *memoryBatch) PutBallot(ballot *Ballot) {
	id, voter, raw := ballot.ProposalID, ballot.Voter, b.encode(ballot)
	b.ops = append(b.ops, func(s *MemoryStore) {
		if s.ballots[id] == nil {
			s.ballots[id] = make(map[common.Address][]byte)
		}
		s.ballots[id][voter] = raw
	})
}

func (b *memoryBatch) Commit() error {
	if b.err != nil {
		return errors.Wrap(b.err, "encode batch")
	}
	b.store.mutex.Lock()
	defer b.store.mutex.Unlock()

	for _, op := range b.ops {
		op(b.store)
	}
	b.ops = nil
	return nil
}
