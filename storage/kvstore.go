package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"path/filepath"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/governor/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	DBDirName = "leveldb"

	configKey        = "config"
	proposalCountKey = "proposalCount"
	proposalPrefix   = "proposal-"
	ballotPrefix     = "ballot-"
)

var _ core.Store = (*KVStore)(nil)

// KVStore keeps module state in an axiom-kit key/value storage. Values
// are JSON. Ballot keys sort by proposal and then voter address, so the
// ballots of a proposal are one key range.
type KVStore struct {
	db storage.Storage
}

// Open opens the LevelDB database under repoRoot.
func Open(repoRoot string) (*KVStore, error) {
	db, err := leveldb.New(filepath.Join(repoRoot, DBDirName))
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}
	return New(db), nil
}

func New(db storage.Storage) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

func proposalKey(id uint64) []byte {
	key := make([]byte, len(proposalPrefix)+8)
	copy(key, proposalPrefix)
	binary.BigEndian.PutUint64(key[len(proposalPrefix):], id)
	return key
}

func proposalBallotsKey(id uint64) []byte {
	key := make([]byte, 0, len(ballotPrefix)+8+common.AddressLength)
	key = append(key, ballotPrefix...)
	return binary.BigEndian.AppendUint64(key, id)
}

func ballotKey(id uint64, voter common.Address) []byte {
	return append(proposalBallotsKey(id), voter.Bytes()...)
}

func (s *KVStore) get(key []byte, v any) (bool, error) {
	data := s.db.Get(key)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "decode %q", key)
	}
	return true, nil
}

func (s *KVStore) Config() (*core.Config, error) {
	cfg := &core.Config{}
	ok, err := s.get([]byte(configKey), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrNotInstantiated
	}
	return cfg, nil
}

func (s *KVStore) Proposal(id uint64) (*core.Proposal, error) {
	p := &core.Proposal{}
	ok, err := s.get(proposalKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(core.ErrNoSuchProposal, "id %d", id)
	}
	return p, nil
}

func (s *KVStore) ProposalCount() (uint64, error) {
	data := s.db.Get([]byte(proposalCountKey))
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, errors.Errorf("corrupt proposal count %x", data)
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *KVStore) Ballot(proposalID uint64, voter common.Address) (*core.Ballot, error) {
	b := &core.Ballot{}
	ok, err := s.get(ballotKey(proposalID, voter), b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(core.ErrNoSuchVote, "proposal %d voter %s", proposalID, voter)
	}
	return b, nil
}

// Ballots walks the ballot range of proposalID in voter order.
func (s *KVStore) Ballots(proposalID uint64, startAfter *common.Address, limit int) ([]*core.Ballot, error) {
	it := s.db.Prefix(proposalBallotsKey(proposalID))
	var ok bool
	if startAfter != nil {
		after := ballotKey(proposalID, *startAfter)
		ok = it.Seek(after)
		if ok && bytes.Equal(it.Key(), after) {
			ok = it.Next()
		}
	} else {
		ok = it.Next()
	}

	ballots := make([]*core.Ballot, 0)
	for ; ok && (limit <= 0 || len(ballots) < limit); ok = it.Next() {
		b := &core.Ballot{}
		if err := json.Unmarshal(it.Value(), b); err != nil {
			return nil, errors.Wrapf(err, "decode %q", it.Key())
		}
		ballots = append(ballots, b)
	}
	return ballots, nil
}

func (s *KVStore) NewBatch() core.Batch {
	return &batch{store: s, writes: make(map[string][]byte)}
}

type batch struct {
	store  *KVStore
	writes map[string][]byte
	err    error
}

func (b *batch) put(key []byte, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		if b.err == nil {
			b.err = errors.Wrapf(err, "encode %q", key)
		}
		return
	}
	b.writes[string(key)] = data
}

func (b *batch) PutConfig(cfg *core.Config) {
	b.put([]byte(configKey), cfg)
}

func (b *batch) PutProposal(p *core.Proposal) {
	b.put(proposalKey(p.ID), p)
}

func (b *batch) PutProposalCount(count uint64) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, count)
	b.writes[proposalCountKey] = data
}

func (b *batch) PutBallot(ballot *core.Ballot) {
	b.put(ballotKey(ballot.ProposalID, ballot.Voter), ballot)
}

func (b *batch) Commit() error {
	if b.err != nil {
		return b.err
	}
	dbBatch := b.store.db.NewBatch()
	for key, value := range b.writes {
		dbBatch.Put([]byte(key), value)
	}
	dbBatch.Commit()
	b.writes = make(map[string][]byte)
	return nil
}
