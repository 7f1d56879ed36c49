package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol   = common.HexToAddress("0x0000000000000000000000000000000000000003")
	dao     = common.HexToAddress("0x000000000000000000000000000000000000da00")
	vetoer  = common.HexToAddress("0x000000000000000000000000000000000000fe70")
	premod  = common.HexToAddress("0x0000000000000000000000000000000000000b0d")
	genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func at(height uint64) voting.BlockInfo {
	return voting.BlockInfo{Height: height, Time: genesis.Add(time.Duration(height) * 5 * time.Second)}
}

type mockOracle struct {
	powers map[common.Address]uint64
	err    error
}

func (o *mockOracle) VotingPowerAtHeight(_ context.Context, addr common.Address, _ uint64) (voting.Uint, error) {
	return voting.NewUint(o.powers[addr]), o.err
}

func (o *mockOracle) TotalPowerAtHeight(_ context.Context, _ uint64) (voting.Uint, error) {
	var total uint64
	for _, p := range o.powers {
		total += p
	}
	return voting.NewUint(total), o.err
}

type mockExecutor struct {
	requests []*ExecuteRequest
	err      error
}

func (e *mockExecutor) Execute(_ context.Context, req *ExecuteRequest) error {
	if e.err != nil {
		return e.err
	}
	e.requests = append(e.requests, req)
	return nil
}

func testConfig() *Config {
	return &Config{
		Threshold:       voting.NewAbsolutePercentage(voting.Majority()),
		VotingStrategy:  voting.VotingStrategy{Quorum: voting.MustPercent("0.5")},
		MaxVotingPeriod: voting.HeightDuration(10),
		DAO:             dao,
	}
}

func newTestModule(t *testing.T, cfg *Config, powers map[common.Address]uint64) (*Module, *mockExecutor) {
	exec := &mockExecutor{}
	logger := log.New()
	m := NewModule(NewMemoryStore(), &mockOracle{powers: powers}, exec, logger, nil, "v0.0.1")
	require.Nil(t, m.Instantiate(cfg))
	return m, exec
}

func defaultPowers() map[common.Address]uint64 {
	return map[common.Address]uint64{alice: 60, bob: 40}
}

var payload = []json.RawMessage{json.RawMessage(`{"transfer":{"to":"0x02","amount":"10"}}`)}

func propose(t *testing.T, m *Module, block voting.BlockInfo) uint64 {
	id, err := m.Propose(context.Background(), alice, block, &ProposeMsg{
		Title:       "spend",
		Description: "send 10 tokens to bob",
		Msgs:        payload,
	})
	require.Nil(t, err)
	return id
}

func status(t *testing.T, m *Module, id uint64, block voting.BlockInfo) ProposalStatus {
	p, err := m.Proposal(id, block)
	require.Nil(t, err)
	return p.Status
}

func TestInstantiate(t *testing.T) {
	m, _ := newTestModule(t, testConfig(), defaultPowers())
	assert.ErrorIs(t, m.Instantiate(testConfig()), ErrAlreadyInstantiated)

	cfg := testConfig()
	cfg.Threshold = voting.NewAbsoluteCount(voting.NewUint(0))
	other := NewModule(NewMemoryStore(), &mockOracle{}, &mockExecutor{}, log.New(), nil, "")
	assert.ErrorIs(t, other.Instantiate(cfg), voting.ErrZeroThreshold)

	_, err := other.Config()
	assert.ErrorIs(t, err, ErrNotInstantiated)
}

func TestProposeVoteExecute(t *testing.T) {
	ctx := context.Background()
	m, exec := newTestModule(t, testConfig(), defaultPowers())

	id := propose(t, m, at(100))
	assert.Equal(t, uint64(1), id)
	p, err := m.Proposal(id, at(100))
	require.Nil(t, err)
	assert.Equal(t, Open, p.Status)
	assert.Equal(t, alice, p.Proposer)
	assert.Equal(t, uint64(100), p.StartHeight)
	assert.Equal(t, uint64(110), *p.Expiration.AtHeight)
	assert.Equal(t, "100", p.TotalPower.String())

	assert.ErrorIs(t, m.Execute(ctx, bob, at(101), id), ErrNotPassed)

	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))
	assert.Equal(t, Passed, status(t, m, id, at(101)))

	require.Nil(t, m.Execute(ctx, bob, at(102), id))
	assert.Equal(t, Executed, status(t, m, id, at(102)))
	require.Len(t, exec.requests, 1)
	assert.Equal(t, id, exec.requests[0].ProposalID)
	assert.Equal(t, dao, exec.requests[0].DAO)
	assert.Equal(t, payload, exec.requests[0].Msgs)
	assert.Nil(t, exec.requests[0].Option)

	assert.ErrorIs(t, m.Execute(ctx, bob, at(103), id), ErrNotPassed)
	assert.ErrorIs(t, m.Vote(ctx, bob, at(103), id, uint32(voting.No), nil), ErrNotOpen)
}

func TestVoteErrors(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t, testConfig(), defaultPowers())
	id := propose(t, m, at(100))

	assert.ErrorIs(t, m.Vote(ctx, alice, at(101), 42, uint32(voting.Yes), nil), ErrNoSuchProposal)
	assert.ErrorIs(t, m.Vote(ctx, alice, at(101), id, 3, nil), ErrInvalidChoice)
	assert.ErrorIs(t, m.Vote(ctx, carol, at(101), id, uint32(voting.Yes), nil), ErrNotRegistered)
	assert.ErrorIs(t, m.Vote(ctx, bob, at(110), id, uint32(voting.Yes), nil), ErrExpired)

	require.Nil(t, m.Vote(ctx, bob, at(101), id, uint32(voting.No), nil))
	assert.ErrorIs(t, m.Vote(ctx, bob, at(102), id, uint32(voting.Yes), nil), ErrAlreadyVoted)

	ballot, err := m.GetVote(id, bob)
	require.Nil(t, err)
	assert.Equal(t, voting.No, ballot.Vote())
	assert.Equal(t, "40", ballot.Power.String())

	_, err = m.GetVote(id, alice)
	assert.ErrorIs(t, err, ErrNoSuchVote)
}

func TestOracleFailure(t *testing.T) {
	oracleErr := errors.New("node unreachable")
	m := NewModule(NewMemoryStore(), &mockOracle{err: oracleErr}, &mockExecutor{}, log.New(), nil, "")
	require.Nil(t, m.Instantiate(testConfig()))

	_, err := m.Propose(context.Background(), alice, at(100), &ProposeMsg{Title: "t"})
	assert.ErrorIs(t, err, oracleErr)

	count, err := m.ProposalCount()
	require.Nil(t, err)
	assert.Zero(t, count)
}

func TestVoteAfterOutcomeDecided(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t, testConfig(), defaultPowers())
	id := propose(t, m, at(100))

	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))
	assert.Equal(t, Passed, status(t, m, id, at(101)))

	// still recorded, the outcome stays as decided
	require.Nil(t, m.Vote(ctx, bob, at(102), id, uint32(voting.No), nil))
	p, err := m.Proposal(id, at(102))
	require.Nil(t, err)
	assert.Equal(t, Passed, p.Status)
	assert.Equal(t, "40", p.SingleChoice.Votes.No.String())
}

func TestRevoting(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.AllowRevoting = true
	m, _ := newTestModule(t, cfg, defaultPowers())
	id := propose(t, m, at(100))

	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))
	// revoting proposals never finish early
	assert.Equal(t, Open, status(t, m, id, at(101)))

	assert.ErrorIs(t, m.Vote(ctx, alice, at(102), id, uint32(voting.Yes), nil), ErrAlreadyCast)

	rationale := "changed my mind"
	require.Nil(t, m.Vote(ctx, alice, at(102), id, uint32(voting.No), &rationale))
	p, err := m.Proposal(id, at(102))
	require.Nil(t, err)
	assert.True(t, p.SingleChoice.Votes.Yes.IsZero())
	assert.Equal(t, "60", p.SingleChoice.Votes.No.String())
	assert.Equal(t, "60", p.SingleChoice.Votes.Total().String())

	ballot, err := m.GetVote(id, alice)
	require.Nil(t, err)
	assert.Equal(t, voting.No, ballot.Vote())
	assert.Equal(t, rationale, *ballot.Rationale)

	assert.Equal(t, Rejected, status(t, m, id, at(110)))
}

func TestExpirationRejects(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t, testConfig(), map[common.Address]uint64{alice: 10, bob: 90})
	id := propose(t, m, at(100))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

	assert.Equal(t, Open, status(t, m, id, at(109)))
	assert.ErrorIs(t, m.Close(bob, at(109), id), ErrWrongCloseStatus)

	assert.Equal(t, Rejected, status(t, m, id, at(110)))
	// reads do not persist the refreshed status
	stored, err := m.store.Proposal(id)
	require.Nil(t, err)
	assert.Equal(t, Open, stored.Status)

	require.Nil(t, m.Close(bob, at(110), id))
	assert.Equal(t, Closed, status(t, m, id, at(111)))

	err = m.Close(bob, at(111), id)
	assert.ErrorIs(t, err, ErrWrongCloseStatus)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestExecutionFailure(t *testing.T) {
	ctx := context.Background()
	execErr := errors.New("insufficient treasury funds")

	t.Run("revert", func(t *testing.T) {
		m, exec := newTestModule(t, testConfig(), defaultPowers())
		id := propose(t, m, at(100))
		require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

		exec.err = execErr
		assert.ErrorIs(t, m.Execute(ctx, bob, at(102), id), execErr)
		assert.Equal(t, Passed, status(t, m, id, at(102)))

		exec.err = nil
		require.Nil(t, m.Execute(ctx, bob, at(103), id))
		assert.Equal(t, Executed, status(t, m, id, at(103)))
	})

	t.Run("close on failure", func(t *testing.T) {
		cfg := testConfig()
		cfg.CloseProposalOnExecutionFailure = true
		m, exec := newTestModule(t, cfg, defaultPowers())
		id := propose(t, m, at(100))
		require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

		exec.err = execErr
		require.Nil(t, m.Execute(ctx, bob, at(102), id))
		assert.Equal(t, ExecutionFailed, status(t, m, id, at(102)))
		assert.ErrorIs(t, m.Vote(ctx, bob, at(103), id, uint32(voting.No), nil), ErrNotOpen)

		// retried once conditions change
		exec.err = nil
		require.Nil(t, m.Execute(ctx, bob, at(105), id))
		assert.Equal(t, Executed, status(t, m, id, at(105)))
		require.Len(t, exec.requests, 1)
	})

	t.Run("failure after expiration closes", func(t *testing.T) {
		cfg := testConfig()
		cfg.CloseProposalOnExecutionFailure = true
		m, exec := newTestModule(t, cfg, defaultPowers())
		id := propose(t, m, at(100))
		require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

		exec.err = execErr
		require.Nil(t, m.Execute(ctx, bob, at(115), id))
		assert.Equal(t, Closed, status(t, m, id, at(115)))

		exec.err = nil
		assert.ErrorIs(t, m.Execute(ctx, bob, at(116), id), ErrNotPassed)
		assert.Empty(t, exec.requests)
	})

	t.Run("failed proposal closes at expiration", func(t *testing.T) {
		cfg := testConfig()
		cfg.CloseProposalOnExecutionFailure = true
		m, exec := newTestModule(t, cfg, defaultPowers())
		id := propose(t, m, at(100))
		require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

		exec.err = execErr
		require.Nil(t, m.Execute(ctx, bob, at(102), id))
		assert.Equal(t, ExecutionFailed, status(t, m, id, at(109)))
		assert.Equal(t, Closed, status(t, m, id, at(110)))

		exec.err = nil
		assert.ErrorIs(t, m.Execute(ctx, bob, at(120), id), ErrNotPassed)
		assert.Empty(t, exec.requests)
	})

	t.Run("close failed proposal", func(t *testing.T) {
		cfg := testConfig()
		cfg.CloseProposalOnExecutionFailure = true
		m, exec := newTestModule(t, cfg, defaultPowers())
		id := propose(t, m, at(100))
		require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

		exec.err = execErr
		require.Nil(t, m.Execute(ctx, bob, at(102), id))
		require.Nil(t, m.Close(bob, at(104), id))
		assert.Equal(t, Closed, status(t, m, id, at(104)))
		assert.ErrorIs(t, m.Execute(ctx, bob, at(105), id), ErrNotPassed)
	})
}

func TestOnlyMembersExecute(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.OnlyMembersExecute = true
	m, _ := newTestModule(t, cfg, defaultPowers())
	id := propose(t, m, at(100))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

	assert.ErrorIs(t, m.Execute(ctx, carol, at(102), id), ErrUnauthorized)
	require.Nil(t, m.Execute(ctx, bob, at(102), id))
}

func vetoConfig() *voting.VetoConfig {
	return &voting.VetoConfig{
		TimelockDuration: voting.HeightDuration(5),
		Vetoer:           vetoer,
	}
}

func TestVetoTimelock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Veto = vetoConfig()
	m, _ := newTestModule(t, cfg, defaultPowers())
	id := propose(t, m, at(100))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

	p, err := m.Proposal(id, at(101))
	require.Nil(t, err)
	assert.Equal(t, VetoTimelock, p.Status)
	assert.Equal(t, uint64(115), *p.VetoExpiration.AtHeight)

	assert.ErrorIs(t, m.Execute(ctx, bob, at(112), id), ErrTimelocked)
	assert.ErrorIs(t, m.Execute(ctx, carol, at(112), id), ErrTimelocked)
	assert.ErrorIs(t, m.Execute(ctx, vetoer, at(112), id), ErrEarlyExecuteDisabled)
	assert.ErrorIs(t, m.Veto(bob, at(112), id), ErrUnauthorized)

	assert.Equal(t, Passed, status(t, m, id, at(115)))
	assert.ErrorIs(t, m.Veto(vetoer, at(115), id), ErrTimelockExpired)

	require.Nil(t, m.Veto(vetoer, at(114), id))
	assert.Equal(t, Vetoed, status(t, m, id, at(120)))
	assert.ErrorIs(t, m.Execute(ctx, bob, at(120), id), ErrNotPassed)
	assert.ErrorIs(t, m.Veto(vetoer, at(120), id), ErrInvalidVetoStatus)
}

func TestVetoTimelockExpires(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Veto = vetoConfig()
	m, exec := newTestModule(t, cfg, defaultPowers())
	id := propose(t, m, at(100))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

	require.Nil(t, m.Execute(ctx, bob, at(115), id))
	assert.Equal(t, Executed, status(t, m, id, at(115)))
	assert.Len(t, exec.requests, 1)
}

func TestVetoOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("no veto config", func(t *testing.T) {
		m, _ := newTestModule(t, testConfig(), defaultPowers())
		id := propose(t, m, at(100))
		assert.ErrorIs(t, m.Veto(vetoer, at(101), id), ErrNoVetoConfig)
	})

	t.Run("veto before passed", func(t *testing.T) {
		cfg := testConfig()
		cfg.Veto = vetoConfig()
		m, _ := newTestModule(t, cfg, defaultPowers())
		id := propose(t, m, at(100))
		assert.ErrorIs(t, m.Veto(vetoer, at(101), id), ErrVetoBeforePassedDisabled)

		cfg.Veto.VetoBeforePassed = true
		require.Nil(t, m.UpdateConfig(dao, cfg))
		id = propose(t, m, at(100))
		require.Nil(t, m.Veto(vetoer, at(101), id))
		assert.Equal(t, Vetoed, status(t, m, id, at(101)))
		assert.ErrorIs(t, m.Vote(ctx, alice, at(102), id, uint32(voting.Yes), nil), ErrNotOpen)
	})

	t.Run("early execute", func(t *testing.T) {
		cfg := testConfig()
		cfg.Veto = vetoConfig()
		cfg.Veto.EarlyExecute = true
		m, _ := newTestModule(t, cfg, defaultPowers())
		id := propose(t, m, at(100))
		require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))

		require.Nil(t, m.Execute(ctx, vetoer, at(102), id))
		assert.Equal(t, Executed, status(t, m, id, at(102)))
	})
}

func TestCreationPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	module := premod
	cfg.CreationPolicy = CreationPolicy{Module: &module}
	m, _ := newTestModule(t, cfg, defaultPowers())

	_, err := m.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = m.Propose(ctx, premod, at(100), &ProposeMsg{Title: "t"})
	assert.ErrorIs(t, err, ErrInvalidProposer)

	proposer := alice
	id, err := m.Propose(ctx, premod, at(100), &ProposeMsg{Title: "t", Proposer: &proposer})
	require.Nil(t, err)
	p, err := m.Proposal(id, at(100))
	require.Nil(t, err)
	assert.Equal(t, alice, p.Proposer)

	anyone, _ := newTestModule(t, testConfig(), defaultPowers())
	_, err = anyone.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t", Proposer: &proposer})
	assert.ErrorIs(t, err, ErrInvalidProposer)
}

func TestLatestExpiration(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t, testConfig(), defaultPowers())

	tooLate := voting.AtHeight(111)
	_, err := m.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t", Latest: &tooLate})
	assert.ErrorIs(t, err, ErrInvalidExpiration)

	wrongUnits := voting.AtTime(genesis)
	_, err = m.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t", Latest: &wrongUnits})
	assert.ErrorIs(t, err, ErrInvalidExpiration)

	never := voting.Never()
	_, err = m.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t", Latest: &never})
	assert.ErrorIs(t, err, ErrInvalidExpiration)

	sooner := voting.AtHeight(105)
	id, err := m.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t", Latest: &sooner})
	require.Nil(t, err)
	p, err := m.Proposal(id, at(100))
	require.Nil(t, err)
	assert.Equal(t, uint64(105), *p.Expiration.AtHeight)

	// expiring in its creation block, the proposal is decided immediately
	now := voting.AtHeight(100)
	id, err = m.Propose(ctx, alice, at(100), &ProposeMsg{Title: "t", Latest: &now})
	require.Nil(t, err)
	stored, err := m.store.Proposal(id)
	require.Nil(t, err)
	assert.Equal(t, Rejected, stored.Status)
}

func TestMinVotingPeriod(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	min := voting.HeightDuration(5)
	cfg.MinVotingPeriod = &min

	m, _ := newTestModule(t, cfg, defaultPowers())
	id := propose(t, m, at(100))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))
	assert.Equal(t, Open, status(t, m, id, at(104)))
	assert.Equal(t, Passed, status(t, m, id, at(105)))

	// rejection is not held back
	id = propose(t, m, at(100))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.No), nil))
	assert.Equal(t, Rejected, status(t, m, id, at(101)))

	bad := testConfig()
	tooLong := voting.HeightDuration(11)
	bad.MinVotingPeriod = &tooLong
	assert.ErrorIs(t, m.UpdateConfig(dao, bad), voting.ErrInvalidMinVotingPeriod)
}

func TestMultipleChoice(t *testing.T) {
	ctx := context.Background()
	m, exec := newTestModule(t, testConfig(), map[common.Address]uint64{alice: 60, bob: 30, carol: 10})

	_, err := m.ProposeMultiple(ctx, alice, at(100), &ProposeMultipleMsg{
		Title:   "one option",
		Choices: []OptionInput{{Title: "a"}},
	})
	assert.ErrorIs(t, err, voting.ErrWrongNumberOfChoices)

	msg := &ProposeMultipleMsg{
		Title: "pick a grantee",
		Choices: []OptionInput{
			{Title: "a", Msgs: payload},
			{Title: "b"},
		},
	}
	id, err := m.ProposeMultiple(ctx, alice, at(100), msg)
	require.Nil(t, err)
	p, err := m.Proposal(id, at(100))
	require.Nil(t, err)
	require.Len(t, p.MultipleChoice.Options, 3)
	assert.Equal(t, voting.OptionNone, p.MultipleChoice.Options[2].Type)
	assert.Equal(t, voting.NoneOptionDescription, p.MultipleChoice.Options[2].Title)

	assert.ErrorIs(t, m.Vote(ctx, bob, at(101), id, 3, nil), ErrInvalidChoice)

	require.Nil(t, m.Vote(ctx, bob, at(101), id, 1, nil))
	assert.Equal(t, Open, status(t, m, id, at(101)))
	require.Nil(t, m.Vote(ctx, alice, at(101), id, 0, nil))
	assert.Equal(t, Passed, status(t, m, id, at(101)))

	require.Nil(t, m.Execute(ctx, carol, at(102), id))
	require.Len(t, exec.requests, 1)
	assert.Equal(t, payload, exec.requests[0].Msgs)
	require.NotNil(t, exec.requests[0].Option)
	assert.Equal(t, uint32(0), *exec.requests[0].Option)

	// none of the above rejects
	id, err = m.ProposeMultiple(ctx, alice, at(100), msg)
	require.Nil(t, err)
	require.Nil(t, m.Vote(ctx, alice, at(101), id, 2, nil))
	assert.Equal(t, Rejected, status(t, m, id, at(101)))
}

func TestUpdateConfig(t *testing.T) {
	m, _ := newTestModule(t, testConfig(), defaultPowers())
	id := propose(t, m, at(100))

	next := testConfig()
	next.Threshold = voting.NewAbsoluteCount(voting.NewUint(1000))
	assert.ErrorIs(t, m.UpdateConfig(alice, next), ErrUnauthorized)

	invalid := testConfig()
	invalid.Threshold = voting.NewAbsolutePercentage(voting.MustPercent("0"))
	assert.ErrorIs(t, m.UpdateConfig(dao, invalid), voting.ErrZeroThreshold)

	require.Nil(t, m.UpdateConfig(dao, next))
	cfg, err := m.Config()
	require.Nil(t, err)
	assert.Equal(t, voting.AbsoluteCount, cfg.Threshold.Kind)

	p, err := m.Proposal(id, at(100))
	require.Nil(t, err)
	assert.Equal(t, voting.AbsolutePercentage, p.SingleChoice.Threshold.Kind)
}

func TestUpdateRationale(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t, testConfig(), defaultPowers())
	id := propose(t, m, at(100))

	rationale := "good for the treasury"
	assert.ErrorIs(t, m.UpdateRationale(alice, id, &rationale), ErrNoSuchVote)

	require.Nil(t, m.Vote(ctx, alice, at(101), id, uint32(voting.Yes), nil))
	require.Nil(t, m.UpdateRationale(alice, id, &rationale))
	ballot, err := m.GetVote(id, alice)
	require.Nil(t, err)
	assert.Equal(t, rationale, *ballot.Rationale)

	require.Nil(t, m.UpdateRationale(alice, id, nil))
	ballot, err = m.GetVote(id, alice)
	require.Nil(t, err)
	assert.Nil(t, ballot.Rationale)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestModule(t, testConfig(), defaultPowers())
	for i := 0; i < 5; i++ {
		propose(t, m, at(100))
	}

	ids := func(ps []*Proposal, err error) []uint64 {
		require.Nil(t, err)
		var out []uint64
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []uint64{1, 2}, ids(m.ListProposals(0, 2, at(100))))
	assert.Equal(t, []uint64{3, 4, 5}, ids(m.ListProposals(2, 0, at(100))))
	assert.Equal(t, []uint64{5, 4}, ids(m.ReverseProposals(nil, 2, at(100))))
	before := uint64(3)
	assert.Equal(t, []uint64{2, 1}, ids(m.ReverseProposals(&before, 0, at(100))))

	count, err := m.ProposalCount()
	require.Nil(t, err)
	assert.Equal(t, uint64(5), count)
	next, err := m.NextProposalID()
	require.Nil(t, err)
	assert.Equal(t, uint64(6), next)

	require.Nil(t, m.Vote(ctx, bob, at(101), 1, uint32(voting.No), nil))
	require.Nil(t, m.Vote(ctx, alice, at(101), 1, uint32(voting.Yes), nil))
	votes, err := m.ListVotes(1, nil, 0)
	require.Nil(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, alice, votes[0].Voter)
	assert.Equal(t, bob, votes[1].Voter)

	start := alice
	votes, err = m.ListVotes(1, &start, 0)
	require.Nil(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, bob, votes[0].Voter)

	_, err = m.ListVotes(42, nil, 0)
	assert.ErrorIs(t, err, ErrNoSuchProposal)

	statuses := statusesOf(m.ListProposals(0, 0, at(110)))
	assert.Equal(t, []ProposalStatus{Passed, Rejected, Rejected, Rejected, Rejected}, statuses)

	assert.Equal(t, Info{Contract: ContractName, Version: "v0.0.1"}, m.Info())
}

func statusesOf(ps []*Proposal, err error) []ProposalStatus {
	if err != nil {
		return nil
	}
	out := make([]ProposalStatus, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Status)
	}
	return out
}
