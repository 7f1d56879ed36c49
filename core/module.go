package core

import (
	"context"
	"sync"

	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ContractName = "governor-proposal"

	DefaultPageSize = 30
)

var ErrAlreadyInstantiated = errors.New("module is already instantiated")

// Module runs the proposal lifecycle. Mutating operations are serialised
// and each either commits all of its writes or none.
type Module struct {
	store    Store
	oracle   VotingPowerOracle
	executor Executor
	logger   logrus.FieldLogger
	metrics  Metrics
	version  string

	mutex sync.RWMutex
}

func NewModule(store Store, oracle VotingPowerOracle, executor Executor, logger logrus.FieldLogger, metrics Metrics, version string) *Module {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Module{
		store:    store,
		oracle:   oracle,
		executor: executor,
		logger:   logger,
		metrics:  metrics,
		version:  version,
	}
}

// Instantiate stores the initial config.
func (m *Module) Instantiate(cfg *Config) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, err := m.store.Config(); err == nil {
		return ErrAlreadyInstantiated
	} else if !errors.Is(err, ErrNotInstantiated) {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	batch := m.store.NewBatch()
	batch.PutConfig(cfg)
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save config")
	}

	m.logger.WithFields(logrus.Fields{
		"dao":       cfg.DAO.Hex(),
		"threshold": cfg.Threshold.String(),
	}).Info("Instantiate proposal module")
	return nil
}

// UpdateConfig replaces the config. Only the DAO may call it; open
// proposals keep the settings they were created with.
func (m *Module) UpdateConfig(sender common.Address, cfg *Config) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	current, err := m.store.Config()
	if err != nil {
		return err
	}
	if sender != current.DAO {
		return ErrUnauthorized
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	batch := m.store.NewBatch()
	batch.PutConfig(cfg)
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save config")
	}

	m.logger.WithFields(logrus.Fields{
		"sender":    sender.Hex(),
		"threshold": cfg.Threshold.String(),
	}).Info("Update config")
	return nil
}

// Propose creates a single choice proposal.
func (m *Module) Propose(ctx context.Context, sender common.Address, block voting.BlockInfo, msg *ProposeMsg) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cfg, err := m.store.Config()
	if err != nil {
		return 0, err
	}
	return m.propose(ctx, cfg, sender, block, msg.Title, msg.Description, msg.Proposer, msg.Latest, &SingleChoice{
		Threshold: cfg.Threshold,
		Msgs:      msg.Msgs,
	})
}

// ProposeMultiple creates a multiple choice proposal. A "None of the
// above" option is appended to the supplied choices.
func (m *Module) ProposeMultiple(ctx context.Context, sender common.Address, block voting.BlockInfo, msg *ProposeMultipleMsg) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cfg, err := m.store.Config()
	if err != nil {
		return 0, err
	}
	flavor, err := newMultipleChoice(cfg.VotingStrategy, msg.Choices)
	if err != nil {
		return 0, err
	}
	return m.propose(ctx, cfg, sender, block, msg.Title, msg.Description, msg.Proposer, msg.Latest, flavor)
}

func (m *Module) propose(ctx context.Context, cfg *Config, sender common.Address, block voting.BlockInfo,
	title, description string, proposer *common.Address, latest *voting.Expiration, flavor Flavor) (uint64, error) {
	if !cfg.CreationPolicy.IsPermitted(sender) {
		return 0, ErrUnauthorized
	}

	var author common.Address
	switch {
	case proposer == nil && cfg.CreationPolicy.Module == nil:
		author = sender
	case proposer != nil && cfg.CreationPolicy.Module != nil:
		author = *proposer
	default:
		return 0, ErrInvalidProposer
	}

	expiration := cfg.MaxVotingPeriod.After(block)
	if latest != nil {
		later, ok := expiration.Before(*latest)
		if !ok || later {
			return 0, errors.Wrapf(ErrInvalidExpiration, "%s", latest)
		}
		expiration = *latest
	}

	totalPower, err := m.oracle.TotalPowerAtHeight(ctx, block.Height)
	if err != nil {
		return 0, errors.Wrap(err, "query total power")
	}

	count, err := m.store.ProposalCount()
	if err != nil {
		return 0, err
	}

	p := &Proposal{
		ID:            count + 1,
		Title:         title,
		Description:   description,
		Proposer:      author,
		StartHeight:   block.Height,
		Expiration:    expiration,
		TotalPower:    totalPower,
		Status:        Open,
		AllowRevoting: cfg.AllowRevoting,
		Veto:          cfg.Veto,
	}
	if cfg.MinVotingPeriod != nil {
		min := cfg.MinVotingPeriod.After(block)
		p.MinVotingPeriod = &min
	}
	switch f := flavor.(type) {
	case *SingleChoice:
		p.SingleChoice = f
	case *MultipleChoice:
		p.MultipleChoice = f
	}
	if err := p.UpdateStatus(block); err != nil {
		return 0, err
	}

	batch := m.store.NewBatch()
	batch.PutProposal(p)
	batch.PutProposalCount(p.ID)
	if err := batch.Commit(); err != nil {
		return 0, errors.Wrap(err, "save proposal")
	}

	m.metrics.ProposalCreated(flavor.Kind())
	m.logger.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"sender":      sender.Hex(),
		"proposer":    author.Hex(),
		"kind":        flavor.Kind(),
		"status":      p.Status,
	}).Info("Create proposal")
	return p.ID, nil
}

// Vote casts or, on revoting proposals, changes the ballot of sender.
// choice is a voting.Vote for single choice proposals and an option index
// for multiple choice ones.
func (m *Module) Vote(ctx context.Context, sender common.Address, block voting.BlockInfo, proposalID uint64, choice uint32, rationale *string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	p, err := m.store.Proposal(proposalID)
	if err != nil {
		return err
	}
	if err := p.checkVotingOpen(block); err != nil {
		return errors.Wrapf(err, "proposal %d", proposalID)
	}
	flavor := p.Flavor()
	if !flavor.ValidChoice(choice) {
		return errors.Wrapf(ErrInvalidChoice, "%d", choice)
	}

	power, err := m.oracle.VotingPowerAtHeight(ctx, sender, p.StartHeight)
	if err != nil {
		return errors.Wrap(err, "query voting power")
	}
	if power.IsZero() {
		return ErrNotRegistered
	}
	if power.Cmp(voting.MaxPower) > 0 {
		return errors.Wrapf(ErrOverflow, "voting power %s", power)
	}

	revote := false
	previous, err := m.store.Ballot(proposalID, sender)
	switch {
	case errors.Is(err, ErrNoSuchVote):
	case err != nil:
		return err
	case !p.AllowRevoting:
		return ErrAlreadyVoted
	case previous.Choice == choice:
		return ErrAlreadyCast
	default:
		if err := flavor.RemoveVote(previous.Choice, previous.Power); err != nil {
			return err
		}
		revote = true
	}

	if err := flavor.AddVote(choice, power); err != nil {
		return err
	}
	oldStatus := p.Status
	if err := p.UpdateStatus(block); err != nil {
		return err
	}

	batch := m.store.NewBatch()
	batch.PutProposal(p)
	batch.PutBallot(&Ballot{
		ProposalID: proposalID,
		Voter:      sender,
		Choice:     choice,
		Power:      power,
		Rationale:  rationale,
	})
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save vote")
	}

	m.metrics.VoteCast(flavor.Kind(), revote)
	m.statusChanged(oldStatus, p.Status)
	m.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"sender":      sender.Hex(),
		"vote":        choice,
		"power":       power.String(),
		"revote":      revote,
		"status":      p.Status,
	}).Info("Cast vote")
	return nil
}

// UpdateRationale replaces the rationale of an existing ballot.
func (m *Module) UpdateRationale(sender common.Address, proposalID uint64, rationale *string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ballot, err := m.store.Ballot(proposalID, sender)
	if err != nil {
		return err
	}
	ballot.Rationale = rationale

	batch := m.store.NewBatch()
	batch.PutBallot(ballot)
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save ballot")
	}

	m.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"sender":      sender.Hex(),
	}).Info("Update rationale")
	return nil
}

// Execute dispatches the payload of a passed proposal. A failing payload
// reverts the call unless the module closes proposals on execution
// failure, in which case the proposal moves to ExecutionFailed and may be
// executed again until it expires. An expired proposal is closed instead.
func (m *Module) Execute(ctx context.Context, sender common.Address, block voting.BlockInfo, proposalID uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cfg, err := m.store.Config()
	if err != nil {
		return err
	}
	p, err := m.store.Proposal(proposalID)
	if err != nil {
		return err
	}

	canExecute := true
	if cfg.OnlyMembersExecute {
		power, err := m.oracle.VotingPowerAtHeight(ctx, sender, p.StartHeight)
		if err != nil {
			return errors.Wrap(err, "query voting power")
		}
		canExecute = !power.IsZero()
	}

	oldStatus := p.Status
	if err := p.UpdateStatus(block); err != nil {
		return err
	}
	switch p.Status {
	case Passed, ExecutionFailed:
		if !canExecute {
			return ErrUnauthorized
		}
	case VetoTimelock:
		if p.Veto == nil {
			return ErrNoVetoConfig
		}
		if !p.Veto.IsVetoer(sender) {
			if canExecute {
				return ErrTimelocked
			}
			return ErrUnauthorized
		}
		if !p.Veto.EarlyExecute {
			return ErrEarlyExecuteDisabled
		}
	default:
		return errors.Wrapf(ErrNotPassed, "proposal %d is %s", proposalID, p.Status)
	}

	p.Status = Executed
	p.VetoExpiration = nil
	msgs, option := p.Flavor().Payload()
	if len(msgs) > 0 {
		err := m.executor.Execute(ctx, &ExecuteRequest{
			ProposalID: proposalID,
			DAO:        cfg.DAO,
			Sender:     sender,
			Msgs:       msgs,
			Option:     option,
		})
		if err != nil {
			if !cfg.CloseProposalOnExecutionFailure {
				return errors.Wrapf(err, "execute proposal %d", proposalID)
			}
			m.metrics.ExecutionFailed()
			p.Status = ExecutionFailed
			if p.Expiration.IsExpired(block) {
				p.Status = Closed
			}
			m.logger.WithFields(logrus.Fields{
				"proposal_id": proposalID,
				"status":      p.Status,
				"err":         err,
			}).Warn("Proposal execution failed")
		}
	}

	batch := m.store.NewBatch()
	batch.PutProposal(p)
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save proposal")
	}

	m.statusChanged(oldStatus, p.Status)
	m.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"sender":      sender.Hex(),
		"status":      p.Status,
	}).Info("Execute proposal")
	return nil
}

// Veto blocks a proposal during its timelock, or while it is open when
// the veto config allows it.
func (m *Module) Veto(sender common.Address, block voting.BlockInfo, proposalID uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	p, err := m.store.Proposal(proposalID)
	if err != nil {
		return err
	}
	oldStatus := p.Status
	if err := p.UpdateStatus(block); err != nil {
		return err
	}

	if p.Veto == nil {
		return ErrNoVetoConfig
	}
	if !p.Veto.IsVetoer(sender) {
		return ErrUnauthorized
	}
	switch p.Status {
	case Open:
		if !p.Veto.VetoBeforePassed {
			return ErrVetoBeforePassedDisabled
		}
	case Passed:
		return ErrTimelockExpired
	case VetoTimelock:
		if p.VetoExpiration != nil && p.VetoExpiration.IsExpired(block) {
			return ErrTimelockExpired
		}
	default:
		return errors.Wrapf(ErrInvalidVetoStatus, "status %s", p.Status)
	}

	p.Status = Vetoed
	p.VetoExpiration = nil
	batch := m.store.NewBatch()
	batch.PutProposal(p)
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save proposal")
	}

	m.statusChanged(oldStatus, p.Status)
	m.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"sender":      sender.Hex(),
		"status":      p.Status,
	}).Info("Veto proposal")
	return nil
}

// Close marks a rejected proposal, or one whose execution failed, as
// closed.
func (m *Module) Close(sender common.Address, block voting.BlockInfo, proposalID uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	p, err := m.store.Proposal(proposalID)
	if err != nil {
		return err
	}
	oldStatus := p.Status
	if err := p.UpdateStatus(block); err != nil {
		return err
	}
	if p.Status != Rejected && p.Status != ExecutionFailed {
		return errors.Wrapf(ErrWrongCloseStatus, "proposal %d is %s", proposalID, p.Status)
	}

	p.Status = Closed
	batch := m.store.NewBatch()
	batch.PutProposal(p)
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "save proposal")
	}

	m.statusChanged(oldStatus, p.Status)
	m.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"sender":      sender.Hex(),
		"status":      p.Status,
	}).Info("Close proposal")
	return nil
}

func (m *Module) statusChanged(from, to ProposalStatus) {
	if from != to {
		m.metrics.StatusChanged(from, to)
	}
}
