package repo

import (
	"time"

	"github.com/axiomesh/governor/chain"
	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/executor"
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type Config struct {
	RepoRoot   string     `mapstructure:"-" toml:"-"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Chain      Chain      `mapstructure:"chain" toml:"chain"`
	Governance Governance `mapstructure:"governance" toml:"governance"`
	Executor   Executor   `mapstructure:"executor" toml:"executor"`
	API        API        `mapstructure:"api" toml:"api"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Chain struct {
	DialUrl string `mapstructure:"dial_url" toml:"dial_url"`
	// VotesContract is the ERC-5805 token voting power is read from.
	VotesContract string        `mapstructure:"votes_contract" toml:"votes_contract"`
	RetryAttempts uint          `mapstructure:"retry_attempts" toml:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" toml:"retry_backoff"`
}

// Governance seeds the module config on first start. Later changes go
// through UpdateConfig.
type Governance struct {
	DAO                             string                `mapstructure:"dao" toml:"dao"`
	Threshold                       voting.Threshold      `mapstructure:"threshold" toml:"threshold"`
	VotingStrategy                  voting.VotingStrategy `mapstructure:"voting_strategy" toml:"voting_strategy"`
	MaxVotingPeriod                 voting.Duration       `mapstructure:"max_voting_period" toml:"max_voting_period"`
	MinVotingPeriod                 *voting.Duration      `mapstructure:"min_voting_period" toml:"min_voting_period,omitempty"`
	OnlyMembersExecute              bool                  `mapstructure:"only_members_execute" toml:"only_members_execute"`
	AllowRevoting                   bool                  `mapstructure:"allow_revoting" toml:"allow_revoting"`
	CloseProposalOnExecutionFailure bool                  `mapstructure:"close_proposal_on_execution_failure" toml:"close_proposal_on_execution_failure"`
	// ProposalModule restricts proposal creation to one submitter. Empty
	// lets anyone propose.
	ProposalModule string             `mapstructure:"proposal_module" toml:"proposal_module"`
	Veto           *voting.VetoConfig `mapstructure:"veto" toml:"veto,omitempty"`
}

type Executor struct {
	Kind       string        `mapstructure:"kind" toml:"kind"`
	URL        string        `mapstructure:"url" toml:"url"`
	Timeout    time.Duration `mapstructure:"timeout" toml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" toml:"max_retries"`
}

type API struct {
	Enable      bool     `mapstructure:"enable" toml:"enable"`
	Listen      string   `mapstructure:"listen" toml:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins" toml:"cors_origins"`
	AccessLog   bool     `mapstructure:"access_log" toml:"access_log"`
}

func DefaultConfig(repoRoot string) *Config {
	retry := chain.DefaultRetryPolicy()
	return &Config{
		RepoRoot: repoRoot,
		Log: Log{
			Level:        "info",
			Filename:     "governor.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Chain: Chain{
			DialUrl:       "ws://localhost:9991",
			VotesContract: DefaultVotesContractAddr,
			RetryAttempts: retry.Attempts,
			RetryBackoff:  retry.Backoff,
		},
		Governance: Governance{
			DAO:             DefaultDAOAddr,
			Threshold:       voting.NewThresholdQuorum(voting.Majority(), voting.MustPercent("0.2")),
			VotingStrategy:  voting.VotingStrategy{Quorum: voting.MustPercent("0.2")},
			MaxVotingPeriod: voting.TimeDuration(7 * 24 * time.Hour),
		},
		Executor: Executor{
			Kind:       executor.KindLog,
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		API: API{
			Enable:      true,
			Listen:      "127.0.0.1:8881",
			CORSOrigins: []string{},
		},
	}
}

func address(name, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, errors.Errorf("%s: invalid address %q", name, v)
	}
	return common.HexToAddress(v), nil
}

// CoreConfig converts the section to the module config and validates it.
func (g *Governance) CoreConfig() (*core.Config, error) {
	dao, err := address("governance.dao", g.DAO)
	if err != nil {
		return nil, err
	}
	cfg := &core.Config{
		Threshold:                       g.Threshold,
		VotingStrategy:                  g.VotingStrategy,
		MaxVotingPeriod:                 g.MaxVotingPeriod,
		MinVotingPeriod:                 g.MinVotingPeriod,
		OnlyMembersExecute:              g.OnlyMembersExecute,
		AllowRevoting:                   g.AllowRevoting,
		DAO:                             dao,
		CloseProposalOnExecutionFailure: g.CloseProposalOnExecutionFailure,
		Veto:                            g.Veto,
	}
	if g.ProposalModule != "" {
		module, err := address("governance.proposal_module", g.ProposalModule)
		if err != nil {
			return nil, err
		}
		cfg.CreationPolicy.Module = &module
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "governance")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := address("chain.votes_contract", c.Chain.VotesContract); err != nil {
		return err
	}
	if _, err := c.Governance.CoreConfig(); err != nil {
		return err
	}
	switch c.Executor.Kind {
	case executor.KindLog:
	case executor.KindWebhook:
		if c.Executor.URL == "" {
			return errors.New("executor.url is required by the webhook executor")
		}
	default:
		return errors.Errorf("executor.kind: unknown kind %q", c.Executor.Kind)
	}
	return nil
}
