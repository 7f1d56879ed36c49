package voting

import (
	"github.com/ethereum/go-ethereum/common"
)

// VetoConfig lets a designated vetoer block passed proposals during a
// timelock that starts when voting ends.
type VetoConfig struct {
	// TimelockDuration is added to the proposal expiration.
	TimelockDuration Duration       `json:"timelock_duration" mapstructure:"timelock_duration" toml:"timelock_duration"`
	Vetoer           common.Address `json:"vetoer" mapstructure:"vetoer" toml:"vetoer"`
	// EarlyExecute lets the vetoer execute during the timelock.
	EarlyExecute bool `json:"early_execute" mapstructure:"early_execute" toml:"early_execute"`
	// VetoBeforePassed lets the vetoer veto open proposals.
	VetoBeforePassed bool `json:"veto_before_passed" mapstructure:"veto_before_passed" toml:"veto_before_passed"`
}

func (c VetoConfig) Validate(maxVotingPeriod Duration) error {
	if c.Vetoer == (common.Address{}) {
		return ErrZeroVetoer
	}
	if !c.TimelockDuration.SameUnits(maxVotingPeriod) {
		return ErrVetoTimelockUnitMismatch
	}
	return nil
}

func (c VetoConfig) IsVetoer(addr common.Address) bool {
	return c.Vetoer == addr
}
