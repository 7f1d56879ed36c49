package voting

import "github.com/pkg/errors"

var (
	// ErrOverflow is returned when arithmetic would leave the integer
	// domain. Amounts never wrap.
	ErrOverflow = errors.New("arithmetic overflow")

	ErrZeroThreshold        = errors.New("required threshold cannot be zero")
	ErrUnreachableThreshold = errors.New("not possible to reach required (passing) threshold")
	ErrInvalidPercentage    = errors.New("invalid percentage")
	ErrInvalidThresholdKind = errors.New("invalid threshold kind")

	ErrDurationUnitsConflict  = errors.New("min voting period and max voting period must have the same units (height or time)")
	ErrInvalidMinVotingPeriod = errors.New("min voting period must be less than or equal to max voting period")
	ErrInvalidDuration        = errors.New("invalid duration")

	ErrWrongNumberOfChoices = errors.New("wrong number of choices")
	ErrInvalidVote          = errors.New("invalid vote")

	ErrZeroVetoer               = errors.New("vetoer cannot be the zero address")
	ErrVetoTimelockUnitMismatch = errors.New("veto timelock duration must have the same units as the max voting period")
)
