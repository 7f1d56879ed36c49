package voting

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// Percentages carry at most this many fractional digits.
	percentDecimals = 18

	majorityText = "majority"
)

// percentPrecision is 10^18, the scale of a percentage's atomics.
var percentPrecision = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(percentDecimals))

// PercentageThreshold is either a strict majority of the denominator
// (yes > denominator * 0.5) or an inclusive percent of it
// (yes >= denominator * p). The zero value is Percent(0).
type PercentageThreshold struct {
	majority bool
	percent  decimal.Decimal
}

func Majority() PercentageThreshold {
	return PercentageThreshold{majority: true}
}

func Percent(p decimal.Decimal) PercentageThreshold {
	return PercentageThreshold{percent: p}
}

// MustPercent builds a Percent threshold from a decimal string such as "0.35".
func MustPercent(s string) PercentageThreshold {
	return Percent(decimal.RequireFromString(s))
}

// ParsePercentage accepts "majority" or a decimal fraction.
func ParsePercentage(s string) (PercentageThreshold, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, majorityText) {
		return Majority(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return PercentageThreshold{}, errors.Wrapf(ErrInvalidPercentage, "%q", s)
	}
	p := Percent(d)
	if _, err := p.atomics(); err != nil {
		return PercentageThreshold{}, err
	}
	return p, nil
}

func (p PercentageThreshold) IsMajority() bool {
	return p.majority
}

// Decimal returns the configured fraction; 0.5 for Majority.
func (p PercentageThreshold) Decimal() decimal.Decimal {
	if p.majority {
		return decimal.New(5, -1)
	}
	return p.percent
}

func (p PercentageThreshold) Equal(o PercentageThreshold) bool {
	if p.majority || o.majority {
		return p.majority == o.majority
	}
	return p.percent.Equal(o.percent)
}

// atomics returns percent * 10^18 as an integer.
func (p PercentageThreshold) atomics() (*uint256.Int, error) {
	if p.percent.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidPercentage, "negative percentage %s", p.percent)
	}
	shifted := p.percent.Shift(percentDecimals)
	if !shifted.IsInteger() {
		return nil, errors.Wrapf(ErrInvalidPercentage, "%s has more than %d decimal places", p.percent, percentDecimals)
	}
	a, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, errors.Wrapf(ErrInvalidPercentage, "%s", p.percent)
	}
	return a, nil
}

func (p PercentageThreshold) String() string {
	if p.majority {
		return majorityText
	}
	return p.percent.String()
}

func (p PercentageThreshold) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PercentageThreshold) UnmarshalText(text []byte) error {
	parsed, err := ParsePercentage(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// validatePercentage asserts 0 < percent <= 1.
func validatePercentage(p PercentageThreshold) error {
	if p.majority {
		return nil
	}
	if _, err := p.atomics(); err != nil {
		return err
	}
	switch {
	case p.percent.IsZero():
		return ErrZeroThreshold
	case p.percent.GreaterThan(decimal.NewFromInt(1)):
		return ErrUnreachableThreshold
	}
	return nil
}

// ValidateQuorum asserts quorum <= 1. Quorums may be zero, which gives
// plurality style voting.
func ValidateQuorum(q PercentageThreshold) error {
	if q.majority {
		return nil
	}
	if _, err := q.atomics(); err != nil {
		return err
	}
	if q.percent.GreaterThan(decimal.NewFromInt(1)) {
		return ErrUnreachableThreshold
	}
	return nil
}

type ThresholdKind uint8

const (
	// AbsolutePercentage: a percentage of the total power must vote yes.
	AbsolutePercentage ThresholdKind = iota + 1
	// ThresholdQuorum: a quorum of the total power must participate and
	// yes must reach the threshold among yes and no votes.
	ThresholdQuorum
	// AbsoluteCount: a fixed amount of yes power, multisig style.
	AbsoluteCount
)

var thresholdKindNames = map[ThresholdKind]string{
	AbsolutePercentage: "absolute_percentage",
	ThresholdQuorum:    "threshold_quorum",
	AbsoluteCount:      "absolute_count",
}

func (k ThresholdKind) String() string {
	if s, ok := thresholdKindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k ThresholdKind) MarshalText() ([]byte, error) {
	if _, ok := thresholdKindNames[k]; !ok {
		return nil, errors.Wrapf(ErrInvalidThresholdKind, "%d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *ThresholdKind) UnmarshalText(text []byte) error {
	for kind, name := range thresholdKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidThresholdKind, "%q", string(text))
}

// Threshold is the passing rule of a single choice proposal. Only the
// fields belonging to Kind are meaningful:
//
//	AbsolutePercentage: Percentage
//	ThresholdQuorum:    Percentage (the threshold) and Quorum
//	AbsoluteCount:      Count
type Threshold struct {
	Kind       ThresholdKind       `json:"kind" mapstructure:"kind" toml:"kind"`
	Percentage PercentageThreshold `json:"percentage" mapstructure:"percentage" toml:"percentage"`
	Quorum     PercentageThreshold `json:"quorum" mapstructure:"quorum" toml:"quorum"`
	Count      Uint                `json:"count" mapstructure:"count" toml:"count"`
}

func NewAbsolutePercentage(percentage PercentageThreshold) Threshold {
	return Threshold{Kind: AbsolutePercentage, Percentage: percentage}
}

func NewThresholdQuorum(threshold, quorum PercentageThreshold) Threshold {
	return Threshold{Kind: ThresholdQuorum, Percentage: threshold, Quorum: quorum}
}

func NewAbsoluteCount(count Uint) Threshold {
	return Threshold{Kind: AbsoluteCount, Count: count}
}

// Validate checks the threshold:
//   - quorums are never over 100%
//   - passing thresholds are never over 100%, nor 0%
//   - absolute counts are non-zero and fit a single oracle answer
func (t Threshold) Validate() error {
	switch t.Kind {
	case AbsolutePercentage:
		return validatePercentage(t.Percentage)
	case ThresholdQuorum:
		if err := validatePercentage(t.Percentage); err != nil {
			return err
		}
		return ValidateQuorum(t.Quorum)
	case AbsoluteCount:
		if t.Count.IsZero() {
			return ErrZeroThreshold
		}
		if t.Count.Cmp(MaxPower) > 0 {
			return ErrUnreachableThreshold
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalidThresholdKind, "%d", uint8(t.Kind))
	}
}

func (t Threshold) String() string {
	switch t.Kind {
	case AbsolutePercentage:
		return "absolute_percentage(" + t.Percentage.String() + ")"
	case ThresholdQuorum:
		return "threshold_quorum(threshold=" + t.Percentage.String() + ", quorum=" + t.Quorum.String() + ")"
	case AbsoluteCount:
		return "absolute_count(" + t.Count.String() + ")"
	}
	return t.Kind.String()
}
