package voting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// BlockInfo is the caller supplied notion of "now".
type BlockInfo struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
}

const heightSuffix = "blocks"

// Duration is a span measured either in blocks or in wall clock time.
type Duration struct {
	Height uint64        `json:"height,omitempty"`
	Time   time.Duration `json:"time,omitempty"`
	// IsHeight selects Height over Time.
	IsHeight bool `json:"is_height"`
}

func HeightDuration(blocks uint64) Duration {
	return Duration{Height: blocks, IsHeight: true}
}

func TimeDuration(d time.Duration) Duration {
	return Duration{Time: d}
}

// ParseDuration accepts "<n>blocks" or a Go duration such as "168h".
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, heightSuffix) {
		n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(s, heightSuffix)), 10, 64)
		if err != nil {
			return Duration{}, errors.Wrapf(ErrInvalidDuration, "%q", s)
		}
		return HeightDuration(n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return Duration{}, errors.Wrapf(ErrInvalidDuration, "%q", s)
	}
	return TimeDuration(d), nil
}

func (d Duration) SameUnits(o Duration) bool {
	return d.IsHeight == o.IsHeight
}

func (d Duration) IsZero() bool {
	if d.IsHeight {
		return d.Height == 0
	}
	return d.Time == 0
}

// After returns the expiration d after block.
func (d Duration) After(block BlockInfo) Expiration {
	if d.IsHeight {
		return AtHeight(block.Height + d.Height)
	}
	return AtTime(block.Time.Add(d.Time))
}

func (d Duration) String() string {
	if d.IsHeight {
		return fmt.Sprintf("%d%s", d.Height, heightSuffix)
	}
	return d.Time.String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Expiration is a point at a block height or a time; the zero value never
// expires.
type Expiration struct {
	AtHeight *uint64   `json:"at_height,omitempty"`
	AtTime   *time.Time `json:"at_time,omitempty"`
}

func AtHeight(h uint64) Expiration {
	return Expiration{AtHeight: &h}
}

func AtTime(t time.Time) Expiration {
	t = t.UTC()
	return Expiration{AtTime: &t}
}

func Never() Expiration {
	return Expiration{}
}

func (e Expiration) IsNever() bool {
	return e.AtHeight == nil && e.AtTime == nil
}

// IsExpired reports whether block is at or past e.
func (e Expiration) IsExpired(block BlockInfo) bool {
	switch {
	case e.AtHeight != nil:
		return block.Height >= *e.AtHeight
	case e.AtTime != nil:
		return !block.Time.Before(*e.AtTime)
	}
	return false
}

// Add shifts e by d. Units must agree; Never stays Never.
func (e Expiration) Add(d Duration) (Expiration, error) {
	switch {
	case e.AtHeight != nil && d.IsHeight:
		return AtHeight(*e.AtHeight + d.Height), nil
	case e.AtTime != nil && !d.IsHeight:
		return AtTime(e.AtTime.Add(d.Time)), nil
	case e.IsNever():
		return e, nil
	}
	return Expiration{}, errors.Wrapf(ErrDurationUnitsConflict, "cannot add %s to %s", d, e)
}

// Before reports whether e comes strictly before o. Expirations in
// different units are not comparable and report ok == false.
func (e Expiration) Before(o Expiration) (before bool, ok bool) {
	switch {
	case o.IsNever():
		return !e.IsNever(), true
	case e.IsNever():
		return false, true
	case e.AtHeight != nil && o.AtHeight != nil:
		return *e.AtHeight < *o.AtHeight, true
	case e.AtTime != nil && o.AtTime != nil:
		return e.AtTime.Before(*o.AtTime), true
	}
	return false, false
}

func (e Expiration) String() string {
	switch {
	case e.AtHeight != nil:
		return fmt.Sprintf("expiration height: %d", *e.AtHeight)
	case e.AtTime != nil:
		return fmt.Sprintf("expiration time: %s", e.AtTime.Format(time.RFC3339))
	}
	return "expiration: never"
}

// ValidateVotingPeriod checks that min, when present, uses the units of
// max and does not exceed it.
func ValidateVotingPeriod(min *Duration, max Duration) error {
	if min == nil {
		return nil
	}
	if !min.SameUnits(max) {
		return ErrDurationUnitsConflict
	}
	if (min.IsHeight && min.Height > max.Height) || (!min.IsHeight && min.Time > max.Time) {
		return ErrInvalidMinVotingPeriod
	}
	return nil
}
