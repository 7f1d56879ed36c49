package voting

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Uint is a non-negative amount of voting power. Oracles answer with
// values up to MaxPower; tallies accumulate in the full 256 bit width so
// summing any realistic number of ballots cannot overflow.
type Uint struct {
	v uint256.Int
}

// MaxPower is the largest power a single oracle answer may carry.
var MaxPower = func() Uint {
	var u Uint
	u.v.Lsh(uint256.NewInt(1), 128)
	u.v.SubUint64(&u.v, 1)
	return u
}()

func NewUint(n uint64) Uint {
	var u Uint
	u.v.SetUint64(n)
	return u
}

// ParseUint parses a base 10 amount.
func ParseUint(s string) (Uint, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Uint{}, errors.Errorf("invalid amount %q", s)
	}
	return UintFromBig(b)
}

func MustParseUint(s string) Uint {
	u, err := ParseUint(s)
	if err != nil {
		panic(err)
	}
	return u
}

// UintFromBig converts b, failing with ErrOverflow when it is negative or
// wider than 256 bits.
func UintFromBig(b *big.Int) (Uint, error) {
	if b == nil {
		return Uint{}, nil
	}
	if b.Sign() < 0 {
		return Uint{}, errors.Wrapf(ErrOverflow, "negative amount %s", b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Uint{}, errors.Wrapf(ErrOverflow, "amount %s", b)
	}
	return Uint{v: *v}, nil
}

func (u Uint) ToBig() *big.Int {
	return u.v.ToBig()
}

func (u Uint) IsZero() bool {
	return u.v.IsZero()
}

func (u Uint) Cmp(o Uint) int {
	return u.v.Cmp(&o.v)
}

func (u Uint) Equal(o Uint) bool {
	return u.v.Eq(&o.v)
}

func (u Uint) Uint64() uint64 {
	return u.v.Uint64()
}

// Add returns u+o or ErrOverflow.
func (u Uint) Add(o Uint) (Uint, error) {
	var z Uint
	if _, overflow := z.v.AddOverflow(&u.v, &o.v); overflow {
		return Uint{}, errors.Wrapf(ErrOverflow, "%s + %s", u, o)
	}
	return z, nil
}

// Sub returns u-o or ErrOverflow when o > u.
func (u Uint) Sub(o Uint) (Uint, error) {
	var z Uint
	if _, underflow := z.v.SubOverflow(&u.v, &o.v); underflow {
		return Uint{}, errors.Wrapf(ErrOverflow, "%s - %s", u, o)
	}
	return z, nil
}

// SaturatingSub returns u-o, or zero when o > u.
func (u Uint) SaturatingSub(o Uint) Uint {
	if u.v.Lt(&o.v) {
		return Uint{}
	}
	var z Uint
	z.v.Sub(&u.v, &o.v)
	return z
}

func (u Uint) String() string {
	return u.v.ToBig().String()
}

func (u Uint) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Uint) UnmarshalText(text []byte) error {
	parsed, err := ParseUint(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
