package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// VotesABI covers the calls made against an IVotes (ERC-5805) token.
const VotesABI = `[
	{"type":"function","name":"getVotes","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var _ core.VotingPowerOracle = (*VotesOracle)(nil)

// VotesOracle reads voting power from a delegating token contract. Past
// heights are served by executing the calls against historical state.
type VotesOracle struct {
	client   Client
	contract common.Address
	abi      abi.ABI
	retry    RetryPolicy
	logger   logrus.FieldLogger
}

func NewVotesOracle(client Client, contract common.Address, policy RetryPolicy, logger logrus.FieldLogger) (*VotesOracle, error) {
	parsed, err := abi.JSON(strings.NewReader(VotesABI))
	if err != nil {
		return nil, err
	}
	return &VotesOracle{
		client:   client,
		contract: contract,
		abi:      parsed,
		retry:    policy,
		logger:   logger,
	}, nil
}

func (o *VotesOracle) VotingPowerAtHeight(ctx context.Context, addr common.Address, height uint64) (voting.Uint, error) {
	return o.call(ctx, height, "getVotes", addr)
}

func (o *VotesOracle) TotalPowerAtHeight(ctx context.Context, height uint64) (voting.Uint, error) {
	return o.call(ctx, height, "totalSupply")
}

func (o *VotesOracle) call(ctx context.Context, height uint64, method string, args ...any) (voting.Uint, error) {
	data, err := o.abi.Pack(method, args...)
	if err != nil {
		return voting.Uint{}, errors.Wrapf(err, "pack %s", method)
	}

	var out []byte
	err = o.retry.do(o.logger, method, func() error {
		var err error
		out, err = o.client.CallContract(ctx, ethereum.CallMsg{To: &o.contract, Data: data}, new(big.Int).SetUint64(height))
		return err
	})
	if err != nil {
		return voting.Uint{}, errors.Wrapf(err, "call %s at height %d", method, height)
	}

	values, err := o.abi.Unpack(method, out)
	if err != nil {
		return voting.Uint{}, errors.Wrapf(err, "unpack %s", method)
	}
	if len(values) != 1 {
		return voting.Uint{}, errors.Errorf("%s returned %d values", method, len(values))
	}
	power, ok := values[0].(*big.Int)
	if !ok {
		return voting.Uint{}, errors.Errorf("%s returned %T", method, values[0])
	}
	return voting.UintFromBig(power)
}
