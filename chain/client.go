package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// Client is the part of ethclient.Client the governor needs.
type Client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

var _ Client = (*ethclient.Client)(nil)

// RetryPolicy bounds how often a failing node call is repeated.
type RetryPolicy struct {
	Attempts uint
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Backoff: 5 * time.Second}
}

func (p RetryPolicy) do(logger logrus.FieldLogger, what string, fn func() error) error {
	action := func(attempt uint) error {
		err := fn()
		if err != nil {
			logger.WithFields(logrus.Fields{"attempt": attempt, "err": err}).Warnf("%s failed", what)
		}
		return err
	}
	return retry.Retry(action, strategy.Limit(p.Attempts), strategy.Backoff(backoff.Fibonacci(p.Backoff)))
}

// Dial connects to url, retrying while the node is unreachable.
func Dial(ctx context.Context, url string, policy RetryPolicy, logger logrus.FieldLogger) (*ethclient.Client, error) {
	var client *ethclient.Client
	err := policy.do(logger, "dial "+url, func() error {
		var err error
		client, err = ethclient.DialContext(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
