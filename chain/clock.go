package chain

import (
	"context"
	"sync"
	"time"

	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const headChanSize = 16

// Clock supplies the block every module operation runs at. With a
// websocket node it follows new heads; otherwise every call asks the
// node for the latest header.
type Clock struct {
	client Client
	logger logrus.FieldLogger

	mu     sync.RWMutex
	latest *voting.BlockInfo

	sub   ethereum.Subscription
	heads chan *types.Header
}

func NewClock(client Client, logger logrus.FieldLogger) *Clock {
	return &Clock{
		client: client,
		logger: logger,
	}
}

func blockInfo(h *types.Header) voting.BlockInfo {
	return voting.BlockInfo{
		Height: h.Number.Uint64(),
		Time:   time.Unix(int64(h.Time), 0).UTC(),
	}
}

// Start subscribes to new heads. Nodes without subscription support
// leave the clock polling.
func (c *Clock) Start(ctx context.Context) error {
	c.heads = make(chan *types.Header, headChanSize)
	sub, err := c.client.SubscribeNewHead(ctx, c.heads)
	if err != nil {
		c.logger.WithField("err", err).Warn("Subscribe new heads failed, polling latest header instead")
		return nil
	}
	c.sub = sub

	go c.listen(ctx)
	return nil
}

func (c *Clock) listen(ctx context.Context) {
	c.logger.Info("Listen new heads")

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.sub.Err():
			c.logger.WithField("err", err).Warn("Head subscription dropped, polling latest header instead")
			c.mu.Lock()
			c.latest = nil
			c.mu.Unlock()
			return
		case h := <-c.heads:
			b := blockInfo(h)
			c.mu.Lock()
			c.latest = &b
			c.mu.Unlock()
			c.logger.WithField("height", b.Height).Debug("New head")
		}
	}
}

// Now returns the latest known block.
func (c *Clock) Now(ctx context.Context) (voting.BlockInfo, error) {
	c.mu.RLock()
	latest := c.latest
	c.mu.RUnlock()
	if latest != nil {
		return *latest, nil
	}

	h, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return voting.BlockInfo{}, errors.Wrap(err, "fetch latest header")
	}
	return blockInfo(h), nil
}

func (c *Clock) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
}
