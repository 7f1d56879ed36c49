package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/axiomesh/governor/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
)

// Client reads proposals from a running governor.
type Client struct {
	base   string
	client *pester.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	ec := pester.NewExtendedClient(&http.Client{Timeout: timeout})
	{
		ec.MaxRetries = 3
		ec.Concurrency = 1
		ec.Backoff = pester.LinearBackoff
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: ec,
	}
}

func (c *Client) get(ctx context.Context, pattern string, query url.Values, v any) error {
	u := c.base + "/" + APIVersionV1 + pattern
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %s", u)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var p Problem
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil || p.Detail == "" {
			return errors.Errorf("get %s: %s", u, resp.Status)
		}
		return errors.New(p.Detail)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) Proposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	var p core.Proposal
	if err := c.get(ctx, fmt.Sprintf("/proposals/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReverseProposals lists the newest proposals first.
func (c *Client) ReverseProposals(ctx context.Context, startBefore *uint64, limit int) ([]*core.Proposal, error) {
	query := url.Values{}
	if startBefore != nil {
		query.Set("start_before", strconv.FormatUint(*startBefore, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var proposals []*core.Proposal
	if err := c.get(ctx, ReverseProposalsPattern, query, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

func (c *Client) ListVotes(ctx context.Context, id uint64, startAfter *common.Address, limit int) ([]*core.Ballot, error) {
	query := url.Values{}
	if startAfter != nil {
		query.Set("start_after", startAfter.Hex())
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var ballots []*core.Ballot
	if err := c.get(ctx, fmt.Sprintf("/proposals/%d/votes", id), query, &ballots); err != nil {
		return nil, err
	}
	return ballots, nil
}
