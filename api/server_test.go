package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/executor"
	"github.com/axiomesh/governor/metrics"
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = make(map[common.Address]*ecdsa.PrivateKey)

func account(hex string) common.Address {
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		panic(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	keys[addr] = key
	return addr
}

var (
	dao      = account("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	alice    = account("8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a")
	bob      = account("49a7b37aa6f6645917e7b807e9d1c00d4fa71f18343b0d4122a4d2df64dd6fee")
	carol    = account("289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032")
	outsider = account("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
)

var testNow = time.Unix(1_700_000_000, 0)

func signature(t *testing.T, key *ecdsa.PrivateKey, method, path string, expires int64, body []byte) string {
	sig, err := crypto.Sign(accounts.TextHash(SigningPayload(method, path, expires, body)), key)
	require.Nil(t, err)
	return hexutil.Encode(sig)
}

// signerOf picks the key of the sender named in body, alice when none is.
func signerOf(body any) *ecdsa.PrivateKey {
	if m, ok := body.(map[string]any); ok {
		if addr, ok := m["sender"].(common.Address); ok {
			return keys[addr]
		}
	}
	return keys[alice]
}

type fakeOracle map[common.Address]uint64

func (o fakeOracle) VotingPowerAtHeight(_ context.Context, addr common.Address, _ uint64) (voting.Uint, error) {
	return voting.NewUint(o[addr]), nil
}

func (o fakeOracle) TotalPowerAtHeight(_ context.Context, _ uint64) (voting.Uint, error) {
	var total uint64
	for _, p := range o {
		total += p
	}
	return voting.NewUint(total), nil
}

type fakeClock struct {
	block voting.BlockInfo
	err   error
}

func (c *fakeClock) Now(context.Context) (voting.BlockInfo, error) {
	return c.block, c.err
}

type testServer struct {
	*httptest.Server
	clock *fakeClock
	reg   *stdprometheus.Registry
	seq   int64
}

func newTestServer(t *testing.T) *testServer {
	logger := log.New()
	m := core.NewModule(core.NewMemoryStore(), fakeOracle{alice: 60, bob: 40}, executor.NewLog(logger), logger, nil, "v0.0.1")
	require.Nil(t, m.Instantiate(&core.Config{
		Threshold:       voting.NewAbsolutePercentage(voting.Majority()),
		VotingStrategy:  voting.VotingStrategy{Quorum: voting.MustPercent("0.5")},
		MaxVotingPeriod: voting.HeightDuration(10),
		DAO:             dao,
	}))

	clock := &fakeClock{block: voting.BlockInfo{Height: 100}}
	reg := stdprometheus.NewRegistry()
	srv := NewServer(m, clock, Config{
		CORSOrigins:    []string{"https://dao.example"},
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Now:            func() time.Time { return testNow },
	}, metrics.PromAPIMetrics(reg), logger)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, clock: clock, reg: reg}
}

// do sends body signed by its sender. Every signature gets its own expiry
// so that equal requests are not taken for replays.
func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	if body == nil {
		return s.send(t, method, path, nil, nil)
	}
	data, err := json.Marshal(body)
	require.Nil(t, err)
	s.seq++
	expires := testNow.Add(time.Minute).Unix() + s.seq
	header := http.Header{}
	header.Set(ExpiresHeader, strconv.FormatInt(expires, 10))
	header.Set(SignatureHeader, signature(t, signerOf(body), method, strings.SplitN(path, "?", 2)[0], expires, data))
	return s.send(t, method, path, data, header)
}

func (s *testServer) send(t *testing.T, method, path string, body []byte, header http.Header) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.Nil(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	return resp, data
}

func decodeProblem(t *testing.T, resp *http.Response, data []byte) Problem {
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	var p Problem
	require.Nil(t, json.Unmarshal(data, &p))
	assert.Equal(t, resp.StatusCode, p.Status)
	return p
}

func proposalStatus(t *testing.T, data []byte) string {
	var p struct {
		Status string `json:"status"`
	}
	require.Nil(t, json.Unmarshal(data, &p))
	return p.Status
}

func TestProposalLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp, data := s.do(t, http.MethodPost, "/v1/proposals", map[string]any{
		"sender": alice,
		"title":  "fund grants",
		"msgs":   []any{map[string]any{"transfer": map[string]any{"to": "bob"}}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created ProposeResponse
	require.Nil(t, json.Unmarshal(data, &created))
	assert.Equal(t, uint64(1), created.ID)

	resp, data = s.do(t, http.MethodGet, "/v1/proposals/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open", proposalStatus(t, data))

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/votes", map[string]any{
		"sender":    alice,
		"vote":      "yes",
		"rationale": "needed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "passed", proposalStatus(t, data))

	resp, data = s.do(t, http.MethodGet, "/v1/proposals/1/votes/"+alice.Hex(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ballot core.Ballot
	require.Nil(t, json.Unmarshal(data, &ballot))
	assert.Equal(t, voting.Yes, ballot.Vote())
	require.NotNil(t, ballot.Rationale)
	assert.Equal(t, "needed", *ballot.Rationale)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/rationale", map[string]any{
		"sender":    alice,
		"rationale": "really needed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Nil(t, json.Unmarshal(data, &ballot))
	assert.Equal(t, "really needed", *ballot.Rationale)

	s.clock.block.Height = 101
	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/execute", map[string]any{"sender": bob})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "executed", proposalStatus(t, data))

	resp, data = s.do(t, http.MethodGet, "/v1/proposals/count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"count":1}`, string(data))

	resp, data = s.do(t, http.MethodGet, "/v1/proposals/next_id", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":2}`, string(data))

	resp, data = s.do(t, http.MethodGet, "/v1/proposals/1/votes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ballots []core.Ballot
	require.Nil(t, json.Unmarshal(data, &ballots))
	require.Len(t, ballots, 1)
	assert.Equal(t, alice, ballots[0].Voter)
}

func TestListProposals(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		resp, data := s.do(t, http.MethodPost, "/v1/proposals", map[string]any{"sender": alice, "title": "p"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	}

	ids := func(data []byte) []uint64 {
		var ps []core.Proposal
		require.Nil(t, json.Unmarshal(data, &ps))
		var out []uint64
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	_, data := s.do(t, http.MethodGet, "/v1/proposals?start_after=1&limit=1", nil)
	assert.Equal(t, []uint64{2}, ids(data))
	_, data = s.do(t, http.MethodGet, "/v1/proposals/reverse", nil)
	assert.Equal(t, []uint64{3, 2, 1}, ids(data))
	_, data = s.do(t, http.MethodGet, "/v1/proposals/reverse?start_before=3", nil)
	assert.Equal(t, []uint64{2, 1}, ids(data))

	resp, data := s.do(t, http.MethodGet, "/v1/proposals?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:bad_request", decodeProblem(t, resp, data).Type)
}

func TestProblems(t *testing.T) {
	s := newTestServer(t)
	resp, data := s.do(t, http.MethodPost, "/v1/proposals", map[string]any{"sender": alice, "title": "p"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = s.do(t, http.MethodGet, "/v1/proposals/9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	p := decodeProblem(t, resp, data)
	assert.Equal(t, "urn:governor:error:no_such_proposal", p.Type)
	assert.Equal(t, "/v1/proposals/9", p.Instance)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/votes", map[string]any{"sender": carol, "vote": "yes"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:not_registered", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/votes", map[string]any{"sender": bob, "vote": "yes", "choice": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:bad_request", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/votes", map[string]any{"sender": bob, "vote": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeProblem(t, resp, data)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/execute", map[string]any{"sender": bob})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:not_passed", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/close", map[string]any{"sender": bob})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:wrong_close_status", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/veto", map[string]any{"sender": bob})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:no_veto_config", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodPost, "/v1/proposals/1/execute", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeProblem(t, resp, data)

	resp, data = s.do(t, http.MethodPost, "/v1/config", map[string]any{"sender": bob, "config": map[string]any{}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:unauthorized", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodGet, "/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	p = decodeProblem(t, resp, data)
	assert.Equal(t, "about:blank", p.Type)
	assert.Equal(t, "no route for GET /v1/unknown", p.Detail)

	s.clock.err = errors.New("node unreachable")
	resp, data = s.do(t, http.MethodGet, "/v1/proposals/1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	p = decodeProblem(t, resp, data)
	assert.Equal(t, "about:blank", p.Type)
	assert.Empty(t, p.Detail)
}

func TestInfoAndConfig(t *testing.T) {
	s := newTestServer(t)

	resp, data := s.do(t, http.MethodGet, "/v1/info", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info core.Info
	require.Nil(t, json.Unmarshal(data, &info))
	assert.Equal(t, core.ContractName, info.Contract)
	assert.Equal(t, "v0.0.1", info.Version)

	resp, data = s.do(t, http.MethodGet, "/v1/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg core.Config
	require.Nil(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, dao, cfg.DAO)

	cfg.AllowRevoting = true
	resp, data = s.do(t, http.MethodPut, "/v1/config", map[string]any{"sender": dao, "config": cfg})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var updated core.Config
	require.Nil(t, json.Unmarshal(data, &updated))
	assert.True(t, updated.AllowRevoting)
}

func TestMetricsAndCORS(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/v1/info", nil)
	require.Nil(t, err)
	req.Header.Set("Origin", "https://dao.example")
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://dao.example", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, data := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `governor_api_requests_total{endpoint="/v1/info",method="GET",status="200"} 1`)
}

func TestClient(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		resp, data := s.do(t, http.MethodPost, "/v1/proposals", map[string]any{"sender": alice, "title": "p"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	}
	resp, data := s.do(t, http.MethodPost, "/v1/proposals/2/votes", map[string]any{"sender": bob, "vote": "no"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	c := NewClient(s.URL+"/", time.Second)
	ctx := context.Background()

	proposals, err := c.ReverseProposals(ctx, nil, 0)
	require.Nil(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, uint64(2), proposals[0].ID)

	p, err := c.Proposal(ctx, 2)
	require.Nil(t, err)
	assert.Equal(t, core.Open, p.Status)
	assert.Equal(t, "40", p.SingleChoice.Votes.No.String())

	ballots, err := c.ListVotes(ctx, 2, nil, 10)
	require.Nil(t, err)
	require.Len(t, ballots, 1)
	assert.Equal(t, voting.No, ballots[0].Vote())

	_, err = c.Proposal(ctx, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such proposal")
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	resp, data := s.do(t, http.MethodPost, "/v1/proposals", map[string]any{"sender": alice, "title": "p"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	const path = "/v1/proposals/1/votes"
	body, err := json.Marshal(map[string]any{"sender": alice, "vote": "yes"})
	require.Nil(t, err)
	signed := func(key *ecdsa.PrivateKey, expires int64) http.Header {
		h := http.Header{}
		h.Set(ExpiresHeader, strconv.FormatInt(expires, 10))
		h.Set(SignatureHeader, signature(t, key, http.MethodPost, path, expires, body))
		return h
	}
	unauthenticated := func(header http.Header) {
		t.Helper()
		resp, data := s.send(t, http.MethodPost, path, body, header)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(data))
		assert.Equal(t, "urn:governor:error:unauthenticated", decodeProblem(t, resp, data).Type)
	}
	inAMinute := testNow.Add(time.Minute).Unix()

	unauthenticated(nil)
	unauthenticated(signed(keys[bob], inAMinute))
	unauthenticated(signed(keys[alice], testNow.Unix()))
	unauthenticated(signed(keys[alice], testNow.Add(time.Hour).Unix()))

	// signed for another body
	tampered := signed(keys[alice], inAMinute)
	resp, data = s.send(t, http.MethodPost, path, []byte(`{"sender":"`+alice.Hex()+`","vote":"no"}`), tampered)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(data))

	header := signed(keys[alice], inAMinute+1)
	resp, data = s.send(t, http.MethodPost, path, body, header)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	unauthenticated(header)

	// 27/28 recovery ids as produced by wallets
	bobBody, err := json.Marshal(map[string]any{"sender": bob, "vote": "no"})
	require.Nil(t, err)
	sig, err := hexutil.Decode(signature(t, keys[bob], http.MethodPost, path, inAMinute, bobBody))
	require.Nil(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	header = http.Header{}
	header.Set(ExpiresHeader, strconv.FormatInt(inAMinute, 10))
	header.Set(SignatureHeader, hexutil.Encode(sig))
	resp, data = s.send(t, http.MethodPost, path, bobBody, header)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	// the dao named as sender does not help a key that is not the dao's
	cfg, err := json.Marshal(map[string]any{"sender": dao, "config": map[string]any{}})
	require.Nil(t, err)
	header = http.Header{}
	header.Set(ExpiresHeader, strconv.FormatInt(inAMinute, 10))
	header.Set(SignatureHeader, signature(t, keys[outsider], http.MethodPut, "/v1/config", inAMinute, cfg))
	resp, data = s.send(t, http.MethodPut, "/v1/config", cfg, header)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(data))

	resp, data = s.do(t, http.MethodPut, "/v1/config", map[string]any{"sender": outsider, "config": map[string]any{}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "urn:governor:error:unauthorized", decodeProblem(t, resp, data).Type)

	resp, data = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ballots []core.Ballot
	require.Nil(t, json.Unmarshal(data, &ballots))
	assert.Len(t, ballots, 2)
}
