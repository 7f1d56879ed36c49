package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

type SenderRequest struct {
	Sender common.Address `json:"sender"`
}

type UpdateConfigRequest struct {
	Sender common.Address `json:"sender"`
	Config core.Config    `json:"config"`
}

type ProposeRequest struct {
	Sender common.Address `json:"sender"`
	core.ProposeMsg
}

type ProposeMultipleRequest struct {
	Sender common.Address `json:"sender"`
	core.ProposeMultipleMsg
}

// VoteRequest carries either a single choice vote or a multiple choice
// option index.
type VoteRequest struct {
	Sender    common.Address `json:"sender"`
	Vote      *voting.Vote   `json:"vote,omitempty"`
	Choice    *uint32        `json:"choice,omitempty"`
	Rationale *string        `json:"rationale,omitempty"`
}

type RationaleRequest struct {
	Sender    common.Address `json:"sender"`
	Rationale *string        `json:"rationale"`
}

type ProposeResponse struct {
	ID uint64 `json:"id"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type IDResponse struct {
	ID uint64 `json:"id"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := NewErrorProblem(err)
	if p.Status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"path": r.URL.Path,
			"err":  err,
		}).Error("Request failed")
	}
	writeProblem(w, r, p)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(errors.Wrap(err, "decode body"))
	}
	return nil
}

func proposalID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, badRequest(errors.Wrap(err, "proposal id"))
	}
	return id, nil
}

func limit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest(errors.Errorf("invalid limit %q", v))
	}
	return n, nil
}

func uintParam(r *http.Request, name string) (*uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, badRequest(errors.Errorf("invalid %s %q", name, v))
	}
	return &n, nil
}

func address(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, badRequest(errors.Errorf("invalid address %q", v))
	}
	return common.HexToAddress(v), nil
}

func (s *Server) now(r *http.Request) (voting.BlockInfo, error) {
	block, err := s.clock.Now(r.Context())
	if err != nil {
		return voting.BlockInfo{}, errors.Wrap(err, "current block")
	}
	return block, nil
}

// respondProposal answers with the proposal as seen at the current block.
func (s *Server) respondProposal(w http.ResponseWriter, r *http.Request, status int, id uint64) {
	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.module.Proposal(id, block)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, p)
}

func (s *Server) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.module.Config()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSender(r, req.Sender); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.module.UpdateConfig(req.Sender, &req.Config); err != nil {
		s.fail(w, r, err)
		return
	}
	s.GetConfigHandler(w, r)
}

func (s *Server) GetInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.module.Info())
}

func (s *Server) ListProposalsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := limit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	startAfter, err := uintParam(r, "start_after")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var after uint64
	if startAfter != nil {
		after = *startAfter
	}
	proposals, err := s.module.ListProposals(after, n, block)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (s *Server) ReverseProposalsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := limit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	startBefore, err := uintParam(r, "start_before")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	proposals, err := s.module.ReverseProposals(startBefore, n, block)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (s *Server) ProposalCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.module.ProposalCount()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *Server) NextProposalIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := s.module.NextProposalID()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IDResponse{ID: id})
}

func (s *Server) GetProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondProposal(w, r, http.StatusOK, id)
}

func (s *Server) ProposeHandler(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSender(r, req.Sender); err != nil {
		s.fail(w, r, err)
		return
	}
	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.module.Propose(r.Context(), req.Sender, block, &req.ProposeMsg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProposeResponse{ID: id})
}

func (s *Server) ProposeMultipleHandler(w http.ResponseWriter, r *http.Request) {
	var req ProposeMultipleRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSender(r, req.Sender); err != nil {
		s.fail(w, r, err)
		return
	}
	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.module.ProposeMultiple(r.Context(), req.Sender, block, &req.ProposeMultipleMsg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProposeResponse{ID: id})
}

func (s *Server) ListVotesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := limit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var startAfter *common.Address
	if v := r.URL.Query().Get("start_after"); v != "" {
		addr, err := address(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		startAfter = &addr
	}

	ballots, err := s.module.ListVotes(id, startAfter, n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ballots)
}

func (s *Server) GetVoteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	voter, err := address(mux.Vars(r)["voter"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ballot, err := s.module.GetVote(id, voter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ballot)
}

func (s *Server) VoteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req VoteRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSender(r, req.Sender); err != nil {
		s.fail(w, r, err)
		return
	}

	var choice uint32
	switch {
	case req.Vote != nil && req.Choice == nil:
		choice = uint32(*req.Vote)
	case req.Vote == nil && req.Choice != nil:
		choice = *req.Choice
	default:
		s.fail(w, r, badRequest(errors.New("exactly one of vote and choice is required")))
		return
	}

	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.module.Vote(r.Context(), req.Sender, block, id, choice, req.Rationale); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondProposal(w, r, http.StatusOK, id)
}

func (s *Server) UpdateRationaleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req RationaleRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSender(r, req.Sender); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.module.UpdateRationale(req.Sender, id, req.Rationale); err != nil {
		s.fail(w, r, err)
		return
	}
	ballot, err := s.module.GetVote(id, req.Sender)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ballot)
}

// senderAction decodes the sender of a proposal action, runs it at the
// current block and answers with the resulting proposal.
func (s *Server) senderAction(w http.ResponseWriter, r *http.Request, action func(sender common.Address, block voting.BlockInfo, id uint64) error) {
	id, err := proposalID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req SenderRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSender(r, req.Sender); err != nil {
		s.fail(w, r, err)
		return
	}
	block, err := s.now(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := action(req.Sender, block, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondProposal(w, r, http.StatusOK, id)
}

func (s *Server) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	s.senderAction(w, r, func(sender common.Address, block voting.BlockInfo, id uint64) error {
		return s.module.Execute(r.Context(), sender, block, id)
	})
}

func (s *Server) VetoHandler(w http.ResponseWriter, r *http.Request) {
	s.senderAction(w, r, s.module.Veto)
}

func (s *Server) CloseHandler(w http.ResponseWriter, r *http.Request) {
	s.senderAction(w, r, s.module.Close)
}
