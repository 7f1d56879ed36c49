package api

import (
	"encoding/json"
	"net/http"

	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/voting"
	"github.com/pkg/errors"
)

const problemTypePrefix = "urn:governor:error:"

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func NewStatusProblem(status int) Problem {
	return Problem{Type: "about:blank", Title: http.StatusText(status), Status: status}
}

func NewDetailedStatusProblem(status int, detail string) Problem {
	p := NewStatusProblem(status)
	p.Detail = detail
	return p
}

func (p Problem) SetInstance(instance string) Problem {
	p.Instance = instance
	return p
}

type problemKind struct {
	err    error
	code   string
	status int
}

// problemKinds is matched in order, so errors wrapping another sentinel
// come before it.
var problemKinds = []problemKind{
	{core.ErrWrongCloseStatus, "wrong_close_status", http.StatusConflict},
	{core.ErrUnauthorized, "unauthorized", http.StatusForbidden},
	{core.ErrNotOpen, "not_open", http.StatusConflict},
	{core.ErrNotPassed, "not_passed", http.StatusConflict},
	{core.ErrAlreadyVoted, "already_voted", http.StatusConflict},
	{core.ErrAlreadyCast, "already_cast", http.StatusConflict},
	{core.ErrNotRegistered, "not_registered", http.StatusForbidden},
	{core.ErrExpired, "expired", http.StatusConflict},
	{core.ErrNoSuchProposal, "no_such_proposal", http.StatusNotFound},
	{core.ErrNoSuchVote, "no_such_vote", http.StatusNotFound},
	{core.ErrInvalidProposer, "invalid_proposer", http.StatusBadRequest},
	{core.ErrInvalidChoice, "invalid_choice", http.StatusBadRequest},
	{core.ErrInvalidExpiration, "invalid_expiration", http.StatusBadRequest},
	{core.ErrNotInstantiated, "not_instantiated", http.StatusServiceUnavailable},
	{core.ErrAlreadyInstantiated, "already_instantiated", http.StatusConflict},
	{core.ErrNoVetoConfig, "no_veto_config", http.StatusConflict},
	{core.ErrTimelocked, "timelocked", http.StatusConflict},
	{core.ErrTimelockExpired, "timelock_expired", http.StatusConflict},
	{core.ErrVetoBeforePassedDisabled, "veto_before_passed_disabled", http.StatusConflict},
	{core.ErrEarlyExecuteDisabled, "early_execute_disabled", http.StatusConflict},
	{core.ErrInvalidVetoStatus, "invalid_veto_status", http.StatusConflict},
	{voting.ErrOverflow, "overflow", http.StatusUnprocessableEntity},
	{voting.ErrZeroThreshold, "zero_threshold", http.StatusBadRequest},
	{voting.ErrUnreachableThreshold, "unreachable_threshold", http.StatusBadRequest},
	{voting.ErrInvalidPercentage, "invalid_percentage", http.StatusBadRequest},
	{voting.ErrInvalidThresholdKind, "invalid_threshold_kind", http.StatusBadRequest},
	{voting.ErrDurationUnitsConflict, "duration_units_conflict", http.StatusBadRequest},
	{voting.ErrInvalidMinVotingPeriod, "invalid_min_voting_period", http.StatusBadRequest},
	{voting.ErrInvalidDuration, "invalid_duration", http.StatusBadRequest},
	{voting.ErrWrongNumberOfChoices, "wrong_number_of_choices", http.StatusBadRequest},
	{voting.ErrInvalidVote, "invalid_vote", http.StatusBadRequest},
	{voting.ErrZeroVetoer, "zero_vetoer", http.StatusBadRequest},
	{voting.ErrVetoTimelockUnitMismatch, "veto_timelock_unit_mismatch", http.StatusBadRequest},
	{errUnauthenticated, "unauthenticated", http.StatusUnauthorized},
	{errBadRequest, "bad_request", http.StatusBadRequest},
}

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return errors.Wrap(errBadRequest, err.Error())
}

// NewErrorProblem maps err onto its problem type. Unknown errors are
// internal and their message is not exposed.
func NewErrorProblem(err error) Problem {
	for _, k := range problemKinds {
		if errors.Is(err, k.err) {
			return Problem{
				Type:   problemTypePrefix + k.code,
				Title:  k.err.Error(),
				Status: k.status,
				Detail: err.Error(),
			}
		}
	}
	return NewStatusProblem(http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	p = p.SetInstance(r.URL.Path)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
