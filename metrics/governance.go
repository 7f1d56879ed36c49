package metrics

import (
	"strconv"

	"github.com/axiomesh/governor/core"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var _ core.Metrics = (*GovernanceMetrics)(nil)

type GovernanceMetrics struct {
	ProposalsCreated  metrics.Counter
	VotesCast         metrics.Counter
	StatusChanges     metrics.Counter
	ExecutionFailures metrics.Counter
}

func (m *GovernanceMetrics) ProposalCreated(flavor string) {
	m.ProposalsCreated.With(LabelFlavor, flavor).Add(1)
}

func (m *GovernanceMetrics) VoteCast(flavor string, revote bool) {
	m.VotesCast.With(LabelFlavor, flavor, LabelRevote, strconv.FormatBool(revote)).Add(1)
}

func (m *GovernanceMetrics) StatusChanged(from, to core.ProposalStatus) {
	m.StatusChanges.With(LabelFrom, from.String(), LabelTo, to.String()).Add(1)
}

func (m *GovernanceMetrics) ExecutionFailed() {
	m.ExecutionFailures.Add(1)
}

func PromGovernanceMetrics(reg stdprometheus.Registerer) *GovernanceMetrics {
	return &GovernanceMetrics{
		ProposalsCreated: counter(reg, stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: GovernanceSubsystem,
			Name:      "proposals_created_total",
			Help:      "Number of created proposals.",
		}, []string{LabelFlavor}),
		VotesCast: counter(reg, stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: GovernanceSubsystem,
			Name:      "votes_cast_total",
			Help:      "Number of accepted ballots.",
		}, []string{LabelFlavor, LabelRevote}),
		StatusChanges: counter(reg, stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: GovernanceSubsystem,
			Name:      "status_changes_total",
			Help:      "Number of persisted proposal status transitions.",
		}, []string{LabelFrom, LabelTo}),
		ExecutionFailures: counter(reg, stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: GovernanceSubsystem,
			Name:      "execution_failures_total",
			Help:      "Number of failed proposal executions.",
		}, []string{}),
	}
}

func NopGovernanceMetrics() *GovernanceMetrics {
	return &GovernanceMetrics{
		ProposalsCreated:  discard.NewCounter(),
		VotesCast:         discard.NewCounter(),
		StatusChanges:     discard.NewCounter(),
		ExecutionFailures: discard.NewCounter(),
	}
}
