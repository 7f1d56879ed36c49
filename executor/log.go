package executor

import (
	"context"

	"github.com/axiomesh/governor/core"
	"github.com/sirupsen/logrus"
)

var _ core.Executor = (*Log)(nil)

// Log only records the payload. It suits deployments where messages are
// picked up from the proposal queries instead of being pushed.
type Log struct {
	logger logrus.FieldLogger
}

func NewLog(logger logrus.FieldLogger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Execute(_ context.Context, req *core.ExecuteRequest) error {
	fields := logrus.Fields{
		"proposal_id": req.ProposalID,
		"dao":         req.DAO.String(),
		"sender":      req.Sender.String(),
		"msgs":        len(req.Msgs),
	}
	if req.Option != nil {
		fields["option"] = *req.Option
	}
	l.logger.WithFields(fields).Info("Execute proposal")
	for i, msg := range req.Msgs {
		l.logger.WithField("index", i).Debug(string(msg))
	}
	return nil
}
