// Package command maps operation identifiers to typed handlers. Each entry
// decodes its own request struct, runs the stateless validator and then
// the service call, so no handler sees another operation's payload.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"github.com/kursadbilgin/activity-batch-engine/internal/service"
)

type Operation string

const (
	OpCreateBatch                 Operation = "createBatch"
	OpPrivateCreateBatch          Operation = "privateCreateBatch"
	OpUpdateBatch                 Operation = "updateBatch"
	OpListActivityBatches         Operation = "listActivityBatches"
	OpDeleteBatch                 Operation = "deleteBatch"
	OpAddCertificateTemplate      Operation = "addCertificateTemplate"
	OpRemoveCertificateTemplate   Operation = "removeCertificateTemplate"
	OpEnrollActivity              Operation = "enrollActivity"
	OpPrivateEnrollActivity       Operation = "privateEnrollActivity"
	OpUnenrollActivity            Operation = "unenrollActivity"
	OpListUserActivityEnrollments Operation = "listUserActivityEnrollments"
	OpListBatchParticipants       Operation = "listBatchParticipants"
)

type handlerFunc func(ctx context.Context, requester service.Requester, body []byte) (any, error)

// Table is immutable once built and safe for concurrent Dispatch calls.
type Table struct {
	handlers map[Operation]handlerFunc
}

type envelope[In any] struct {
	Request *In `json:"request"`
}

// register binds op to a decode, validate, run pipeline over In and Out.
func register[In any, Out any](
	t *Table,
	op Operation,
	validate func(req *In, requester service.Requester) error,
	run func(ctx context.Context, req *In, requester service.Requester) (Out, error),
) {
	t.handlers[op] = func(ctx context.Context, requester service.Requester, body []byte) (any, error) {
		req, err := decode[In](body)
		if err != nil {
			return nil, err
		}
		if err := validate(req, requester); err != nil {
			return nil, err
		}
		return run(ctx, req, requester)
	}
}

// decode reads the {"request": {...}} envelope. Unknown fields are ignored.
func decode[In any](body []byte) (*In, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.MissingField("request")
	}

	var env envelope[In]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.InvalidField("request", fmt.Sprintf("malformed body: %v", err))
	}
	if env.Request == nil {
		return nil, domain.MissingField("request")
	}
	return env.Request, nil
}

// Dispatch runs the handler registered for op.
func (t *Table) Dispatch(ctx context.Context, op Operation, requester service.Requester, body []byte) (any, error) {
	h, ok := t.handlers[op]
	if !ok {
		return nil, domain.InvalidField("operation", fmt.Sprintf("unknown operation %q", op))
	}
	return h(ctx, requester, body)
}

// Operations lists the registered operation ids in sorted order.
func (t *Table) Operations() []Operation {
	ops := make([]Operation, 0, len(t.handlers))
	for op := range t.handlers {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
