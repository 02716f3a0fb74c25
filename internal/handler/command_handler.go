package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/command"
	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
	"github.com/kursadbilgin/activity-batch-engine/internal/service"
)

// HeaderUserID carries the authenticated caller, set by the gateway in front of the engine.
const HeaderUserID = "X-Authenticated-User-Id"

const apiVersion = "v1"

type Dispatcher interface {
	Dispatch(ctx context.Context, op command.Operation, requester service.Requester, body []byte) (any, error)
}

type route struct {
	method string
	path   string
	op     command.Operation
}

var routes = []route{
	{fiber.MethodPost, "/v1/batch/create", command.OpCreateBatch},
	{fiber.MethodPost, "/private/v1/batch/create", command.OpPrivateCreateBatch},
	{fiber.MethodPatch, "/v1/batch/update", command.OpUpdateBatch},
	{fiber.MethodPost, "/v1/batch/list", command.OpListActivityBatches},
	{fiber.MethodPost, "/v1/batch/delete", command.OpDeleteBatch},
	{fiber.MethodPatch, "/v1/batch/cert/template/add", command.OpAddCertificateTemplate},
	{fiber.MethodPatch, "/v1/batch/cert/template/remove", command.OpRemoveCertificateTemplate},
	{fiber.MethodPost, "/v1/batch/participants/list", command.OpListBatchParticipants},
	{fiber.MethodPost, "/v1/activity/enroll", command.OpEnrollActivity},
	{fiber.MethodPost, "/private/v1/activity/enroll", command.OpPrivateEnrollActivity},
	{fiber.MethodPost, "/v1/activity/unenroll", command.OpUnenrollActivity},
	{fiber.MethodPost, "/v1/user/enrollment/list", command.OpListUserActivityEnrollments},
}

type responseParams struct {
	MsgID  string `json:"msgid,omitempty"`
	Status string `json:"status"`
}

type response struct {
	ID           string         `json:"id"`
	Ver          string         `json:"ver"`
	TS           string         `json:"ts"`
	Params       responseParams `json:"params"`
	ResponseCode string         `json:"responseCode"`
	Result       any            `json:"result"`
}

type CommandHandler struct {
	dispatcher Dispatcher
	now        func() time.Time
}

func NewCommandHandler(dispatcher Dispatcher) (*CommandHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("command dispatcher is required")
	}
	return &CommandHandler{dispatcher: dispatcher, now: time.Now}, nil
}

func RegisterCommandRoutes(router fiber.Router, dispatcher Dispatcher) error {
	h, err := NewCommandHandler(dispatcher)
	if err != nil {
		return err
	}
	for _, r := range routes {
		router.Add(r.method, r.path, h.Handle(r.op))
	}
	return nil
}

// Handle serves op. Errors go to the app's error handler.
func (h *CommandHandler) Handle(op command.Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := requestCorrelationID(c)
		requester := service.Requester{UserID: strings.TrimSpace(c.Get(HeaderUserID))}

		ctx := observability.WithCorrelationID(c.UserContext(), correlationID)
		ctx = observability.WithRequester(ctx, requester.UserID)
		ctx = observability.WithOperation(ctx, string(op))

		result, err := h.dispatcher.Dispatch(ctx, op, requester, c.Body())
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusOK).JSON(response{
			ID:           "api." + string(op),
			Ver:          apiVersion,
			TS:           h.now().UTC().Format(time.RFC3339),
			Params:       responseParams{MsgID: correlationID, Status: "successful"},
			ResponseCode: "OK",
			Result:       result,
		})
	}
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
