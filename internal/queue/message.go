package queue

import (
	"fmt"
	"strings"
)

const (
	InstructionEventID = "BE_JOB_REQUEST"

	ActionBatchCreate      = "batch-create"
	ActionBatchUpdate      = "batch-update"
	ActionActivityEnroll   = "activity-enroll"
	ActionActivityUnenroll = "activity-unenroll"
)

// InstructionEvent is the payload consumed by the downstream batch jobs.
type InstructionEvent struct {
	EID     string       `json:"eid"`
	ETS     int64        `json:"ets"`
	MID     string       `json:"mid"`
	Actor   EventActor   `json:"actor"`
	Context EventContext `json:"context"`
	Object  EventObject  `json:"object"`
	EData   EventData    `json:"edata"`
}

type EventActor struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type EventContext struct {
	PData EventPData `json:"pdata"`
	CData EventCData `json:"cdata"`
}

type EventPData struct {
	Ver string `json:"ver"`
	ID  string `json:"id"`
}

type EventCData struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type EventObject struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// EventData carries the action and whichever batch fields the request set.
type EventData struct {
	Action            string   `json:"action"`
	BatchID           string   `json:"batchId"`
	ActivityID        string   `json:"activityId"`
	ActivityType      string   `json:"activityType"`
	Iteration         int      `json:"iteration"`
	Name              *string  `json:"name,omitempty"`
	Description       *string  `json:"description,omitempty"`
	StartDate         *string  `json:"startDate,omitempty"`
	EndDate           *string  `json:"endDate,omitempty"`
	EnrollmentType    *string  `json:"enrollmentType,omitempty"`
	EnrollmentEndDate *string  `json:"enrollmentEndDate,omitempty"`
	Status            *int     `json:"status,omitempty"`
	CreatedFor        []string `json:"createdFor,omitempty"`
	RequestedBy       string   `json:"requestedBy,omitempty"`
	UserCount         *int     `json:"userCount,omitempty"`
	UserIDs           []string `json:"userIds,omitempty"`
}

func (e InstructionEvent) Validate() error {
	if strings.TrimSpace(e.MID) == "" {
		return fmt.Errorf("mid is required")
	}
	if strings.TrimSpace(e.EData.Action) == "" {
		return fmt.Errorf("edata.action is required")
	}
	if strings.TrimSpace(e.EData.BatchID) == "" {
		return fmt.Errorf("edata.batchId is required")
	}
	if strings.TrimSpace(e.Object.ID) == "" {
		return fmt.Errorf("object.id is required")
	}
	return nil
}
