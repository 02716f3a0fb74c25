package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
	"github.com/kursadbilgin/activity-batch-engine/internal/queue"
	"go.uber.org/zap"
)

const (
	eventProducerID      = "org.sunbird.platform"
	eventProducerVersion = "1.0"
	eventCDataType       = "Request"
	eventActorType       = "System"
	eventIteration       = 1

	batchEventActor      = "Batch Creation Flink Job"
	enrollmentEventActor = "Activity Enrollment Flink Job"
)

// newEvent fills the envelope shared by every instruction event.
func newEvent(now time.Time, id string, actor string, object queue.EventObject) queue.InstructionEvent {
	ets := now.UnixMilli()
	return queue.InstructionEvent{
		EID:   queue.InstructionEventID,
		ETS:   ets,
		MID:   fmt.Sprintf("LP.%d.%s", ets, id),
		Actor: queue.EventActor{ID: actor, Type: eventActorType},
		Context: queue.EventContext{
			PData: queue.EventPData{Ver: eventProducerVersion, ID: eventProducerID},
			CData: queue.EventCData{ID: strings.ReplaceAll(id, "-", ""), Type: eventCDataType},
		},
		Object: object,
	}
}

// batchEvent carries every batch field for create. For update only the
// fields present in changed are sent, with their stored values.
func batchEvent(
	action string,
	b *domain.Batch,
	changed *domain.BatchUpdate,
	loc *time.Location,
	now time.Time,
	id string,
) queue.InstructionEvent {
	event := newEvent(now, id, batchEventActor, queue.EventObject{
		ID:   b.ActivityID,
		Type: domain.ActivityType(b.ActivityType).ObjectType(),
	})
	data := queue.EventData{
		Action:       action,
		BatchID:      b.BatchID,
		ActivityID:   b.ActivityID,
		ActivityType: b.ActivityType,
		Iteration:    eventIteration,
	}

	all := changed == nil
	if all || changed.Name != nil {
		data.Name = stringPtr(b.Name)
	}
	if all || changed.Description != nil {
		data.Description = stringPtr(b.Description)
	}
	if all || changed.StartDate != nil {
		data.StartDate = stringPtr(domain.FormatDate(b.StartDate, loc))
	}
	if (all || changed.EndDate != nil) && b.EndDate != nil {
		data.EndDate = stringPtr(domain.FormatDate(*b.EndDate, loc))
	}
	if (all || changed.EnrollmentEndDate != nil) && b.EnrollmentEndDate != nil {
		data.EnrollmentEndDate = stringPtr(domain.FormatDate(*b.EnrollmentEndDate, loc))
	}
	if all || changed.EnrollmentType != nil {
		data.EnrollmentType = stringPtr(b.EnrollmentType.String())
	}
	if all || changed.Status != nil {
		status := int(b.Status)
		data.Status = &status
	}
	if all || changed.CreatedFor != nil {
		data.CreatedFor = b.CreatedFor
	}

	event.EData = data
	return event
}

func enrollmentEvent(
	action string,
	key domain.EnrollmentKey,
	userIDs []string,
	requestedBy string,
	now time.Time,
	id string,
) queue.InstructionEvent {
	event := newEvent(now, id, enrollmentEventActor, queue.EventObject{
		ID:   key.ActivityID,
		Type: domain.ActivityType(key.ActivityType).ObjectType(),
	})
	count := len(userIDs)
	event.EData = queue.EventData{
		Action:       action,
		BatchID:      key.BatchID,
		ActivityID:   key.ActivityID,
		ActivityType: key.ActivityType,
		Iteration:    eventIteration,
		RequestedBy:  requestedBy,
		UserCount:    &count,
		UserIDs:      userIDs,
	}
	return event
}

// publishEvent hands the event to the publisher keyed by batch id. Failures
// are logged and counted, never returned: the write has already committed.
func publishEvent(
	ctx context.Context,
	publisher queue.EventPublisher,
	topic string,
	event queue.InstructionEvent,
	logger *zap.Logger,
	metrics *observability.Metrics,
) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event.EData.BatchID, topic, event); err != nil {
		metrics.IncEventFailed(topic, "enqueue")
		observability.WithContextLogger(logger, ctx).Error("failed to enqueue instruction event",
			zap.String("topic", topic),
			zap.String("batchId", event.EData.BatchID),
			zap.String("action", event.EData.Action),
			zap.Error(err),
		)
	}
}

func stringPtr(s string) *string { return &s }
