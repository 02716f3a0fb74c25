package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kursadbilgin/activity-batch-engine/internal/config"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"github.com/kursadbilgin/activity-batch-engine/internal/queue"
)

var testLoc = time.FixedZone("IST", 5*60*60+30*60)

// testNow is 2026-03-01 in testLoc.
var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, testLoc)

func testSettings() config.Settings {
	return config.Settings{
		Location:              testLoc,
		PrimaryActivityTypes:  domain.NewActivityTypeSet("Competency Framework"),
		ActivityBatchTopic:    "activity.batch",
		BatchInstructionTopic: "batch.instruction",
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
}

type fakeBatchRepo struct {
	createFn   func(ctx context.Context, b *domain.Batch) error
	updateFn   func(ctx context.Context, activityID, batchID string, update domain.BatchUpdate) error
	getByIDFn  func(ctx context.Context, activityID, batchID string) (*domain.Batch, error)
	listFn     func(ctx context.Context, activityID string) ([]domain.Batch, error)
	deleteFn   func(ctx context.Context, batchID string) error
	addCertFn  func(ctx context.Context, activityID, batchID, templateID string, details domain.CertTemplate) error
	dropCertFn func(ctx context.Context, activityID, batchID, templateID string) error
}

func (r *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	if r.createFn != nil {
		return r.createFn(ctx, b)
	}
	return nil
}

func (r *fakeBatchRepo) Update(ctx context.Context, activityID, batchID string, update domain.BatchUpdate) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, activityID, batchID, update)
	}
	return nil
}

func (r *fakeBatchRepo) GetByID(ctx context.Context, activityID, batchID string) (*domain.Batch, error) {
	if r.getByIDFn != nil {
		return r.getByIDFn(ctx, activityID, batchID)
	}
	return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
}

func (r *fakeBatchRepo) ListByActivity(ctx context.Context, activityID string) ([]domain.Batch, error) {
	if r.listFn != nil {
		return r.listFn(ctx, activityID)
	}
	return nil, nil
}

func (r *fakeBatchRepo) DeleteByBatchID(ctx context.Context, batchID string) error {
	if r.deleteFn != nil {
		return r.deleteFn(ctx, batchID)
	}
	return nil
}

func (r *fakeBatchRepo) AddCertificateTemplate(ctx context.Context, activityID, batchID, templateID string, details domain.CertTemplate) error {
	if r.addCertFn != nil {
		return r.addCertFn(ctx, activityID, batchID, templateID, details)
	}
	return nil
}

func (r *fakeBatchRepo) RemoveCertificateTemplate(ctx context.Context, activityID, batchID, templateID string) error {
	if r.dropCertFn != nil {
		return r.dropCertFn(ctx, activityID, batchID, templateID)
	}
	return nil
}

// memEnrollmentRepo keeps rows in a map keyed by the composite key.
type memEnrollmentRepo struct {
	mu          sync.Mutex
	rows        map[domain.EnrollmentKey]domain.Enrollment
	getErr      error
	insertErr   error
	insertCalls int
	updateCalls int
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{rows: make(map[domain.EnrollmentKey]domain.Enrollment)}
}

func (r *memEnrollmentRepo) Create(_ context.Context, e *domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[e.EnrollmentKey] = *e
	return nil
}

func (r *memEnrollmentRepo) Update(_ context.Context, key domain.EnrollmentKey, update domain.EnrollmentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	row, ok := r.rows[key]
	if !ok {
		return fmt.Errorf("%w: enrollment for user %s", domain.ErrNotFound, key.UserID)
	}
	if update.Active != nil {
		row.Active = *update.Active
	}
	if update.DateTime != nil {
		row.DateTime = update.DateTime
	}
	r.rows[key] = row
	return nil
}

func (r *memEnrollmentRepo) Get(_ context.Context, key domain.EnrollmentKey) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	row, ok := r.rows[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *memEnrollmentRepo) Delete(_ context.Context, key domain.EnrollmentKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, key)
	return nil
}

func (r *memEnrollmentRepo) BatchParticipants(_ context.Context, activityID, activityType, batchID string, activeOnly bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []string
	for key, row := range r.rows {
		if key.ActivityID != activityID || key.ActivityType != activityType || key.BatchID != batchID {
			continue
		}
		if activeOnly && !row.Active {
			continue
		}
		users = append(users, key.UserID)
	}
	sort.Strings(users)
	return users, nil
}

func (r *memEnrollmentRepo) ActiveUsersInBatch(ctx context.Context, activityID, activityType, batchID string) ([]string, error) {
	return r.BatchParticipants(ctx, activityID, activityType, batchID, true)
}

func (r *memEnrollmentRepo) ListByUser(_ context.Context, userID string, activityIDs []string) ([]domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[string]bool, len(activityIDs))
	for _, id := range activityIDs {
		allowed[id] = true
	}
	var rows []domain.Enrollment
	for key, row := range r.rows {
		if key.UserID != userID {
			continue
		}
		if len(allowed) > 0 && !allowed[key.ActivityID] {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ActivityID < rows[j].ActivityID })
	return rows, nil
}

func (r *memEnrollmentRepo) BatchInsert(_ context.Context, enrollments []domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(enrollments) == 0 {
		return nil
	}
	r.insertCalls++
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, e := range enrollments {
		r.rows[e.EnrollmentKey] = e
	}
	return nil
}

func (r *memEnrollmentRepo) IsUserEnrolled(ctx context.Context, key domain.EnrollmentKey) (bool, error) {
	e, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return e != nil && e.Active, nil
}

func (r *memEnrollmentRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.Active {
			n++
		}
	}
	return n
}

type fakeCatalog struct {
	getContentFn       func(ctx context.Context, activityID string, fields []string) (*domain.ActivityContent, error)
	updateCollectionFn func(ctx context.Context, activityID string, batches []domain.BatchSummary) error
	updates            [][]domain.BatchSummary
}

func (c *fakeCatalog) GetContent(ctx context.Context, activityID string, fields []string) (*domain.ActivityContent, error) {
	if c.getContentFn != nil {
		return c.getContentFn(ctx, activityID, fields)
	}
	return liveContent(), nil
}

func (c *fakeCatalog) UpdateCollection(ctx context.Context, activityID string, batches []domain.BatchSummary) error {
	c.updates = append(c.updates, batches)
	if c.updateCollectionFn != nil {
		return c.updateCollectionFn(ctx, activityID, batches)
	}
	return nil
}

func liveContent() *domain.ActivityContent {
	return &domain.ActivityContent{
		Identifier:      "A1",
		Status:          domain.ContentStatusLive,
		PrimaryCategory: "Competency Framework",
		LeafNodesCount:  2,
	}
}

type fakeOrgDirectory struct {
	getFn func(ctx context.Context, orgID string) (*domain.Organisation, error)
}

func (d *fakeOrgDirectory) GetOrganisationByID(ctx context.Context, orgID string) (*domain.Organisation, error) {
	if d.getFn != nil {
		return d.getFn(ctx, orgID)
	}
	return &domain.Organisation{ID: orgID, Name: "org " + orgID}, nil
}

type publishedEvent struct {
	partitionKey string
	topic        string
	event        queue.InstructionEvent
}

type fakePublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, partitionKey, topic string, event queue.InstructionEvent) error
	events    []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, partitionKey, topic string, event queue.InstructionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishFn != nil {
		if err := p.publishFn(ctx, partitionKey, topic, event); err != nil {
			return err
		}
	}
	p.events = append(p.events, publishedEvent{partitionKey: partitionKey, topic: topic, event: event})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
