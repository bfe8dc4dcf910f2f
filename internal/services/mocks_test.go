package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/events"
	"github.com/happypaws/dogwalk-backend/pkg/lock"
	"github.com/happypaws/dogwalk-backend/pkg/payment"
)

// ============================================================================
// Booking store
// ============================================================================

// fakeStore mirrors the guarded writes of the SQL repository in memory
type fakeStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
	owners   map[uuid.UUID]models.BookingOwner

	getErr       error
	beforeAttach func(b *models.Booking)
	beforeUpdate func(b *models.Booking)
	attachCalls  int
	checkedAt    map[uuid.UUID]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:  make(map[uuid.UUID]*models.Booking),
		owners:    make(map[uuid.UUID]models.BookingOwner),
		checkedAt: make(map[uuid.UUID]time.Time),
	}
}

func clone(b *models.Booking) *models.Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func (f *fakeStore) put(b *models.Booking) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[b.ID] = clone(b)
	return b
}

func (f *fakeStore) get(id uuid.UUID) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.bookings[id])
}

func (f *fakeStore) Create(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	f.bookings[b.ID] = clone(b)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.get(id), nil
}

func (f *fakeStore) GetByIntentID(_ context.Context, intentID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.byIntent(intentID)), nil
}

func (f *fakeStore) byIntent(intentID string) *models.Booking {
	for _, b := range f.bookings {
		if b.ProviderIntentID != nil && *b.ProviderIntentID == intentID {
			return b
		}
	}
	return nil
}

func (f *fakeStore) GetByChargeID(_ context.Context, chargeID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.ProviderChargeID != nil && *b.ProviderChargeID == chargeID {
			return clone(b), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.Booking{}
	for _, b := range f.bookings {
		if b.UserID == userID {
			result = append(result, clone(b))
		}
	}
	return result, nil
}

func (f *fakeStore) ListAllWithOwners(_ context.Context) ([]*models.BookingWithOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.BookingWithOwner{}
	for _, b := range f.bookings {
		owner := f.owners[b.UserID]
		owner.ID = b.UserID
		result = append(result, &models.BookingWithOwner{Booking: *b, Owner: owner})
	}
	return result, nil
}

func (f *fakeStore) Update(_ context.Context, b *models.Booking, status *models.BookingStatus, price *float64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.bookings[b.ID]
	if !ok {
		return nil, nil
	}
	if f.beforeUpdate != nil {
		f.beforeUpdate(stored)
	}

	stored.DogName = b.DogName
	stored.DogBreed = b.DogBreed
	stored.DogAge = b.DogAge
	stored.Service = b.Service
	stored.Date = b.Date
	stored.Time = b.Time
	stored.Duration = b.Duration
	stored.Notes = b.Notes
	stored.SpecialInstructions = b.SpecialInstructions

	switch {
	case stored.PaymentStatus == models.PaymentStatusRefunded:
		stored.Status = models.BookingStatusCancelled
	case status != nil:
		stored.Status = *status
	}
	if price != nil && (stored.PaymentStatus == models.PaymentStatusPending || stored.PaymentStatus == models.PaymentStatusFailed) {
		stored.Price = *price
	}
	stored.UpdatedAt = time.Now()
	return clone(stored), nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.PaymentStatus == models.PaymentStatusProcessing || b.PaymentStatus == models.PaymentStatusSucceeded {
		return models.ErrPaidBookingDelete
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeStore) AttachIntent(_ context.Context, id uuid.UUID, intentID string, previous *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachCalls++

	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	if f.beforeAttach != nil {
		f.beforeAttach(b)
	}

	sameIntent := (b.ProviderIntentID == nil && previous == nil) ||
		(b.ProviderIntentID != nil && previous != nil && *b.ProviderIntentID == *previous)
	if !sameIntent ||
		b.PaymentStatus == models.PaymentStatusSucceeded ||
		b.PaymentStatus == models.PaymentStatusRefunded ||
		b.Status == models.BookingStatusCancelled {
		return false, nil
	}

	b.ProviderIntentID = &intentID
	b.PaymentStatus = models.PaymentStatusProcessing
	b.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok &&
		(b.PaymentStatus == models.PaymentStatusPending || b.PaymentStatus == models.PaymentStatusFailed) {
		b.PaymentStatus = models.PaymentStatusProcessing
	}
	return nil
}

func (f *fakeStore) MarkPaymentSucceeded(_ context.Context, intentID string, chargeID, method *string, paidAt time.Time) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.byIntent(intentID)
	if b == nil || b.PaymentStatus == models.PaymentStatusRefunded {
		return nil, nil
	}
	b.PaymentStatus = models.PaymentStatusSucceeded
	if chargeID != nil {
		b.ProviderChargeID = chargeID
	}
	if method != nil {
		b.PaymentMethod = method
	}
	if b.PaidAt == nil {
		at := paidAt
		b.PaidAt = &at
	}
	if b.Status == models.BookingStatusPending {
		b.Status = models.BookingStatusConfirmed
	}
	return clone(b), nil
}

func (f *fakeStore) MarkPaymentFailed(_ context.Context, intentID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.byIntent(intentID)
	if b == nil {
		return nil, nil
	}
	switch b.PaymentStatus {
	case models.PaymentStatusPending, models.PaymentStatusProcessing, models.PaymentStatusFailed:
		b.PaymentStatus = models.PaymentStatusFailed
		return clone(b), nil
	}
	return nil, nil
}

func (f *fakeStore) MarkRefunded(_ context.Context, id uuid.UUID, amount float64, refundedAt time.Time) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || (b.PaymentStatus != models.PaymentStatusSucceeded && b.PaymentStatus != models.PaymentStatusRefunded) {
		return nil, nil
	}
	if amount > b.Price {
		amount = b.Price
	}
	b.PaymentStatus = models.PaymentStatusRefunded
	b.Status = models.BookingStatusCancelled
	b.RefundAmount = &amount
	if b.RefundedAt == nil {
		at := refundedAt
		b.RefundedAt = &at
	}
	return clone(b), nil
}

func (f *fakeStore) ListStaleProcessing(_ context.Context, cutoff time.Time, limit int) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sortKey := func(b *models.Booking) time.Time {
		if at, ok := f.checkedAt[b.ID]; ok {
			return at
		}
		return b.UpdatedAt
	}

	result := []*models.Booking{}
	for _, b := range f.bookings {
		if b.PaymentStatus != models.PaymentStatusProcessing || b.ProviderIntentID == nil || !b.UpdatedAt.Before(cutoff) {
			continue
		}
		if at, ok := f.checkedAt[b.ID]; ok && !at.Before(cutoff) {
			continue
		}
		result = append(result, clone(b))
	}
	sort.Slice(result, func(i, j int) bool { return sortKey(result[i]).Before(sortKey(result[j])) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeStore) MarkPaymentChecked(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; ok {
		f.checkedAt[id] = at
	}
	return nil
}

// ============================================================================
// Payment gateway
// ============================================================================

const validSignature = "t=1,v1=valid"

type fakeGateway struct {
	mu          sync.Mutex
	intents     map[string]*payment.Intent
	byKey       map[string]string
	created     []payment.CreateIntentParams
	refunds     []payment.RefundParams
	seq         int
	createErr   error
	getErr      error
	refundErr   error
	createDelay time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intents: make(map[string]*payment.Intent),
		byKey:   make(map[string]string),
	}
}

func (g *fakeGateway) CreateIntent(_ context.Context, params payment.CreateIntentParams) (*payment.Intent, error) {
	if g.createDelay > 0 {
		time.Sleep(g.createDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	if id, ok := g.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		c := *g.intents[id]
		return &c, nil
	}

	g.seq++
	id := fmt.Sprintf("pi_test_%d", g.seq)
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       payment.IntentStatusRequiresPaymentMethod,
		AmountMinor:  params.AmountMinor,
		Currency:     params.Currency,
		Metadata:     params.Metadata,
	}
	g.intents[id] = intent
	g.byKey[params.IdempotencyKey] = id
	g.created = append(g.created, params)

	c := *intent
	return &c, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	c := *intent
	return &c, nil
}

func (g *fakeGateway) setIntentStatus(id, status, chargeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = status
	g.intents[id].LatestChargeID = chargeID
}

func (g *fakeGateway) Refund(_ context.Context, params payment.RefundParams) (*payment.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, params)
	amount := int64(0)
	if params.AmountMinor != nil {
		amount = *params.AmountMinor
	}
	return &payment.Refund{
		ID:          fmt.Sprintf("re_test_%d", len(g.refunds)),
		AmountMinor: amount,
		Status:      "succeeded",
	}, nil
}

// ParseWebhook accepts payloads produced by webhookPayload signed with validSignature
func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	if signature != validSignature {
		return nil, payment.ErrInvalidSignature
	}
	var evt payment.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, payment.ErrInvalidSignature
	}
	return &evt, nil
}

func webhookPayload(t *testing.T, evt payment.Event) []byte {
	t.Helper()
	if evt.ID == "" {
		evt.ID = "evt_" + uuid.NewString()
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return raw
}

// ============================================================================
// Audits and events
// ============================================================================

type fakeAudits struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
}

func (a *fakeAudits) Log(_ context.Context, entry *models.PaymentAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudits) HasEvent(_ context.Context, eventID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.ProviderEventID != nil && *e.ProviderEventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (a *fakeAudits) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.PaymentAudit
	for _, e := range a.entries {
		if e.BookingID != nil && *e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAudits) ofType(t models.PaymentEventType) []*models.PaymentAudit {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.PaymentAudit
	for _, e := range a.entries {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// ============================================================================
// Fixtures
// ============================================================================

type paymentFixture struct {
	store     *fakeStore
	gateway   *fakeGateway
	locker    *lock.MemoryLocker
	audits    *fakeAudits
	publisher *recordingPublisher
	hook      *test.Hook
	service   *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &paymentFixture{
		store:     newFakeStore(),
		gateway:   newFakeGateway(),
		locker:    lock.NewMemoryLocker(),
		audits:    &fakeAudits{},
		publisher: &recordingPublisher{},
		hook:      hook,
	}
	f.service = NewPaymentService(f.store, f.gateway, f.locker, f.audits, f.publisher, DefaultPaymentConfig(), logger)
	return f
}

func newBookingService(t *testing.T) (*BookingService, *fakeStore, *recordingPublisher) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := newFakeStore()
	publisher := &recordingPublisher{}
	return NewBookingService(store, publisher, logger), store, publisher
}

func userRequester(id uuid.UUID) models.Requester {
	return models.Requester{UserID: id, Role: models.RoleUser}
}

func adminRequester() models.Requester {
	return models.Requester{UserID: uuid.New(), Role: models.RoleAdmin}
}

func pendingBooking(owner uuid.UUID, service string) *models.Booking {
	now := time.Now()
	return &models.Booking{
		ID:            uuid.New(),
		UserID:        owner,
		DogName:       "Biscuit",
		Service:       service,
		Date:          time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC),
		Time:          "09:30",
		Duration:      60,
		Status:        models.BookingStatusPending,
		Price:         models.PriceForService(service),
		PaymentStatus: models.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// paidBooking is a confirmed booking whose payment succeeded with a known charge
func paidBooking(owner uuid.UUID, service string) *models.Booking {
	b := pendingBooking(owner, service)
	intent := "pi_paid_" + b.ID.String()[:8]
	charge := "ch_paid_" + b.ID.String()[:8]
	paidAt := time.Now().Add(-time.Hour)
	b.Status = models.BookingStatusConfirmed
	b.PaymentStatus = models.PaymentStatusSucceeded
	b.ProviderIntentID = &intent
	b.ProviderChargeID = &charge
	b.PaidAt = &paidAt
	return b
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }
