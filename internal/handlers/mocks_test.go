package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/happypaws/dogwalk-backend/internal/middleware"
	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/jwt"
)

const testSecret = "handler-test-secret-key-0123456789"

type fakeBookings struct {
	booking  *models.Booking
	bookings []*models.Booking
	all      []*models.BookingWithOwner
	err      error

	lastRequester models.Requester
	lastUserID    uuid.UUID
	lastID        uuid.UUID
	lastCreate    *models.CreateBookingRequest
	lastUpdate    *models.UpdateBookingRequest
	deleted       bool
}

func (f *fakeBookings) Create(_ context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	f.lastUserID, f.lastCreate = userID, req
	return f.booking, f.err
}

func (f *fakeBookings) Get(_ context.Context, requester models.Requester, id uuid.UUID) (*models.Booking, error) {
	f.lastRequester, f.lastID = requester, id
	return f.booking, f.err
}

func (f *fakeBookings) ListForUser(_ context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	f.lastUserID = userID
	return f.bookings, f.err
}

func (f *fakeBookings) ListAll(_ context.Context, requester models.Requester) ([]*models.BookingWithOwner, error) {
	f.lastRequester = requester
	return f.all, f.err
}

func (f *fakeBookings) Update(_ context.Context, requester models.Requester, id uuid.UUID, req *models.UpdateBookingRequest) (*models.Booking, error) {
	f.lastRequester, f.lastID, f.lastUpdate = requester, id, req
	return f.booking, f.err
}

func (f *fakeBookings) Delete(_ context.Context, requester models.Requester, id uuid.UUID) error {
	f.lastRequester, f.lastID = requester, id
	if f.err == nil {
		f.deleted = true
	}
	return f.err
}

type fakePayments struct {
	intent  *models.PaymentIntentResponse
	refund  *models.RefundResponse
	summary *models.PaymentSummary
	audits  []*models.PaymentAudit
	err     error

	lastBookingID uuid.UUID
	lastAmount    *float64
	lastPayload   []byte
	lastSignature string
	lastMeta      models.RequestMeta
}

func (f *fakePayments) CreateOrReuseIntent(_ context.Context, _ models.Requester, bookingID uuid.UUID, meta models.RequestMeta) (*models.PaymentIntentResponse, error) {
	f.lastBookingID, f.lastMeta = bookingID, meta
	return f.intent, f.err
}

func (f *fakePayments) HandleWebhook(_ context.Context, payload []byte, signature string, meta models.RequestMeta) error {
	f.lastPayload, f.lastSignature, f.lastMeta = payload, signature, meta
	return f.err
}

func (f *fakePayments) Refund(_ context.Context, _ models.Requester, bookingID uuid.UUID, amount *float64, _ models.RequestMeta) (*models.RefundResponse, error) {
	f.lastBookingID, f.lastAmount = bookingID, amount
	return f.refund, f.err
}

func (f *fakePayments) GetStatus(_ context.Context, _ models.Requester, bookingID uuid.UUID) (*models.PaymentSummary, error) {
	f.lastBookingID = bookingID
	return f.summary, f.err
}

func (f *fakePayments) AuditTrail(_ context.Context, _ models.Requester, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	f.lastBookingID = bookingID
	return f.audits, f.err
}

type fakeReconciler struct {
	result *models.ReconcileResult
	err    error
	runs   int
}

func (f *fakeReconciler) RunOnce(context.Context) (*models.ReconcileResult, error) {
	f.runs++
	return f.result, f.err
}

func (f *fakeReconciler) Status() map[string]interface{} {
	return map[string]interface{}{"schedule": "*/10 * * * *", "job_count": 1}
}

type testServer struct {
	router     *gin.Engine
	jwt        *jwt.Service
	bookings   *fakeBookings
	payments   *fakePayments
	reconciler *fakeReconciler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	s := &testServer{
		router:     gin.New(),
		jwt:        jwt.NewService(testSecret, "", time.Hour),
		bookings:   &fakeBookings{},
		payments:   &fakePayments{},
		reconciler: &fakeReconciler{result: &models.ReconcileResult{}},
	}

	api := s.router.Group("/api/v1")
	RegisterRoutes(api,
		middleware.AuthMiddleware(s.jwt, logger),
		NewBookingHandler(s.bookings, logger),
		NewPaymentHandler(s.payments, s.reconciler, logger),
	)
	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID, "", role)
	require.NoError(t, err)
	return token
}

// do sends a request. body may be nil, a string sent verbatim, or a value encoded as JSON.
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  []models.FieldError `json:"errors"`
	Count   *int                `json:"count"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func sampleBooking(owner uuid.UUID) *models.Booking {
	return &models.Booking{
		ID:            uuid.New(),
		UserID:        owner,
		DogName:       "Biscuit",
		Service:       models.ServicePetSitting,
		Date:          time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC),
		Time:          "09:30",
		Duration:      60,
		Status:        models.BookingStatusPending,
		Price:         40,
		PaymentStatus: models.PaymentStatusPending,
	}
}
