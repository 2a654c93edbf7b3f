package notificationshandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/transport/http/middleware"
)

func newRouter(mock pgxmock.PgxPoolIface) chi.Router {
	r := chi.NewRouter()
	NewHandler(notifications.New(notifications.NewStore(mock), nil, "")).RegisterRoutes(r)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.WithUser(context.Background(), performance.ActorContext{UserID: userID, Role: "employee"})
	return req.WithContext(ctx)
}

func TestListReturnsOwnNotifications(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM notifications").
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, type, title, body, read_at, created_at").
		WithArgs("emp-1", 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "title", "body", "read_at", "created_at"}).
			AddRow("n-1", notifications.TypeAssessmentApproved, "Self assessment approved", "", (*time.Time)(nil), time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)))

	rec := httptest.NewRecorder()
	newRouter(mock).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/notifications/", nil), "emp-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Contains(t, rec.Body.String(), "Self assessment approved")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadScopesToUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE notifications SET read_at").
		WithArgs("emp-1", "n-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec := httptest.NewRecorder()
	newRouter(mock).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/notifications/n-1/read", nil), "emp-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRequiresUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := httptest.NewRecorder()
	newRouter(mock).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
