package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/auth"
	"github.com/lexvault/lexvault/internal/observability"
	"github.com/lexvault/lexvault/internal/repository"
)

func newAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	users := repository.NewUserRepository(db)
	tokens := auth.NewTokenManager([]byte("test-secret"), "lexvault", time.Hour)
	handler := NewAuthHandler(users, tokens, observability.NewNoopLogger())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/signup", handler.Signup)
	router.POST("/auth/login", handler.Login)
	return router, mock
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestSignup(t *testing.T) {
	router, mock := newAuthRouter(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(router, "/auth/signup", SignupRequest{
		Email:    "new@example.com",
		Password: "password123",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupValidation(t *testing.T) {
	router, _ := newAuthRouter(t)

	// Not an email.
	w := postJSON(router, "/auth/signup", SignupRequest{Email: "not-an-email", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Too short a password.
	w = postJSON(router, "/auth/signup", SignupRequest{Email: "a@example.com", Password: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	router, mock := newAuthRouter(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505"})

	w := postJSON(router, "/auth/signup", SignupRequest{
		Email:    "dup@example.com",
		Password: "password123",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	router, mock := newAuthRouter(t)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash"}).
		AddRow(uuid.New(), "user@example.com", hash)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`)).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	w := postJSON(router, "/auth/login", LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func TestLoginWrongPassword(t *testing.T) {
	router, mock := newAuthRouter(t)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash"}).
		AddRow(uuid.New(), "user@example.com", hash)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`)).
		WillReturnRows(rows)

	w := postJSON(router, "/auth/login", LoginRequest{
		Email:    "user@example.com",
		Password: "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	router, mock := newAuthRouter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}))

	w := postJSON(router, "/auth/login", LoginRequest{
		Email:    "missing@example.com",
		Password: "password123",
	})

	// Same response as a bad password so account existence stays private.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
