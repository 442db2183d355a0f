package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bugtracker-service/internal/auth"
	"bugtracker-service/internal/logger"
	"bugtracker-service/internal/metrics"
	"bugtracker-service/internal/user"
	"bugtracker-service/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*user.User)(nil), (*auth.RefreshToken)(nil))

	m := metrics.NewMock()
	userRepo := user.NewRepository(pgContainer.DB, m)
	authRepo := auth.NewRepository(pgContainer.DB, m)
	tokens := auth.NewTokenManager("test-secret", time.Hour, 48*time.Hour)
	service := auth.NewService(authRepo, userRepo, tokens)
	handler := auth.NewHandler(service, logger.New())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	post := func(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
		t.Helper()
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	register := map[string]any{
		"name":      "Alice",
		"email":     "alice@example.com",
		"password":  "password123",
		"password2": "password123",
		"role":      "qa",
	}

	t.Run("Register", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		w := post(t, "/auth/register", register)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		require.NotNil(t, resp.User)
		assert.Equal(t, "alice@example.com", resp.User.Email)
		assert.Equal(t, user.RoleQA, resp.User.Role)
		assert.True(t, resp.User.IsActive)
	})

	t.Run("RegisterDuplicateEmail", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		require.Equal(t, http.StatusCreated, post(t, "/auth/register", register).Code)
		assert.Equal(t, http.StatusConflict, post(t, "/auth/register", register).Code)
	})

	t.Run("RegisterPasswordMismatch", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		bad := map[string]any{
			"name":      "Bob",
			"email":     "bob@example.com",
			"password":  "password123",
			"password2": "different456",
		}
		assert.Equal(t, http.StatusBadRequest, post(t, "/auth/register", bad).Code)
	})

	t.Run("RegisterUnknownRole", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		bad := map[string]any{
			"name":      "Bob",
			"email":     "bob@example.com",
			"password":  "password123",
			"password2": "password123",
			"role":      "admin",
		}
		assert.Equal(t, http.StatusBadRequest, post(t, "/auth/register", bad).Code)
	})

	t.Run("RegisterShortPassword", func(t *testing.T) {
		bad := map[string]any{
			"name":      "Bob",
			"email":     "bob@example.com",
			"password":  "short",
			"password2": "short",
		}
		assert.Equal(t, http.StatusBadRequest, post(t, "/auth/register", bad).Code)
	})

	t.Run("Login", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")
		require.Equal(t, http.StatusCreated, post(t, "/auth/register", register).Code)

		w := post(t, "/auth/token", map[string]any{
			"email":    "alice@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.AccessToken)

		claims, err := tokens.ValidateAccessToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Email)
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")
		require.Equal(t, http.StatusCreated, post(t, "/auth/register", register).Code)

		w := post(t, "/auth/token", map[string]any{
			"email":    "alice@example.com",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("LoginUnknownEmail", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		w := post(t, "/auth/token", map[string]any{
			"email":    "nobody@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RefreshRotatesToken", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		w := post(t, "/auth/register", register)
		require.Equal(t, http.StatusCreated, w.Code)
		var first auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&first))

		w = post(t, "/auth/token/refresh", map[string]any{"refreshToken": first.RefreshToken})
		require.Equal(t, http.StatusOK, w.Code)
		var second auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

		// the consumed token is gone
		w = post(t, "/auth/token/refresh", map[string]any{"refreshToken": first.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RefreshInvalidToken", func(t *testing.T) {
		w := post(t, "/auth/token/refresh", map[string]any{"refreshToken": "not-a-token"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Logout", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users", "refresh_tokens")

		w := post(t, "/auth/register", register)
		require.Equal(t, http.StatusCreated, w.Code)
		var resp auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

		w = post(t, "/auth/logout", map[string]any{"refreshToken": resp.RefreshToken})
		require.Equal(t, http.StatusNoContent, w.Code)

		w = post(t, "/auth/token/refresh", map[string]any{"refreshToken": resp.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
