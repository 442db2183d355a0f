package notification_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"bugtracker-service/internal/logger"
	"bugtracker-service/internal/metrics"
	"bugtracker-service/internal/notification"
	"bugtracker-service/internal/user"
	"bugtracker-service/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationHandler(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*notification.Notification)(nil))

	repo := notification.NewRepository(pgContainer.DB, metrics.NewMock())
	handler := notification.NewHandler(repo, logger.New())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	alice := user.Identity{UserID: 1, Email: "alice@example.com", Role: user.RoleQA}
	bob := user.Identity{UserID: 2, Email: "bob@example.com", Role: user.RoleDeveloper}

	serveAs := func(ident user.Identity, req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req.WithContext(user.WithIdentity(req.Context(), ident)))
		return w
	}

	create := func(t *testing.T, ident user.Identity, title string) notification.Notification {
		t.Helper()
		body, err := json.Marshal(map[string]any{
			"notification_type": "bug_assignment",
			"title":             title,
			"message":           "check it out",
		})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(body))
		w := serveAs(ident, req)
		require.Equal(t, http.StatusCreated, w.Code)

		var created notification.Notification
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		return created
	}

	t.Run("CreateOwnedByCaller", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "notifications")

		created := create(t, alice, "New bug for you")
		assert.Equal(t, alice.UserID, created.UserID)
		assert.False(t, created.IsRead)
	})

	t.Run("CreateUnknownTypeRejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"notification_type": "spam",
			"title":             "t",
			"message":           "m",
		})
		req := httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, serveAs(alice, req).Code)
	})

	t.Run("ListOnlyOwnNewestFirst", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "notifications")

		create(t, alice, "first")
		create(t, alice, "second")
		create(t, bob, "not yours")

		w := serveAs(alice, httptest.NewRequest(http.MethodGet, "/notifications", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var list []notification.Notification
		require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
		require.Len(t, list, 2)
		assert.Equal(t, "second", list[0].Title)
		assert.Equal(t, "first", list[1].Title)
	})

	t.Run("MarkRead", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "notifications")

		created := create(t, alice, "unread")

		w := serveAs(alice, httptest.NewRequest(http.MethodPost,
			"/notifications/"+strconv.FormatInt(created.ID, 10)+"/read", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var stored notification.Notification
		err := pgContainer.DB.NewSelect().Model(&stored).Where("id = ?", created.ID).Scan(context.Background())
		require.NoError(t, err)
		assert.True(t, stored.IsRead)
	})

	t.Run("MarkReadCrossUserIsNotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "notifications")

		created := create(t, alice, "private")

		w := serveAs(bob, httptest.NewRequest(http.MethodPost,
			"/notifications/"+strconv.FormatInt(created.ID, 10)+"/read", nil))
		require.Equal(t, http.StatusNotFound, w.Code)

		// the row is untouched
		var stored notification.Notification
		err := pgContainer.DB.NewSelect().Model(&stored).Where("id = ?", created.ID).Scan(context.Background())
		require.NoError(t, err)
		assert.False(t, stored.IsRead)
	})

	t.Run("MarkReadMissingIdIsNotFound", func(t *testing.T) {
		w := serveAs(alice, httptest.NewRequest(http.MethodPost, "/notifications/99999/read", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("CountUnread", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "notifications")

		create(t, alice, "one")
		two := create(t, alice, "two")

		n, err := repo.CountUnread(context.Background(), alice.UserID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, repo.MarkRead(context.Background(), alice.UserID, two.ID))
		n, err = repo.CountUnread(context.Background(), alice.UserID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
