package bug_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"bugtracker-service/internal/bug"
	"bugtracker-service/internal/logger"
	"bugtracker-service/internal/mailer"
	"bugtracker-service/internal/metrics"
	"bugtracker-service/internal/notification"
	"bugtracker-service/internal/project"
	"bugtracker-service/internal/user"
	"bugtracker-service/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testEnv struct {
	db       *bun.DB
	router   chi.Router
	recorder *mailer.Recorder

	manager *user.User
	qa      *user.User
	dev     *user.User
	proj    *project.Project
}

func (env *testEnv) serveAs(u *user.User, req *http.Request) *httptest.ResponseRecorder {
	ident := user.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req.WithContext(user.WithIdentity(req.Context(), ident)))
	return w
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// seedEnv wipes the tables and recreates the standing cast: a manager who
// owns a project, plus a QA and a developer enrolled in it.
func seedEnv(t *testing.T, pgContainer *testdb.PostgresContainer) *testEnv {
	t.Helper()
	testdb.CleanupTables(t, pgContainer.DB, "users", "projects", "project_members", "bugs", "notifications")

	m := metrics.NewMock()
	recorder := mailer.NewRecorder()
	log := logger.New()

	userRepo := user.NewRepository(pgContainer.DB, m)
	projectRepo := project.NewRepository(pgContainer.DB, m)
	bugRepo := bug.NewRepository(pgContainer.DB, m)
	notificationRepo := notification.NewRepository(pgContainer.DB, m)
	dispatcher := notification.NewDispatcher(notificationRepo, recorder, nil, log)

	service := bug.NewService(bugRepo, projectRepo, userRepo, dispatcher)
	handler := bug.NewHandler(service, log)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	env := &testEnv{db: pgContainer.DB, router: router, recorder: recorder}

	ctx := context.Background()
	newUser := func(name, email string, role user.Role) *user.User {
		u := &user.User{Name: name, Email: email, Role: role, Password: "x", IsActive: true}
		_, err := pgContainer.DB.NewInsert().Model(u).Exec(ctx)
		require.NoError(t, err)
		return u
	}
	env.manager = newUser("Mia", "mia@example.com", user.RoleManager)
	env.qa = newUser("Quinn", "quinn@example.com", user.RoleQA)
	env.dev = newUser("Dan", "dan@example.com", user.RoleDeveloper)

	env.proj = &project.Project{Name: "Alpha", ManagerID: env.manager.ID}
	_, err := pgContainer.DB.NewInsert().Model(env.proj).Exec(ctx)
	require.NoError(t, err)

	for _, uid := range []int64{env.manager.ID, env.qa.ID, env.dev.ID} {
		member := &project.ProjectMember{ProjectID: env.proj.ID, UserID: uid}
		_, err := pgContainer.DB.NewInsert().Model(member).Exec(ctx)
		require.NoError(t, err)
	}
	return env
}

func TestBugHandler(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t,
		(*user.User)(nil),
		(*project.Project)(nil),
		(*project.ProjectMember)(nil),
		(*bug.Bug)(nil),
		(*notification.Notification)(nil),
	)

	t.Run("QACreatesBugWithAssignee", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Crash on load",
			"type":        "bug",
			"status":      "new",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusCreated, w.Code)

		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, env.qa.ID, created.CreatorID)
		require.NotNil(t, created.AssigneeID)
		assert.Equal(t, env.dev.ID, *created.AssigneeID)

		// assignment notification row plus an email attempt
		var notes []notification.Notification
		err := env.db.NewSelect().Model(&notes).Where("user_id = ?", env.dev.ID).Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, notification.TypeBugAssignment, notes[0].Type)

		require.Len(t, env.recorder.SentTo("dan@example.com"), 1)
	})

	t.Run("EmailFailureFailsTheRequest", func(t *testing.T) {
		env := seedEnv(t, pgContainer)
		env.recorder.Err = errors.New("smtp connection refused")

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Crash on load",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusInternalServerError, w.Code)

		// the bug and the in-app notification were written before the send
		ctx := context.Background()
		bugs, err := env.db.NewSelect().Model((*bug.Bug)(nil)).
			Where("title = ?", "Crash on load").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, bugs)

		notes, err := env.db.NewSelect().Model((*notification.Notification)(nil)).
			Where("user_id = ?", env.dev.ID).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, notes)
	})

	t.Run("UnknownAssigneeIsIgnored", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Orphan bug",
			"assignee_id": 99999,
		}))
		require.Equal(t, http.StatusCreated, w.Code)

		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Nil(t, created.AssigneeID)
		assert.Empty(t, env.recorder.Messages)
	})

	t.Run("CreateDefaultsToNewBug", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "No type given",
		}))
		require.Equal(t, http.StatusCreated, w.Code)

		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, bug.TypeBug, created.Type)
		assert.Equal(t, bug.StatusNew, created.Status)
	})

	t.Run("NonMemberRejectedBeforeRole", func(t *testing.T) {
		env := seedEnv(t, pgContainer)
		outsider := &user.User{Name: "Olga", Email: "olga@example.com", Role: user.RoleQA, Password: "x", IsActive: true}
		_, err := env.db.NewInsert().Model(outsider).Exec(context.Background())
		require.NoError(t, err)

		w := env.serveAs(outsider, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Outsider bug",
		}))
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "not assigned to this project")
	})

	t.Run("MemberWithoutQARoleRejected", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.dev, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Dev bug",
		}))
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "only QA")
	})

	t.Run("IllegalStatusForType", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Completed bug",
			"type":    "bug",
			"status":  "completed",
		}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid status")
	})

	t.Run("DuplicateTitleInProjectIsConflict", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		payload := map[string]any{"project": env.proj.ID, "title": "Crash on load"}
		require.Equal(t, http.StatusCreated,
			env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", payload)).Code)
		assert.Equal(t, http.StatusConflict,
			env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", payload)).Code)
	})

	t.Run("ListScopedByRole", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Assigned bug",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		w = env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Unassigned bug",
		}))
		require.Equal(t, http.StatusCreated, w.Code)

		list := func(u *user.User) []bug.Bug {
			w := env.serveAs(u, httptest.NewRequest(http.MethodGet, "/bugs", nil))
			require.Equal(t, http.StatusOK, w.Code)
			var out []bug.Bug
			require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
			return out
		}

		assert.Len(t, list(env.manager), 2) // manages the project
		assert.Len(t, list(env.qa), 2)      // created both
		assert.Len(t, list(env.dev), 1)     // assigned one
	})

	t.Run("DeveloperUpdatesOwnAssignment", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Assigned bug",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		w = env.serveAs(env.dev, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID),
			map[string]any{"status": "started"}))
		require.Equal(t, http.StatusOK, w.Code)
		var updated bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, bug.StatusStarted, updated.Status)
	})

	t.Run("DeveloperCannotUpdateOthersBug", func(t *testing.T) {
		env := seedEnv(t, pgContainer)
		otherDev := &user.User{Name: "Dee", Email: "dee@example.com", Role: user.RoleDeveloper, Password: "x", IsActive: true}
		_, err := env.db.NewInsert().Model(otherDev).Exec(context.Background())
		require.NoError(t, err)
		member := &project.ProjectMember{ProjectID: env.proj.ID, UserID: otherDev.ID}
		_, err = env.db.NewInsert().Model(member).Exec(context.Background())
		require.NoError(t, err)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Assigned bug",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		w = env.serveAs(otherDev, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID),
			map[string]any{"status": "started"}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("UpdateStatusValidatedAgainstMergedType", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Feature request",
			"type":    "feature",
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		// resolved is a bug status, never a feature one
		w = env.serveAs(env.qa, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID),
			map[string]any{"status": "resolved"}))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = env.serveAs(env.qa, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID),
			map[string]any{"status": "completed"}))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("AttachmentChangesAreDeveloperOnly", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Assigned bug",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		attachment := map[string]any{"bug_attachment": map[string]any{"path": "bug_attachments/shot.png"}}

		w = env.serveAs(env.qa, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID), attachment))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = env.serveAs(env.dev, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID), attachment))
		require.Equal(t, http.StatusOK, w.Code)
		var updated bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, "bug_attachments/shot.png", updated.Attachment["path"])
	})

	t.Run("ReassignmentNotifiesNewAssignee", func(t *testing.T) {
		env := seedEnv(t, pgContainer)
		otherDev := &user.User{Name: "Dee", Email: "dee@example.com", Role: user.RoleDeveloper, Password: "x", IsActive: true}
		_, err := env.db.NewInsert().Model(otherDev).Exec(context.Background())
		require.NoError(t, err)
		member := &project.ProjectMember{ProjectID: env.proj.ID, UserID: otherDev.ID}
		_, err = env.db.NewInsert().Model(member).Exec(context.Background())
		require.NoError(t, err)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project":     env.proj.ID,
			"title":       "Assigned bug",
			"assignee_id": env.dev.ID,
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		env.recorder.Messages = nil

		w = env.serveAs(env.qa, jsonRequest(t, http.MethodPatch, "/bugs/"+itoa(created.ID),
			map[string]any{"assignee_id": otherDev.ID}))
		require.Equal(t, http.StatusOK, w.Code)

		require.Len(t, env.recorder.SentTo("dee@example.com"), 1)
		assert.Empty(t, env.recorder.SentTo("dan@example.com"))
	})

	t.Run("OutOfScopeBugIsNotFound", func(t *testing.T) {
		env := seedEnv(t, pgContainer)
		outsider := &user.User{Name: "Olga", Email: "olga@example.com", Role: user.RoleQA, Password: "x", IsActive: true}
		_, err := env.db.NewInsert().Model(outsider).Exec(context.Background())
		require.NoError(t, err)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Private bug",
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		w = env.serveAs(outsider, httptest.NewRequest(http.MethodGet, "/bugs/"+itoa(created.ID), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ManagerDeletesBugInOwnProject", func(t *testing.T) {
		env := seedEnv(t, pgContainer)

		w := env.serveAs(env.qa, jsonRequest(t, http.MethodPost, "/bugs", map[string]any{
			"project": env.proj.ID,
			"title":   "Doomed bug",
		}))
		require.Equal(t, http.StatusCreated, w.Code)
		var created bug.Bug
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		w = env.serveAs(env.manager, httptest.NewRequest(http.MethodDelete, "/bugs/"+itoa(created.ID), nil))
		require.Equal(t, http.StatusNoContent, w.Code)

		count, err := env.db.NewSelect().Model((*bug.Bug)(nil)).Where("id = ?", created.ID).Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
