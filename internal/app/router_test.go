package app

import (
	"assessment_backend/internal/config"
	"assessment_backend/internal/model"
	"assessment_backend/internal/util"
	"assessment_backend/pkg/database"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testSecret},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Assessment: config.AssessmentConfig{
			TimeToleranceSeconds: 2,
			LateSubmissionPolicy: config.LatePolicyCap,
			ApproximateYears:     1,
			StartRetries:         3,
		},
	}
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	a := &App{Config: cfg, DB: db}
	repos := a.initRepositories(db, nil)
	s := a.initServices(repos, cfg, db)
	a.services = s
	t.Cleanup(func() {
		s.progress.Stop()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	router := gin.New()
	a.registerRoutes(router, a.initControllers(s, db, nil), cfg)
	return router
}

func token(t *testing.T, userID string, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func call(t *testing.T, r *gin.Engine, method, path, auth string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestQuizFlowOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	teacher := token(t, "teacher-1", model.Teacher)
	learner := token(t, "learner-1", model.Student)

	quiz := map[string]any{
		"title":        "Capitals",
		"kind":         "QUIZ",
		"maxAttempts":  2,
		"passingScore": 80,
		"items": []map[string]any{
			{"id": "q1", "type": "MULTIPLE_CHOICE", "spec": map[string]any{"options": []string{"Paris", "Rome"}, "correctIndex": 0}},
			{"id": "q2", "type": "TRUE_FALSE", "spec": map[string]any{"correct": true}},
		},
	}

	code, _ := call(t, r, http.MethodPost, "/api/admin/contents", learner, quiz)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := call(t, r, http.MethodPost, "/api/admin/contents", teacher, quiz)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var content struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &content))

	code, env = call(t, r, http.MethodGet, "/api/contents/"+content.ID, learner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "correctIndex")

	code, env = call(t, r, http.MethodPost, "/api/contents/"+content.ID+"/attempts", learner, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var started struct {
		Attempt struct {
			ID            string `json:"id"`
			AttemptNumber int    `json:"attemptNumber"`
		} `json:"attempt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, 1, started.Attempt.AttemptNumber)
	attemptPath := "/api/attempts/" + started.Attempt.ID

	code, env = call(t, r, http.MethodPost, attemptPath+"/submit", learner, map[string]any{
		"responses": map[string]any{"q1": "first"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Message, "q1")

	code, _ = call(t, r, http.MethodPost, attemptPath+"/submit", token(t, "learner-2", model.Student), map[string]any{})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = call(t, r, http.MethodPost, attemptPath+"/submit", learner, map[string]any{
		"responses": map[string]any{"q1": 0, "q2": false},
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var result struct {
		Status            string  `json:"status"`
		Score             float64 `json:"score"`
		AttemptsRemaining int     `json:"attemptsRemaining"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "GRADED", result.Status)
	assert.Equal(t, 50.0, result.Score)
	assert.Equal(t, 1, result.AttemptsRemaining)

	code, _ = call(t, r, http.MethodPost, "/api/admin/attempts/"+started.Attempt.ID+"/grade", teacher, map[string]any{"grade": 90})
	assert.Equal(t, http.StatusBadRequest, code, "quizzes are not graded manually")

	code, _ = call(t, r, http.MethodPost, "/api/contents/"+content.ID+"/attempts", learner, nil)
	assert.Equal(t, http.StatusCreated, code)
	code, env = call(t, r, http.MethodPost, "/api/contents/"+content.ID+"/attempts", learner, nil)
	assert.Equal(t, http.StatusConflict, code, env.Message)

	code, _ = call(t, r, http.MethodGet, "/api/contents/"+content.ID+"/attempts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestContentValidationOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	teacher := token(t, "teacher-1", model.Teacher)

	code, _ := call(t, r, http.MethodPost, "/api/admin/contents", teacher, map[string]any{
		"title": "Mixed",
		"kind":  "QUIZ",
		"items": []map[string]any{
			{"id": "d1", "type": "DRAG_DROP", "spec": map[string]any{"targets": []string{"a"}, "placements": map[string]int{"x": 0}}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, code, "interactive items do not belong in a quiz")

	code, env := call(t, r, http.MethodPost, "/api/admin/contents", teacher, map[string]any{
		"title": "Unknown",
		"kind":  "QUIZ",
		"items": []map[string]any{
			{"id": "e1", "type": "ESSAY", "spec": map[string]any{}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "itemtype")

	code, _ = call(t, r, http.MethodPost, "/api/admin/contents", teacher, map[string]any{
		"title": "Poll",
		"kind":  "SURVEY",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodGet, "/api/admin/contents/"+uuid.NewString(), teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
