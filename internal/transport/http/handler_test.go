package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/infra/memory"
	"intelliquiz-engine/internal/platform/logger"
)

const testSecret = "test-secret"

type fixture struct {
	router *gin.Engine
	ledger *memory.UserLedger
	hub    *app.LeaderboardHub
	alice  domain.UserStanding
	bob    domain.UserStanding
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := logger.Nop()

	ledger := memory.NewUserLedger()
	alice, _ := ledger.CreateUser(ctx, "alice", "ROLE_STUDENT")
	bob, _ := ledger.CreateUser(ctx, "bob", "ROLE_TEACHER")
	attempts := memory.NewAttemptStore()

	ranker := app.NewLeaderboardRanker(memory.NewLeaderboardCache(ledger, time.Minute))
	hub := app.NewLeaderboardHub()
	engine := app.NewGamificationEngine(ledger, app.DefaultGamificationRules(), log)
	submissions := app.NewSubmissionService(attempts, ledger, engine, log, app.WithLeaderboardStream(ranker, hub, 5))
	analytics := app.NewAnalyticsService(attempts, ledger, 0, 0, log)

	var auth *JWTAuth
	if withAuth {
		auth = NewJWTAuth(testSecret, "intelliquiz", log)
	}
	h := NewHandler(submissions, analytics, ranker, 10, log)
	router := NewRouter(h, NewStreamHandler(ranker, hub, 5, log), auth, log)
	return &fixture{router: router, ledger: ledger, hub: hub, alice: alice, bob: bob}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitQuizEndpoint(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/quiz/submit", map[string]any{
		"userId":     f.alice.UserID,
		"topic":      "Math",
		"difficulty": "medium",
		"answers":    answersJSON(8, 10),
		"timeTaken":  120,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res domain.SubmissionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Score != 80 || res.NextLevel != domain.DifficultyHard || !res.GamificationApplied || res.Gamification.PointsAwarded != 50 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitQuizErrors(t *testing.T) {
	f := newFixture(t, false)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"empty answers", map[string]any{"userId": f.alice.UserID, "answers": []any{}}, http.StatusBadRequest, "invalid_input"},
		{"bad difficulty", map[string]any{"userId": f.alice.UserID, "difficulty": "expert", "answers": answersJSON(1, 1)}, http.StatusBadRequest, "invalid_difficulty"},
		{"no user", map[string]any{"answers": answersJSON(1, 1)}, http.StatusBadRequest, "invalid_input"},
		{"unknown user", map[string]any{"userId": 999, "answers": answersJSON(1, 1)}, http.StatusNotFound, "user_not_found"},
		{"malformed", "not an object", http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/quiz/submit", tc.body, "")
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var env errorEnvelope
			_ = json.Unmarshal(rec.Body.Bytes(), &env)
			if env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, env)
			}
		})
	}
}

func TestSubmitQuizPrefersTokenPrincipal(t *testing.T) {
	f := newFixture(t, true)

	token := signToken(t, "bob", "intelliquiz", time.Hour)
	rec := f.do(t, http.MethodPost, "/quiz/submit", map[string]any{
		"userId":  f.alice.UserID,
		"answers": answersJSON(1, 1),
	}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res domain.SubmissionResult
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.UserID != f.bob.UserID {
		t.Fatalf("expected bob, got user %d", res.UserID)
	}
}

func TestRejectsBadTokens(t *testing.T) {
	f := newFixture(t, true)

	cases := map[string]string{
		"expired":      signToken(t, "bob", "intelliquiz", -time.Minute),
		"wrong issuer": signToken(t, "bob", "someone-else", time.Hour),
		"garbage":      "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/leaderboard", nil, token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPost, "/quiz/submit", map[string]any{"userId": f.bob.UserID, "answers": answersJSON(1, 1)}, "")

	rec := f.do(t, http.MethodGet, "/leaderboard?limit=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []domain.LeaderboardEntry
	_ = json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].Username != "bob" || entries[0].Points != 50 {
		t.Fatalf("unexpected board %+v", entries)
	}

	rec = f.do(t, http.MethodGet, "/leaderboard?role=ROLE_STUDENT", nil, "")
	_ = json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].Username != "alice" {
		t.Fatalf("unexpected student board %+v", entries)
	}

	for _, q := range []string{"0", "-1", "ten"} {
		if rec := f.do(t, http.MethodGet, "/leaderboard?limit="+q, nil, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestAttemptsAnalyticsAndPurge(t *testing.T) {
	f := newFixture(t, false)
	for _, topic := range []string{"Math", "Art", "Math"} {
		f.do(t, http.MethodPost, "/quiz/submit", map[string]any{"userId": f.alice.UserID, "topic": topic, "answers": answersJSON(1, 2)}, "")
	}

	rec := f.do(t, http.MethodGet, "/quiz/attempts/1?topic=Math", nil, "")
	var attempts []domain.Attempt
	_ = json.Unmarshal(rec.Body.Bytes(), &attempts)
	if rec.Code != http.StatusOK || len(attempts) != 2 {
		t.Fatalf("expected 2 Math attempts, got %d (%d)", len(attempts), rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/analytics/student/1", nil, "")
	var analytics domain.StudentAnalytics
	_ = json.Unmarshal(rec.Body.Bytes(), &analytics)
	if rec.Code != http.StatusOK || analytics.AverageScore != 50 || len(analytics.TopicAnalytics) != 2 {
		t.Fatalf("unexpected analytics %+v (%d)", analytics, rec.Code)
	}

	if rec := f.do(t, http.MethodGet, "/analytics/student/abc", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/analytics/student/77", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/admin/users/1/attempts", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/quiz/attempts/1", nil, "")
	_ = json.Unmarshal(rec.Body.Bytes(), &attempts)
	if len(attempts) != 0 {
		t.Fatalf("expected empty history after purge, got %d", len(attempts))
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	f := newFixture(t, true)

	if rec := f.do(t, http.MethodDelete, "/admin/users/1/attempts", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	student := signToken(t, "alice", "intelliquiz", time.Hour)
	if rec := f.do(t, http.MethodDelete, "/admin/users/1/attempts", nil, student); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}
	admin := signToken(t, "root", "intelliquiz", time.Hour, AdminRole)
	if rec := f.do(t, http.MethodDelete, "/admin/users/1/attempts", nil, admin); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, false)
	if rec := f.do(t, http.MethodGet, "/healthz", nil, ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func signToken(t *testing.T, subject, issuer string, ttl time.Duration, roles ...string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func answersJSON(correct, total int) []map[string]bool {
	out := make([]map[string]bool, total)
	for i := range out {
		out[i] = map[string]bool{"isCorrect": i < correct}
	}
	return out
}
