package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/importer"
	"github.com/recallkit/recall/internal/session"
	"github.com/recallkit/recall/internal/srs"
	"github.com/recallkit/recall/internal/store"
)

const testUser = "local"

var sessionIDRe = regexp.MustCompile(`session=([0-9A-HJKMNP-TV-Z]+)`)

func newTestServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	params := srs.DefaultParams()
	manager := session.NewManager(db, params)
	im := importer.New(db, params, testUser, t.TempDir())

	s, err := NewServer(db, manager, im, Options{User: testUser})
	require.NoError(t, err)
	return s, db
}

func insertDueCard(t *testing.T, db *store.DB, prompt, answer string) domain.Card {
	t.Helper()
	now := time.Now().UTC()
	card := domain.Card{
		ID:          store.NewID(),
		UserID:      testUser,
		Prompt:      prompt,
		Answer:      answer,
		ContentHash: store.NewID(), // unique per card for the test
		CreatedAt:   now,
	}
	state := srs.DefaultParams().NewState(now.Add(-time.Hour))
	require.NoError(t, db.InsertCard(context.Background(), card, state))
	return card
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, s *Server) (string, string) {
	t.Helper()
	w := postForm(t, s, "/session/start", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	m := sessionIDRe.FindStringSubmatch(w.Body.String())
	require.NotNil(t, m, "card front should carry the session id")
	return m[1], w.Body.String()
}

func TestIndexServed(t *testing.T) {
	s, _ := newTestServer(t)
	w := get(t, s, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Recall")
}

func TestDeckShowsDueCount(t *testing.T) {
	s, db := newTestServer(t)
	insertDueCard(t, db, "capital of France?", "Paris")
	insertDueCard(t, db, "capital of Spain?", "Madrid")

	w := get(t, s, "/deck")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Due today: 2")
}

func TestReviewLoop(t *testing.T) {
	s, db := newTestServer(t)
	card := insertDueCard(t, db, "capital of France?", "Paris")

	sessionID, front := startSession(t, s)
	assert.Contains(t, front, "capital of France?")
	assert.NotContains(t, front, "Paris")

	w := get(t, s, "/review/answer/"+card.ID+"?session="+sessionID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Paris")
	assert.Contains(t, w.Body.String(), `value="good"`)

	w = postForm(t, s, "/review/"+card.ID, url.Values{
		"session_id": {sessionID},
		"grade":      {"good"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Session complete")

	cs, err := db.Get(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cs.State.RepetitionCount)
	assert.Equal(t, 1, cs.State.IntervalDays)
}

func TestReviewWritesLog(t *testing.T) {
	s, db := newTestServer(t)
	card := insertDueCard(t, db, "q", "a")

	sessionID, _ := startSession(t, s)
	w := postForm(t, s, "/review/"+card.ID, url.Values{
		"session_id": {sessionID},
		"grade":      {"easy"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := db.GetReviewLogs(context.Background(), card.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int(srs.Easy), logs[0].Rating)
}

func TestReviewRejectsInvalidGrade(t *testing.T) {
	s, db := newTestServer(t)
	card := insertDueCard(t, db, "q", "a")
	sessionID, _ := startSession(t, s)

	w := postForm(t, s, "/review/"+card.ID, url.Values{
		"session_id": {sessionID},
		"grade":      {"perfect"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewRejectsOutOfTurnCard(t *testing.T) {
	s, db := newTestServer(t)
	insertDueCard(t, db, "first", "a")
	later := insertDueCard(t, db, "second", "b")
	sessionID, front := startSession(t, s)
	require.Contains(t, front, "first")

	w := postForm(t, s, "/review/"+later.ID, url.Values{
		"session_id": {sessionID},
		"grade":      {"good"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReviewUnknownSession(t *testing.T) {
	s, db := newTestServer(t)
	card := insertDueCard(t, db, "q", "a")

	w := postForm(t, s, "/review/"+card.ID, url.Values{
		"session_id": {"missing"},
		"grade":      {"good"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseAndResume(t *testing.T) {
	s, db := newTestServer(t)
	card := insertDueCard(t, db, "q", "a")
	sessionID, _ := startSession(t, s)

	w := postForm(t, s, "/session/"+sessionID+"/pause", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "paused")

	// Ratings are rejected while paused.
	w = postForm(t, s, "/review/"+card.ID, url.Values{
		"session_id": {sessionID},
		"grade":      {"good"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postForm(t, s, "/session/"+sessionID+"/resume", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "q")
}

func TestSessionSnapshot(t *testing.T) {
	s, db := newTestServer(t)
	insertDueCard(t, db, "q", "a")
	sessionID, _ := startSession(t, s)

	w := get(t, s, "/session/"+sessionID+"/snapshot")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), sessionID)
}

func TestEmptySessionCompletesImmediately(t *testing.T) {
	s, _ := newTestServer(t)
	w := postForm(t, s, "/session/start", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Session complete")
}

func TestSourcesRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	w := postForm(t, s, "/sources", url.Values{"path": {"/tmp/notes"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/tmp/notes")

	w = get(t, s, "/sources")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/tmp/notes")

	req := httptest.NewRequest(http.MethodDelete, "/sources/1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/tmp/notes")
}

func TestSourcesRejectsEmptyPath(t *testing.T) {
	s, _ := newTestServer(t)
	w := postForm(t, s, "/sources", url.Values{"path": {""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
