package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ecoguard/internal/lifecycle"
	"ecoguard/internal/store/storetest"
	"ecoguard/pkg/types"

	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	keysOnce   sync.Once
	signingKey jwk.Key
	publicKeys jwk.Set
)

func testKeys(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()
	keysOnce.Do(func() {
		raw, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		signingKey, err = jwk.Import(raw)
		require.NoError(t, err)
		require.NoError(t, signingKey.Set(jwk.KeyIDKey, "test-key"))
		require.NoError(t, signingKey.Set(jwk.AlgorithmKey, jwa.RS256()))

		public, err := jwk.Import(&raw.PublicKey)
		require.NoError(t, err)
		require.NoError(t, public.Set(jwk.KeyIDKey, "test-key"))
		require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256()))

		publicKeys = jwk.NewSet()
		require.NoError(t, publicKeys.AddKey(public))
	})
	return signingKey, publicKeys
}

func accessToken(t *testing.T, userID string, expires time.Time) string {
	t.Helper()
	key, _ := testKeys(t)

	token, err := jwt.NewBuilder().Subject(userID).Expiration(expires).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), key))
	require.NoError(t, err)
	return string(signed)
}

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) FindCandidates(ctx context.Context, queryText string, candidateType types.CandidateType) ([]types.Candidate, error) {
	args := m.Called(ctx, queryText, candidateType)
	out, _ := args.Get(0).([]types.Candidate)
	return out, args.Error(1)
}

func (m *MockRouter) IndexCandidate(ctx context.Context, candidate types.RoutingCandidate) (int, error) {
	args := m.Called(ctx, candidate)
	return args.Int(0), args.Error(1)
}

type stubFeed struct {
	userID   string
	reportID string
}

func (f *stubFeed) ServeWS(_ context.Context, w http.ResponseWriter, _ *http.Request, userID, reportID string) error {
	f.userID, f.reportID = userID, reportID
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

type testEnv struct {
	t      *testing.T
	mem    *storetest.Memory
	router *MockRouter
	feed   *stubFeed
	svc    *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	_, keys := testKeys(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	config := &types.Config{ServerPort: 0, CookieName: "eg_access_token"}
	auth, err := NewJWTAuthenticator(config, func(context.Context) (jwk.Set, error) { return keys, nil })
	require.NoError(t, err)

	mem := storetest.New()
	mem.AddProfile("citizen", types.RoleUser)
	mem.AddProfile("officer", types.RoleOfficer)
	mem.AddProfile("admin", types.RoleAdmin)
	mem.AddProfile("rep", types.RoleOrgRep)
	mem.AddProfile("other-rep", types.RoleOrgRep)
	mem.AddCandidate(types.RoutingCandidate{ID: "org-1", Type: types.CandidateTypeOrganization, Name: "River Watch", About: "We clean rivers"})
	mem.AddCandidate(types.RoutingCandidate{ID: "org-2", Type: types.CandidateTypeOrganization, Name: "Green Lagos"})
	mem.AddRep(types.CandidateTypeOrganization, "org-1", "rep", true)
	mem.AddRep(types.CandidateTypeOrganization, "org-2", "other-rep", true)

	engine := lifecycle.New(mem, nil, nil, lifecycle.Options{}, logger)
	router := new(MockRouter)
	feed := &stubFeed{}

	svc := New(config, logger, mem, engine, router, feed, auth)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return &testEnv{t: t, mem: mem, router: router, feed: feed, svc: svc}
}

func (e *testEnv) do(method, path, userID, body string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken(e.t, userID, time.Now().Add(time.Hour)))
	}

	rec := httptest.NewRecorder()
	e.svc.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) putReport(id string, status types.ReportStatus) {
	e.mem.PutReport(types.Report{
		ID:           id,
		ReportNumber: "RP2025010100",
		UserID:       "citizen",
		Title:        "Oil spill",
		Description:  "Oil leaking into the creek behind the market",
		Status:       status,
	})
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, "citizen", time.Now().Add(-time.Minute)))
	rec = httptest.NewRecorder()
	env.svc.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired token")

	req = httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	env.svc.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/notifications?access_token="+accessToken(t, "citizen", time.Now().Add(time.Hour)), nil)
	rec = httptest.NewRecorder()
	env.svc.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionCookieAuthentication(t *testing.T) {
	_, keys := testKeys(t)
	hashKey := securecookie.GenerateRandomKey(32)
	blockKey := securecookie.GenerateRandomKey(32)

	config := &types.Config{
		CookieName:     "eg_access_token",
		CookieHashKey:  b64(hashKey),
		CookieBlockKey: b64(blockKey),
	}
	auth, err := NewJWTAuthenticator(config, func(context.Context) (jwk.Set, error) { return keys, nil })
	require.NoError(t, err)

	encoded, err := securecookie.New(hashKey, blockKey).Encode("eg_access_token", accessToken(t, "citizen", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "eg_access_token", Value: encoded})
	userID, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "citizen", userID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "eg_access_token", Value: "tampered"})
	_, err = auth.Authenticate(req)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

func TestSubmitAndFetchReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/reports", "citizen",
		`{"title":"Burning tyres","description":"Tyres burnt every evening behind the school","latitude":6.5,"longitude":3.3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	report := decode[types.Report](t, rec)
	assert.Equal(t, "citizen", report.UserID)
	assert.Equal(t, types.ReportStatusPending, report.Status)

	rec = env.do(http.MethodGet, "/v1/reports/"+report.ID, "citizen", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/reports/"+report.ID+"/history", "citizen", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]types.ReportHistory](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, lifecycle.SubmittedNotes, history[0].Notes)

	rec = env.do(http.MethodGet, "/v1/reports/missing", "citizen", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/reports", "citizen", `{"title":"x","description":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[errorResponse](t, rec).Field)

	rec = env.do(http.MethodPost, "/v1/reports", "citizen", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.mem.Events())
}

func TestListReportsRequiresOfficer(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusPending)
	env.putReport("r2", types.ReportStatusReceived)

	rec := env.do(http.MethodGet, "/v1/reports", "citizen", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/v1/reports?status=received", "officer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode[[]types.Report](t, rec)
	require.Len(t, reports, 1)
	assert.Equal(t, "r2", reports[0].ID)

	rec = env.do(http.MethodGet, "/v1/reports?status=bogus", "officer", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/v1/reports", "admin", "")
	assert.Equal(t, http.StatusOK, rec.Code, "admins pass role checks")
}

func TestTransitionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusPending)

	rec := env.do(http.MethodPost, "/v1/reports/r1/transitions", "officer", `{"status":"received","notes":"Seen"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.ReportStatusReceived, decode[types.Report](t, rec).Status)

	rec = env.do(http.MethodPost, "/v1/reports/r1/transitions", "officer", `{"status":"active"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/v1/reports/r1/transitions", "officer", `{"status":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/reports/r1/transitions", "citizen", `{"status":"verified"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransitionEndpointRefusesTargetsWithOwnAction(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusReceived)
	env.putReport("r2", types.ReportStatusActive)
	env.putReport("r3", types.ReportStatusPending)

	for _, tc := range []struct{ id, body string }{
		{"r1", `{"status":"rejected","notes":"no"}`},
		{"r2", `{"status":"resolved"}`},
		{"r3", `{"status":"closed"}`},
	} {
		rec := env.do(http.MethodPost, "/v1/reports/"+tc.id+"/transitions", "officer", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
	}

	rec := env.do(http.MethodPost, "/v1/reports/r2/transitions", "rep", `{"status":"resolved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, id := range []string{"r1", "r2", "r3"} {
		report, err := env.mem.Report(context.Background(), id, false)
		require.NoError(t, err)
		assert.NotEqual(t, types.ReportStatusRejected, report.Status)
		assert.NotEqual(t, types.ReportStatusResolved, report.Status)
		assert.NotEqual(t, types.ReportStatusClosed, report.Status)
	}
	assert.Empty(t, env.mem.Rejections())
	assert.Empty(t, env.mem.Resolutions())
}

func TestTransitionEndpointAssignUnknownOrganization(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusVerified)

	rec := env.do(http.MethodPost, "/v1/reports/r1/transitions", "officer", `{"status":"assigned","organizationId":"does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.mem.Assignments())

	rec = env.do(http.MethodPost, "/v1/reports/r1/transitions", "officer", `{"status":"assigned","organizationId":"org-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.mem.Assignments(), 1)
	assert.Equal(t, "org-1", env.mem.Assignments()[0].OrganizationID)
}

func TestRejectAssignEscalateClose(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusReceived)
	env.putReport("r2", types.ReportStatusVerified)
	env.putReport("r3", types.ReportStatusVerified)
	env.mem.AddCandidate(types.RoutingCandidate{ID: "ag-1", Type: types.CandidateTypeAgency, Name: "NESREA"})

	rec := env.do(http.MethodPost, "/v1/reports/r1/reject", "officer", `{"reason":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodPost, "/v1/reports/r1/reject", "officer", `{"reason":"Duplicate of an earlier report"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, env.mem.Rejections(), 1)

	rec = env.do(http.MethodPost, "/v1/reports/r2/assign", "officer", `{"organizationId":"org-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.ReportStatusAssigned, decode[types.Report](t, rec).Status)

	rec = env.do(http.MethodPost, "/v1/reports/r3/escalate", "officer", `{"agencyId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(http.MethodPost, "/v1/reports/r3/escalate", "officer", `{"agencyId":"ag-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/v1/reports/r3/close", "officer", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(http.MethodPost, "/v1/reports/r3/close", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.ReportStatusClosed, decode[types.Report](t, rec).Status)
}

func TestOrgRepResolveOwnAssignmentsOnly(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusVerified)

	rec := env.do(http.MethodPost, "/v1/reports/r1/assign", "officer", `{"organizationId":"org-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resolution := `{"title":"Cleaned","description":"Team removed all the waste from the site","imageKeys":["https://cdn.example/a.jpg"]}`

	rec = env.do(http.MethodPost, "/v1/reports/r1/resolve", "other-rep", resolution)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/v1/reports/r1/transitions", "rep", `{"status":"verified"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/v1/reports/r1/resolve", "rep", resolution)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.ReportStatusResolved, decode[types.Report](t, rec).Status)
	require.Len(t, env.mem.Resolutions(), 1)
	assert.Equal(t, []string{"https://cdn.example/a.jpg"}, env.mem.Resolutions()[0].ImageURLs)
}

func TestCandidateEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusVerified)

	want := []types.Candidate{{ID: "org-1", Name: "River Watch", SimilarityScore: 0.91}}
	env.router.On("FindCandidates", mock.Anything, "Oil leaking into the creek behind the market", types.CandidateTypeOrganization).Return(want, nil).Once()
	env.router.On("FindCandidates", mock.Anything, "plastic waste", types.CandidateTypeAgency).
		Return(nil, &types.RemoteError{Service: "embedding", StatusCode: 503, Message: "overloaded", Retryable: true}).Once()

	rec := env.do(http.MethodGet, "/v1/reports/r1/candidates?type=organization", "officer", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, want, decode[[]types.Candidate](t, rec))

	rec = env.do(http.MethodGet, "/v1/candidates?q=plastic+waste&type=agency", "officer", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "overloaded")

	rec = env.do(http.MethodGet, "/v1/candidates?q=x&type=ngo", "officer", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.router.AssertExpectations(t)
}

func TestIndexCandidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.router.On("IndexCandidate", mock.Anything, mock.MatchedBy(func(c types.RoutingCandidate) bool {
		return c.ID == "org-1" && c.About == "We clean rivers"
	})).Return(1, nil).Once()

	rec := env.do(http.MethodPost, "/v1/organizations/org-1/index", "officer", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/v1/organizations/org-1/index", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, indexResponse{ID: "org-1", Chunks: 1}, decode[indexResponse](t, rec))

	rec = env.do(http.MethodPost, "/v1/agencies/nope/index", "admin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.router.AssertExpectations(t)
}

func TestOrganizationReportsAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusVerified)
	env.putReport("r2", types.ReportStatusVerified)

	rec := env.do(http.MethodPost, "/v1/reports/r1/assign", "officer", `{"organizationId":"org-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/organizations/org-1/reports", "rep", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reports := decode[[]types.Report](t, rec)
	require.Len(t, reports, 1)
	assert.Equal(t, "r1", reports[0].ID)

	rec = env.do(http.MethodGet, "/v1/organizations/org-1/reports", "other-rep", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/v1/organizations/org-1/metrics", "officer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.AssignmentMetrics{Total: 1}, decode[types.AssignmentMetrics](t, rec))

	rec = env.do(http.MethodGet, "/v1/organizations/org-1/export", "rep", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestBroadcastQueuesOutboxEvent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/broadcasts", "citizen", `{"role":"user","title":"Hi","body":"There"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/v1/broadcasts", "officer", `{"role":"wizard","title":"Hi","body":"There"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/broadcasts", "officer", `{"role":"user","title":"Clean-up day","body":"Join us on Saturday"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	events := env.mem.Events()
	require.Len(t, events, 1)
	assert.Equal(t, types.OutboxKindBroadcast, events[0].Kind)
	assert.Equal(t, "officer", events[0].ActorID)

	var payload types.BroadcastPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, types.RoleUser, payload.Role)
	assert.Equal(t, "Clean-up day", payload.Title)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.mem.CreateNotifications(context.Background(), []*types.Notification{
		{UserID: "citizen", Title: "A", Message: "a"},
		{UserID: "citizen", Title: "B", Message: "b"},
		{UserID: "officer", Title: "C", Message: "c"},
	}))
	mine := env.mem.NotificationsFor("citizen")
	require.Len(t, mine, 2)
	theirs := env.mem.NotificationsFor("officer")
	require.Len(t, theirs, 1)

	rec := env.do(http.MethodGet, "/v1/notifications/unread-count", "citizen", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"count": 2}, decode[map[string]int](t, rec))

	rec = env.do(http.MethodPost, "/v1/notifications/"+theirs[0].ID+"/read", "citizen", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "cannot read someone else's notification")

	rec = env.do(http.MethodPost, "/v1/notifications/"+mine[0].ID+"/read", "citizen", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/v1/notifications?unread=true", "citizen", "")
	require.Equal(t, http.StatusOK, rec.Code)
	unread := decode[[]types.Notification](t, rec)
	require.Len(t, unread, 1)
	assert.Equal(t, mine[1].ID, unread[0].ID)

	rec = env.do(http.MethodGet, "/v1/notifications?limit=-1", "citizen", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterPushToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/push-tokens", "citizen", `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/push-tokens", "citizen", `{"token":"ExponentPushToken[abc]"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	tokens, err := env.mem.TokensByUsers(context.Background(), []string{"citizen"})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "ExponentPushToken[abc]", tokens[0].Token)
}

func TestFeedEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r9", types.ReportStatusPending)

	rec := env.do(http.MethodGet, "/v1/feed?report_id=r9", "citizen", "")
	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
	assert.Equal(t, "citizen", env.feed.userID)
	assert.Equal(t, "r9", env.feed.reportID)

	rec = env.do(http.MethodGet, "/v1/feed", "officer", "")
	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
	assert.Equal(t, "officer", env.feed.userID)
	assert.Empty(t, env.feed.reportID)
}

func TestFeedEndpointScopesNonStaff(t *testing.T) {
	env := newTestEnv(t)
	env.putReport("r1", types.ReportStatusVerified)
	env.putReport("r2", types.ReportStatusVerified)

	rec := env.do(http.MethodGet, "/v1/feed", "citizen", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/v1/feed?report_id=r1", "neighbour", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/v1/feed?report_id=missing", "citizen", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/v1/reports/r1/assign", "officer", `{"organizationId":"org-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/v1/feed?report_id=r1", "rep", "")
	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)

	rec = env.do(http.MethodGet, "/v1/feed?report_id=r2", "rep", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, "rep", env.feed.userID)
	assert.Equal(t, "r1", env.feed.reportID)
}

func TestStoreFailureIsInternalError(t *testing.T) {
	env := newTestEnv(t)
	env.mem.Fail("UnreadCount", errors.New("connection refused"))

	rec := env.do(http.MethodGet, "/v1/notifications/unread-count", "citizen", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[errorResponse](t, rec).Error)
}

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
