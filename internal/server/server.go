package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ecoguard/internal/lifecycle"
	"ecoguard/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// Store is the read side and the small writes the API performs directly.
type Store interface {
	Report(ctx context.Context, reportID string, forUpdate bool) (*types.Report, error)
	Reports(ctx context.Context, filter types.ReportFilter) ([]*types.Report, error)
	ReportsByIDs(ctx context.Context, reportIDs []string, filter types.ReportFilter) ([]*types.Report, error)

	Profile(ctx context.Context, userID string) (*types.Profile, error)
	Candidate(ctx context.Context, candidateType types.CandidateType, id string) (*types.RoutingCandidate, error)
	RepEntityForUser(ctx context.Context, candidateType types.CandidateType, userID string) (string, error)

	LatestAssignment(ctx context.Context, reportID string) (*types.AssignedReport, error)
	AssignedReportIDs(ctx context.Context, organizationID string) ([]string, error)
	AssignmentMetrics(ctx context.Context, organizationID string) (*types.AssignmentMetrics, error)

	EnqueueEvent(ctx context.Context, event *types.OutboxEvent) error

	RegisterToken(ctx context.Context, userID, token string) error
	NotificationsByUser(ctx context.Context, userID string, unreadOnly bool, limit uint64) ([]*types.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

type Engine interface {
	Submit(ctx context.Context, input lifecycle.NewReport) (*types.Report, error)
	Transition(ctx context.Context, req lifecycle.TransitionRequest) (*types.Report, error)
	Reject(ctx context.Context, actorID, reportID, reason string) (*types.Report, error)
	Resolve(ctx context.Context, actorID, reportID string, resolution lifecycle.Resolution) (*types.Report, error)
	Assign(ctx context.Context, actorID, reportID, organizationID string) (*types.Report, error)
	Escalate(ctx context.Context, actorID, reportID, agencyID string) (*types.Report, error)
	Close(ctx context.Context, actorID, reportID, notes string) (*types.Report, error)
	History(ctx context.Context, reportID string) ([]*types.ReportHistory, error)
}

type Router interface {
	FindCandidates(ctx context.Context, queryText string, candidateType types.CandidateType) ([]types.Candidate, error)
	IndexCandidate(ctx context.Context, candidate types.RoutingCandidate) (int, error)
}

// Feed upgrades a request into a change feed subscription.
type Feed interface {
	ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, userID, reportID string) error
}

type Service struct {
	logger logrus.FieldLogger
	config *types.Config

	store  Store
	engine Engine
	router Router
	feed   Feed
	auth   Authenticator

	// ctx outlives individual requests; websocket pumps run on it.
	ctx    context.Context
	cancel context.CancelFunc

	handler http.Handler
	server  *http.Server
}

func New(
	config *types.Config,
	logger logrus.FieldLogger,
	store Store,
	engine Engine,
	router Router,
	feed Feed,
	auth Authenticator,
) *Service {
	mux := flow.New()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		logger: logger.WithField("component", "http"),
		config: config,
		store:  store,
		engine: engine,
		router: router,
		feed:   feed,
		auth:   auth,
		ctx:    ctx,
		cancel: cancel,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)
	s.handler = mux

	return s
}

func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/v1/reports", s.handleSubmitReport, http.MethodPost)
		r.HandleFunc("/v1/reports", s.requireRole(s.handleListReports, types.RoleOfficer), http.MethodGet)
		r.HandleFunc("/v1/reports/:id", s.handleGetReport, http.MethodGet)
		r.HandleFunc("/v1/reports/:id/history", s.handleReportHistory, http.MethodGet)
		r.HandleFunc("/v1/reports/:id/candidates", s.requireRole(s.handleReportCandidates, types.RoleOfficer), http.MethodGet)

		r.HandleFunc("/v1/reports/:id/transitions", s.requireRole(s.handleTransition, types.RoleOfficer), http.MethodPost)
		r.HandleFunc("/v1/reports/:id/reject", s.requireRole(s.handleReject, types.RoleOfficer), http.MethodPost)
		r.HandleFunc("/v1/reports/:id/resolve", s.requireRole(s.handleResolve, types.RoleOfficer, types.RoleOrgRep), http.MethodPost)
		r.HandleFunc("/v1/reports/:id/assign", s.requireRole(s.handleAssign, types.RoleOfficer), http.MethodPost)
		r.HandleFunc("/v1/reports/:id/escalate", s.requireRole(s.handleEscalate, types.RoleOfficer), http.MethodPost)
		r.HandleFunc("/v1/reports/:id/close", s.requireRole(s.handleClose, types.RoleAdmin), http.MethodPost)

		r.HandleFunc("/v1/candidates", s.requireRole(s.handleFindCandidates, types.RoleOfficer), http.MethodGet)
		r.HandleFunc("/v1/organizations/:id/index", s.requireRole(s.handleIndexOrganization, types.RoleAdmin), http.MethodPost)
		r.HandleFunc("/v1/agencies/:id/index", s.requireRole(s.handleIndexAgency, types.RoleAdmin), http.MethodPost)
		r.HandleFunc("/v1/organizations/:id/reports", s.requireRole(s.handleOrganizationReports, types.RoleOfficer, types.RoleOrgRep), http.MethodGet)
		r.HandleFunc("/v1/organizations/:id/metrics", s.requireRole(s.handleOrganizationMetrics, types.RoleOfficer, types.RoleOrgRep), http.MethodGet)
		r.HandleFunc("/v1/organizations/:id/export", s.requireRole(s.handleOrganizationExport, types.RoleOfficer, types.RoleOrgRep), http.MethodGet)

		r.HandleFunc("/v1/broadcasts", s.requireRole(s.handleBroadcast, types.RoleOfficer), http.MethodPost)
		r.HandleFunc("/v1/push-tokens", s.handleRegisterPushToken, http.MethodPost)
		r.HandleFunc("/v1/notifications", s.handleListNotifications, http.MethodGet)
		r.HandleFunc("/v1/notifications/unread-count", s.handleUnreadCount, http.MethodGet)
		r.HandleFunc("/v1/notifications/:id/read", s.handleMarkNotificationRead, http.MethodPost)

		r.HandleFunc("/v1/feed", s.handleFeed, http.MethodGet)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
