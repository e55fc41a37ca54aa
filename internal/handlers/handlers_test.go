package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carnumbers/internal/common"
	"carnumbers/internal/jobs"
	"carnumbers/internal/middleware"
	"carnumbers/internal/models"
	"carnumbers/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	guildID  int64 = 900
	memberID int64 = 31
	secret         = "handler-test-secret"
)

type HandlersTestSuite struct {
	suite.Suite
	echo         *echo.Echo
	tokens       services.TokenService
	reservations *MockReservationService
	availability *MockAvailabilityService
	tenants      *MockTenantService
	audit        *MockAuditLogsService
	syncer       *MockSyncer
	tracker      *jobs.SyncStatusTracker
}

func (suite *HandlersTestSuite) SetupTest() {
	suite.reservations = &MockReservationService{}
	suite.availability = &MockAvailabilityService{}
	suite.tenants = &MockTenantService{}
	suite.audit = &MockAuditLogsService{}
	suite.syncer = &MockSyncer{}
	suite.tracker = jobs.NewSyncStatusTracker()

	var err error
	suite.tokens, err = services.NewTokenService(secret, time.Hour)
	require.NoError(suite.T(), err)
	auth, err := middleware.JWTMiddleware(middleware.AuthConfig{Secret: secret})
	require.NoError(suite.T(), err)

	suite.echo = echo.New()
	RegisterRoutes(suite.echo, &Handlers{
		Health:       NewHealthHandlers(fakePinger{}, nil, nil, "", "test"),
		Reservations: NewReservationHandlers(suite.reservations, suite.availability),
		Tenants:      NewTenantHandlers(suite.tenants),
		Sync:         NewSyncHandlers(suite.syncer, suite.tracker, suite.reservations, nil),
		Audit:        NewAuditLogsHandlers(suite.audit),
	}, auth, prometheus.NewRegistry())
}

func (suite *HandlersTestSuite) TearDownTest() {
	suite.reservations.AssertExpectations(suite.T())
	suite.availability.AssertExpectations(suite.T())
	suite.tenants.AssertExpectations(suite.T())
	suite.audit.AssertExpectations(suite.T())
	suite.syncer.AssertExpectations(suite.T())
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (suite *HandlersTestSuite) request(method, path, body string, admin bool) *httptest.ResponseRecorder {
	token, _, err := suite.tokens.Issue(memberID, guildID, admin)
	require.NoError(suite.T(), err)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func (suite *HandlersTestSuite) TestClaimNumber_Created() {
	res := &models.Reservation{TenantID: guildID, Number: 44, ClaimantID: common.Int64Ptr(memberID), Origin: models.OriginClaimed}
	suite.reservations.On("Claim", mock.Anything, &services.ClaimRequest{
		GuildID:    guildID,
		Number:     44,
		ClaimantID: memberID,
	}).Return(res, nil)

	rec := suite.request(http.MethodPost, "/v1/guilds/900/reservations", `{"car_number":44}`, false)

	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"car_number":44`)
}

func (suite *HandlersTestSuite) TestClaimNumber_ErrorMapping() {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{common.ErrConflict, http.StatusConflict, "CONFLICT"},
		{common.ErrOutOfRange, http.StatusBadRequest, "VALIDATION_ERROR"},
		{common.NewStorageError("claim", errors.New("down")), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tc := range cases {
		suite.reservations.On("Claim", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

		rec := suite.request(http.MethodPost, "/v1/guilds/900/reservations", `{"car_number":7}`, false)

		assert.Equal(suite.T(), tc.status, rec.Code)
		assert.Equal(suite.T(), tc.code, errorCode(suite.T(), rec))
	}
}

func (suite *HandlersTestSuite) TestClaimNumber_MissingNumber() {
	rec := suite.request(http.MethodPost, "/v1/guilds/900/reservations", `{}`, false)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestReleaseNumber() {
	suite.reservations.On("Release", mock.Anything, guildID, 12, memberID, false).Return(true, nil).Once()
	assert.Equal(suite.T(), http.StatusNoContent, suite.request(http.MethodDelete, "/v1/guilds/900/reservations/12", "", false).Code)

	suite.reservations.On("Release", mock.Anything, guildID, 13, memberID, false).Return(false, nil).Once()
	assert.Equal(suite.T(), http.StatusNotFound, suite.request(http.MethodDelete, "/v1/guilds/900/reservations/13", "", false).Code)

	suite.reservations.On("Release", mock.Anything, guildID, 14, memberID, false).Return(false, common.ErrUnauthorized).Once()
	rec := suite.request(http.MethodDelete, "/v1/guilds/900/reservations/14", "", false)
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
	assert.Equal(suite.T(), "FORBIDDEN", errorCode(suite.T(), rec))
}

func (suite *HandlersTestSuite) TestReleaseNumber_AdminForce() {
	suite.reservations.On("Release", mock.Anything, guildID, 12, memberID, true).Return(true, nil)

	rec := suite.request(http.MethodDelete, "/v1/guilds/900/reservations/12", "", true)

	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)
}

func (suite *HandlersTestSuite) TestGetReservation_NotFound() {
	suite.reservations.On("Get", mock.Anything, guildID, 5).Return(nil, common.ErrNotFound)

	rec := suite.request(http.MethodGet, "/v1/guilds/900/reservations/5", "", false)

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *HandlersTestSuite) TestGetReservation_BadNumber() {
	rec := suite.request(http.MethodGet, "/v1/guilds/900/reservations/abc", "", false)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestListReservations() {
	suite.reservations.On("ListByTenant", mock.Anything, guildID).Return([]*models.Reservation{{Number: 1}, {Number: 2}}, nil)

	rec := suite.request(http.MethodGet, "/v1/guilds/900/reservations", "", false)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"count":2`)
}

func (suite *HandlersTestSuite) TestListMyReservations() {
	suite.reservations.On("ListByClaimant", mock.Anything, guildID, memberID).Return([]*models.Reservation{{Number: 8}}, nil)

	rec := suite.request(http.MethodGet, "/v1/guilds/900/members/me/reservations", "", false)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
}

func (suite *HandlersTestSuite) TestLinkMember() {
	suite.reservations.On("Link", mock.Anything, guildID, memberID, int64(5555), common.StringPtr("Jo Racer")).Return(2, nil)

	rec := suite.request(http.MethodPost, "/v1/guilds/900/members/me/link", `{"external_member_id":5555,"external_name":"Jo Racer"}`, false)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `{"updated":2}`, rec.Body.String())
}

func (suite *HandlersTestSuite) TestLinkMember_Invalid() {
	rec := suite.request(http.MethodPost, "/v1/guilds/900/members/me/link", `{"external_member_id":0}`, false)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestAvailable() {
	suite.availability.On("Available", mock.Anything, guildID).Return([]int{1, 2, 3, 7}, nil)

	rec := suite.request(http.MethodGet, "/v1/guilds/900/available", "", false)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `{"numbers":[1,2,3,7],"ranges":"1-3, 7","count":4}`, rec.Body.String())
}

func (suite *HandlersTestSuite) TestAvailableBetween() {
	suite.availability.On("AvailableBetween", mock.Anything, guildID, 10, 20).Return([]int{}, nil)

	rec := suite.request(http.MethodGet, "/v1/guilds/900/available?range_start=10&range_end=20", "", false)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `{"numbers":[],"ranges":"None","count":0}`, rec.Body.String())
}

func (suite *HandlersTestSuite) TestAvailableBetween_MissingBound() {
	rec := suite.request(http.MethodGet, "/v1/guilds/900/available?range_start=10", "", false)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestConfig() {
	tenant := &models.Tenant{ID: guildID, MinNumber: 1, MaxNumber: 99}
	suite.tenants.On("Get", mock.Anything, guildID).Return(tenant, nil)
	assert.Equal(suite.T(), http.StatusOK, suite.request(http.MethodGet, "/v1/guilds/900/config", "", false).Code)

	assert.Equal(suite.T(), http.StatusForbidden, suite.request(http.MethodPut, "/v1/guilds/900/config", `{"max_number":50}`, false).Code)

	suite.tenants.On("Configure", mock.Anything, memberID, mock.MatchedBy(func(req *services.ConfigureTenantRequest) bool {
		return req.GuildID == guildID && req.MaxNumber != nil && *req.MaxNumber == 50
	})).Return(&services.ConfigureResult{Tenant: tenant, LeagueVerified: true, LeagueName: "Sunday Cup"}, nil).Once()
	rec := suite.request(http.MethodPut, "/v1/guilds/900/config", `{"max_number":50}`, true)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"league_verified":true`)
	assert.Contains(suite.T(), rec.Body.String(), `"league_name":"Sunday Cup"`)
	assert.Contains(suite.T(), rec.Body.String(), `"max_number":99`)

	suite.tenants.On("Configure", mock.Anything, memberID, mock.Anything).Return(nil, common.ErrInvalidRange).Once()
	assert.Equal(suite.T(), http.StatusBadRequest, suite.request(http.MethodPut, "/v1/guilds/900/config", `{"min_number":60}`, true).Code)
}

func (suite *HandlersTestSuite) TestSyncGuild() {
	league := int64(77)
	suite.syncer.On("SyncTenant", mock.Anything, guildID).Return(&jobs.PassResult{GuildID: guildID, LeagueID: &league, Status: jobs.PassSucceeded, Created: 3}, nil).Once()
	rec := suite.request(http.MethodPost, "/v1/guilds/900/sync", "", true)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"created":3`)

	suite.syncer.On("SyncTenant", mock.Anything, guildID).Return(&jobs.PassResult{GuildID: guildID, Status: jobs.PassSkipped, Reason: "no league linked"}, nil).Once()
	rec = suite.request(http.MethodPost, "/v1/guilds/900/sync", "", true)
	assert.Equal(suite.T(), http.StatusPreconditionFailed, rec.Code)

	suite.syncer.On("SyncTenant", mock.Anything, guildID).Return(&jobs.PassResult{GuildID: guildID, Status: jobs.PassFailed, Reason: "timed out"}, nil).Once()
	rec = suite.request(http.MethodPost, "/v1/guilds/900/sync", "", true)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), "RETRY_LATER")
}

func (suite *HandlersTestSuite) TestSyncGuild_RequiresAdmin() {
	rec := suite.request(http.MethodPost, "/v1/guilds/900/sync", "", false)

	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
}

func (suite *HandlersTestSuite) TestSyncStatus() {
	suite.tracker.Record(&jobs.PassResult{GuildID: guildID, Status: jobs.PassSucceeded, Updated: 1})
	suite.reservations.On("Stats", mock.Anything, guildID).Return(&models.ReservationStats{Total: 10, Synced: 4, Verified: 6}, nil)

	rec := suite.request(http.MethodGet, "/v1/guilds/900/sync/status", "", false)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	var resp SyncStatusResponse
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(suite.T(), 10, resp.Stats.Total)
	require.NotNil(suite.T(), resp.LastPass)
	assert.Equal(suite.T(), jobs.PassSucceeded, resp.LastPass.Status)
}

func (suite *HandlersTestSuite) TestAudit() {
	suite.audit.On("Recent", mock.Anything, guildID, 0).Return([]*models.AuditEntry{{Action: models.ActionClaim}}, nil).Once()
	assert.Equal(suite.T(), http.StatusOK, suite.request(http.MethodGet, "/v1/guilds/900/audit", "", true).Code)

	suite.audit.On("Recent", mock.Anything, guildID, 25).Return([]*models.AuditEntry{}, nil).Once()
	assert.Equal(suite.T(), http.StatusOK, suite.request(http.MethodGet, "/v1/guilds/900/audit?limit=25", "", true).Code)

	assert.Equal(suite.T(), http.StatusBadRequest, suite.request(http.MethodGet, "/v1/guilds/900/audit?limit=x", "", true).Code)
	assert.Equal(suite.T(), http.StatusForbidden, suite.request(http.MethodGet, "/v1/guilds/900/audit", "", false).Code)
}

func (suite *HandlersTestSuite) TestWrongGuild() {
	rec := suite.request(http.MethodGet, "/v1/guilds/901/reservations", "", true)

	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
}

func (suite *HandlersTestSuite) TestHealthEndpoints() {
	for _, path := range []string{"/health", "/health/ready", "/health/live", "/metrics"} {
		rec := httptest.NewRecorder()
		suite.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(suite.T(), http.StatusOK, rec.Code, path)
	}
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	e := echo.New()
	h := NewHealthHandlers(fakePinger{err: errors.New("refused")}, nil, nil, "", "test")
	e.GET("/health", h.HealthCheck)
	e.GET("/health/ready", h.ReadinessCheck)

	for _, path := range []string{"/health", "/health/ready"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}
