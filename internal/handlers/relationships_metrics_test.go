package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relationship-service/internal/metrics"
	"relationship-service/internal/mocks"
	"relationship-service/internal/models"
	"relationship-service/internal/services"
)

func setupRelationshipMetricsRouter(handler *RelationshipHandler) *gin.Engine {
	r := setupRelationshipRouter(handler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func fetchMetrics(t *testing.T, router *gin.Engine) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func metricValue(metricsBody, series string) (float64, bool) {
	for _, line := range strings.Split(metricsBody, "\n") {
		if strings.HasPrefix(line, series+" ") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return 0, false
			}
			value, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return 0, false
			}
			return value, true
		}
	}
	return 0, false
}

func assertMetricIncrement(t *testing.T, router *gin.Engine, series string, call func()) {
	t.Helper()
	before, _ := metricValue(fetchMetrics(t, router), series)
	call()
	after, found := metricValue(fetchMetrics(t, router), series)
	require.True(t, found, "series %s not exported", series)
	require.Greater(t, after, before)
}

func TestRequestMetricsFailed(t *testing.T) {
	metrics.RegisterRelationshipMetrics()
	router := setupRelationshipMetricsRouter(NewRelationshipHandler(new(mocks.MockRelationshipService), nil))

	assertMetricIncrement(t, router, `relationship_actions_total{action="request",status="failed"}`, func() {
		req := httptest.NewRequest(http.MethodPost, "/relationships", bytes.NewBufferString(`{"recipient_id":"bad"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAcceptMetricsSuccess(t *testing.T) {
	metrics.RegisterRelationshipMetrics()
	svc := new(mocks.MockRelationshipService)
	router := setupRelationshipMetricsRouter(NewRelationshipHandler(svc, nil))

	id := uuid.New()
	svc.On("ManageRelationship", mock.Anything, mock.Anything).
		Return(&services.Outcome{Relationship: models.Relationship{ID: id, RequesterID: 2, RequesteeID: 1, Status: models.StatusFriends}}, nil)

	assertMetricIncrement(t, router, `relationship_actions_total{action="accept",status="success"}`, func() {
		req := httptest.NewRequest(http.MethodPatch, "/relationships/"+id.String(), bytes.NewBufferString(`{"action":"accept"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBlockMetricsFailed(t *testing.T) {
	metrics.RegisterRelationshipMetrics()
	svc := new(mocks.MockRelationshipService)
	router := setupRelationshipMetricsRouter(NewRelationshipHandler(svc, nil))
	svc.On("BlockUser", mock.Anything, int64(1), int64(2)).Return(nil, services.ErrAlreadyBlocked)

	assertMetricIncrement(t, router, `relationship_actions_total{action="block",status="failed"}`, func() {
		req := httptest.NewRequest(http.MethodPost, "/relationships/block/2", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestQueryMetricsSuccess(t *testing.T) {
	metrics.RegisterRelationshipMetrics()
	svc := new(mocks.MockRelationshipService)
	router := setupRelationshipMetricsRouter(NewRelationshipHandler(svc, nil))
	svc.On("Friends", mock.Anything, int64(1)).Return([]models.RelatedUser{}, nil)

	assertMetricIncrement(t, router, `relationship_queries_total{query="friends",status="success"}`, func() {
		req := httptest.NewRequest(http.MethodGet, "/relationships", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
