package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	relationshipMetricsOnce sync.Once

	relationshipActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relationship_actions_total",
			Help: "Total number of relationship action attempts",
		},
		[]string{"action", "status"},
	)

	relationshipQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relationship_queries_total",
			Help: "Total number of relationship query attempts",
		},
		[]string{"query", "status"},
	)
)

func RegisterRelationshipMetrics() {
	relationshipMetricsOnce.Do(func() {
		prometheus.MustRegister(relationshipActionsTotal, relationshipQueriesTotal)
	})
}

// IncAction counts one attempt of action. Unknown actions are reported as "unknown".
func IncAction(action, status string) {
	RegisterRelationshipMetrics()
	action = strings.ToLower(action)
	if action == "" {
		action = "unknown"
	}
	relationshipActionsTotal.WithLabelValues(action, status).Inc()
}

func IncQuery(query, status string) {
	RegisterRelationshipMetrics()
	relationshipQueriesTotal.WithLabelValues(query, status).Inc()
}
