//nolint:gochecknoglobals
package invite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invitationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invited",
		Name:      "invitations_total",
		Help:      "The total number of invitation requests by result",
	}, []string{"result"})

	emailsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invited",
		Name:      "emails_total",
		Help:      "The total number of invitation emails by result",
	}, []string{"result"})
)

func countResult(err error) {
	invitationsMetric.With(prometheus.Labels{"result": resultLabel(err)}).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "created"
	}

	if e, ok := err.(*Error); ok {
		switch e.Kind {
		case KindBadRequest:
			return "bad_request"
		case KindUnauthorized:
			return "unauthorized"
		case KindForbidden:
			return "forbidden"
		case KindConflict:
			return "conflict"
		}
	}

	return "error"
}
