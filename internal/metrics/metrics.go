package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type VotingMetrics struct {
	PollsCreated  *prometheus.CounterVec
	VotesCast     *prometheus.CounterVec
	TallyDuration *prometheus.HistogramVec
}

// New registers the service metrics on reg. Labels carry the poll kind, so
// cardinality stays fixed no matter how many polls exist.
func New(reg prometheus.Registerer, namespace, subsystem string) *VotingMetrics {
	factory := promauto.With(reg)

	return &VotingMetrics{
		PollsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "polls_created_total",
				Help:      "Total number of polls created",
			},
			[]string{"kind"},
		),
		VotesCast: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "votes_cast_total",
				Help:      "Total number of votes accepted",
			},
			[]string{"kind"},
		),
		TallyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tally_duration_seconds",
				Help:      "Histogram of tally computation times",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}
