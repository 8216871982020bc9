package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retroboard_vote_outcomes_total",
		Help: "Vote requests by resolution outcome.",
	}, []string{"outcome"})

	groupingCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retroboard_grouping_commits_total",
		Help: "Grouping confirmations by result.",
	}, []string{"result"})

	storeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retroboard_store_failures_total",
		Help: "Store writes and erases rejected by the backend.",
	}, []string{"op"})
)
