package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("test")

	c.Drop("invalid_json")
	c.Drop("invalid_json")
	c.Drop("unknown_evidence_id")
	c.Accepted()
	c.Session("home", "done")
	c.FetchFailed("note")
	c.Fetched("highlight", 4)
	c.CacheLookup("life_context", true)
	c.ObserveStage("INGRESS", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.drops.WithLabelValues("invalid_json")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.drops.WithLabelValues("unknown_evidence_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("home", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchFailures.WithLabelValues("note")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.fetchCandidates.WithLabelValues("highlight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("life_context", "hit")))

	families, err := c.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.Drop("invalid_json")
		c.Accepted()
		c.Session("chat", "error")
		c.FetchFailed("note")
		c.Fetched("note", 1)
		c.ObserveStage("MODEL_CALL", time.Second)
		c.CacheLookup("life_context", false)
		c.BreakerState("llm", 2)
	})
	assert.NotNil(t, c.Registry())
}

func TestNewCollector_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector("a")
		NewCollector("a")
	})
}
