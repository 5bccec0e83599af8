package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// promauto registers into the default registry, so every test needs its own
// namespace to avoid duplicate registration panics.
var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.routingRequestsTotal)
	assert.NotNil(t, collector.routingConfidence)
	assert.NotNil(t, collector.registryAgents)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/agents", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/api/v1/agents", 200, 50*time.Millisecond, 512, 1024)

	got := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/api/v1/agents", "2xx"))
	assert.Equal(t, 2.0, got)
}

func TestCollector_RecordRouting(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRouting("routed", 0.3, 250*time.Millisecond)
	collector.RecordRouting("no_matching_agent", 0, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.routingRequestsTotal.WithLabelValues("routed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.routingRequestsTotal.WithLabelValues("no_matching_agent")))

	// Confidence is only observed for routed outcomes.
	count := testutil.CollectAndCount(collector.routingConfidence)
	assert.Equal(t, 1, count)
}

func TestCollector_RecordForward(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordForward("completed", 3)
	collector.RecordForward("completed", 0)
	collector.RecordForward("timeout", 30)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.forwardTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.forwardTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.forwardPollAttempts))
}

func TestCollector_RegistryGaugeAndChanges(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetRegisteredAgents(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.registryAgents))

	collector.SetRegisteredAgents(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.registryAgents))

	collector.RecordRegistryChange("registered")
	collector.RecordRegistryChange("registered")
	collector.RecordRegistryChange("unregistered")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.registryChanges.WithLabelValues("registered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.registryChanges.WithLabelValues("unregistered")))
}

func TestCollector_RecordAgentRefresh(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAgentRefresh("ok")
	collector.RecordAgentRefresh("failed")
	collector.RecordAgentRefresh("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.agentRefreshTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.agentRefreshTotal.WithLabelValues("failed")))
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("registry_snapshot")
	collector.RecordCacheMiss("registry_snapshot")
	collector.RecordCacheHit("registry_snapshot")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("registry_snapshot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("registry_snapshot")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("POST", "/api/v1/route", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordRouting("routed", 0.5, 100*time.Millisecond)
			collector.RecordCacheHit("registry_snapshot")
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/route", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.routingRequestsTotal.WithLabelValues("routed")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("registry_snapshot")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(422))
	assert.Equal(t, "5xx", statusCode(502))
	assert.Equal(t, "unknown", statusCode(42))
}
