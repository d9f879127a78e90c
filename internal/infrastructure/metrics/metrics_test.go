package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
)

func TestObserver_CacheLookup(t *testing.T) {
	obs := NewObserver()
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("history", "hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("history", "miss"))

	obs.CacheLookup(chatsync.ScopeHistory, true)
	obs.CacheLookup(chatsync.ScopeHistory, false)
	obs.CacheLookup(chatsync.ScopeHistory, false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues("history", "hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookups.WithLabelValues("history", "miss")))
}

func TestObserver_PendingGaugeFollowsTransitions(t *testing.T) {
	obs := NewObserver()
	base := testutil.ToFloat64(PendingOperations)

	obs.OperationTransition(chatsync.OperationSend, chatsync.StateIdle, chatsync.StatePending)
	obs.OperationTransition(chatsync.OperationEdit, chatsync.StateIdle, chatsync.StatePending)
	assert.Equal(t, base+2, testutil.ToFloat64(PendingOperations))

	obs.OperationTransition(chatsync.OperationSend, chatsync.StatePending, chatsync.StateCommitted)
	obs.OperationTransition(chatsync.OperationEdit, chatsync.StatePending, chatsync.StateRolledBack)
	assert.Equal(t, base, testutil.ToFloat64(PendingOperations))

	assert.GreaterOrEqual(t, testutil.ToFloat64(OperationTransitions.WithLabelValues("edit", "pending", "rolled_back")), 1.0)
}

func TestObserver_Invalidations(t *testing.T) {
	before := testutil.ToFloat64(CacheInvalidations.WithLabelValues("archive"))
	NewObserver().CacheInvalidated("archive")
	assert.Equal(t, before+1, testutil.ToFloat64(CacheInvalidations.WithLabelValues("archive")))
}

func TestRecordGatewayRequest(t *testing.T) {
	before := testutil.CollectAndCount(GatewayRequestDuration)
	RecordGatewayRequest("metrics_test_op", "ok", 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.CollectAndCount(GatewayRequestDuration))
}
