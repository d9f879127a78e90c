package chatsync

// Observer receives engine events for metrics. Implementations must not block.
type Observer interface {
	CacheLookup(scope Scope, hit bool)
	CacheInvalidated(reason string)
	OperationTransition(kind OperationKind, from, to OperationState)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) CacheLookup(Scope, bool) {}
func (NopObserver) CacheInvalidated(string) {}
func (NopObserver) OperationTransition(OperationKind, OperationState, OperationState) {}
