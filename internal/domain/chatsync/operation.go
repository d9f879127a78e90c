package chatsync

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OperationKind names a message-level mutation.
type OperationKind string

const (
	OperationSend          OperationKind = "send"
	OperationRegenerate    OperationKind = "regenerate"
	OperationEdit          OperationKind = "edit"
	OperationSwitchVersion OperationKind = "switch_version"
	OperationDeleteMessage OperationKind = "delete_message"
)

// OperationState is the lifecycle of one optimistic operation.
type OperationState string

const (
	StateIdle       OperationState = "idle"
	StatePending    OperationState = "pending"     // local placeholder visible, request in flight
	StateCommitted  OperationState = "committed"   // server accepted
	StateRolledBack OperationState = "rolled_back" // local state restored
)

// ErrInvalidTransition is returned when an operation state change is not allowed.
var ErrInvalidTransition = errors.New("invalid operation transition")

// ErrUnknownOperation is returned for a sequence number the journal does not hold.
var ErrUnknownOperation = errors.New("unknown operation")

// ValidTransitions defines allowed operation state changes.
var ValidTransitions = map[OperationState][]OperationState{
	StateIdle:       {StatePending},
	StatePending:    {StateCommitted, StateRolledBack},
	StateCommitted:  {},
	StateRolledBack: {},
}

// CanTransitionTo checks if a transition from s to target is valid.
func (s OperationState) CanTransitionTo(target OperationState) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the operation can no longer change.
func (s OperationState) IsTerminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

func (s OperationState) String() string {
	return string(s)
}

// Operation is one journal record.
type Operation struct {
	Seq            uint64
	Kind           OperationKind
	ConversationID string
	CorrelationID  string
	State          OperationState
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

const defaultJournalLimit = 256

// Journal records operations in start order under a monotonic sequence.
type Journal struct {
	mu       sync.Mutex
	seq      uint64
	ops      []Operation
	limit    int
	observer Observer
	now      func() time.Time
}

func NewJournal(observer Observer) *Journal {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Journal{limit: defaultJournalLimit, observer: observer, now: time.Now}
}

// Begin records a new operation in the Idle state and returns its sequence number.
func (j *Journal) Begin(kind OperationKind, conversationID, correlationID string) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	j.ops = append(j.ops, Operation{
		Seq:            j.seq,
		Kind:           kind,
		ConversationID: conversationID,
		CorrelationID:  correlationID,
		State:          StateIdle,
		StartedAt:      j.now(),
	})
	j.trimLocked()
	return j.seq
}

// Transition moves an operation to target, recording err on rollback.
func (j *Journal) Transition(seq uint64, target OperationState, err error) error {
	j.mu.Lock()
	idx := j.indexLocked(seq)
	if idx < 0 {
		j.mu.Unlock()
		return ErrUnknownOperation
	}
	op := &j.ops[idx]
	from := op.State
	if !from.CanTransitionTo(target) {
		j.mu.Unlock()
		return ErrInvalidTransition
	}
	op.State = target
	if err != nil {
		op.Err = err
	}
	if target.IsTerminal() {
		op.FinishedAt = j.now()
	}
	kind := op.Kind
	j.mu.Unlock()

	j.observer.OperationTransition(kind, from, target)
	return nil
}

// Advance applies Transition for callers that keep going regardless, logging a
// rejected transition on the caller's logger.
func (j *Journal) Advance(log zerolog.Logger, seq uint64, target OperationState, cause error) {
	if err := j.Transition(seq, target, cause); err != nil {
		log.Warn().Err(err).Uint64("seq", seq).Str("target_state", target.String()).Msg("operation journal transition rejected")
	}
}

// Get returns a copy of the operation with seq.
func (j *Journal) Get(seq uint64) (Operation, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	idx := j.indexLocked(seq)
	if idx < 0 {
		return Operation{}, false
	}
	return j.ops[idx], true
}

// Operations returns the retained journal in start order.
func (j *Journal) Operations() []Operation {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Operation(nil), j.ops...)
}

// Pending returns operations that have not reached a terminal state.
func (j *Journal) Pending() []Operation {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Operation
	for _, op := range j.ops {
		if !op.State.IsTerminal() {
			out = append(out, op)
		}
	}
	return out
}

func (j *Journal) indexLocked(seq uint64) int {
	for i := len(j.ops) - 1; i >= 0; i-- {
		if j.ops[i].Seq == seq {
			return i
		}
	}
	return -1
}

// trimLocked drops the oldest terminal records beyond the limit.
func (j *Journal) trimLocked() {
	for len(j.ops) > j.limit {
		dropped := false
		for i, op := range j.ops {
			if op.State.IsTerminal() {
				j.ops = append(j.ops[:i], j.ops[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}
