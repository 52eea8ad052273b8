package aggregate

import (
	"fmt"
	"sync"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"
)

type State int

const (
	Idle State = iota
	LoggingIn
	FetchingClasses
	FetchingSubjects
	FetchingGradesAndAverages
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoggingIn:
		return "logging_in"
	case FetchingClasses:
		return "fetching_classes"
	case FetchingSubjects:
		return "fetching_subjects"
	case FetchingGradesAndAverages:
		return "fetching_grades_and_averages"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Complete || s == Failed
}

var next = map[State]State{
	Idle:                      LoggingIn,
	LoggingIn:                 FetchingClasses,
	FetchingClasses:           FetchingSubjects,
	FetchingSubjects:          FetchingGradesAndAverages,
	FetchingGradesAndAverages: Complete,
}

// CanTransition reports whether a run may move from one state to another.
// Failed is reachable from every non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return next[from] == to
}

// Run is one aggregation run. Done is closed exactly once, after the run
// reached Complete or Failed.
type Run struct {
	ID         string
	ClassIndex int

	mu     sync.Mutex
	state  State
	err    error
	result *model.ClassAggregate
	done   chan struct{}
	once   sync.Once
}

func newRun(id string, classIndex int) *Run {
	return &Run{
		ID:         id,
		ClassIndex: classIndex,
		state:      Idle,
		done:       make(chan struct{}),
	}
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the aggregate and the failure reason. It is meaningful once
// Done is closed.
func (r *Run) Result() (*model.ClassAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

func (r *Run) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(r.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}

func (r *Run) complete(result *model.ClassAggregate) {
	if err := r.transition(Complete); err != nil {
		r.fail(err)
		return
	}
	r.mu.Lock()
	r.result = result
	r.mu.Unlock()
	r.signal()
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	if !r.state.Terminal() {
		r.state = Failed
		r.err = err
	}
	r.mu.Unlock()
	r.signal()
}

func (r *Run) signal() {
	r.once.Do(func() { close(r.done) })
}
