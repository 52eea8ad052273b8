package aggregate

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/appstate"
	"github.com/bs3vcenk/Netrix-sub000/internal/extract"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePortal struct {
	loginErr    error
	subjects    []model.Subject
	gradeErrs   map[string]error
	averageErrs map[string]error
	examsErr    error
	delay       time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	user     string
}

func (f *fakePortal) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakePortal) Login(_ context.Context, username, _ string) error {
	f.mu.Lock()
	f.user = username
	f.mu.Unlock()
	return f.loginErr
}

func (f *fakePortal) Classes(context.Context) ([]model.Class, error) {
	return []model.Class{
		{ID: 0, ExternalID: "2020", Label: "4.b"},
		{ID: 1, ExternalID: "2019", Label: "3.b"},
	}, nil
}

func (f *fakePortal) Subjects(context.Context, model.Class) ([]model.Subject, error) {
	return f.subjects, nil
}

func (f *fakePortal) Grades(_ context.Context, s model.Subject) (extract.GradeList, error) {
	defer f.enter()()
	if err := f.gradeErrs[s.Name]; err != nil {
		return extract.GradeList{}, err
	}
	return extract.GradeList{Grades: []model.Grade{{Value: 5}, {Value: 4}}}, nil
}

func (f *fakePortal) Average(_ context.Context, s model.Subject) (extract.AverageRecord, error) {
	defer f.enter()()
	if err := f.averageErrs[s.Name]; err != nil {
		return extract.AverageRecord{}, err
	}
	v := float64(len(s.Name)%5 + 1)
	return extract.AverageRecord{Value: &v}, nil
}

func (f *fakePortal) Exams(context.Context, model.Class, bool) ([]model.Exam, error) {
	if f.examsErr != nil {
		return nil, f.examsErr
	}
	return []model.Exam{
		{Subject: "Matematika", Title: "Derivacije", Date: time.Date(2021, 3, 15, 0, 0, 0, 0, time.Local).Unix()},
		{Subject: "Fizika", Title: "Optika", Date: time.Date(2021, 2, 1, 0, 0, 0, 0, time.Local).Unix()},
	}, nil
}

func (f *fakePortal) AbsenceOverview(context.Context, model.Class) (model.AbsenceOverview, error) {
	return model.AbsenceOverview{Justified: 3, Sum: 3}, nil
}

func (f *fakePortal) Absences(context.Context, model.Class) ([]model.AbsenceDay, error) {
	return []model.AbsenceDay{{Date: 1, Absences: []model.AbsenceRecord{{Period: 1}}}}, nil
}

func subjects(names ...string) []model.Subject {
	out := make([]model.Subject, len(names))
	for i, n := range names {
		out[i] = model.Subject{Name: n, Link: "/pregled/predmet/" + n}
	}
	return out
}

func newTestAggregator(p *fakePortal, concurrency int) (*Aggregator, *appstate.State) {
	state := appstate.New("tok")
	a := New(func() (Portal, error) { return p, nil }, StaticCredentials{Username: "ivan", Password: "pw"}, state, concurrency)
	a.now = func() time.Time { return time.Date(2021, 3, 1, 12, 0, 0, 0, time.Local) }
	return a, state
}

func TestPreCacheDataComplete(t *testing.T) {
	p := &fakePortal{subjects: subjects("Hrvatski", "Matematika", "Fizika")}
	a, state := newTestAggregator(p, 4)

	agg, err := a.PreCacheData(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, agg.Complete)
	assert.False(t, agg.Partial)
	assert.Empty(t, agg.Errors)
	assert.Equal(t, "4.b", agg.Class.Label)
	require.Len(t, agg.Subjects, 3)
	for i, s := range agg.Subjects {
		assert.Equal(t, i, s.ID)
		assert.Len(t, s.Grades, 2)
		require.NotNil(t, s.Average)
	}
	require.NotNil(t, agg.ClassAverage)
	require.NotNil(t, agg.AbsenceOverview)
	assert.Equal(t, 3, agg.AbsenceOverview.Justified)
	require.Len(t, agg.Exams, 2)
	assert.True(t, agg.Exams[0].Current)
	assert.False(t, agg.Exams[1].Current)

	assert.Equal(t, "ivan", p.user)
	cached, ok := state.Aggregate(0)
	require.True(t, ok)
	assert.Same(t, agg, cached)
	assert.Len(t, state.Classes(), 2)
}

func TestPreCacheDataPartialFailure(t *testing.T) {
	p := &fakePortal{
		subjects:    subjects("Hrvatski", "Matematika", "Fizika"),
		gradeErrs:   map[string]error{"Matematika": &errors.ParseError{Kind: "grades", Field: "value"}},
		averageErrs: map[string]error{"Fizika": &errors.NetworkError{URL: "u", Timeout: true}},
		examsErr:    &errors.NetworkError{URL: "u", StatusCode: 502},
	}
	a, _ := newTestAggregator(p, 2)

	run := a.Start(context.Background(), 0)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run never signalled completion")
	}

	agg, err := run.Result()
	require.NoError(t, err)
	assert.Equal(t, Complete, run.State())
	assert.True(t, agg.Complete)
	assert.True(t, agg.Partial)
	assert.Len(t, agg.Errors, 3)

	assert.NotNil(t, agg.Subjects[0].Grades)
	assert.Nil(t, agg.Subjects[1].Grades)
	assert.NotEmpty(t, agg.Subjects[1].GradesError)
	assert.NotNil(t, agg.Subjects[1].Average)
	assert.Nil(t, agg.Subjects[2].Average)
	assert.NotEmpty(t, agg.Subjects[2].AverageError)
	assert.Nil(t, agg.Exams)
}

func TestPreCacheDataAuthFailure(t *testing.T) {
	p := &fakePortal{loginErr: &errors.AuthError{Reason: "wrong username or password"}}
	a, _ := newTestAggregator(p, 2)

	run := a.Start(context.Background(), 0)
	<-run.Done()

	_, err := run.Result()
	assert.True(t, errors.IsAuth(err))
	assert.Equal(t, Failed, run.State())
}

func TestPreCacheDataSessionExpiredMidRun(t *testing.T) {
	p := &fakePortal{
		subjects:  subjects("Hrvatski", "Matematika"),
		gradeErrs: map[string]error{"Hrvatski": &errors.AuthError{Reason: "session expired"}},
	}
	a, state := newTestAggregator(p, 2)

	_, err := a.PreCacheData(context.Background(), 0)
	assert.True(t, errors.IsAuth(err))

	_, ok := state.Aggregate(0)
	assert.False(t, ok)
}

func TestPreCacheDataInvalidClassIndex(t *testing.T) {
	a, _ := newTestAggregator(&fakePortal{}, 2)

	_, err := a.PreCacheData(context.Background(), 7)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidClassIndex))
}

func TestFanOutRespectsConcurrency(t *testing.T) {
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("Predmet %d", i)
	}
	p := &fakePortal{subjects: subjects(names...), delay: 5 * time.Millisecond}
	a, _ := newTestAggregator(p, 3)

	_, err := a.PreCacheData(context.Background(), 0)
	require.NoError(t, err)

	assert.LessOrEqual(t, p.maxSeen.Load(), int32(3))
	assert.GreaterOrEqual(t, p.maxSeen.Load(), int32(2))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Idle, LoggingIn))
	assert.True(t, CanTransition(FetchingGradesAndAverages, Complete))
	assert.True(t, CanTransition(FetchingClasses, Failed))
	assert.False(t, CanTransition(Idle, FetchingSubjects))
	assert.False(t, CanTransition(Complete, Failed))
	assert.False(t, CanTransition(Failed, LoggingIn))
}

func TestRunSignalsOnce(t *testing.T) {
	run := newRun("id", 0)
	run.fail(fmt.Errorf("first"))
	run.fail(fmt.Errorf("second"))

	<-run.Done()
	_, err := run.Result()
	assert.EqualError(t, err, "first")
	assert.Equal(t, Failed, run.State())
}
