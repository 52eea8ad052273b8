// Package aggregate drives the login, class, subject and per-subject fetch
// chain that produces a ClassAggregate.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/appstate"
	"github.com/bs3vcenk/Netrix-sub000/internal/dates"
	"github.com/bs3vcenk/Netrix-sub000/internal/extract"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Portal is the portal surface the aggregator needs.
type Portal interface {
	Login(ctx context.Context, username, password string) error
	Classes(ctx context.Context) ([]model.Class, error)
	Subjects(ctx context.Context, class model.Class) ([]model.Subject, error)
	Grades(ctx context.Context, subject model.Subject) (extract.GradeList, error)
	Average(ctx context.Context, subject model.Subject) (extract.AverageRecord, error)
	Exams(ctx context.Context, class model.Class, all bool) ([]model.Exam, error)
	AbsenceOverview(ctx context.Context, class model.Class) (model.AbsenceOverview, error)
	Absences(ctx context.Context, class model.Class) ([]model.AbsenceDay, error)
}

// PortalFactory opens a fresh portal session for one run.
type PortalFactory func() (Portal, error)

type CredentialSource interface {
	Credentials(ctx context.Context) (username, password string, err error)
}

// StaticCredentials is a fixed username and password pair.
type StaticCredentials struct {
	Username string
	Password string
}

func (c StaticCredentials) Credentials(context.Context) (string, string, error) {
	return c.Username, c.Password, nil
}

type Aggregator struct {
	newPortal   PortalFactory
	creds       CredentialSource
	state       *appstate.State
	concurrency int
	now         func() time.Time
	log         zerolog.Logger
}

// New creates an aggregator that writes its results into state. concurrency
// bounds the number of in-flight subject fetches.
func New(newPortal PortalFactory, creds CredentialSource, state *appstate.State, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Aggregator{
		newPortal:   newPortal,
		creds:       creds,
		state:       state,
		concurrency: concurrency,
		now:         time.Now,
		log:         logger.Component("aggregate"),
	}
}

// Start begins a run in the background.
func (a *Aggregator) Start(ctx context.Context, classIndex int) *Run {
	run := newRun(uuid.NewString(), classIndex)
	go a.execute(ctx, run)
	return run
}

// PreCacheData runs the full chain for classIndex and waits for it.
func (a *Aggregator) PreCacheData(ctx context.Context, classIndex int) (*model.ClassAggregate, error) {
	run := a.Start(ctx, classIndex)
	select {
	case <-run.Done():
		return run.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Aggregator) execute(ctx context.Context, run *Run) {
	log := a.log.With().Str("run_id", run.ID).Int("class_index", run.ClassIndex).Logger()

	agg, err := a.collect(ctx, run, log)
	if err != nil {
		log.Error().Err(err).Str("state", run.State().String()).Msg("Aggregation run failed")
		run.fail(err)
		return
	}

	a.state.PutAggregate(run.ClassIndex, agg)
	run.complete(agg)

	log.Info().
		Int("subjects", len(agg.Subjects)).
		Int("errors", len(agg.Errors)).
		Bool("partial", agg.Partial).
		Msg("Aggregation run finished")
}

func (a *Aggregator) collect(ctx context.Context, run *Run, log zerolog.Logger) (*model.ClassAggregate, error) {
	step := func(to State) error {
		if err := run.transition(to); err != nil {
			return err
		}
		log.Debug().Str("state", to.String()).Msg("Aggregation state changed")
		return nil
	}

	if err := step(LoggingIn); err != nil {
		return nil, err
	}
	username, password, err := a.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	p, err := a.newPortal()
	if err != nil {
		return nil, fmt.Errorf("failed to open portal session: %w", err)
	}
	if err := p.Login(ctx, username, password); err != nil {
		return nil, err
	}

	if err := step(FetchingClasses); err != nil {
		return nil, err
	}
	classes, err := p.Classes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch classes: %w", err)
	}
	a.state.SetClasses(classes)
	if run.ClassIndex < 0 || run.ClassIndex >= len(classes) {
		return nil, fmt.Errorf("%w: %d of %d", errors.ErrInvalidClassIndex, run.ClassIndex, len(classes))
	}
	class := classes[run.ClassIndex]

	if err := step(FetchingSubjects); err != nil {
		return nil, err
	}
	subjects, err := p.Subjects(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subjects: %w", err)
	}

	if err := step(FetchingGradesAndAverages); err != nil {
		return nil, err
	}
	return a.fanOut(ctx, p, class, subjects, log)
}

// fanOut fetches grades and the average of every subject, and the class
// level exam and absence pages. A failed fetch leaves its field unset; only
// authentication failures abort the run.
func (a *Aggregator) fanOut(ctx context.Context, p Portal, class model.Class, subjects []model.Subject, log zerolog.Logger) (*model.ClassAggregate, error) {
	agg := &model.ClassAggregate{
		Class:    class,
		Subjects: make([]model.SubjectData, len(subjects)),
	}

	var (
		mu      sync.Mutex
		authErr error
	)
	record := func(what string, err error) {
		log.Warn().Err(err).Str("fetch", what).Msg("Fetch failed, leaving field unset")
		mu.Lock()
		defer mu.Unlock()
		agg.Errors = append(agg.Errors, fmt.Sprintf("%s: %v", what, err))
		if errors.IsAuth(err) && authErr == nil {
			authErr = err
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)

	for i, subject := range subjects {
		i, subject := i, subject
		subject.ID = i
		agg.Subjects[i] = model.SubjectData{Subject: subject}

		g.Go(func() error {
			list, err := p.Grades(ctx, subject)
			if err != nil {
				agg.Subjects[i].GradesError = err.Error()
				record(subject.Name+" grades", err)
				return nil
			}
			agg.Subjects[i].Grades = list.Grades
			agg.Subjects[i].Notes = list.Notes
			return nil
		})

		g.Go(func() error {
			avg, err := p.Average(ctx, subject)
			if err != nil {
				agg.Subjects[i].AverageError = err.Error()
				record(subject.Name+" average", err)
				return nil
			}
			agg.Subjects[i].Average = avg.Value
			agg.Subjects[i].Finalized = avg.Finalized
			return nil
		})
	}

	g.Go(func() error {
		exams, err := p.Exams(ctx, class, true)
		if err != nil {
			record("exams", err)
			return nil
		}
		today := dates.StartOfDay(a.now()).Unix()
		for i := range exams {
			exams[i].Current = exams[i].Date >= today
		}
		agg.Exams = exams
		return nil
	})

	g.Go(func() error {
		overview, err := p.AbsenceOverview(ctx, class)
		if err != nil {
			record("absence overview", err)
			return nil
		}
		agg.AbsenceOverview = &overview
		return nil
	})

	g.Go(func() error {
		absences, err := p.Absences(ctx, class)
		if err != nil {
			record("absences", err)
			return nil
		}
		agg.Absences = absences
		return nil
	})

	_ = g.Wait()

	if authErr != nil {
		return nil, authErr
	}

	agg.ClassAverage = classAverage(agg.Subjects)
	agg.FetchedAt = a.now()
	agg.Complete = true
	agg.Partial = len(agg.Errors) > 0
	return agg, nil
}

func classAverage(subjects []model.SubjectData) *float64 {
	var sum float64
	n := 0
	for _, s := range subjects {
		if s.Average == nil {
			continue
		}
		sum += *s.Average
		n++
	}
	if n == 0 {
		return nil
	}
	avg := extract.Round2(sum / float64(n))
	return &avg
}
