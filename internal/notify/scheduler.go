// Package notify derives exam reminders and keeps them in sync with the
// reminder backend.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/appstate"
	"github.com/bs3vcenk/Netrix-sub000/internal/dates"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LeadDayChoices are the lead times offered to users.
var LeadDayChoices = []int{1, 2, 3, 4, 5, 7, 10}

const DefaultLeadDays = 3

func ValidLeadDays(days int) bool {
	for _, d := range LeadDayChoices {
		if d == days {
			return true
		}
	}
	return false
}

// Plugin is the platform reminder backend.
type Plugin interface {
	GetAll(ctx context.Context) ([]model.ScheduledReminder, error)
	Schedule(ctx context.Context, reminders []model.ScheduledReminder) error
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
}

var examNamespace = uuid.MustParse("9b1f2c3e-6d4a-5e7b-8c9d-0a1b2c3d4e5f")

// ExamID identifies an exam by subject, title and date.
func ExamID(exam model.Exam) string {
	key := exam.Subject + "|" + exam.Title + "|" + strconv.FormatInt(exam.Date, 10)
	return uuid.NewSHA1(examNamespace, []byte(key)).String()
}

type Options struct {
	Hour     int
	Location *time.Location
}

type Scheduler struct {
	plugin Plugin
	state  *appstate.State
	gate   *Gate
	hour   int
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger

	mu   sync.Mutex
	lang string
}

func NewScheduler(plugin Plugin, state *appstate.State, gate *Gate, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scheduler{
		plugin: plugin,
		state:  state,
		gate:   gate,
		hour:   opts.Hour,
		loc:    opts.Location,
		now:    time.Now,
		log:    logger.Component("notify").With().Str("token", state.Token()).Logger(),
		lang:   "en",
	}
}

// SetLanguage selects the language of reminder texts.
func (s *Scheduler) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
}

func (s *Scheduler) language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Sync reloads the scheduled reminders from the backend into the state.
func (s *Scheduler) Sync(ctx context.Context) ([]model.ScheduledReminder, error) {
	reminders, err := s.plugin.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled reminders: %w", err)
	}

	ids := make([]string, len(reminders))
	for i, r := range reminders {
		ids[i] = r.ID
	}
	s.state.ReplaceScheduled(ids)
	s.gate.MarkSynced()

	s.log.Debug().Int("count", len(ids)).Msg("Reminder list synchronized")
	return reminders, nil
}

// ScheduleTestNotifications schedules a reminder leadDays before every known
// exam that does not have one yet. It waits until the reminder list is
// synchronized and preferences are loaded, and does nothing while the state
// is offline or a class other than the current one is active.
func (s *Scheduler) ScheduleTestNotifications(ctx context.Context, leadDays int) (int, error) {
	if !ValidLeadDays(leadDays) {
		return 0, fmt.Errorf("%w: %d", errors.ErrInvalidLeadTime, leadDays)
	}

	if err := s.gate.Wait(ctx); err != nil {
		return 0, err
	}

	if s.state.Offline() || s.state.ActiveClass() != 0 {
		s.log.Debug().
			Bool("offline", s.state.Offline()).
			Int("active_class", s.state.ActiveClass()).
			Msg("Skipping reminder scheduling")
		return 0, nil
	}

	now := s.now()
	p := printer(s.language())
	seen := make(map[string]struct{})
	var batch []model.ScheduledReminder

	for _, exam := range s.state.Exams() {
		id := ExamID(exam)
		if _, dup := seen[id]; dup || s.state.IsScheduled(id) {
			continue
		}
		seen[id] = struct{}{}

		trigger := s.TriggerAt(exam, leadDays)
		if !trigger.After(now) {
			continue
		}

		batch = append(batch, model.ScheduledReminder{
			ID:        id,
			ExamID:    id,
			Title:     p.Sprintf(msgTitle),
			Body:      p.Sprintf(msgBody, exam.Subject, exam.Title, dates.Format(exam.Date, s.loc)),
			TriggerAt: trigger,
		})
	}

	if len(batch) == 0 {
		return 0, nil
	}

	if err := s.plugin.Schedule(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to schedule reminders: %w", err)
	}

	s.log.Info().Int("count", len(batch)).Int("lead_days", leadDays).Msg("Scheduled exam reminders")

	if _, err := s.Sync(ctx); err != nil {
		return len(batch), err
	}
	return len(batch), nil
}

// TriggerAt is leadDays calendar days before the exam, at the configured
// hour.
func (s *Scheduler) TriggerAt(exam model.Exam, leadDays int) time.Time {
	d := time.Unix(exam.Date, 0).In(s.loc).AddDate(0, 0, -leadDays)
	return time.Date(d.Year(), d.Month(), d.Day(), s.hour, 0, 0, 0, s.loc)
}

func (s *Scheduler) DisableNotif(ctx context.Context, id string) error {
	if err := s.plugin.Cancel(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel reminder %s: %w", id, err)
	}
	_, err := s.Sync(ctx)
	return err
}

func (s *Scheduler) DisableAll(ctx context.Context) error {
	if err := s.plugin.CancelAll(ctx); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	_, err := s.Sync(ctx)
	return err
}
