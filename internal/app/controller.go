// Package app is the root controller. It owns the per-user application state
// and hands it to the aggregator and the reminder scheduler.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/aggregate"
	"github.com/bs3vcenk/Netrix-sub000/internal/appstate"
	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/excel"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/internal/notify"
	"github.com/bs3vcenk/Netrix-sub000/internal/settings"
	"github.com/bs3vcenk/Netrix-sub000/internal/store"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/rs/zerolog"
)

const (
	keyCredentials = "credentials"
	keyClasses     = "classes"
	keyStats       = "stats"
	keyClassPrefix = "class:"
	userNamespace  = "user:"
	schoolDomain   = "@skole.hr"
)

// ReminderBackend returns the reminder plugin of one user.
type ReminderBackend func(token string) notify.Plugin

// JobQueue accepts background refresh jobs.
type JobQueue interface {
	EnqueueFetchJob(ctx context.Context, job model.FetchJob) error
}

// StatsForwarder sends device reports upstream.
type StatsForwarder interface {
	Send(ctx context.Context, report model.StatsReport) error
}

type Controller struct {
	cfg       *config.Config
	kv        *store.RedisStore
	newPortal aggregate.PortalFactory
	reminders ReminderBackend
	jobs      JobQueue
	stats     StatsForwarder
	report    *excel.ReportWriter
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*userSession
}

type Deps struct {
	Store     *store.RedisStore
	Portal    aggregate.PortalFactory
	Reminders ReminderBackend
	Jobs      JobQueue
	Stats     StatsForwarder
}

func NewController(cfg *config.Config, deps Deps) *Controller {
	return &Controller{
		cfg:       cfg,
		kv:        deps.Store,
		newPortal: deps.Portal,
		reminders: deps.Reminders,
		jobs:      deps.Jobs,
		stats:     deps.Stats,
		report:    excel.NewReportWriter(cfg.Location()),
		log:       logger.Component("app"),
		sessions:  make(map[string]*userSession),
	}
}

// Token derives the API token of a username and password pair.
func Token(username, password string) string {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return hex.EncodeToString(sum[:])
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentials) Credentials(context.Context) (string, string, error) {
	return c.Username, c.Password, nil
}

// Login verifies the credentials against the portal, stores them and caches
// the current class. Known tokens return without contacting the portal.
func (c *Controller) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSuffix(strings.TrimSpace(username), schoolDomain)
	token := Token(username, password)
	log := c.log.With().Str("token", token).Logger()

	known, err := c.kv.Registered(ctx, token)
	if err != nil {
		return "", err
	}
	if known {
		log.Info().Msg("Fast login")
		return token, nil
	}

	log.Info().Msg("Slow login")
	ns := c.namespace(token)
	creds := credentials{Username: username, Password: password}

	state := appstate.New(token)
	agg, err := aggregate.New(c.newPortal, creds, state, c.cfg.Workers.SubjectConcurrency).PreCacheData(ctx, 0)
	if err != nil {
		log.Warn().Err(err).Msg("Login failed")
		return "", err
	}

	if err := store.SetJSON(ctx, ns, keyCredentials, creds); err != nil {
		return "", err
	}
	if err := c.persist(ctx, ns, state, 0, agg); err != nil {
		return "", err
	}
	if err := c.kv.Register(ctx, token); err != nil {
		return "", err
	}

	if _, err := c.ScheduleReminders(ctx, token); err != nil {
		log.Warn().Err(err).Msg("Failed to schedule reminders after login")
	}
	return token, nil
}

// Refresh re-runs the aggregation for a class. When the portal is
// unreachable the cached aggregate is returned and the user is marked
// offline. Rejected credentials log the user out.
func (c *Controller) Refresh(ctx context.Context, token string, classIndex int) (*model.ClassAggregate, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return nil, err
	}

	sess.refresh.Lock()
	defer sess.refresh.Unlock()

	var creds credentials
	ok, err := store.GetJSON(ctx, sess.ns, keyCredentials, &creds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrTokenNotFound
	}

	sess.state.SetActiveClass(classIndex)
	agg, err := aggregate.New(c.newPortal, creds, sess.state, c.cfg.Workers.SubjectConcurrency).PreCacheData(ctx, classIndex)
	switch {
	case err == nil:
	case errors.IsAuth(err):
		c.log.Warn().Str("token", token).Msg("Stored credentials rejected, logging out")
		if lerr := c.Logout(ctx, token); lerr != nil {
			c.log.Error().Err(lerr).Str("token", token).Msg("Failed to log out user")
		}
		return nil, err
	case errors.Unavailable(err):
		if cached, ok := sess.state.Aggregate(classIndex); ok {
			c.log.Warn().Err(err).Str("token", token).Msg("Portal unavailable, serving cached data")
			sess.state.SetOffline(true)
			return cached, nil
		}
		return nil, err
	default:
		return nil, err
	}

	sess.state.SetOffline(false)
	if err := c.persist(ctx, sess.ns, sess.state, classIndex, agg); err != nil {
		return nil, err
	}

	if classIndex == 0 {
		if _, err := c.ScheduleReminders(ctx, token); err != nil {
			c.log.Warn().Err(err).Str("token", token).Msg("Failed to schedule reminders after refresh")
		}
	}
	return agg, nil
}

// EnqueueRefresh schedules a background refresh of a class.
func (c *Controller) EnqueueRefresh(ctx context.Context, token string, classIndex int) error {
	if _, err := c.session(ctx, token); err != nil {
		return err
	}
	if c.jobs == nil {
		return fmt.Errorf("background refresh is not configured")
	}
	return c.jobs.EnqueueFetchJob(ctx, model.FetchJob{Token: token, ClassIndex: classIndex, RequestedAt: time.Now()})
}

func (c *Controller) Classes(ctx context.Context, token string) ([]model.Class, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return nil, err
	}
	return sess.state.Classes(), nil
}

// Aggregate returns the cached aggregate of a class, fetching it when the
// class has not been loaded yet.
func (c *Controller) Aggregate(ctx context.Context, token string, classIndex int) (*model.ClassAggregate, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return nil, err
	}

	if agg, ok := sess.state.Aggregate(classIndex); ok {
		return agg, nil
	}
	if classIndex < 0 || classIndex >= len(sess.state.Classes()) {
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidClassIndex, classIndex)
	}
	return c.Refresh(ctx, token, classIndex)
}

func (c *Controller) Export(ctx context.Context, token string, classIndex int) ([]byte, error) {
	agg, err := c.Aggregate(ctx, token, classIndex)
	if err != nil {
		return nil, err
	}
	return c.report.Write(agg)
}

func (c *Controller) Settings(ctx context.Context, token string) (settings.Preferences, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return settings.Preferences{}, err
	}
	return sess.preferences(), nil
}

// UpdateSettings stores preference changes. Turning reminders off cancels
// them; changing the lead time reschedules them.
func (c *Controller) UpdateSettings(ctx context.Context, token string, update model.SettingsUpdate) (settings.Preferences, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return settings.Preferences{}, err
	}

	before := sess.preferences()
	after, err := settings.Apply(before, update)
	if err != nil {
		return before, err
	}
	if err := settings.Save(ctx, sess.ns, after); err != nil {
		return before, err
	}
	sess.setPreferences(after)
	sess.scheduler.SetLanguage(after.Language)

	switch {
	case !after.Notifications && before.Notifications:
		if err := sess.scheduler.DisableAll(ctx); err != nil {
			return after, err
		}
	case after.Notifications && (after.LeadDays != before.LeadDays || !before.Notifications):
		if err := sess.scheduler.DisableAll(ctx); err != nil {
			return after, err
		}
		if _, err := sess.scheduler.ScheduleTestNotifications(ctx, after.LeadDays); err != nil {
			return after, err
		}
	}
	return after, nil
}

// ScheduleReminders schedules reminders for the user's upcoming exams when
// the user has them enabled.
func (c *Controller) ScheduleReminders(ctx context.Context, token string) (int, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return 0, err
	}
	prefs := sess.preferences()
	if !prefs.Notifications {
		return 0, nil
	}
	return sess.scheduler.ScheduleTestNotifications(ctx, prefs.LeadDays)
}

func (c *Controller) Reminders(ctx context.Context, token string) ([]model.ScheduledReminder, error) {
	sess, err := c.session(ctx, token)
	if err != nil {
		return nil, err
	}
	return sess.scheduler.Sync(ctx)
}

func (c *Controller) DisableReminder(ctx context.Context, token, id string) error {
	sess, err := c.session(ctx, token)
	if err != nil {
		return err
	}
	return sess.scheduler.DisableNotif(ctx, id)
}

func (c *Controller) DisableAllReminders(ctx context.Context, token string) error {
	sess, err := c.session(ctx, token)
	if err != nil {
		return err
	}
	return sess.scheduler.DisableAll(ctx)
}

// RecordStats stores a device report and forwards it upstream.
func (c *Controller) RecordStats(ctx context.Context, report model.StatsReport) error {
	sess, err := c.session(ctx, report.Token)
	if err != nil {
		return err
	}
	if err := store.SetJSON(ctx, sess.ns, keyStats, report); err != nil {
		return err
	}

	if c.stats != nil && sess.preferences().DataCollection {
		if err := c.stats.Send(ctx, report); err != nil {
			c.log.Warn().Err(err).Msg("Failed to forward device report")
		}
	}
	return nil
}

// Logout cancels the user's reminders and removes everything stored for
// them.
func (c *Controller) Logout(ctx context.Context, token string) error {
	known, err := c.kv.Registered(ctx, token)
	if err != nil {
		return err
	}
	if !known {
		return errors.ErrTokenNotFound
	}

	if err := c.reminders(token).CancelAll(ctx); err != nil {
		return err
	}
	if err := c.namespace(token).Clear(ctx); err != nil {
		return err
	}
	if err := c.kv.Unregister(ctx, token); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.sessions, token)
	c.mu.Unlock()

	c.log.Info().Str("token", token).Msg("User logged out")
	return nil
}

func (c *Controller) namespace(token string) *store.RedisStore {
	return c.kv.Namespace(userNamespace + token)
}

func (c *Controller) persist(ctx context.Context, ns *store.RedisStore, state *appstate.State, classIndex int, agg *model.ClassAggregate) error {
	if err := store.SetJSON(ctx, ns, keyClasses, state.Classes()); err != nil {
		return err
	}
	return store.SetJSON(ctx, ns, keyClassPrefix+strconv.Itoa(classIndex), agg)
}
