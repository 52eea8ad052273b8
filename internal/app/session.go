package app

import (
	"context"
	"strconv"
	"sync"

	"github.com/bs3vcenk/Netrix-sub000/internal/appstate"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/internal/notify"
	"github.com/bs3vcenk/Netrix-sub000/internal/settings"
	"github.com/bs3vcenk/Netrix-sub000/internal/store"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"
)

// userSession is the in-memory state of one logged in user. It mirrors the
// store and is brought up to date on every use.
type userSession struct {
	token     string
	ns        *store.RedisStore
	state     *appstate.State
	gate      *notify.Gate
	scheduler *notify.Scheduler

	refresh sync.Mutex

	mu    sync.RWMutex
	prefs settings.Preferences
}

func (s *userSession) preferences() settings.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *userSession) setPreferences(p settings.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// session returns the user's in-memory state, refreshed from the store. The
// store is shared with the background workers, so every call picks up newer
// aggregates, changed settings and reminders scheduled elsewhere.
func (c *Controller) session(ctx context.Context, token string) (*userSession, error) {
	known, err := c.kv.Registered(ctx, token)
	if err != nil {
		return nil, err
	}
	if !known {
		c.mu.Lock()
		delete(c.sessions, token)
		c.mu.Unlock()
		return nil, errors.ErrTokenNotFound
	}

	c.mu.Lock()
	sess, ok := c.sessions[token]
	if !ok {
		sess = c.newSession(token)
		c.sessions[token] = sess
	}
	c.mu.Unlock()

	if err := c.reload(ctx, sess); err != nil {
		return nil, err
	}
	if !ok {
		c.log.Debug().Str("token", token).Int("classes", len(sess.state.Classes())).Msg("User session loaded")
	}
	return sess, nil
}

func (c *Controller) newSession(token string) *userSession {
	state := appstate.New(token)
	gate := notify.NewGate()
	return &userSession{
		token: token,
		ns:    c.namespace(token),
		state: state,
		gate:  gate,
		scheduler: notify.NewScheduler(c.reminders(token), state, gate, notify.Options{
			Hour:     c.cfg.Notifications.Hour,
			Location: c.cfg.Location(),
		}),
		prefs: settings.Defaults(),
	}
}

// reload merges the stored classes, aggregates and settings into sess. A
// stored aggregate replaces the in-memory one only when it was fetched later.
func (c *Controller) reload(ctx context.Context, sess *userSession) error {
	var classes []model.Class
	ok, err := store.GetJSON(ctx, sess.ns, keyClasses, &classes)
	if err != nil {
		return err
	}
	if ok {
		sess.state.SetClasses(classes)
	}

	for i := range sess.state.Classes() {
		var agg model.ClassAggregate
		ok, err := store.GetJSON(ctx, sess.ns, keyClassPrefix+strconv.Itoa(i), &agg)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if cached, has := sess.state.Aggregate(i); has && !agg.FetchedAt.After(cached.FetchedAt) {
			continue
		}
		sess.state.PutAggregate(i, &agg)
	}

	prefs, err := settings.Load(ctx, sess.ns)
	if err != nil {
		return err
	}
	sess.setPreferences(prefs)
	sess.scheduler.SetLanguage(prefs.Language)
	sess.gate.MarkSettingsReady()

	_, err = sess.scheduler.Sync(ctx)
	return err
}
