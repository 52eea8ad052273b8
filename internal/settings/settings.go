// Package settings reads and writes user preferences in the key-value store.
package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/internal/notify"
	"github.com/bs3vcenk/Netrix-sub000/internal/store"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"
)

const (
	KeyNotifications  = "notif-preference"
	KeyLeadDays       = "notif-time"
	KeyTheme          = "global-theme"
	KeyDataCollection = "data-preference"
	KeyAds            = "ad-preference"
	KeyLanguage       = "language"
	KeyMigrated       = "migrated-v2"
)

var (
	themes    = map[string]bool{"light": true, "dark": true}
	languages = map[string]bool{"en": true, "hr": true}
)

type Preferences struct {
	Notifications  bool   `json:"notifications"`
	LeadDays       int    `json:"lead_days"`
	Theme          string `json:"theme"`
	DataCollection bool   `json:"data_collection"`
	Ads            bool   `json:"ads"`
	Language       string `json:"language"`
}

func Defaults() Preferences {
	return Preferences{
		Notifications:  true,
		LeadDays:       notify.DefaultLeadDays,
		Theme:          "light",
		DataCollection: false,
		Ads:            true,
		Language:       "en",
	}
}

// Load reads the preferences, falling back to defaults for missing or
// unreadable values. The first load writes the defaults back and sets the
// migration marker.
func Load(ctx context.Context, s store.Store) (Preferences, error) {
	p := Defaults()

	var err error
	if p.Notifications, err = getBool(ctx, s, KeyNotifications, p.Notifications); err != nil {
		return Preferences{}, err
	}
	if p.LeadDays, err = getInt(ctx, s, KeyLeadDays, p.LeadDays); err != nil {
		return Preferences{}, err
	}
	if !notify.ValidLeadDays(p.LeadDays) {
		p.LeadDays = notify.DefaultLeadDays
	}
	if p.Theme, err = getString(ctx, s, KeyTheme, p.Theme, themes); err != nil {
		return Preferences{}, err
	}
	if p.DataCollection, err = getBool(ctx, s, KeyDataCollection, p.DataCollection); err != nil {
		return Preferences{}, err
	}
	if p.Ads, err = getBool(ctx, s, KeyAds, p.Ads); err != nil {
		return Preferences{}, err
	}
	if p.Language, err = getString(ctx, s, KeyLanguage, p.Language, languages); err != nil {
		return Preferences{}, err
	}

	_, migrated, err := s.Get(ctx, KeyMigrated)
	if err != nil {
		return Preferences{}, err
	}
	if !migrated {
		if err := Save(ctx, s, p); err != nil {
			return Preferences{}, err
		}
		if err := s.Set(ctx, KeyMigrated, "true"); err != nil {
			return Preferences{}, err
		}
	}

	return p, nil
}

func Save(ctx context.Context, s store.Store, p Preferences) error {
	values := map[string]string{
		KeyNotifications:  strconv.FormatBool(p.Notifications),
		KeyLeadDays:       strconv.Itoa(p.LeadDays),
		KeyTheme:          p.Theme,
		KeyDataCollection: strconv.FormatBool(p.DataCollection),
		KeyAds:            strconv.FormatBool(p.Ads),
		KeyLanguage:       p.Language,
	}
	for k, v := range values {
		if err := s.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates and merges u into p.
func Apply(p Preferences, u model.SettingsUpdate) (Preferences, error) {
	if u.Notifications != nil {
		p.Notifications = *u.Notifications
	}
	if u.LeadDays != nil {
		if !notify.ValidLeadDays(*u.LeadDays) {
			return p, fmt.Errorf("%w: %d", errors.ErrInvalidLeadTime, *u.LeadDays)
		}
		p.LeadDays = *u.LeadDays
	}
	if u.Theme != nil {
		if !themes[*u.Theme] {
			return p, fmt.Errorf("%w: unknown theme %q", errors.ErrInvalidSetting, *u.Theme)
		}
		p.Theme = *u.Theme
	}
	if u.DataCollection != nil {
		p.DataCollection = *u.DataCollection
	}
	if u.Ads != nil {
		p.Ads = *u.Ads
	}
	if u.Language != nil {
		if !languages[*u.Language] {
			return p, fmt.Errorf("%w: unsupported language %q", errors.ErrInvalidSetting, *u.Language)
		}
		p.Language = *u.Language
	}
	return p, nil
}

func getBool(ctx context.Context, s store.Store, key string, def bool) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	v, perr := strconv.ParseBool(raw)
	if perr != nil {
		return def, nil
	}
	return v, nil
}

func getInt(ctx context.Context, s store.Store, key string, def int) (int, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	v, perr := strconv.Atoi(raw)
	if perr != nil {
		return def, nil
	}
	return v, nil
}

func getString(ctx context.Context, s store.Store, key, def string, allowed map[string]bool) (string, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	if !allowed[raw] {
		return def, nil
	}
	return raw, nil
}
