package app

import (
	"github.com/bs3vcenk/Netrix-sub000/internal/aggregate"
	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/db"
	"github.com/bs3vcenk/Netrix-sub000/internal/extract"
	"github.com/bs3vcenk/Netrix-sub000/internal/notify"
	"github.com/bs3vcenk/Netrix-sub000/internal/portal"
	"github.com/bs3vcenk/Netrix-sub000/internal/stats"
	"github.com/bs3vcenk/Netrix-sub000/internal/storage"
)

// NewPortalFactory opens a new portal session per aggregation run. Pages that
// fail to parse are archived when S3 snapshots are enabled.
func NewPortalFactory(cfg *config.Config) (aggregate.PortalFactory, error) {
	var snapshots portal.Snapshotter
	if cfg.Storage.S3.Enabled {
		s3Storage, err := storage.NewS3Storage(cfg)
		if err != nil {
			return nil, err
		}
		snapshots = storage.NewSnapshotArchive(s3Storage, cfg.Storage.S3.SnapshotPrefix)
	}

	extractor := extract.NewHTML(cfg.Location())
	return func() (aggregate.Portal, error) {
		session, err := portal.NewSession(cfg)
		if err != nil {
			return nil, err
		}
		return portal.NewService(session, extractor, snapshots), nil
	}, nil
}

// DatabaseReminders stores every user's reminders in the reminders table.
func DatabaseReminders(repo db.ReminderRepository) ReminderBackend {
	return func(token string) notify.Plugin {
		return db.ForOwner(repo, token)
	}
}

// StatsForwarderFor returns nil when no forward URL is configured.
func StatsForwarderFor(cfg *config.Config) StatsForwarder {
	client := stats.NewClient(cfg)
	if !client.Enabled() {
		return nil
	}
	return client
}
