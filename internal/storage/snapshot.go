package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/extract"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotArchive stores portal pages that failed to parse so the markup
// change can be inspected later.
type SnapshotArchive struct {
	storage Storage
	prefix  string
	now     func() time.Time
	log     zerolog.Logger
}

func NewSnapshotArchive(storage Storage, prefix string) *SnapshotArchive {
	return &SnapshotArchive{
		storage: storage,
		prefix:  prefix,
		now:     time.Now,
		log:     logger.Component("snapshots"),
	}
}

func (a *SnapshotArchive) Snapshot(ctx context.Context, kind extract.Kind, path string, page []byte) error {
	key := a.Key(kind)
	metadata := map[string]string{"portal-path": path, "kind": string(kind)}
	if err := a.storage.Upload(ctx, key, bytes.NewReader(page), "text/html; charset=utf-8", metadata); err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}
	a.log.Info().Str("key", key).Str("path", path).Int("bytes", len(page)).Msg("Archived page snapshot")
	return nil
}

// Key returns <prefix><kind>/<utc timestamp>-<uuid>.html.
func (a *SnapshotArchive) Key(kind extract.Kind) string {
	prefix := a.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%s-%s.html", prefix, kind, a.now().UTC().Format("20060102T150405"), uuid.NewString())
}
