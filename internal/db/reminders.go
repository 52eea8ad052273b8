package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/internal/notify"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"
)

type ReminderRepository interface {
	List(ctx context.Context, owner string) ([]model.ScheduledReminder, error)
	Insert(ctx context.Context, owner string, reminders []model.ScheduledReminder) error
	Delete(ctx context.Context, owner, id string) error
	DeleteAll(ctx context.Context, owner string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ReminderRepository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, owner string) ([]model.ScheduledReminder, error) {
	query := `SELECT id, exam_id, title, body, trigger_at FROM reminders WHERE owner = ? ORDER BY trigger_at`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	defer rows.Close()

	reminders := []model.ScheduledReminder{}
	for rows.Next() {
		var rem model.ScheduledReminder
		if err := rows.Scan(&rem.ID, &rem.ExamID, &rem.Title, &rem.Body, &rem.TriggerAt); err != nil {
			return nil, errors.NewDatabaseError(err)
		}
		reminders = append(reminders, rem)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return reminders, nil
}

func (r *repository) Insert(ctx context.Context, owner string, reminders []model.ScheduledReminder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError(err)
	}
	defer tx.Rollback()

	query := `INSERT INTO reminders (owner, id, exam_id, title, body, trigger_at) VALUES (?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE title = VALUES(title), body = VALUES(body), trigger_at = VALUES(trigger_at)`

	for _, rem := range reminders {
		if _, err := tx.ExecContext(ctx, query, owner, rem.ID, rem.ExamID, rem.Title, rem.Body, rem.TriggerAt); err != nil {
			return errors.NewDatabaseError(fmt.Errorf("insert reminder %s: %w", rem.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, owner, id string) error {
	query := `DELETE FROM reminders WHERE owner = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, owner, id); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

func (r *repository) DeleteAll(ctx context.Context, owner string) error {
	query := `DELETE FROM reminders WHERE owner = ?`
	if _, err := r.db.ExecContext(ctx, query, owner); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// OwnerReminders exposes one user's reminders as a notify.Plugin.
type OwnerReminders struct {
	repo  ReminderRepository
	owner string
}

var _ notify.Plugin = (*OwnerReminders)(nil)

func ForOwner(repo ReminderRepository, owner string) *OwnerReminders {
	return &OwnerReminders{repo: repo, owner: owner}
}

func (o *OwnerReminders) GetAll(ctx context.Context) ([]model.ScheduledReminder, error) {
	return o.repo.List(ctx, o.owner)
}

func (o *OwnerReminders) Schedule(ctx context.Context, reminders []model.ScheduledReminder) error {
	if len(reminders) == 0 {
		return nil
	}
	return o.repo.Insert(ctx, o.owner, reminders)
}

func (o *OwnerReminders) Cancel(ctx context.Context, id string) error {
	return o.repo.Delete(ctx, o.owner, id)
}

func (o *OwnerReminders) CancelAll(ctx context.Context) error {
	return o.repo.DeleteAll(ctx, o.owner)
}
