package agent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/step"
	"github.com/tbxark/intakeagent/types"
)

// FormManager receives finished and abandoned intakes.
type FormManager interface {
	Submit(ctx context.Context, sessionID string, task step.TaskInfo) error
	Cancel(ctx context.Context, sessionID string, form types.FormState) error
}

type LogFormManager struct{}

func (LogFormManager) Submit(ctx context.Context, sessionID string, task step.TaskInfo) error {
	slog.Info("Task submitted", "session", sessionID, "task", task)
	return nil
}

func (LogFormManager) Cancel(ctx context.Context, sessionID string, form types.FormState) error {
	slog.Debug("Task cancelled", "session", sessionID, "form", form)
	return nil
}

const (
	TaskSubmitted = "submitted"
	TaskCancelled = "cancelled"
)

type TaskRecord struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"session_id"`
	Status    string        `json:"status"`
	Task      step.TaskInfo `json:"task"`
	CreatedAt string        `json:"created_at"`
}

// SQLiteFormManager records every submission and cancellation in the tasks table
// created by OpenSQLite.
type SQLiteFormManager struct {
	db *sql.DB
}

func NewSQLiteFormManager(db *sql.DB) *SQLiteFormManager {
	return &SQLiteFormManager{db: db}
}

func (m *SQLiteFormManager) Submit(ctx context.Context, sessionID string, task step.TaskInfo) error {
	return m.insert(ctx, sessionID, TaskSubmitted, task)
}

func (m *SQLiteFormManager) Cancel(ctx context.Context, sessionID string, form types.FormState) error {
	task, err := step.TaskInfoFromForm(form)
	if err != nil {
		return err
	}
	return m.insert(ctx, sessionID, TaskCancelled, task)
}

func (m *SQLiteFormManager) insert(ctx context.Context, sessionID, status string, task step.TaskInfo) error {
	payload, err := sonic.MarshalString(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO tasks (session_id, status, payload) VALUES (?, ?, ?)`,
		sessionID, status, payload)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	slog.Info("Task recorded", "session", sessionID, "status", status)
	return nil
}

// Tasks lists the recorded tasks with the given status, oldest first. An empty status lists all.
func (m *SQLiteFormManager) Tasks(ctx context.Context, status string) ([]TaskRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, session_id, status, payload, created_at FROM tasks
		WHERE ? = '' OR status = ? ORDER BY id`, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Status, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := sonic.UnmarshalString(payload, &rec.Task); err != nil {
			return nil, fmt.Errorf("decode task %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var (
	_ FormManager = LogFormManager{}
	_ FormManager = (*SQLiteFormManager)(nil)
)
