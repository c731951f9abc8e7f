package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

var ErrRunNotFound = errors.New("run not found")

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME,
	window_days     INTEGER NOT NULL,
	status          TEXT NOT NULL DEFAULT 'in_progress',
	sections        INTEGER NOT NULL DEFAULT 0,
	digest_path     TEXT NOT NULL DEFAULT '',
	newsletter_path TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Run 一次运行的记录，仅用于审计，不作为缓存读取
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     *time.Time
	WindowDays     int
	Status         RunStatus
	Sections       int
	DigestPath     string
	NewsletterPath string
	ErrorMessage   string
}

// RunOutcome 运行结束时回写的结果
type RunOutcome struct {
	Sections       int
	DigestPath     string
	NewsletterPath string
}

type RunModel struct {
	db  *sql.DB
	now func() time.Time
}

func NewRunModel(db *sql.DB) *RunModel {
	return &RunModel{db: db, now: time.Now}
}

// Migrate 创建表结构
func (m *RunModel) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, createRunsTable)
	return err
}

// Create 创建运行记录
func (m *RunModel) Create(ctx context.Context, windowDays int) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		StartedAt:  m.now().UTC(),
		WindowDays: windowDays,
		Status:     RunStatusInProgress,
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, window_days, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.WindowDays, string(run.Status))
	if err != nil {
		return nil, err
	}
	return run, nil
}

// MarkCompleted 标记运行完成
func (m *RunModel) MarkCompleted(ctx context.Context, id string, outcome RunOutcome) error {
	return m.finish(ctx, id, RunStatusCompleted, outcome, "")
}

// MarkFailed 标记运行失败
func (m *RunModel) MarkFailed(ctx context.Context, id string, outcome RunOutcome, errorMsg string) error {
	return m.finish(ctx, id, RunStatusFailed, outcome, errorMsg)
}

func (m *RunModel) finish(ctx context.Context, id string, status RunStatus, outcome RunOutcome, errorMsg string) error {
	res, err := m.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, sections = ?, digest_path = ?, newsletter_path = ?, error_message = ? WHERE id = ?`,
		string(status), m.now().UTC(), outcome.Sections, outcome.DigestPath, outcome.NewsletterPath, errorMsg, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const selectRun = `SELECT id, started_at, finished_at, window_days, status, sections, digest_path, newsletter_path, error_message FROM runs`

// Get 按 ID 查询
func (m *RunModel) Get(ctx context.Context, id string) (*Run, error) {
	return m.scanOne(m.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
}

// Latest 最近一次运行
func (m *RunModel) Latest(ctx context.Context) (*Run, error) {
	return m.scanOne(m.db.QueryRowContext(ctx, selectRun+` ORDER BY started_at DESC LIMIT 1`))
}

func (m *RunModel) scanOne(row *sql.Row) (*Run, error) {
	var run Run
	var status string
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.WindowDays, &status,
		&run.Sections, &run.DigestPath, &run.NewsletterPath, &run.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
