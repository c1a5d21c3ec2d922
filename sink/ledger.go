package sink

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// QuestionRecord is one entry in the unanswered-question ledger. Records
// are created with a null answer, resolved by exactly one update, and
// never deleted by the engine.
type QuestionRecord struct {
	ID        string
	Question  string
	Answer    string
	Answered  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ledger is the durable QuestionRecord store, backed by SQLite.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) the ledger database under dataDir.
func NewLedger(dataDir string) (*Ledger, error) {
	dbPath := filepath.Join(dataDir, "questions.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ledger := &Ledger{db: db}
	if err := ledger.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return ledger, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_answer ON questions(answer);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Create implements QuestionStore.Create.
func (l *Ledger) Create(ctx context.Context, question string) (string, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO questions (id, question, answer, created_at, updated_at) VALUES (?, ?, NULL, ?, ?)`,
		id, question, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert question: %w", err)
	}
	return id, nil
}

// SetAnswer implements QuestionStore.SetAnswer. An unknown id fails with
// ErrRecordNotFound.
func (l *Ledger) SetAnswer(ctx context.Context, id, answer string) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE questions SET answer = ?, updated_at = ? WHERE id = ?`,
		answer, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Get returns one record by id.
func (l *Ledger) Get(ctx context.Context, id string) (*QuestionRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, question, answer, created_at, updated_at FROM questions WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	return rec, nil
}

// ListUnanswered returns all records still awaiting an answer, oldest
// first, for the operator reviewing what the assistant could not handle.
func (l *Ledger) ListUnanswered(ctx context.Context) ([]QuestionRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, question, answer, created_at, updated_at FROM questions WHERE answer IS NULL ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var records []QuestionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*QuestionRecord, error) {
	var rec QuestionRecord
	var answer sql.NullString

	if err := s.Scan(&rec.ID, &rec.Question, &answer, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if answer.Valid {
		rec.Answer = answer.String
		rec.Answered = true
	}
	return &rec, nil
}
