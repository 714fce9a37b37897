package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"examtrainer/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations holds one additive SQL step per schema version. Step i
// brings the database from user_version i to i+1. Existing rows are
// never destroyed; new columns are nullable or defaulted.
var migrations = []string{
	// v1: base tables, matching the layout before salted credentials
	// and per-question topics existed.
	`
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject TEXT NOT NULL,
		level TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		question TEXT NOT NULL,
		options TEXT,
		correct_answer TEXT NOT NULL,
		image TEXT,
		context TEXT
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT 'havo'
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		user_answer TEXT NOT NULL,
		is_correct INTEGER NOT NULL,
		feedback TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);
	`,
	// v2: salted credentials with an explicit scheme field, question
	// topics, and session ownership.
	`
	ALTER TABLE users ADD COLUMN salt TEXT NOT NULL DEFAULT '';
	ALTER TABLE users ADD COLUMN scheme TEXT NOT NULL DEFAULT '';
	ALTER TABLE questions ADD COLUMN topic TEXT;
	ALTER TABLE sessions ADD COLUMN user_id INTEGER REFERENCES users(id);
	`,
	// v3: login tokens, one-answer-per-question enforcement, and
	// lookup indexes.
	`
	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_answers_session_question
		ON answers(session_id, question_id);
	CREATE INDEX IF NOT EXISTS idx_questions_subject_level
		ON questions(subject, level);
	CREATE INDEX IF NOT EXISTS idx_answers_session
		ON answers(session_id);
	`,
}

// migrate applies all pending schema steps, tracked via PRAGMA
// user_version. Re-running against an up-to-date database is a no-op.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply schema version %d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the current PRAGMA user_version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version)
	return version, err
}

const questionColumns = `id, subject, level, year, question, options, correct_answer, image, context, topic`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var options, image, context, topic sql.NullString
	err := row.Scan(&q.ID, &q.Subject, &q.Level, &q.Year, &q.Text,
		&options, &q.CorrectAnswer, &image, &context, &topic)
	if err != nil {
		return q, err
	}
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
			return q, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
	}
	q.Image = image.String
	q.Context = context.String
	q.Topic = topic.String
	return q, nil
}

// FetchQuestions returns all questions for an exact (subject, level)
// pair, ordered by insertion id so presentation order is stable.
func (s *Store) FetchQuestions(subject string, level model.Level) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions WHERE subject = ? AND level = ? ORDER BY id`,
		subject, level,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id,
	))
}

// InsertQuestion stores a question and returns its id.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	return insertQuestion(s.db, q)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertQuestion(db execer, q model.Question) (int64, error) {
	var options any
	if len(q.Options) > 0 {
		data, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("encode options: %w", err)
		}
		options = string(data)
	}
	res, err := db.Exec(
		`INSERT INTO questions (subject, level, year, question, options, correct_answer, image, context, topic)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Subject, q.Level, q.Year, q.Text, options, q.CorrectAnswer,
		nullable(q.Image), nullable(q.Context), nullable(q.Topic),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListSubjects returns the distinct subjects present in the question
// table, ordered alphabetically.
func (s *Store) ListSubjects() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT subject FROM questions ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
