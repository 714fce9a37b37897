package store

import (
	"database/sql"
	"math"
	"time"

	"examtrainer/internal/model"
)

// StartSession creates a session row for one exam attempt.
func (s *Store) StartSession(userID int64, subject string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sessions (user_id, subject, started_at) VALUES (?, ?, ?)`,
		userID, subject, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishSession marks a session completed. Aborted sessions never get
// a finished_at.
func (s *Store) FinishSession(sessionID int64) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET finished_at = ? WHERE id = ?`, time.Now(), sessionID,
	)
	return err
}

// GetSession returns a session by ID.
func (s *Store) GetSession(id int64) (model.Session, error) {
	var sess model.Session
	err := s.db.QueryRow(
		`SELECT id, user_id, subject, started_at, finished_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Subject, &sess.StartedAt, &sess.FinishedAt)
	return sess, err
}

// SaveAnswer records an answer, upserting on (session_id, question_id)
// so that the later feedback-attachment call updates the existing row
// in place instead of inserting a duplicate.
func (s *Store) SaveAnswer(sessionID, questionID int64, userAnswer string, isCorrect bool, feedback string) error {
	_, err := s.db.Exec(
		`INSERT INTO answers (session_id, question_id, user_answer, is_correct, feedback)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET
			user_answer = excluded.user_answer,
			is_correct = excluded.is_correct,
			feedback = excluded.feedback`,
		sessionID, questionID, userAnswer, isCorrect, nullable(feedback),
	)
	return err
}

// SessionAnswers returns the answers recorded for a session, in
// presentation order.
func (s *Store) SessionAnswers(sessionID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, question_id, user_answer, is_correct, feedback
		 FROM answers WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		var feedback sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.UserAnswer, &a.IsCorrect, &feedback); err != nil {
			return nil, err
		}
		a.Feedback = feedback.String
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// UserSessionsWithScores returns the user's past sessions with their
// scores, newest first. The inner join deliberately excludes sessions
// with zero recorded answers: an abandoned session that never saw an
// answer does not show up in history.
func (s *Store) UserSessionsWithScores(userID int64) ([]model.SessionScore, error) {
	rows, err := s.db.Query(
		`SELECT
			s.id,
			s.subject,
			s.started_at,
			COUNT(a.id),
			SUM(CASE WHEN a.is_correct = 1 THEN 1 ELSE 0 END)
		 FROM sessions s
		 JOIN answers a ON s.id = a.session_id
		 WHERE s.user_id = ?
		 GROUP BY s.id, s.subject, s.started_at
		 ORDER BY s.started_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scores []model.SessionScore
	for rows.Next() {
		var sc model.SessionScore
		var correct sql.NullInt64
		if err := rows.Scan(&sc.SessionID, &sc.Subject, &sc.StartedAt, &sc.TotalQuestions, &correct); err != nil {
			return nil, err
		}
		sc.CorrectAnswers = int(correct.Int64)
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// UserProgress aggregates the user's answers per (subject, topic).
// Questions without a topic group under the empty string.
func (s *Store) UserProgress(userID int64) ([]model.TopicProgress, error) {
	rows, err := s.db.Query(
		`SELECT
			s.subject,
			q.topic,
			COUNT(*),
			SUM(CASE WHEN a.is_correct = 1 THEN 1 ELSE 0 END)
		 FROM sessions s
		 JOIN answers a ON s.id = a.session_id
		 JOIN questions q ON a.question_id = q.id
		 WHERE s.user_id = ?
		 GROUP BY s.subject, q.topic
		 ORDER BY s.subject, q.topic`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var progress []model.TopicProgress
	for rows.Next() {
		var p model.TopicProgress
		var topic sql.NullString
		var correct sql.NullInt64
		if err := rows.Scan(&p.Subject, &topic, &p.TotalQuestions, &correct); err != nil {
			return nil, err
		}
		p.Topic = topic.String
		p.CorrectAnswers = int(correct.Int64)
		p.Percentage = Percentage(p.CorrectAnswers, p.TotalQuestions)
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// Percentage is round(100 * correct / total), and 0 when total is 0.
// Halves round to even, so 12.5% is 12 and 37.5% is 38.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.RoundToEven(100 * float64(correct) / float64(total)))
}
