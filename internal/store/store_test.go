package store

import (
	"database/sql"
	"testing"

	"examtrainer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, subject string, level model.Level, text, correct, topic string) int64 {
	t.Helper()
	id, err := s.InsertQuestion(model.Question{
		Subject:       subject,
		Level:         level,
		Text:          text,
		Options:       []string{correct, "fout A", "fout B"},
		CorrectAnswer: correct,
		Topic:         topic,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)

	version, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), version)
	}

	// Re-running against an up-to-date database must be a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	version, err = s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion after re-migrate: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected schema version %d after re-migrate, got %d", len(migrations), version)
	}
}

func TestLegacyUserSchemeMapping(t *testing.T) {
	s := newTestStore(t)

	// Rows written before the salt and scheme columns existed carry the
	// column defaults; reading them back must map to the legacy scheme.
	if _, err := s.db.Exec(
		`INSERT INTO users (username, password, level) VALUES (?, ?, ?)`,
		"oud", "hash", "havo",
	); err != nil {
		t.Fatalf("insert legacy user: %v", err)
	}

	u, err := s.GetUserByUsername("oud")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil {
		t.Fatal("expected legacy user to survive")
	}
	if u.Scheme != model.SchemeSHA256 {
		t.Errorf("expected empty-salt legacy row to map to sha256, got %q", u.Scheme)
	}
}

func TestQuestionRoundtrip(t *testing.T) {
	s := newTestStore(t)

	id := insertTestQuestion(t, s, "Economie", model.LevelHavo, "Wat is inflatie?", "Stijging van het prijspeil", "geldzaken")
	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Text != "Wat is inflatie?" {
		t.Errorf("expected question text, got %q", q.Text)
	}
	if len(q.Options) != 3 {
		t.Errorf("expected 3 options, got %d", len(q.Options))
	}
	if q.CorrectAnswer != "Stijging van het prijspeil" {
		t.Errorf("unexpected correct answer %q", q.CorrectAnswer)
	}
	if q.Topic != "geldzaken" {
		t.Errorf("expected topic geldzaken, got %q", q.Topic)
	}
	if q.Open() {
		t.Error("question with options should not be open")
	}

	if _, err := s.GetQuestion(9999); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows for missing question, got %v", err)
	}
}

func TestOpenQuestionHasNoOptions(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertQuestion(model.Question{
		Subject:       "Nederlands",
		Level:         model.LevelVwo,
		Text:          "Noem een stijlfiguur.",
		CorrectAnswer: "metafoor",
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if !q.Open() {
		t.Error("question without options should be open")
	}
	if q.Options != nil {
		t.Errorf("expected nil options, got %v", q.Options)
	}
}

func TestFetchQuestionsExactPair(t *testing.T) {
	s := newTestStore(t)

	a := insertTestQuestion(t, s, "Economie", model.LevelHavo, "vraag 1", "a", "")
	b := insertTestQuestion(t, s, "Economie", model.LevelHavo, "vraag 2", "b", "")
	insertTestQuestion(t, s, "Economie", model.LevelVwo, "vwo vraag", "c", "")
	insertTestQuestion(t, s, "Engels", model.LevelHavo, "engels vraag", "d", "")

	qs, err := s.FetchQuestions("Economie", model.LevelHavo)
	if err != nil {
		t.Fatalf("FetchQuestions: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected exactly the havo economie pair, got %d questions", len(qs))
	}
	// Insertion order is presentation order.
	if qs[0].ID != a || qs[1].ID != b {
		t.Errorf("expected ids [%d %d], got [%d %d]", a, b, qs[0].ID, qs[1].ID)
	}

	qs, err = s.FetchQuestions("Wiskunde", model.LevelHavo)
	if err != nil {
		t.Fatalf("FetchQuestions empty: %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("expected no questions for unknown subject, got %d", len(qs))
	}
}

func TestListSubjects(t *testing.T) {
	s := newTestStore(t)

	insertTestQuestion(t, s, "Nederlands", model.LevelHavo, "v1", "a", "")
	insertTestQuestion(t, s, "Economie", model.LevelHavo, "v2", "b", "")
	insertTestQuestion(t, s, "Economie", model.LevelVwo, "v3", "c", "")

	subjects, err := s.ListSubjects()
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 distinct subjects, got %v", subjects)
	}
	if subjects[0] != "Economie" || subjects[1] != "Nederlands" {
		t.Errorf("expected alphabetical order, got %v", subjects)
	}
}
