// Package exam implements the per-user exam flow: intro → exam →
// results, with history, progress and chat reachable from any phase.
// All flow state lives in an explicit State value keyed by login token;
// there are no package-level globals.
package exam

import (
	"errors"
	"fmt"
	"sync"

	"examtrainer/internal/model"
)

// Phase is the current screen of the exam flow.
type Phase string

const (
	PhaseIntro    Phase = "intro"
	PhaseExam     Phase = "exam"
	PhaseResults  Phase = "results"
	PhaseHistory  Phase = "history"
	PhaseProgress Phase = "progress"
	PhaseChat     Phase = "chat"
)

var (
	// ErrNoQuestions rejects a start for a subject/level pair with an
	// empty question list.
	ErrNoQuestions = errors.New("no questions available for this subject and level")
	// ErrInvalidTransition rejects an operation outside its phase.
	ErrInvalidTransition = errors.New("invalid exam phase transition")
)

// Store is the persistence surface the machine needs.
type Store interface {
	FetchQuestions(subject string, level model.Level) ([]model.Question, error)
	StartSession(userID int64, subject string) (int64, error)
	FinishSession(sessionID int64) error
	SaveAnswer(sessionID, questionID int64, userAnswer string, isCorrect bool, feedback string) error
}

// Answered is one in-memory answer record for the current exam.
type Answered struct {
	Question   model.Question
	UserAnswer string
	IsCorrect  bool
	Feedback   string
}

// State holds one user's exam flow. The embedded mutex serializes
// submissions for the same session; different sessions never share a
// State, so their writes cannot interleave on one Answer row.
type State struct {
	sync.Mutex

	Phase     Phase
	User      model.User
	Subject   string
	Questions []model.Question
	Current   int // cursor into Questions; monotonic within one exam
	Answers   []Answered
	Mistakes  []string // question texts answered incorrectly, seeds follow-up generation
	SessionID int64
	Followups []string

	ChatSubject string
	Chat        []model.ChatMessage
}

// NewState returns a fresh intro-phase state for an authenticated user.
func NewState(u model.User) *State {
	return &State{Phase: PhaseIntro, User: u}
}

// CurrentQuestion returns the question under the cursor.
func (st *State) CurrentQuestion() (model.Question, bool) {
	if st.Phase != PhaseExam || st.Current >= len(st.Questions) {
		return model.Question{}, false
	}
	return st.Questions[st.Current], true
}

// Score returns the number of correct answers and the total so far.
func (st *State) Score() (correct, total int) {
	for _, a := range st.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	return correct, len(st.Answers)
}

// resetExam clears all exam-local fields, keeping the user and chat.
func (st *State) resetExam() {
	st.Subject = ""
	st.Questions = nil
	st.Current = 0
	st.Answers = nil
	st.Mistakes = nil
	st.SessionID = 0
	st.Followups = nil
}

// Machine drives State transitions against the store.
type Machine struct {
	store Store
}

// NewMachine creates a machine backed by the given store.
func NewMachine(s Store) *Machine {
	return &Machine{store: s}
}

// Start moves intro → exam. It rejects the transition when no questions
// exist for (subject, user.level), leaving the state in intro. On
// success a session row is allocated and the ordered question list
// loaded with the cursor at zero.
func (m *Machine) Start(st *State, subject string) error {
	if st.Phase != PhaseIntro {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, st.Phase)
	}
	questions, err := m.store.FetchQuestions(subject, st.User.Level)
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	sessionID, err := m.store.StartSession(st.User.ID, subject)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	st.Subject = subject
	st.Questions = questions
	st.Current = 0
	st.Answers = nil
	st.Mistakes = nil
	st.Followups = nil
	st.SessionID = sessionID
	st.Phase = PhaseExam
	return nil
}

// Submit records one answer: correctness is exact string equality
// against the stored correct answer, computed once and never
// recomputed. The answer is persisted immediately so partial progress
// survives interruption, then the cursor advances. Reaching the end of
// the list transitions to results automatically.
func (m *Machine) Submit(st *State, answer string) error {
	if st.Phase != PhaseExam {
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, st.Phase)
	}
	q := st.Questions[st.Current]
	correct := answer == q.CorrectAnswer

	if err := m.store.SaveAnswer(st.SessionID, q.ID, answer, correct, ""); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	st.Answers = append(st.Answers, Answered{
		Question:   q,
		UserAnswer: answer,
		IsCorrect:  correct,
	})
	if !correct {
		st.Mistakes = append(st.Mistakes, q.Text)
	}
	st.Current++

	if st.Current >= len(st.Questions) {
		st.Phase = PhaseResults
		if err := m.store.FinishSession(st.SessionID); err != nil {
			return fmt.Errorf("finish session: %w", err)
		}
	}
	return nil
}

// Abort discards an in-progress exam: exam → intro. Answers already
// persisted stay in storage, orphaned under a session without a
// finished_at.
func (m *Machine) Abort(st *State) error {
	if st.Phase != PhaseExam {
		return fmt.Errorf("%w: abort from %s", ErrInvalidTransition, st.Phase)
	}
	st.resetExam()
	st.Phase = PhaseIntro
	return nil
}

// Restart moves results → intro, clearing all exam-local state while
// preserving the authenticated user.
func (m *Machine) Restart(st *State) error {
	if st.Phase != PhaseResults {
		return fmt.Errorf("%w: restart from %s", ErrInvalidTransition, st.Phase)
	}
	st.resetExam()
	st.Phase = PhaseIntro
	return nil
}

// Home returns to the intro screen from anywhere. A mid-exam exit is an
// abort; the tutor chat history is dropped either way.
func (m *Machine) Home(st *State) {
	if st.Phase == PhaseExam {
		st.resetExam()
	}
	st.Chat = nil
	st.ChatSubject = ""
	st.Phase = PhaseIntro
}

// History, Progress and OpenChat are side phases, re-entrant from any
// phase; they leave all exam-local fields untouched.

func (st *State) History() { st.Phase = PhaseHistory }

func (st *State) Progress() { st.Phase = PhaseProgress }

func (st *State) OpenChat() { st.Phase = PhaseChat }
