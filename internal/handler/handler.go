package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"examtrainer/internal/exam"
	"examtrainer/internal/handler/views"
	appI18n "examtrainer/internal/i18n"
	"examtrainer/internal/llm"
	"examtrainer/internal/model"
	"examtrainer/internal/store"
)

// defaultSubjects is offered on the intro screen when the question bank
// is still empty, so the form never renders without choices.
var defaultSubjects = []string{"Nederlands", "Engels", "Geschiedenis", "Economie"}

// Handler wires the store, the exam state machine and the feedback
// gateway into the HTTP surface.
type Handler struct {
	store   *store.Store
	llm     *llm.Client
	machine *exam.Machine
	states  *exam.Registry
	config  model.AppConfig
}

func New(s *store.Store, l *llm.Client, cfg model.AppConfig) *Handler {
	return &Handler{
		store:   s,
		llm:     l,
		machine: exam.NewMachine(s),
		states:  exam.NewRegistry(),
		config:  cfg,
	}
}

// Routes mounts all application routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(h.config.AssetsDir)))
	r.Handle("/assets/*", fs)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)

		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Get("/register", h.handleRegisterPage)
		r.Post("/register", h.handleRegister)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/", h.handleIntro)
			r.Post("/exam/start", h.handleStartExam)
			r.Get("/exam", h.handleExam)
			r.Post("/exam/answer", h.handleAnswer)
			r.Post("/exam/abort", h.handleAbort)
			r.Get("/results", h.handleResults)
			r.Post("/exam/restart", h.handleRestart)
			r.Get("/history", h.handleHistory)
			r.Get("/progress", h.handleProgress)
			r.Get("/chat", h.handleChatPage)
			r.Post("/chat", h.handleChatMessage)
			r.Post("/chat/seed", h.handleChatSeed)
		})
	})
}

// state returns the per-login exam state for the current request. Must
// only be called below requireAuth.
func (h *Handler) state(r *http.Request) *exam.State {
	user := model.UserFromContext(r.Context())
	return h.states.Get(tokenFromContext(r.Context()), *user)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) subjects() []string {
	subjects, err := h.store.ListSubjects()
	if err != nil {
		slog.Error("failed to list subjects", "error", err)
	}
	if len(subjects) == 0 {
		return defaultSubjects
	}
	return subjects
}

func (h *Handler) handleIntro(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	if st.Phase == exam.PhaseExam {
		http.Redirect(w, r, "/exam", http.StatusSeeOther)
		return
	}
	h.machine.Home(st)
	h.render(w, r, views.IntroPage(&st.User, h.subjects(), ""))
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	subject := r.FormValue("subject")
	if subject == "" {
		h.renderIntroError(w, r, st, appI18n.T(r.Context(), "EmptyFields"), http.StatusBadRequest)
		return
	}

	switch err := h.machine.Start(st, subject); {
	case errors.Is(err, exam.ErrNoQuestions):
		h.renderIntroError(w, r, st, appI18n.T(r.Context(), "NoQuestions"), http.StatusOK)
	case errors.Is(err, exam.ErrInvalidTransition):
		http.Redirect(w, r, "/exam", http.StatusSeeOther)
	case err != nil:
		slog.Error("failed to start exam", "error", err, "subject", subject)
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		http.Redirect(w, r, "/exam", http.StatusSeeOther)
	}
}

func (h *Handler) renderIntroError(w http.ResponseWriter, r *http.Request, st *exam.State, msg string, code int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := views.IntroPage(&st.User, h.subjects(), msg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleExam(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	switch st.Phase {
	case exam.PhaseExam:
		h.render(w, r, views.ExamPage(st))
	case exam.PhaseResults:
		http.Redirect(w, r, "/results", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	answer := r.FormValue("answer")
	if answer == "" {
		http.Error(w, "answer cannot be empty", http.StatusBadRequest)
		return
	}

	if err := h.machine.Submit(st, answer); err != nil {
		if errors.Is(err, exam.ErrInvalidTransition) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("failed to submit answer", "error", err, "session", st.SessionID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if st.Phase == exam.PhaseResults {
		http.Redirect(w, r, "/results", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/exam", http.StatusSeeOther)
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	// A stray abort outside the exam phase just goes home.
	_ = h.machine.Abort(st)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	if st.Phase != exam.PhaseResults {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.attachFeedback(r, st)

	if st.Followups == nil && len(st.Mistakes) > 0 {
		st.Followups = h.llm.GenerateFollowup(r.Context(), st.Subject, st.User.Level, st.Mistakes, 3)
	}

	h.render(w, r, views.ResultsPage(st))
}

// attachFeedback fills in feedback for answered questions that do not
// have any yet, persisting each generated text next to the stored
// answer so a reload does not hit the model again.
func (h *Handler) attachFeedback(r *http.Request, st *exam.State) {
	rows, err := h.store.SessionAnswers(st.SessionID)
	if err != nil {
		slog.Error("failed to load session answers", "error", err, "session", st.SessionID)
		return
	}
	byQuestion := make(map[int64]model.Answer, len(rows))
	for _, row := range rows {
		byQuestion[row.QuestionID] = row
	}

	for i := range st.Answers {
		a := &st.Answers[i]
		if a.Feedback != "" {
			continue
		}
		row, ok := byQuestion[a.Question.ID]
		if !ok {
			continue
		}
		if row.Feedback != "" {
			a.Feedback = row.Feedback
			continue
		}
		fb := h.llm.Feedback(r.Context(), row.ID, a.Question, a.UserAnswer)
		if err := h.store.SaveAnswer(st.SessionID, a.Question.ID, a.UserAnswer, a.IsCorrect, fb); err != nil {
			slog.Error("failed to persist feedback", "error", err, "answer", row.ID)
		}
		a.Feedback = fb
	}
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	_ = h.machine.Restart(st)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	st.History()
	st.Unlock()

	user := model.UserFromContext(r.Context())
	scores, err := h.store.UserSessionsWithScores(user.ID)
	if err != nil {
		slog.Error("failed to load history", "error", err, "user", user.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, views.HistoryPage(user, scores))
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	st.Progress()
	st.Unlock()

	user := model.UserFromContext(r.Context())
	progress, err := h.store.UserProgress(user.ID)
	if err != nil {
		slog.Error("failed to load progress", "error", err, "user", user.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, views.ProgressPage(user, progress))
}

func (h *Handler) handleChatPage(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	st.OpenChat()
	if st.ChatSubject == "" {
		st.ChatSubject = st.Subject
	}
	h.render(w, r, views.ChatPage(&st.User, h.subjects(), st.ChatSubject, st.Chat, len(st.Answers) > 0))
}

func (h *Handler) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	st.OpenChat()
	subject := r.FormValue("subject")
	message := r.FormValue("message")
	if subject != "" {
		st.ChatSubject = subject
	}
	if message == "" {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	history := st.Chat
	st.Chat = append(st.Chat, model.ChatMessage{Role: model.ChatRoleUser, Content: message})
	reply := h.llm.AskTutor(r.Context(), st.ChatSubject, st.User.Level, message, history)
	st.Chat = append(st.Chat, model.ChatMessage{Role: model.ChatRoleAssistant, Content: reply})

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// handleChatSeed primes the tutor chat from the last exam: the subject,
// the level and the questions answered incorrectly become an assistant
// message, so the conversation picks up where the exam left off.
func (h *Handler) handleChatSeed(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	st.Lock()
	defer st.Unlock()

	st.OpenChat()
	if len(st.Answers) == 0 {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}

	st.ChatSubject = st.Subject
	var content string
	if len(st.Mistakes) == 0 {
		content = appI18n.T(r.Context(), "NoMistakesCongrats")
	} else {
		lines := make([]string, len(st.Mistakes))
		for i, m := range st.Mistakes {
			lines[i] = "- " + m
		}
		content = appI18n.Td(r.Context(), "ChatSeedContext", map[string]any{
			"Subject":  st.Subject,
			"Level":    string(st.User.Level),
			"Mistakes": strings.Join(lines, "\n"),
		})
	}
	st.Chat = append(st.Chat, model.ChatMessage{Role: model.ChatRoleAssistant, Content: content})

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}
