// Package views renders the HTML pages as templ components. The
// components are written by hand against the templ runtime; handlers
// render them with Render(ctx, w).
package views

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"examtrainer/internal/exam"
	appI18n "examtrainer/internal/i18n"
	"examtrainer/internal/model"
)

func esc(s string) string { return html.EscapeString(s) }

// csrfField emits the hidden token input every POST form must carry.
func csrfField(ctx context.Context) string {
	return fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s">`,
		esc(model.CSRFTokenFromContext(ctx)))
}

// page wraps a body in the shared layout. The sidebar is only shown for
// authenticated pages.
func page(title string, user *model.User, body func(ctx context.Context, w io.Writer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		appTitle := appI18n.T(ctx, "AppTitle")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="nl">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s | %s</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; display: flex; min-height: 100vh; }
nav { width: 220px; background: #1f2937; color: #f9fafb; padding: 1rem; }
nav a { display: block; color: #f9fafb; text-decoration: none; padding: .4rem 0; }
main { flex: 1; padding: 2rem; max-width: 48rem; }
.correct { color: green; }
.incorrect { color: red; }
.error { color: #b91c1c; }
.success { color: #15803d; }
.feedback { background: #eff6ff; padding: .6rem; border-radius: .3rem; }
.chat-user { background: #e0e7ff; padding: .5rem; margin: .3rem 0; border-radius: .3rem; }
.chat-assistant { background: #f3f4f6; padding: .5rem; margin: .3rem 0; border-radius: .3rem; }
progress { width: 100%%; }
hr { border: 0; border-top: 1px solid #e5e7eb; margin: 1rem 0; }
</style>
</head>
<body>
`, esc(title), esc(appTitle))
		if user != nil {
			fmt.Fprintf(w, `<nav>
<h3>%s</h3>
<p>%s<br>%s: <strong>%s</strong></p>
<hr>
<a href="/">%s</a>
<a href="/">%s</a>
<a href="/chat">%s</a>
<a href="/history">%s</a>
<a href="/progress">%s</a>
<hr>
<form method="post" action="/logout">%s<button type="submit">%s</button></form>
</nav>
`,
				esc(appTitle),
				esc(user.Username),
				esc(appI18n.T(ctx, "Level")), esc(strings.ToUpper(string(user.Level))),
				esc(appI18n.T(ctx, "Dashboard")),
				esc(appI18n.T(ctx, "PracticeExam")),
				esc(appI18n.T(ctx, "Chat")),
				esc(appI18n.T(ctx, "History")),
				esc(appI18n.T(ctx, "Progress")),
				csrfField(ctx),
				esc(appI18n.T(ctx, "Logout")),
			)
		}
		fmt.Fprint(w, "<main>\n")
		if err := body(ctx, w); err != nil {
			return err
		}
		fmt.Fprint(w, "</main>\n</body>\n</html>\n")
		return nil
	})
}

// LoginPage renders the login form with an optional error message.
func LoginPage(errMsg string) templ.Component {
	return page("Login", nil, func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>%s</h1>\n", esc(appI18n.T(ctx, "AppTitle")))
		if errMsg != "" {
			fmt.Fprintf(w, `<p class="error">%s</p>`+"\n", esc(errMsg))
		}
		fmt.Fprintf(w, `<h2>%s</h2>
<form method="post" action="/login">
%s
<p><label>%s<br><input name="username" required></label></p>
<p><label>%s<br><input name="password" type="password" required></label></p>
<p><button type="submit">%s</button></p>
</form>
<p><a href="/register">%s</a></p>
`,
			esc(appI18n.T(ctx, "Login")),
			csrfField(ctx),
			esc(appI18n.T(ctx, "Username")),
			esc(appI18n.T(ctx, "Password")),
			esc(appI18n.T(ctx, "Login")),
			esc(appI18n.T(ctx, "Register")),
		)
		return nil
	})
}

// RegisterPage renders the registration form. msg is a validation or
// success message from a previous submit.
func RegisterPage(msg string, ok bool) templ.Component {
	return page("Register", nil, func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>%s</h1>\n", esc(appI18n.T(ctx, "Register")))
		if msg != "" {
			class := "error"
			if ok {
				class = "success"
			}
			fmt.Fprintf(w, `<p class="%s">%s</p>`+"\n", class, esc(msg))
		}
		fmt.Fprintf(w, `<form method="post" action="/register">
%s
<p><label>%s<br><input name="username" required></label></p>
<p><label>%s<br><input name="password" type="password" required></label></p>
<p><label>%s<br><select name="level">`,
			csrfField(ctx),
			esc(appI18n.T(ctx, "NewUsername")),
			esc(appI18n.T(ctx, "ChoosePassword")),
			esc(appI18n.T(ctx, "ChooseLevel")),
		)
		for _, l := range model.Levels {
			fmt.Fprintf(w, `<option value="%s">%s</option>`, l, esc(string(l)))
		}
		fmt.Fprintf(w, `</select></label></p>
<p><button type="submit">%s</button></p>
</form>
<p><a href="/login">%s</a></p>
`,
			esc(appI18n.T(ctx, "Register")),
			esc(appI18n.T(ctx, "Login")),
		)
		return nil
	})
}

// IntroPage renders the subject picker. errMsg reports a rejected start
// (no questions for the chosen subject/level).
func IntroPage(user *model.User, subjects []string, errMsg string) templ.Component {
	return page("Dashboard", user, func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>%s</h1>\n<p>%s</p>\n",
			esc(appI18n.T(ctx, "AppTitle")),
			esc(appI18n.T(ctx, "ChooseSubjectIntro")))
		if errMsg != "" {
			fmt.Fprintf(w, `<p class="error">%s</p>`+"\n", esc(errMsg))
		}
		fmt.Fprintf(w, `<form method="post" action="/exam/start">
%s
<p><label>%s<br><select name="subject">`, csrfField(ctx), esc(appI18n.T(ctx, "Subject")))
		for _, s := range subjects {
			fmt.Fprintf(w, `<option value="%s">%s</option>`, esc(s), esc(s))
		}
		fmt.Fprintf(w, `</select></label></p>
<p><button type="submit">%s</button></p>
</form>
`, esc(appI18n.T(ctx, "StartExam")))
		return nil
	})
}

// ExamPage renders the question under the cursor.
func ExamPage(st *exam.State) templ.Component {
	return page("Examen", &st.User, func(ctx context.Context, w io.Writer) error {
		q, ok := st.CurrentQuestion()
		if !ok {
			return nil
		}
		if q.Context != "" {
			fmt.Fprintf(w, "<p>%s</p>\n<hr>\n", esc(q.Context))
		}
		fmt.Fprintf(w, "<h2>%s</h2>\n<p>%s</p>\n",
			esc(appI18n.Td(ctx, "QuestionN", map[string]any{"N": st.Current + 1, "Total": len(st.Questions)})),
			esc(q.Text))
		if q.Image != "" {
			fmt.Fprintf(w, `<p><img src="/assets/%s" alt=""></p>`+"\n", esc(q.Image))
		}
		fmt.Fprint(w, `<form method="post" action="/exam/answer">`+"\n"+csrfField(ctx)+"\n")
		if q.Open() {
			fmt.Fprintf(w, `<p><label>%s:<br><input name="answer" required></label></p>`+"\n",
				esc(appI18n.T(ctx, "YourAnswer")))
		} else {
			fmt.Fprintf(w, "<p>%s:</p>\n", esc(appI18n.T(ctx, "ChooseAnswer")))
			for i, opt := range q.Options {
				fmt.Fprintf(w, `<p><label><input type="radio" name="answer" value="%s" %s> %s</label></p>`+"\n",
					esc(opt), checked(i == 0), esc(opt))
			}
		}
		fmt.Fprintf(w, `<p><button type="submit">%s</button></p>
</form>
<form method="post" action="/exam/abort">
%s
<p><button type="submit">%s</button></p>
</form>
`,
			esc(appI18n.T(ctx, "ConfirmAnswer")),
			csrfField(ctx),
			esc(appI18n.T(ctx, "AbortExam")),
		)
		return nil
	})
}

func checked(b bool) string {
	if b {
		return "checked"
	}
	return ""
}

// ResultsPage renders the score, the per-answer feedback, and the
// generated follow-up questions.
func ResultsPage(st *exam.State) templ.Component {
	return page("Resultaten", &st.User, func(ctx context.Context, w io.Writer) error {
		correct, total := st.Score()
		fmt.Fprintf(w, "<h1>%s</h1>\n<p><strong>%s:</strong> %d/%d</p>\n",
			esc(appI18n.T(ctx, "Results")),
			esc(appI18n.T(ctx, "Score")), correct, total)

		fmt.Fprintf(w, "<h2>%s</h2>\n<h3>%s</h3>\n<ul>\n", esc(appI18n.T(ctx, "Summary")), esc(appI18n.T(ctx, "WentWell")))
		any := false
		for _, a := range st.Answers {
			if a.IsCorrect {
				fmt.Fprintf(w, "<li>%s</li>\n", esc(a.Question.Text))
				any = true
			}
		}
		if !any {
			fmt.Fprintf(w, "<li><em>%s</em></li>\n", esc(appI18n.T(ctx, "NoneCorrect")))
		}
		fmt.Fprintf(w, "</ul>\n<h3>%s</h3>\n<ul>\n", esc(appI18n.T(ctx, "CanImprove")))
		any = false
		for _, a := range st.Answers {
			if !a.IsCorrect {
				fmt.Fprintf(w, "<li>%s</li>\n", esc(a.Question.Text))
				any = true
			}
		}
		if !any {
			fmt.Fprintf(w, "<li><em>%s</em></li>\n", esc(appI18n.T(ctx, "AllCorrect")))
		}
		fmt.Fprint(w, "</ul>\n<hr>\n")

		for i, a := range st.Answers {
			icon, class := "✅", "correct"
			if !a.IsCorrect {
				icon, class = "❌", "incorrect"
			}
			if a.Question.Context != "" {
				fmt.Fprintf(w, "<p>%s</p>\n", esc(a.Question.Context))
			}
			fmt.Fprintf(w, "<p><strong>%s %s %d:</strong> %s</p>\n",
				icon, esc(appI18n.T(ctx, "Question")), i+1, esc(a.Question.Text))
			fmt.Fprintf(w, `<p>%s: <span class="%s">%s</span></p>`+"\n",
				esc(appI18n.T(ctx, "YourAnswer")), class, esc(a.UserAnswer))
			fmt.Fprintf(w, "<p>%s: <strong>%s</strong></p>\n",
				esc(appI18n.T(ctx, "CorrectAnswerLabel")), esc(a.Question.CorrectAnswer))
			if a.Feedback != "" {
				fmt.Fprintf(w, `<p class="feedback">%s</p>`+"\n", esc(a.Feedback))
			}
			fmt.Fprint(w, "<hr>\n")
		}

		if len(st.Followups) > 0 {
			fmt.Fprintf(w, "<h2>%s</h2>\n", esc(appI18n.T(ctx, "FollowupQuestions")))
			for _, q := range st.Followups {
				fmt.Fprintf(w, "<p>%s</p>\n", esc(q))
			}
		}

		fmt.Fprintf(w, `<form method="post" action="/exam/restart">
%s
<p><button type="submit">%s</button></p>
</form>
`, csrfField(ctx), esc(appI18n.T(ctx, "NewExam")))
		return nil
	})
}

// HistoryPage renders past sessions with their scores.
func HistoryPage(user *model.User, scores []model.SessionScore) templ.Component {
	return page("Resultaten", user, func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>%s</h1>\n", esc(appI18n.T(ctx, "HistoryTitle")))
		if len(scores) == 0 {
			fmt.Fprintf(w, "<p>%s</p>\n", esc(appI18n.T(ctx, "NoSessions")))
			return nil
		}
		for _, sc := range scores {
			fmt.Fprintf(w, "<h3>%s: %s</h3>\n<p>%s: %s</p>\n<p>%s: %d/%d</p>\n<hr>\n",
				esc(appI18n.T(ctx, "ExamFor")), esc(sc.Subject),
				esc(appI18n.T(ctx, "Date")), sc.StartedAt.Format("02-01-2006 15:04"),
				esc(appI18n.T(ctx, "Score")), sc.CorrectAnswers, sc.TotalQuestions)
		}
		return nil
	})
}

// ProgressPage renders the per-topic percentage breakdown grouped by
// subject, with recommendations for weak topics.
func ProgressPage(user *model.User, progress []model.TopicProgress) templ.Component {
	return page("Voortgang", user, func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>%s</h1>\n", esc(appI18n.T(ctx, "ProgressTitle")))
		if len(progress) == 0 {
			fmt.Fprintf(w, "<p>%s</p>\n", esc(appI18n.T(ctx, "NoProgress")))
			return nil
		}
		lastSubject := ""
		for _, p := range progress {
			if p.Subject != lastSubject {
				if lastSubject != "" {
					fmt.Fprint(w, "<hr>\n")
				}
				fmt.Fprintf(w, "<h2>%s</h2>\n", esc(p.Subject))
				lastSubject = p.Subject
			}
			fmt.Fprintf(w, `<p><strong>%s</strong> %s: %d/%d <span style="color:%s">%d%%</span></p>
<progress value="%d" max="100"></progress>
`,
				esc(p.Topic),
				esc(appI18n.T(ctx, "Score")), p.CorrectAnswers, p.TotalQuestions,
				percentColor(p.Percentage), p.Percentage, p.Percentage)
		}

		var weak []model.TopicProgress
		for _, p := range progress {
			if p.Percentage < 70 {
				weak = append(weak, p)
			}
		}
		fmt.Fprintf(w, "<h2>%s</h2>\n", esc(appI18n.T(ctx, "Recommendations")))
		if len(weak) == 0 {
			fmt.Fprintf(w, `<p class="success">%s</p>`+"\n", esc(appI18n.T(ctx, "AllTopicsGood")))
			return nil
		}
		fmt.Fprintf(w, "<p>%s</p>\n<ul>\n", esc(appI18n.T(ctx, "FocusTopics")))
		for _, p := range weak {
			fmt.Fprintf(w, "<li>%s: %s (%d%%)</li>\n", esc(p.Subject), esc(p.Topic), p.Percentage)
		}
		fmt.Fprint(w, "</ul>\n")
		return nil
	})
}

func percentColor(pct int) string {
	switch {
	case pct >= 70:
		return "green"
	case pct >= 50:
		return "orange"
	default:
		return "red"
	}
}

// ChatPage renders the tutor chat with its full history. canSeed shows
// the button that primes the chat from the last exam.
func ChatPage(user *model.User, subjects []string, selected string, history []model.ChatMessage, canSeed bool) templ.Component {
	return page("Chat", user, func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<h1>%s</h1>\n", esc(appI18n.T(ctx, "Chat")))
		if canSeed {
			fmt.Fprintf(w, `<form method="post" action="/chat/seed">
%s
<p><button type="submit">%s</button></p>
</form>
`, csrfField(ctx), esc(appI18n.T(ctx, "ContinuePracticing")))
		}
		for _, msg := range history {
			class := "chat-user"
			if msg.Role == model.ChatRoleAssistant {
				class = "chat-assistant"
			}
			fmt.Fprintf(w, `<div class="%s">%s</div>`+"\n", class, esc(msg.Content))
		}
		fmt.Fprintf(w, `<form method="post" action="/chat">
%s
<p><label>%s<br><select name="subject">`, csrfField(ctx), esc(appI18n.T(ctx, "Subject")))
		for _, s := range subjects {
			sel := ""
			if s == selected {
				sel = " selected"
			}
			fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, esc(s), sel, esc(s))
		}
		fmt.Fprintf(w, `</select></label></p>
<p><label>%s:<br><input name="message" required></label></p>
<p><button type="submit">%s</button></p>
</form>
`,
			esc(appI18n.T(ctx, "AskQuestion")),
			esc(appI18n.T(ctx, "Send")),
		)
		return nil
	})
}
