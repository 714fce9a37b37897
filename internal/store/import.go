package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"examtrainer/internal/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// subjectNames normalizes known filename tokens to display subject
// names. Unknown tokens are title-cased instead.
var subjectNames = map[string]string{
	"eco":          "Economie",
	"economie":     "Economie",
	"geschiedenis": "Geschiedenis",
	"nederlands":   "Nederlands",
	"engels":       "Engels",
}

var subjectTitle = cases.Title(language.Dutch)

// SubjectName maps a filename token to a subject display name.
func SubjectName(token string) string {
	if name, ok := subjectNames[strings.ToLower(token)]; ok {
		return name
	}
	return subjectTitle.String(token)
}

// ImportQuestionDir replaces the entire question set with the contents
// of dir. Each file is named <subject>_<level>.json and holds a JSON
// array of question records. A malformed file is logged and skipped;
// records missing question, correct_answer or level are skipped
// silently. A missing dir is a no-op. The whole import runs in one
// transaction, so a fatal error leaves the previous set intact.
func (s *Store) ImportQuestionDir(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Info("question dir missing, skipping import", "dir", dir)
		return 0, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("glob %s: %w", dir, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Questions are a replaceable cache of the import files.
	if _, err := tx.Exec(`DELETE FROM questions`); err != nil {
		return 0, fmt.Errorf("clear questions: %w", err)
	}

	total := 0
	for _, path := range paths {
		subject, level, ok := parseBankFilename(path)
		if !ok {
			slog.Warn("question file name not <subject>_<level>.json, skipping", "path", path)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read question file, skipping", "path", path, "error", err)
			continue
		}

		var items []model.QuestionImport
		if err := json.Unmarshal(data, &items); err != nil {
			slog.Warn("malformed question file, skipping", "path", path, "error", err)
			continue
		}

		count := 0
		for _, item := range items {
			itemLevel := item.Level
			if itemLevel == "" {
				itemLevel = level
			}
			if item.Text == "" || item.CorrectAnswer == "" || itemLevel == "" {
				continue
			}
			_, err := insertQuestion(tx, model.Question{
				Subject:       subject,
				Level:         model.Level(strings.ToLower(itemLevel)),
				Year:          0, // unknown for imported banks
				Text:          item.Text,
				Options:       item.Options,
				CorrectAnswer: item.CorrectAnswer,
				Image:         item.Image,
				Context:       item.Context,
				Topic:         item.Topic,
			})
			if err != nil {
				return 0, fmt.Errorf("insert question from %s: %w", path, err)
			}
			count++
		}
		total += count
		slog.Info("imported questions", "path", path, "subject", subject, "level", level, "count", count)
	}

	return total, tx.Commit()
}

// parseBankFilename splits <subject>_<level>.json into a normalized
// subject name and a level token.
func parseBankFilename(path string) (subject, level string, ok bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	if len(parts) != 2 {
		return "", "", false
	}
	return SubjectName(parts[0]), strings.ToLower(parts[1]), true
}
