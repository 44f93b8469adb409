package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
)

// QuestionRepository loads the question pools from disk once at startup and
// serves them from memory. Layout:
//
//	<dir>/quiz/<subject>_<difficulty>.json       multiple-choice questions
//	<dir>/fastwords/<subject>_<difficulty>.json  flashcards
//
// Missing files simply mean an empty pool for that combination.
type QuestionRepository struct {
	pools map[poolKey][]models.PoolItem
}

type poolKey struct {
	mode       models.Mode
	subject    string
	difficulty string
}

// NewQuestionRepository walks the data directory and loads every pool it
// finds. A missing directory is not an error; the repository just serves
// empty pools.
func NewQuestionRepository(dir string, log *zap.Logger) (*QuestionRepository, error) {
	repo := &QuestionRepository{pools: make(map[poolKey][]models.PoolItem)}

	for _, mode := range []models.Mode{models.ModeQuiz, models.ModeFastwords} {
		modeDir := filepath.Join(dir, string(mode))
		entries, err := os.ReadDir(modeDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read question dir %s: %w", modeDir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			subject, difficulty, ok := splitPoolName(entry.Name())
			if !ok {
				log.Warn("skipping question file with unexpected name",
					zap.String("file", entry.Name()))
				continue
			}

			path := filepath.Join(modeDir, entry.Name())
			items, err := loadPoolFile(mode, path)
			if err != nil {
				log.Warn("skipping unreadable question file",
					zap.String("file", path), zap.Error(err))
				continue
			}
			if len(items) == 0 {
				continue
			}
			repo.pools[poolKey{mode, subject, difficulty}] = items
			log.Info("loaded question pool",
				zap.String("mode", string(mode)),
				zap.String("subject", subject),
				zap.String("difficulty", difficulty),
				zap.Int("questions", len(items)))
		}
	}

	return repo, nil
}

// Pool returns the questions for a mode/subject/difficulty, nil when there
// are none.
func (r *QuestionRepository) Pool(mode models.Mode, subject, difficulty string) []models.PoolItem {
	return r.pools[poolKey{mode, subject, difficulty}]
}

// Subjects lists the subjects that have at least one pool for the mode.
func (r *QuestionRepository) Subjects(mode models.Mode) []string {
	seen := make(map[string]bool)
	for key := range r.pools {
		if key.mode == mode {
			seen[key.subject] = true
		}
	}
	subjects := make([]string, 0, len(seen))
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// splitPoolName parses "english_easy.json" into ("english", "easy").
// Subjects may themselves contain underscores; the difficulty is always the
// last segment.
func splitPoolName(name string) (subject, difficulty string, ok bool) {
	base := strings.TrimSuffix(name, ".json")
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	subject, difficulty = base[:i], base[i+1:]
	if difficulty != models.DifficultyEasy && difficulty != models.DifficultyHard {
		return "", "", false
	}
	return subject, difficulty, true
}

func loadPoolFile(mode models.Mode, path string) ([]models.PoolItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if mode == models.ModeQuiz {
		return parseQuizPool(data)
	}
	return parseFastwordsPool(data)
}

func parseQuizPool(data []byte) ([]models.PoolItem, error) {
	var raw []models.PoolItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	items := raw[:0]
	for _, q := range raw {
		q.Prompt = strings.TrimSpace(q.Prompt)
		if q.Prompt == "" || len(q.Options) == 0 {
			continue
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			continue
		}
		q.Answers = nil
		items = append(items, q)
	}
	return items, nil
}

// rawCard tolerates the three flashcard shapes the content authors have
// used over time: word/translation, question/answers and en/uz.
type rawCard struct {
	Question     string          `json:"question"`
	Word         string          `json:"word"`
	En           string          `json:"en"`
	Q            string          `json:"q"`
	Answers      json.RawMessage `json:"answers"`
	Answer       json.RawMessage `json:"answer"`
	Translation  json.RawMessage `json:"translation"`
	Translations json.RawMessage `json:"translations"`
	Uz           json.RawMessage `json:"uz"`
}

func parseFastwordsPool(data []byte) ([]models.PoolItem, error) {
	var raw []rawCard
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var items []models.PoolItem
	for _, card := range raw {
		prompt := firstNonEmpty(card.Question, card.Word, card.En, card.Q)
		answers := firstAnswers(card.Answers, card.Answer, card.Translation, card.Translations, card.Uz)
		if prompt == "" || len(answers) == 0 {
			continue
		}
		items = append(items, models.PoolItem{Prompt: prompt, Answers: answers})
	}
	return items, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// firstAnswers decodes the first present answers field, accepting either a
// single string or a list of strings.
func firstAnswers(fields ...json.RawMessage) []string {
	for _, field := range fields {
		if len(field) == 0 {
			continue
		}
		var single string
		if err := json.Unmarshal(field, &single); err == nil {
			if s := strings.TrimSpace(single); s != "" {
				return []string{s}
			}
			continue
		}
		var many []string
		if err := json.Unmarshal(field, &many); err == nil {
			var answers []string
			for _, a := range many {
				if s := strings.TrimSpace(a); s != "" {
					answers = append(answers, s)
				}
			}
			if len(answers) > 0 {
				return answers
			}
		}
	}
	return nil
}
