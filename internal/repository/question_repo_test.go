package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
)

func writePool(t *testing.T, dir, mode, name, content string) {
	t.Helper()
	modeDir := filepath.Join(dir, mode)
	require.NoError(t, os.MkdirAll(modeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modeDir, name), []byte(content), 0o644))
}

func TestQuestionRepositoryLoadsPools(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	writePool(t, dir, "quiz", "math_easy.json", `[
		{"question": "2 + 2 = ?", "options": ["3", "4"], "correct_index": 1},
		{"question": "", "options": ["skipped"], "correct_index": 0},
		{"question": "out of range", "options": ["a"], "correct_index": 5}
	]`)
	// The three flashcard shapes the content files use.
	writePool(t, dir, "fastwords", "eng_easy.json", `[
		{"word": "apple", "translation": "olma"},
		{"question": "pen", "answers": ["qalam", "ruchka"]},
		{"en": "book", "uz": "kitob"}
	]`)
	writePool(t, dir, "fastwords", "eng_hard.json", `[]`)
	writePool(t, dir, "quiz", "badname.json", `[]`)

	repo, err := NewQuestionRepository(dir, zap.NewNop())
	require.NoError(err)

	quiz := repo.Pool(models.ModeQuiz, "math", "easy")
	require.Len(quiz, 1)
	require.Equal("2 + 2 = ?", quiz[0].Prompt)
	require.Equal(1, quiz[0].CorrectIndex)
	require.Equal("4", quiz[0].CorrectAnswer())

	cards := repo.Pool(models.ModeFastwords, "eng", "easy")
	require.Len(cards, 3)
	require.Equal("apple", cards[0].Prompt)
	require.Equal([]string{"olma"}, cards[0].Answers)
	require.Equal([]string{"qalam", "ruchka"}, cards[1].Answers)
	require.Equal([]string{"kitob"}, cards[2].Answers)

	// Empty and unparsable-name files contribute nothing.
	require.Empty(repo.Pool(models.ModeFastwords, "eng", "hard"))
	require.Empty(repo.Pool(models.ModeQuiz, "badname", ""))

	require.Equal([]string{"math"}, repo.Subjects(models.ModeQuiz))
	require.Equal([]string{"eng"}, repo.Subjects(models.ModeFastwords))
}

func TestQuestionRepositoryMissingDir(t *testing.T) {
	require := require.New(t)

	repo, err := NewQuestionRepository(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	require.NoError(err)
	require.Empty(repo.Pool(models.ModeQuiz, "math", "easy"))
	require.Empty(repo.Subjects(models.ModeQuiz))
}

func TestSplitPoolName(t *testing.T) {
	cases := []struct {
		name       string
		subject    string
		difficulty string
		ok         bool
	}{
		{"english_easy.json", "english", "easy", true},
		{"world_history_hard.json", "world_history", "hard", true},
		{"english.json", "", "", false},
		{"english_medium.json", "", "", false},
		{"_easy.json", "", "", false},
		{"english_.json", "", "", false},
	}

	for _, tc := range cases {
		subject, difficulty, ok := splitPoolName(tc.name)
		require.Equal(t, tc.ok, ok, tc.name)
		require.Equal(t, tc.subject, subject, tc.name)
		require.Equal(t, tc.difficulty, difficulty, tc.name)
	}
}
