package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
)

type fixedPool struct {
	items map[models.Mode][]models.PoolItem
}

func (p fixedPool) Pool(mode models.Mode, subject, difficulty string) []models.PoolItem {
	return p.items[mode]
}

var testRules = ScoreRules{
	EasyCorrect:       1,
	EasyWrong:         -0.2,
	HardCorrect:       3,
	HardWrong:         -0.5,
	AdvisoryThreshold: 7,
}

func newTestQuiz(items map[models.Mode][]models.PoolItem, store *memUserStore) *QuizManager {
	return NewQuizManager(fixedPool{items: items}, newTestLedger(store), testRules, zap.NewNop())
}

func singleQuizItem() map[models.Mode][]models.PoolItem {
	return map[models.Mode][]models.PoolItem{
		models.ModeQuiz: {{
			Prompt:       "2 + 2 = ?",
			Options:      []string{"3", "4", "5"},
			CorrectIndex: 1,
		}},
	}
}

func TestStartSessionEmptyPool(t *testing.T) {
	require := require.New(t)

	quiz := newTestQuiz(nil, newMemUserStore())
	_, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.ErrorIs(err, models.ErrNoQuestions)
}

func TestSubmitAnswerWithoutSession(t *testing.T) {
	require := require.New(t)

	quiz := newTestQuiz(singleQuizItem(), newMemUserStore())
	result, err := quiz.SubmitAnswer(context.Background(), 1, "whatever", 0, "")
	require.NoError(err)
	require.Equal(NoActiveSession, result.Outcome)
}

func TestStaleTokenNeverScores(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	quiz := newTestQuiz(singleQuizItem(), store)

	q, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.NoError(err)

	result, err := quiz.SubmitAnswer(ctx, 1, "stale-token", 1, "")
	require.NoError(err)
	require.Equal(StaleQuestion, result.Outcome)

	balance, err := store.GetPoints(ctx, 1)
	require.NoError(err)
	require.Zero(balance)

	// The presented question is still answerable.
	result, err = quiz.SubmitAnswer(ctx, 1, q.Token, 1, "")
	require.NoError(err)
	require.Equal(AnswerCorrect, result.Outcome)
}

func TestScoreSequence(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	quiz := newTestQuiz(singleQuizItem(), store)

	q, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.NoError(err)

	result, err := quiz.SubmitAnswer(ctx, 1, q.Token, 1, "")
	require.NoError(err)
	require.Equal(AnswerCorrect, result.Outcome)
	require.InDelta(1.0, result.Delta, 1e-9)
	require.InDelta(1.0, result.NewBalance, 1e-9)
	require.NotNil(result.Next)

	result, err = quiz.SubmitAnswer(ctx, 1, result.Next.Token, 0, "")
	require.NoError(err)
	require.Equal(AnswerIncorrect, result.Outcome)
	require.InDelta(-0.2, result.Delta, 1e-9)
	require.InDelta(0.8, result.NewBalance, 1e-9)
	require.Equal("4", result.CorrectAnswer)
}

func TestHardDeltas(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	items := singleQuizItem()
	quiz := newTestQuiz(items, newMemUserStore())

	q, err := quiz.StartSession(1, "math", models.DifficultyHard, models.ModeQuiz)
	require.NoError(err)

	result, err := quiz.SubmitAnswer(ctx, 1, q.Token, 1, "")
	require.NoError(err)
	require.InDelta(3.0, result.Delta, 1e-9)

	result, err = quiz.SubmitAnswer(ctx, 1, result.Next.Token, 2, "")
	require.NoError(err)
	require.InDelta(-0.5, result.Delta, 1e-9)
}

func TestConcurrentDuplicateAnswerScoresOnce(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	quiz := newTestQuiz(singleQuizItem(), store)

	q, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.NoError(err)

	const callers = 16
	outcomes := make(chan AnswerOutcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := quiz.SubmitAnswer(ctx, 1, q.Token, 1, "")
			require.NoError(err)
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	scored := 0
	for outcome := range outcomes {
		switch outcome {
		case AnswerCorrect:
			scored++
		case AlreadyAnswered, StaleQuestion:
			// Late duplicates see either the closed question or the
			// already-rotated token.
		default:
			t.Fatalf("unexpected outcome %q", outcome)
		}
	}
	require.Equal(1, scored)

	balance, err := store.GetPoints(ctx, 1)
	require.NoError(err)
	require.InDelta(1.0, balance, 1e-9)
}

func TestFastwordsFuzzyMatch(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	items := map[models.Mode][]models.PoolItem{
		models.ModeFastwords: {{
			Prompt:  "olma",
			Answers: []string{"apple"},
		}},
	}
	quiz := newTestQuiz(items, newMemUserStore())

	q, err := quiz.StartSession(1, "eng", models.DifficultyEasy, models.ModeFastwords)
	require.NoError(err)
	require.Nil(q.Options)

	// One-letter typo still within the similarity threshold.
	result, err := quiz.SubmitAnswer(ctx, 1, q.Token, -1, " Aple ")
	require.NoError(err)
	require.Equal(AnswerCorrect, result.Outcome)

	result, err = quiz.SubmitAnswer(ctx, 1, result.Next.Token, -1, "banana")
	require.NoError(err)
	require.Equal(AnswerIncorrect, result.Outcome)
	require.Equal("apple", result.CorrectAnswer)
}

func TestAdvisoryFiresOnceAtThreshold(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	quiz := newTestQuiz(singleQuizItem(), newMemUserStore())

	q, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.NoError(err)

	token := q.Token
	for i := 1; i <= testRules.AdvisoryThreshold+2; i++ {
		result, err := quiz.SubmitAnswer(ctx, 1, token, 1, "")
		require.NoError(err)
		if i == testRules.AdvisoryThreshold {
			require.True(result.Advisory, "answer %d should carry the advisory", i)
		} else {
			require.False(result.Advisory, "answer %d should not carry the advisory", i)
		}
		token = result.Next.Token
	}
}

func TestEndSessionStopsScoring(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	quiz := newTestQuiz(singleQuizItem(), newMemUserStore())

	q, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.NoError(err)

	quiz.EndSession(1)
	result, err := quiz.SubmitAnswer(ctx, 1, q.Token, 1, "")
	require.NoError(err)
	require.Equal(NoActiveSession, result.Outcome)
}

func TestStartSessionReplacesPrevious(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := newMemUserStore()
	quiz := newTestQuiz(singleQuizItem(), store)

	old, err := quiz.StartSession(1, "math", models.DifficultyEasy, models.ModeQuiz)
	require.NoError(err)
	fresh, err := quiz.StartSession(1, "math", models.DifficultyHard, models.ModeQuiz)
	require.NoError(err)

	// The old token belongs to the replaced session; only the fresh one
	// scores.
	result, err := quiz.SubmitAnswer(ctx, 1, old.Token, 1, "")
	require.NoError(err)
	require.NotEqual(AnswerCorrect, result.Outcome)

	result, err = quiz.SubmitAnswer(ctx, 1, fresh.Token, 1, "")
	require.NoError(err)
	require.Equal(AnswerCorrect, result.Outcome)
	require.InDelta(3.0, result.Delta, 1e-9)
}
