package service

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
	"github.com/Feruzbek007777/Optimum/internal/monitoring"
)

// QuestionProvider serves the in-memory question pools.
type QuestionProvider interface {
	Pool(mode models.Mode, subject, difficulty string) []models.PoolItem
}

// PointsWriter is the slice of the ledger the quiz needs. The session
// manager never writes balances itself.
type PointsWriter interface {
	AddPoints(ctx context.Context, userID int64, delta float64) (float64, error)
}

// ScoreRules holds the configurable quiz deltas. Wrong answers must cost
// less than right answers gain, and hard questions pay/cost more.
type ScoreRules struct {
	EasyCorrect float64
	EasyWrong   float64
	HardCorrect float64
	HardWrong   float64

	// AdvisoryThreshold is how many answers into a session the one-time
	// "slow down" nudge fires. Informational only.
	AdvisoryThreshold int
}

func (r ScoreRules) delta(difficulty string, correct bool) float64 {
	if difficulty == models.DifficultyHard {
		if correct {
			return r.HardCorrect
		}
		return r.HardWrong
	}
	if correct {
		return r.EasyCorrect
	}
	return r.EasyWrong
}

// AnswerOutcome classifies a SubmitAnswer call.
type AnswerOutcome string

const (
	AnswerCorrect   AnswerOutcome = "correct"
	AnswerIncorrect AnswerOutcome = "incorrect"
	StaleQuestion   AnswerOutcome = "stale_question"
	AlreadyAnswered AnswerOutcome = "already_answered"
	NoActiveSession AnswerOutcome = "no_active_session"
)

// AnswerResult reports what SubmitAnswer did. Delta, CorrectAnswer and
// NewBalance are meaningful only for correct/incorrect outcomes; Next is the
// follow-up question, nil when none was presented.
type AnswerResult struct {
	Outcome       AnswerOutcome      `json:"outcome"`
	Delta         float64            `json:"delta,omitempty"`
	CorrectAnswer string             `json:"correctAnswer,omitempty"`
	NewBalance    float64            `json:"newBalance,omitempty"`
	Advisory      bool               `json:"advisory,omitempty"`
	Next          *PresentedQuestion `json:"next,omitempty"`
}

// PresentedQuestion is what the delivery layer renders. Options is nil for
// free-text drills. The token identifies this exact presentation; answers
// carrying any other token are stale.
type PresentedQuestion struct {
	Token      string      `json:"questionToken"`
	Prompt     string      `json:"question"`
	Options    []string    `json:"options,omitempty"`
	Mode       models.Mode `json:"mode"`
	Subject    string      `json:"subject"`
	Difficulty string      `json:"difficulty"`
}

// session is the per-user in-flight state. Volatile: a restart drops it,
// which loses no points because points apply only on accepted answers.
type session struct {
	mu sync.Mutex

	mode       models.Mode
	subject    string
	difficulty string
	pool       []models.PoolItem

	current models.PoolItem
	token   string
	// answered is the single-answer lock: set true before any scoring so a
	// concurrent duplicate submission always observes it.
	answered bool

	answeredCount int
	advisoryShown bool
}

// QuizManager drives the per-user quiz state machine. Sessions live in
// process memory only; every balance change goes through the PointsWriter.
type QuizManager struct {
	mu       sync.RWMutex
	sessions map[int64]*session

	questions QuestionProvider
	ledger    PointsWriter
	rules     ScoreRules
	log       *zap.Logger
}

// NewQuizManager creates the session manager.
func NewQuizManager(questions QuestionProvider, ledger PointsWriter, rules ScoreRules, log *zap.Logger) *QuizManager {
	return &QuizManager{
		sessions:  make(map[int64]*session),
		questions: questions,
		ledger:    ledger,
		rules:     rules,
		log:       log,
	}
}

// StartSession begins a session for subject+difficulty in the given mode,
// replacing any session the user already had, and presents the first
// question. An empty pool returns models.ErrNoQuestions and leaves the user
// idle.
func (m *QuizManager) StartSession(userID int64, subject, difficulty string, mode models.Mode) (*PresentedQuestion, error) {
	pool := m.questions.Pool(mode, subject, difficulty)
	if len(pool) == 0 {
		return nil, models.ErrNoQuestions
	}

	s := &session{
		mode:       mode,
		subject:    subject,
		difficulty: difficulty,
		pool:       pool,
	}

	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presentNextLocked(), nil
}

// EndSession drops the user's session (user navigated away). Unanswered
// questions are simply abandoned.
func (m *QuizManager) EndSession(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// presentNextLocked picks a fresh random question (with replacement),
// rotates the token and clears the answer lock. Caller holds s.mu.
func (s *session) presentNextLocked() *PresentedQuestion {
	s.current = s.pool[rand.Intn(len(s.pool))]
	s.token = uuid.NewString()
	s.answered = false
	return &PresentedQuestion{
		Token:      s.token,
		Prompt:     s.current.Prompt,
		Options:    s.current.Options,
		Mode:       s.mode,
		Subject:    s.subject,
		Difficulty: s.difficulty,
	}
}

// SubmitAnswer accepts at most one answer per presented question. For quiz
// mode optionIndex is compared against the correct index; for fastwords the
// text is matched against the accepted variants (exact or fuzzy). The
// answer lock is taken before scoring and is not rolled back on a ledger
// error; a question, once answered, stays closed.
func (m *QuizManager) SubmitAnswer(ctx context.Context, userID int64, token string, optionIndex int, text string) (*AnswerResult, error) {
	m.mu.RLock()
	s := m.sessions[userID]
	m.mu.RUnlock()
	if s == nil {
		return &AnswerResult{Outcome: NoActiveSession}, nil
	}

	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		return &AnswerResult{Outcome: StaleQuestion}, nil
	}
	if s.answered {
		s.mu.Unlock()
		return &AnswerResult{Outcome: AlreadyAnswered}, nil
	}
	s.answered = true

	current := s.current
	mode := s.mode
	difficulty := s.difficulty

	s.answeredCount++
	advisory := false
	if m.rules.AdvisoryThreshold > 0 && s.answeredCount >= m.rules.AdvisoryThreshold && !s.advisoryShown {
		s.advisoryShown = true
		advisory = true
	}
	s.mu.Unlock()

	var correct bool
	if mode == models.ModeQuiz {
		correct = optionIndex == current.CorrectIndex
	} else {
		correct = answerMatches(text, current.Answers)
	}

	result := &AnswerResult{Advisory: advisory}
	if correct {
		result.Outcome = AnswerCorrect
	} else {
		result.Outcome = AnswerIncorrect
		result.CorrectAnswer = current.CorrectAnswer()
	}
	result.Delta = m.rules.delta(difficulty, correct)

	balance, err := m.ledger.AddPoints(ctx, userID, result.Delta)
	if err != nil {
		// The question is already closed; report the failure without
		// reopening it, otherwise a retry could double-score.
		m.log.Error("failed to apply quiz delta",
			zap.Int64("userId", userID),
			zap.Float64("delta", result.Delta),
			zap.Error(err))
		return result, err
	}
	result.NewBalance = balance
	monitoring.AnswersTotal.WithLabelValues(difficulty, string(result.Outcome)).Inc()

	result.Next = m.advance(userID, s)
	return result, nil
}

// advance presents the next question for the session, unless the session
// was replaced or ended while the answer was being scored.
func (m *QuizManager) advance(userID int64, s *session) *PresentedQuestion {
	m.mu.RLock()
	live := m.sessions[userID] == s
	m.mu.RUnlock()
	if !live {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presentNextLocked()
}
