package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Feruzbek007777/Optimum/internal/models"
	"github.com/Feruzbek007777/Optimum/internal/repository"
	"github.com/Feruzbek007777/Optimum/internal/service"
)

// EngageHandlers exposes the engagement engine over HTTP for the delivery
// layer (the bot front end). Every body is JSON; stale or duplicate actions
// come back as 200 with an outcome field, never as hard errors.
type EngageHandlers struct {
	ledger     *service.PointsLedger
	referrals  *service.ReferralRegistry
	quiz       *service.QuizManager
	board      *service.LeaderboardService
	guard      *repository.GuardRepository
	verify     service.VerifyFunc
	clickGuard time.Duration
	log        *zap.Logger
}

// NewEngageHandlers creates the handler set.
func NewEngageHandlers(
	ledger *service.PointsLedger,
	referrals *service.ReferralRegistry,
	quiz *service.QuizManager,
	board *service.LeaderboardService,
	guard *repository.GuardRepository,
	verify service.VerifyFunc,
	clickGuard time.Duration,
	log *zap.Logger,
) *EngageHandlers {
	return &EngageHandlers{
		ledger:     ledger,
		referrals:  referrals,
		quiz:       quiz,
		board:      board,
		guard:      guard,
		verify:     verify,
		clickGuard: clickGuard,
		log:        log,
	}
}

func (h *EngageHandlers) storageFailure(c *fiber.Ctx, op string, err error) error {
	h.log.Error("storage failure", zap.String("op", op), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Temporary storage failure. Please try again.",
	})
}

func userIDParam(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("userId"), 10, 64)
}

// HandleGetPoints handles GET /v1/points/:userId.
func (h *EngageHandlers) HandleGetPoints(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId must be a valid integer",
		})
	}

	balance, err := h.ledger.GetPoints(c.Context(), userID)
	if err != nil {
		return h.storageFailure(c, "get points", err)
	}
	return c.JSON(fiber.Map{"userId": userID, "balance": balance})
}

// HandleAdjustPoints handles POST /v1/points/adjust — the admin grant/deduct
// path, keyed by username.
func (h *EngageHandlers) HandleAdjustPoints(c *fiber.Ctx) error {
	var req struct {
		Username string  `json:"username"`
		Delta    float64 `json:"delta"`
	}
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Delta == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and a non-zero delta are required",
		})
	}

	acc, balance, err := h.ledger.AdjustByUsername(c.Context(), req.Username, req.Delta)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no user with that username",
			})
		}
		return h.storageFailure(c, "adjust points", err)
	}
	return c.JSON(fiber.Map{
		"userId":     acc.UserID,
		"username":   acc.Username,
		"delta":      req.Delta,
		"newBalance": balance,
	})
}

// HandleTouchUser handles POST /v1/users/touch — the delivery layer reports
// the profile it saw so leaderboards and referral lists can show names.
func (h *EngageHandlers) HandleTouchUser(c *fiber.Ctx) error {
	var req struct {
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
		FullName string `json:"fullName"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}
	if err := h.ledger.TouchProfile(c.Context(), req.UserID, req.Username, req.FullName); err != nil {
		return h.storageFailure(c, "touch user", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleClaimBonus handles POST /v1/bonus/claim.
func (h *EngageHandlers) HandleClaimBonus(c *fiber.Ctx) error {
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	// Absorb rapid double-clicks before touching the ledger. The claim
	// itself is atomic either way; this only spares the user a second
	// "not yet" message.
	if h.guard != nil {
		if ok, err := h.guard.Allow(c.Context(), "bonus", req.UserID, h.clickGuard); err == nil && !ok {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Already processing. One tap is enough.",
			})
		}
	}

	result, err := h.ledger.ClaimBonus(c.Context(), req.UserID)
	if err != nil {
		return h.storageFailure(c, "claim bonus", err)
	}
	if !result.Granted {
		return c.JSON(fiber.Map{
			"granted":          false,
			"remainingSeconds": int64(result.Remaining.Seconds()),
			"remaining":        result.Remaining.Round(time.Second).String(),
		})
	}
	return c.JSON(fiber.Map{
		"granted":    true,
		"amount":     result.Amount,
		"newBalance": result.NewBalance,
	})
}

// HandleReferralArrived handles POST /v1/referrals/arrived — a user opened
// the bot through someone's referral link.
func (h *EngageHandlers) HandleReferralArrived(c *fiber.Ctx) error {
	var req struct {
		ReferrerID int64 `json:"referrerId"`
		ReferredID int64 `json:"referredId"`
	}
	if err := c.BodyParser(&req); err != nil || req.ReferrerID == 0 || req.ReferredID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "referrerId and referredId are required",
		})
	}

	registered, err := h.referrals.RegisterPendingReferral(c.Context(), req.ReferrerID, req.ReferredID)
	if err != nil {
		return h.storageFailure(c, "register pending referral", err)
	}
	return c.JSON(fiber.Map{"registered": registered})
}

// HandleVerifyReferral handles POST /v1/referrals/verify — the referred user
// pressed the "check" button after (hopefully) joining the channel.
func (h *EngageHandlers) HandleVerifyReferral(c *fiber.Ctx) error {
	var req struct {
		ReferredID int64 `json:"referredId"`
	}
	if err := c.BodyParser(&req); err != nil || req.ReferredID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "referredId is required",
		})
	}

	outcome, err := h.referrals.TryCreditReferral(c.Context(), req.ReferredID, h.verify)
	if err != nil {
		return h.storageFailure(c, "credit referral", err)
	}
	return c.JSON(outcome)
}

// HandleReferralStats handles GET /v1/referrals/:userId/stats.
func (h *EngageHandlers) HandleReferralStats(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId must be a valid integer",
		})
	}

	stats, err := h.referrals.Stats(c.Context(), userID)
	if err != nil {
		return h.storageFailure(c, "referral stats", err)
	}
	rank, _ := h.board.Rank(c.Context(), userID)
	return c.JSON(fiber.Map{
		"userId":        userID,
		"balance":       stats.Balance,
		"referralCount": stats.ReferralCount,
		"recent":        stats.Recent,
		"rank":          rank,
	})
}

// HandleStartQuiz handles POST /v1/quiz/start.
func (h *EngageHandlers) HandleStartQuiz(c *fiber.Ctx) error {
	var req struct {
		UserID     int64  `json:"userId"`
		Subject    string `json:"subject"`
		Difficulty string `json:"difficulty"`
		Mode       string `json:"mode"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 || req.Subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId and subject are required",
		})
	}
	mode := models.Mode(req.Mode)
	if mode == "" {
		mode = models.ModeQuiz
	}
	if mode != models.ModeQuiz && mode != models.ModeFastwords {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be quiz or fastwords",
		})
	}
	if req.Difficulty == "" {
		req.Difficulty = models.DifficultyEasy
	}

	question, err := h.quiz.StartSession(req.UserID, req.Subject, req.Difficulty, mode)
	if err != nil {
		if errors.Is(err, models.ErrNoQuestions) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No questions for this subject and difficulty yet. Try again later.",
			})
		}
		return h.storageFailure(c, "start quiz", err)
	}
	return c.JSON(question)
}

// HandleSubmitAnswer handles POST /v1/quiz/answer. Stale and duplicate
// submissions return 200 with their outcome; the client shows a neutral
// "already processed" note.
func (h *EngageHandlers) HandleSubmitAnswer(c *fiber.Ctx) error {
	var req struct {
		UserID        int64  `json:"userId"`
		QuestionToken string `json:"questionToken"`
		OptionIndex   *int   `json:"optionIndex"`
		Text          string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 || req.QuestionToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId and questionToken are required",
		})
	}

	optionIndex := -1
	if req.OptionIndex != nil {
		optionIndex = *req.OptionIndex
	}

	result, err := h.quiz.SubmitAnswer(c.Context(), req.UserID, req.QuestionToken, optionIndex, req.Text)
	if err != nil {
		return h.storageFailure(c, "submit answer", err)
	}
	return c.JSON(result)
}

// HandleExitQuiz handles POST /v1/quiz/exit.
func (h *EngageHandlers) HandleExitQuiz(c *fiber.Ctx) error {
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}
	h.quiz.EndSession(req.UserID)
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleLeaderboard handles GET /v1/leaderboard.
func (h *EngageHandlers) HandleLeaderboard(c *fiber.Ctx) error {
	limitStr := c.Query("limit", "10")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // Cap at 100
	}

	top, err := h.board.TopUsers(c.Context(), limit)
	if err != nil {
		return h.storageFailure(c, "leaderboard", err)
	}
	return c.JSON(fiber.Map{"leaderboard": top})
}
