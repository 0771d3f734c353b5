package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yourusername/quizpit/internal/config"
	"github.com/yourusername/quizpit/internal/handler/dto"
	apperrors "github.com/yourusername/quizpit/internal/pkg/errors"
	"github.com/yourusername/quizpit/internal/quiz"
	"github.com/yourusername/quizpit/internal/registry"
)

// maxQuizFileSize — предел размера загружаемого файла викторины.
const maxQuizFileSize = 1 << 20 // 1 MiB

// QuizHandler обрабатывает HTTP запросы: загрузку викторин и управление сессиями
type QuizHandler struct {
	sessions *registry.SessionManager
	cfg      *config.Config
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(sessions *registry.SessionManager, cfg *config.Config) *QuizHandler {
	return &QuizHandler{
		sessions: sessions,
		cfg:      cfg,
	}
}

// HealthCheck отвечает на проверку живости.
// GET /api/health
func (h *QuizHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, "ok")
}

// UploadQuiz принимает multipart-форму с полем quiz_file, разбирает файл и
// кладёт викторину в реестр под свежим quiz_id.
// POST /api/quiz
func (h *QuizHandler) UploadQuiz(c *gin.Context) {
	fileHeader, err := c.FormFile("quiz_file")
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidUpload)
		return
	}
	if fileHeader.Size > maxQuizFileSize {
		h.handleError(c, apperrors.ErrInvalidUpload)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidUpload)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxQuizFileSize))
	if err != nil {
		h.handleError(c, apperrors.ErrInvalidUpload)
		return
	}

	parsed, parseErrs := quiz.Parse(string(content), h.cfg.Game.QuestionTimeSec)
	if len(parseErrs) > 0 {
		c.JSON(http.StatusBadRequest, dto.ParseErrorsResponse{
			Error:    apperrors.Code(apperrors.ErrInvalidQuizFile),
			Messages: parseErrs,
		})
		return
	}

	quizID := uuid.New().String()
	h.sessions.StoreQuiz(quizID, parsed)

	log.Printf("[QuizHandler] Загружена викторина %s: %q, %d вопросов", quizID, parsed.Title, len(parsed.Questions))
	c.JSON(http.StatusOK, dto.NewUploadQuizResponse(parsed, quizID))
}

// CreateSession создаёт сессию в лобби для ранее загруженной викторины.
// POST /api/sessions
func (h *QuizHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	q, ok := h.sessions.GetQuiz(req.QuizID)
	if !ok {
		h.handleError(c, apperrors.ErrQuizNotFound)
		return
	}

	session, err := h.sessions.CreateSession(q)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewCreateSessionResponse(session))
}

// GetSession возвращает публичную сводку сессии по коду подключения.
// GET /api/sessions/{join_code}
func (h *QuizHandler) GetSession(c *gin.Context) {
	joinCode := c.MustGet("joinCode").(string)

	session, ok := h.sessions.GetSession(joinCode)
	if !ok {
		h.handleError(c, apperrors.ErrSessionNotFound)
		return
	}

	session.Mu.RLock()
	joinable := session.IsJoinable()
	var info dto.SessionInfoResponse
	if joinable {
		info = dto.NewSessionInfoResponse(session)
	}
	session.Mu.RUnlock()

	if !joinable {
		h.handleError(c, apperrors.ErrSessionNotJoinable)
		return
	}

	c.JSON(http.StatusOK, info)
}

// handleError переводит сентинельные ошибки в HTTP статус и тело
// {error, message}. Неопознанные ошибки схлопываются в 500 без деталей.
func (h *QuizHandler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrQuizNotFound), errors.Is(err, apperrors.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrSessionNotJoinable),
		errors.Is(err, apperrors.ErrMaxSessionsReached),
		errors.Is(err, apperrors.ErrSessionFull):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidUpload), errors.Is(err, apperrors.ErrInvalidQuizFile):
		status = http.StatusBadRequest
	default:
		log.Printf("ERROR: Internal server error in QuizHandler: %v", err)
		c.JSON(status, gin.H{"error": "internal_error", "message": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": apperrors.Code(err), "message": err.Error()})
}
