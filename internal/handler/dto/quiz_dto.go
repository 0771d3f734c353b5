// Package dto описывает формы HTTP запросов и ответов.
package dto

import (
	"fmt"

	"github.com/yourusername/quizpit/internal/domain/entity"
	"github.com/yourusername/quizpit/internal/quiz"
)

// largeQuizThreshold — число вопросов, после которого загрузка помечается
// предупреждением: играть можно, но сессия будет очень длинной.
const largeQuizThreshold = 100

// QuestionPreview — краткая сводка одного вопроса в ответе на загрузку.
type QuestionPreview struct {
	Text        string `json:"text"`
	OptionCount int    `json:"option_count"`
}

// UploadQuizResponse — ответ на успешную загрузку файла викторины.
type UploadQuizResponse struct {
	Title         string            `json:"title"`
	QuestionCount int               `json:"question_count"`
	Preview       []QuestionPreview `json:"preview"`
	QuizID        string            `json:"quiz_id"`
	Warning       string            `json:"warning,omitempty"`
}

// NewUploadQuizResponse собирает ответ на загрузку из разобранной викторины.
func NewUploadQuizResponse(q *entity.Quiz, quizID string) UploadQuizResponse {
	preview := make([]QuestionPreview, len(q.Questions))
	for i, question := range q.Questions {
		preview[i] = QuestionPreview{
			Text:        question.Text,
			OptionCount: question.OptionsCount(),
		}
	}

	resp := UploadQuizResponse{
		Title:         q.Title,
		QuestionCount: len(q.Questions),
		Preview:       preview,
		QuizID:        quizID,
	}
	if len(q.Questions) > largeQuizThreshold {
		resp.Warning = fmt.Sprintf("Quiz has %d questions, sessions may run very long", len(q.Questions))
	}
	return resp
}

// ParseErrorsResponse — тело ответа invalid_quiz_file со списком ошибок
// разбора, каждая с номером строки (1-based).
type ParseErrorsResponse struct {
	Error    string            `json:"error"`
	Messages []quiz.ParseError `json:"messages"`
}

// CreateSessionRequest — запрос на создание сессии.
type CreateSessionRequest struct {
	QuizID string `json:"quiz_id" binding:"required"`
}

// CreateSessionResponse — ответ на успешное создание сессии.
type CreateSessionResponse struct {
	JoinCode      string `json:"join_code"`
	SessionStatus string `json:"session_status"`
	WsURL         string `json:"ws_url"`
}

// NewCreateSessionResponse собирает ответ на создание сессии.
func NewCreateSessionResponse(s *entity.Session) CreateSessionResponse {
	return CreateSessionResponse{
		JoinCode:      s.JoinCode,
		SessionStatus: string(s.Status),
		WsURL:         fmt.Sprintf("/ws/host/%s", s.JoinCode),
	}
}

// SessionInfoResponse — публичная сводка сессии для экрана подключения.
type SessionInfoResponse struct {
	JoinCode      string `json:"join_code"`
	SessionStatus string `json:"session_status"`
	PlayerCount   int    `json:"player_count"`
	QuizTitle     string `json:"quiz_title"`
	WsURL         string `json:"ws_url"`
}

// NewSessionInfoResponse собирает сводку сессии. Вызывающий код должен
// держать блокировку сессии как минимум на чтение.
func NewSessionInfoResponse(s *entity.Session) SessionInfoResponse {
	return SessionInfoResponse{
		JoinCode:      s.JoinCode,
		SessionStatus: string(s.Status),
		PlayerCount:   s.PlayerCount(),
		QuizTitle:     s.Quiz.Title,
		WsURL:         fmt.Sprintf("/ws/player/%s", s.JoinCode),
	}
}
