package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrQuizNotFound используется, когда викторина с данным id не найдена в реестре.
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrSessionNotFound используется, когда сессия с данным кодом подключения не найдена.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotJoinable используется, когда сессия существует, но уже не принимает игроков.
	ErrSessionNotJoinable = errors.New("session is not joinable")

	// ErrMaxSessionsReached используется, когда достигнут лимит одновременных сессий.
	ErrMaxSessionsReached = errors.New("maximum number of sessions reached")

	// ErrSessionFull используется, когда в сессии уже максимальное число игроков.
	ErrSessionFull = errors.New("session is full")

	// ErrInvalidUpload используется для битых multipart-запросов загрузки файла.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrInvalidQuizFile используется, когда файл викторины не прошёл разбор.
	// Список ошибок разбора передаётся отдельно от самой ошибки.
	ErrInvalidQuizFile = errors.New("invalid quiz file")
)

// Code возвращает машинное имя ошибки для поля error в HTTP-ответе.
// Неизвестные ошибки схлопываются в internal_error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrQuizNotFound):
		return "quiz_not_found"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionNotJoinable):
		return "session_not_joinable"
	case errors.Is(err, ErrMaxSessionsReached):
		return "max_sessions_reached"
	case errors.Is(err, ErrSessionFull):
		return "session_full"
	case errors.Is(err, ErrInvalidUpload):
		return "invalid_upload"
	case errors.Is(err, ErrInvalidQuizFile):
		return "invalid_quiz_file"
	default:
		return "internal_error"
	}
}
