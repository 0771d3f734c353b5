package eventbus

import (
	"encoding/json"
	"log"

	"github.com/yourusername/quizpit/internal/domain/entity"
	"github.com/yourusername/quizpit/internal/leaderboard"
)

// Типы сообщений жизненного цикла игры
const (
	// GAME_STARTING сообщает о запуске обратного отсчёта перед первым вопросом
	GAME_STARTING = "game_starting"

	// QUESTION сообщает о начале нового вопроса
	QUESTION = "question"

	// QUESTION_ENDED сообщает о завершении текущего вопроса
	QUESTION_ENDED = "question_ended"

	// GAME_FINISHED сообщает о нормальном завершении игры
	GAME_FINISHED = "game_finished"

	// GAME_PAUSED сообщает о паузе из-за отключения хоста
	GAME_PAUSED = "game_paused"

	// GAME_RESUMED сообщает о снятии паузы после возвращения хоста
	GAME_RESUMED = "game_resumed"

	// GAME_TERMINATED сообщает о принудительном завершении по таймауту хоста
	GAME_TERMINATED = "game_terminated"

	// SCORING_RULE_SET сообщает о смене правила начисления очков в лобби
	SCORING_RULE_SET = "scoring_rule_set"
)

// Типы сообщений, связанные с участниками
const (
	// PLAYER_JOINED сообщает о входе нового игрока
	PLAYER_JOINED = "player_joined"

	// PLAYER_RECONNECTED сообщает о возвращении игрока в окне переподключения
	PLAYER_RECONNECTED = "player_reconnected"

	// PLAYER_LEFT сообщает об уходе игрока (отключение или таймаут)
	PLAYER_LEFT = "player_left"

	// NAME_ASSIGNED приватно сообщает игроку его имя после разрешения коллизии
	NAME_ASSIGNED = "name_assigned"

	// ANSWER_RESULT приватно сообщает игроку итог его ответа
	ANSWER_RESULT = "answer_result"

	// ANSWER_COUNT сообщает хосту, сколько игроков уже ответили
	ANSWER_COUNT = "answer_count"

	// ERROR приватно сообщает игроку об отклонённой команде
	ERROR = "error"
)

// GameStartingPayload — полезная нагрузка game_starting.
type GameStartingPayload struct {
	CountdownSec   int `json:"countdown_sec"`
	TotalQuestions int `json:"total_questions"`
}

// QuestionPayload — полезная нагрузка question. Правильный ответ в ней не
// передаётся: игрок узнаёт его из своего answer_result после ответа, все
// остальные — из question_ended.
type QuestionPayload struct {
	QuestionIndex  int      `json:"question_index"`
	TotalQuestions int      `json:"total_questions"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	TimeLimitSec   int      `json:"time_limit_sec"`
}

// QuestionEndedPayload — полезная нагрузка question_ended.
type QuestionEndedPayload struct {
	CorrectIndex int                 `json:"correct_index"`
	CorrectText  string              `json:"correct_text"`
	Leaderboard  []leaderboard.Entry `json:"leaderboard"`
}

// GameFinishedPayload — полезная нагрузка game_finished.
type GameFinishedPayload struct {
	Leaderboard    []leaderboard.Entry `json:"leaderboard"`
	TotalQuestions int                 `json:"total_questions"`
}

// GamePausedPayload — полезная нагрузка game_paused.
type GamePausedPayload struct {
	Reason string `json:"reason"`
}

// GameResumedPayload — полезная нагрузка game_resumed.
type GameResumedPayload struct {
	Reason string `json:"reason"`
}

// GameTerminatedPayload — полезная нагрузка game_terminated.
type GameTerminatedPayload struct {
	Reason         string              `json:"reason"`
	Leaderboard    []leaderboard.Entry `json:"leaderboard"`
	TotalQuestions int                 `json:"total_questions"`
}

// ScoringRuleSetPayload — полезная нагрузка scoring_rule_set.
type ScoringRuleSetPayload struct {
	Rule entity.ScoringRule `json:"rule"`
}

// PlayerJoinedPayload — полезная нагрузка player_joined.
type PlayerJoinedPayload struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	PlayerCount int    `json:"player_count"`
}

// PlayerReconnectedPayload — полезная нагрузка player_reconnected.
type PlayerReconnectedPayload struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	PlayerCount int    `json:"player_count"`
}

// PlayerLeftPayload — полезная нагрузка player_left.
type PlayerLeftPayload struct {
	Reason      string `json:"reason"`
	PlayerCount int    `json:"player_count"`
}

// NameAssignedPayload — полезная нагрузка name_assigned.
type NameAssignedPayload struct {
	RequestedName string `json:"requested_name"`
	AssignedName  string `json:"assigned_name"`
}

// AnswerResultPayload — полезная нагрузка answer_result.
type AnswerResultPayload struct {
	Correct       bool `json:"correct"`
	PointsAwarded int  `json:"points_awarded"`
	CorrectIndex  int  `json:"correct_index"`
}

// AnswerCountPayload — полезная нагрузка answer_count. Total считает только
// подключённых игроков.
type AnswerCountPayload struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// ErrorPayload — полезная нагрузка error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope — внешняя обёртка любого кадра: {type, payload}.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewMessage сериализует кадр {type, payload} в текст для шины. Все
// полезные нагрузки выше сериализуемы, поэтому ошибка маршалинга означает
// программную ошибку: она логируется, а публикация пропускается (nil
// сообщение шина игнорирует).
func NewMessage(messageType string, payload interface{}) []byte {
	data, err := json.Marshal(envelope{Type: messageType, Payload: payload})
	if err != nil {
		log.Printf("[EventBus] Ошибка сериализации сообщения %s: %v", messageType, err)
		return nil
	}
	return data
}
