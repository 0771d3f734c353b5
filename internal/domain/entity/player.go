package entity

import "time"

// ConnectionStatus описывает текущее состояние подключения игрока.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusLeft         ConnectionStatus = "left"
)

// DefaultAvatar — аватар по умолчанию, если участник не передал свой.
const DefaultAvatar = "🙂"

// Answer — запись об ответе игрока на один вопрос. Создаётся один раз,
// никогда не изменяется.
type Answer struct {
	QuestionIndex int   `json:"question_index"`
	SelectedIndex int   `json:"selected_index"`
	TimeTakenMs   int64 `json:"time_taken_ms"`
	PointsAwarded int   `json:"points_awarded"`
}

// Player — участник сессии.
type Player struct {
	ID               string
	DisplayName      string
	Avatar           string
	Score            int
	CorrectCount     int
	Answers          map[int]Answer
	ConnectionStatus ConnectionStatus
	DisconnectedAt   time.Time
}

// NewPlayer создаёт свежего подключённого игрока.
func NewPlayer(id, displayName, avatar string) *Player {
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return &Player{
		ID:               id,
		DisplayName:      displayName,
		Avatar:           avatar,
		Answers:          make(map[int]Answer),
		ConnectionStatus: ConnectionStatusConnected,
	}
}

// HasAnswered сообщает, есть ли у игрока запись об ответе на этот вопрос.
func (p *Player) HasAnswered(questionIndex int) bool {
	_, ok := p.Answers[questionIndex]
	return ok
}

// RecordAnswer добавляет запись об ответе и обновляет счёт и число верных
// ответов. Вызывающий код отвечает за то, что вопрос ещё не отвечен.
func (p *Player) RecordAnswer(a Answer, correct bool) {
	p.Answers[a.QuestionIndex] = a
	p.Score += a.PointsAwarded
	if correct {
		p.CorrectCount++
	}
}
