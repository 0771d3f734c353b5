package entity

import (
	"sync"
	"time"
)

// SessionStatus — состояние жизненного цикла сессии.
type SessionStatus string

const (
	SessionStatusLobby    SessionStatus = "lobby"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusPaused   SessionStatus = "paused"
	SessionStatusFinished SessionStatus = "finished"
)

// ScoringRule — один из трёх вариантов начисления очков.
type ScoringRule string

const (
	ScoringRuleSteppedDecay ScoringRule = "stepped_decay"
	ScoringRuleLinearDecay  ScoringRule = "linear_decay"
	ScoringRuleFixedScore   ScoringRule = "fixed_score"
)

// DefaultScoringRule — правило, используемое при создании сессии, пока
// хост не выберет другое (допустимо только в lobby).
const DefaultScoringRule = ScoringRuleSteppedDecay

// Session — изменяемое состояние одного запуска викторины. Защищено
// собственным RWMutex: весь код, читающий или меняющий поля ниже, должен
// держать Mu. Блокировка никогда не удерживается через отправку в шину,
// сон таймера или сетевой ввод-вывод — значения читаются под блокировкой,
// блокировка снимается, и только потом происходит публикация или сон.
type Session struct {
	Mu sync.RWMutex

	JoinCode string
	Quiz     *Quiz

	Players map[string]*Player
	HostID  string

	CurrentQuestion int
	Status          SessionStatus
	QuestionStarted time.Time

	CreatedAt   time.Time
	ScoringRule ScoringRule
}

// NewSession создаёт сессию в состоянии lobby с current_question = -1.
func NewSession(joinCode string, quiz *Quiz) *Session {
	return &Session{
		JoinCode:        joinCode,
		Quiz:            quiz,
		Players:         make(map[string]*Player),
		CurrentQuestion: -1,
		Status:          SessionStatusLobby,
		CreatedAt:       time.Now(),
		ScoringRule:     DefaultScoringRule,
	}
}

// IsJoinable сообщает, принимает ли сессия новых игроков. Вызывающий код
// должен держать как минимум Mu.RLock.
func (s *Session) IsJoinable() bool {
	return s.Status == SessionStatusLobby
}

// PlayerCount считает только игроков, чей connection_status ≠ disconnected
// (используется для событий player_joined/player_left/player_reconnected
// и для заголовка лобби). Вызывающий код должен держать Mu.RLock как минимум.
func (s *Session) PlayerCount() int {
	n := 0
	for _, p := range s.Players {
		if p.ConnectionStatus != ConnectionStatusDisconnected {
			n++
		}
	}
	return n
}

// ConnectedPlayerCount — то же самое, что PlayerCount; имя отдельно от
// TotalPlayerCount чтобы вызовы из answer_count и из join/leave-событий
// не перепутались местами.
func (s *Session) ConnectedPlayerCount() int {
	return s.PlayerCount()
}

// TotalPlayerCount считает всех игроков в карте, включая отключённых.
// В answer_count.total не используется — там считаются только
// подключённые, иначе ранний конец вопроса никогда не сработает при
// отвалившемся игроке.
func (s *Session) TotalPlayerCount() int {
	return len(s.Players)
}

// FindByDisplayName возвращает игрока с данным отображаемым именем среди
// не отключённых участников (для проверки уникальности имени при join).
func (s *Session) FindByDisplayName(name string) (*Player, bool) {
	for _, p := range s.Players {
		if p.DisplayName == name && p.ConnectionStatus != ConnectionStatusDisconnected {
			return p, true
		}
	}
	return nil, false
}

// FindDisconnectedByDisplayName возвращает отключённого игрока с данным
// именем, если такой есть — кандидата на переподключение.
func (s *Session) FindDisconnectedByDisplayName(name string) (*Player, bool) {
	for _, p := range s.Players {
		if p.DisplayName == name && p.ConnectionStatus == ConnectionStatusDisconnected {
			return p, true
		}
	}
	return nil, false
}
