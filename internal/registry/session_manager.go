// Package registry держит процессные карты викторин и сессий: хранение
// загруженных викторин по id, создание сессий с уникальными кодами
// подключения и контроль лимита одновременных сессий.
package registry

import (
	"log"
	"sync"

	"github.com/yourusername/quizpit/internal/domain/entity"
	apperrors "github.com/yourusername/quizpit/internal/pkg/errors"
)

// SessionManager владеет всеми живыми сессиями процесса. Карты викторин и
// сессий безопасны для конкурентного доступа сами по себе; мьютекс нужен
// только операциям создания и удаления сессии, чтобы подсчёт лимита и
// проверка коллизии кода были атомарными.
type SessionManager struct {
	maxSessions int

	quizzes  sync.Map // map[string]*entity.Quiz
	sessions sync.Map // map[string]*entity.Session

	mu           sync.Mutex
	sessionCount int
}

// NewSessionManager создаёт реестр с заданным лимитом одновременных сессий.
func NewSessionManager(maxSessions int) *SessionManager {
	return &SessionManager{maxSessions: maxSessions}
}

// StoreQuiz кладёт викторину в реестр под непрозрачным id. Повторная
// запись под тем же id ничего не меняет.
func (m *SessionManager) StoreQuiz(id string, quiz *entity.Quiz) {
	m.quizzes.LoadOrStore(id, quiz)
}

// GetQuiz возвращает копию викторины: вызывающий код волен передать её в
// сессию, не деля срез вопросов с реестром.
func (m *SessionManager) GetQuiz(id string) (*entity.Quiz, bool) {
	v, ok := m.quizzes.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entity.Quiz).Clone(), true
}

// CreateSession создаёт сессию в лобби со свежим уникальным кодом
// подключения. Возвращает ErrMaxSessionsReached при достигнутом лимите.
func (m *SessionManager) CreateSession(quiz *entity.Quiz) (*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionCount >= m.maxSessions {
		return nil, apperrors.ErrMaxSessionsReached
	}

	// Коллизия кода — повторная генерация. При 36^6 кодов и лимите сессий
	// в десятки цикл практически всегда завершается с первой попытки.
	var joinCode string
	for {
		joinCode = randomJoinCode(JoinCodeLength)
		if _, exists := m.sessions.Load(joinCode); !exists {
			break
		}
		log.Printf("[Registry] Коллизия кода подключения %s, генерирую заново", joinCode)
	}

	session := entity.NewSession(joinCode, quiz)
	m.sessions.Store(joinCode, session)
	m.sessionCount++

	log.Printf("[Registry] Создана сессия %s (викторина %q, %d вопросов)", joinCode, quiz.Title, len(quiz.Questions))
	return session, nil
}

// GetSession возвращает сессию по коду подключения.
func (m *SessionManager) GetSession(joinCode string) (*entity.Session, bool) {
	v, ok := m.sessions.Load(joinCode)
	if !ok {
		return nil, false
	}
	return v.(*entity.Session), true
}

// RemoveSession убирает сессию из реестра, освобождая код подключения и
// место под лимитом. Повторный вызов безопасен.
func (m *SessionManager) RemoveSession(joinCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions.LoadAndDelete(joinCode); ok {
		m.sessionCount--
		log.Printf("[Registry] Сессия %s удалена, живых сессий: %d", joinCode, m.sessionCount)
	}
}

// SessionCount возвращает число живых сессий.
func (m *SessionManager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionCount
}
