// Package engine содержит игровой движок: оркестровку обратного отсчёта,
// цикла вопросов, приёма ответов и завершения игры. Движок мутирует
// состояние сессии под её блокировкой и публикует события на шину сессии.
//
// Инвариант всех путей: блокировка сессии снимается до любой операции,
// которая может приостановить горутину — публикации на шину, сна таймера,
// сетевого ввода-вывода. Нужные значения читаются под блокировкой,
// блокировка снимается, и только потом происходит публикация.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quizpit/internal/domain/entity"
	"github.com/yourusername/quizpit/internal/eventbus"
	"github.com/yourusername/quizpit/internal/leaderboard"
	"github.com/yourusername/quizpit/internal/registry"
	"github.com/yourusername/quizpit/internal/scoring"
)

const (
	// CountdownSec — обратный отсчёт между start_game и первым вопросом.
	CountdownSec = 3

	// interQuestionDelay — пауза между question_ended и следующим вопросом.
	interQuestionDelay = 500 * time.Millisecond
)

// Engine управляет жизненным циклом игры во всех сессиях процесса.
// Каждый переход фазы — отдельная горутина, никогда не синхронная
// рекурсия: цепочка вопрос → конец → следующий вопрос не растёт в стеке
// и не держит блокировку сессии через ожидания.
type Engine struct {
	sessions *registry.SessionManager
	buses    *eventbus.Registry
}

// New создаёт движок поверх реестров сессий и шин.
func New(sessions *registry.SessionManager, buses *eventbus.Registry) *Engine {
	return &Engine{sessions: sessions, buses: buses}
}

// StartGame запускает игру: переводит сессию в active, объявляет обратный
// отсчёт и планирует выдачу первого вопроса. Допустим только из лобби и
// только при хотя бы одном игроке.
func (e *Engine) StartGame(sess *entity.Session) error {
	sess.Mu.Lock()
	if sess.Status != entity.SessionStatusLobby {
		status := sess.Status
		sess.Mu.Unlock()
		return fmt.Errorf("невозможно начать игру из состояния %s", status)
	}
	if sess.PlayerCount() < 1 {
		sess.Mu.Unlock()
		return fmt.Errorf("невозможно начать игру без игроков")
	}
	sess.Status = entity.SessionStatusActive
	joinCode := sess.JoinCode
	totalQuestions := len(sess.Quiz.Questions)
	sess.Mu.Unlock()

	log.Printf("[Engine] Сессия %s: игра запущена, %d вопросов", joinCode, totalQuestions)
	e.broadcast(joinCode, eventbus.NewMessage(eventbus.GAME_STARTING, eventbus.GameStartingPayload{
		CountdownSec:   CountdownSec,
		TotalQuestions: totalQuestions,
	}))

	go func() {
		time.Sleep(CountdownSec * time.Second)
		e.advance(sess)
	}()

	return nil
}

// advance переводит сессию к следующему вопросу либо завершает игру, если
// вопросы кончились. Вызывается свежей горутиной из отсчёта и из конца
// предыдущего вопроса.
func (e *Engine) advance(sess *entity.Session) {
	sess.Mu.Lock()
	if sess.Status == entity.SessionStatusFinished {
		sess.Mu.Unlock()
		return
	}

	sess.CurrentQuestion++
	index := sess.CurrentQuestion
	joinCode := sess.JoinCode
	totalQuestions := len(sess.Quiz.Questions)

	if index >= totalQuestions {
		sess.Status = entity.SessionStatusFinished
		board := leaderboard.Build(sess.Players, true)
		sess.Mu.Unlock()

		log.Printf("[Engine] Сессия %s: все вопросы отыграны, игра завершена", joinCode)
		e.broadcast(joinCode, eventbus.NewMessage(eventbus.GAME_FINISHED, eventbus.GameFinishedPayload{
			Leaderboard:    board,
			TotalQuestions: totalQuestions,
		}))
		e.Teardown(joinCode)
		return
	}

	question := sess.Quiz.Questions[index]
	sess.QuestionStarted = time.Now()
	sess.Mu.Unlock()

	log.Printf("[Engine] Сессия %s: вопрос %d/%d, лимит %d сек", joinCode, index+1, totalQuestions, question.TimeLimitSec)
	e.broadcast(joinCode, eventbus.NewMessage(eventbus.QUESTION, eventbus.QuestionPayload{
		QuestionIndex:  index,
		TotalQuestions: totalQuestions,
		Text:           question.Text,
		Options:        question.Options,
		TimeLimitSec:   question.TimeLimitSec,
	}))

	// Таймер несёт индекс своего вопроса: если вопрос уже закончили раньше
	// (все ответили), endQuestion увидит несовпадение индекса и промолчит.
	time.AfterFunc(time.Duration(question.TimeLimitSec)*time.Second, func() {
		e.endQuestion(sess, index)
	})
}

// endQuestion закрывает вопрос index: публикует правильный ответ и таблицу
// результатов, выдерживает паузу и планирует следующий вопрос. Гонка двух
// вызовов (таймер против «все ответили») разрешается проверкой индекса под
// блокировкой: второй вызов не находит свой вопрос текущим и выходит.
func (e *Engine) endQuestion(sess *entity.Session, index int) {
	sess.Mu.Lock()
	if sess.CurrentQuestion != index || sess.Status == entity.SessionStatusFinished {
		sess.Mu.Unlock()
		return
	}
	question := sess.Quiz.Questions[index]
	joinCode := sess.JoinCode
	board := leaderboard.Build(sess.Players, false)
	sess.Mu.Unlock()

	log.Printf("[Engine] Сессия %s: вопрос %d закрыт", joinCode, index+1)
	e.broadcast(joinCode, eventbus.NewMessage(eventbus.QUESTION_ENDED, eventbus.QuestionEndedPayload{
		CorrectIndex: question.CorrectIndex,
		CorrectText:  question.Options[question.CorrectIndex],
		Leaderboard:  board,
	}))

	time.Sleep(interQuestionDelay)
	go e.advance(sess)
}

// SubmitAnswer принимает ответ игрока на вопрос questionIndex, проверяет
// его против часов и начисляет очки по активному правилу сессии.
func (e *Engine) SubmitAnswer(sess *entity.Session, playerID string, questionIndex, selectedIndex int) {
	sess.Mu.Lock()

	joinCode := sess.JoinCode

	// Отрицательный индекс (до старта CurrentQuestion равен -1) — такая же
	// попытка ответить не на текущий вопрос.
	if sess.CurrentQuestion != questionIndex || questionIndex < 0 {
		sess.Mu.Unlock()
		e.sendError(joinCode, playerID, "wrong_question", "Answer does not match the current question")
		return
	}

	player, ok := sess.Players[playerID]
	if !ok {
		// Игрока успели удалить по таймауту переподключения: ответ
		// молча отбрасывается, соединение живёт своей жизнью.
		sess.Mu.Unlock()
		return
	}

	if player.HasAnswered(questionIndex) {
		sess.Mu.Unlock()
		e.sendError(joinCode, playerID, "already_answered", "Answer for this question was already submitted")
		return
	}

	var elapsedMs int64
	if !sess.QuestionStarted.IsZero() {
		elapsedMs = time.Since(sess.QuestionStarted).Milliseconds()
	}

	question := sess.Quiz.Questions[questionIndex]
	correct := question.IsCorrect(selectedIndex)
	points := scoring.Calculate(sess.ScoringRule, correct, elapsedMs, question.TimeLimitSec)

	player.RecordAnswer(entity.Answer{
		QuestionIndex: questionIndex,
		SelectedIndex: selectedIndex,
		TimeTakenMs:   elapsedMs,
		PointsAwarded: points,
	}, correct)

	// answered считает всех держателей ответа (отключённые сохраняют свои
	// записи), total — только подключённых: ранний конец вопроса должен
	// срабатывать, даже если кто-то отвалился посреди вопроса.
	answered := 0
	answeredConnected := 0
	for _, p := range sess.Players {
		if !p.HasAnswered(questionIndex) {
			continue
		}
		answered++
		if p.ConnectionStatus == entity.ConnectionStatusConnected {
			answeredConnected++
		}
	}
	total := sess.ConnectedPlayerCount()
	allAnswered := total > 0 && answeredConnected >= total

	correctIndex := question.CorrectIndex
	sess.Mu.Unlock()

	e.publishPlayer(joinCode, playerID, eventbus.NewMessage(eventbus.ANSWER_RESULT, eventbus.AnswerResultPayload{
		Correct:       correct,
		PointsAwarded: points,
		CorrectIndex:  correctIndex,
	}))
	e.publishHost(joinCode, eventbus.NewMessage(eventbus.ANSWER_COUNT, eventbus.AnswerCountPayload{
		Answered: answered,
		Total:    total,
	}))

	if allAnswered {
		log.Printf("[Engine] Сессия %s: все игроки ответили на вопрос %d, закрываю досрочно", joinCode, questionIndex+1)
		go e.endQuestion(sess, questionIndex)
	}
}

// Teardown завершает жизнь сессии: убирает её из реестра и закрывает шину.
// Вызывается при нормальном финише, команде end_game и таймауте хоста.
// Повторный вызов безопасен.
func (e *Engine) Teardown(joinCode string) {
	e.sessions.RemoveSession(joinCode)
	e.buses.Remove(joinCode)
}

// sendError шлёт игроку приватное событие error.
func (e *Engine) sendError(joinCode, playerID, code, message string) {
	e.publishPlayer(joinCode, playerID, eventbus.NewMessage(eventbus.ERROR, eventbus.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// broadcast публикует событие всем участникам сессии. Отсутствие шины —
// допустимое состояние (хост ещё не подключался или сессия уже снесена),
// событие в этом случае просто теряется.
func (e *Engine) broadcast(joinCode string, data []byte) {
	if bus, ok := e.buses.Get(joinCode); ok {
		bus.BroadcastAll(data)
	}
}

func (e *Engine) publishHost(joinCode string, data []byte) {
	if bus, ok := e.buses.Get(joinCode); ok {
		bus.HostOnly(data)
	}
}

func (e *Engine) publishPlayer(joinCode, playerID string, data []byte) {
	if bus, ok := e.buses.Get(joinCode); ok {
		bus.PlayerOnly(playerID, data)
	}
}
