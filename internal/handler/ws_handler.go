package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/quizpit/internal/config"
	"github.com/yourusername/quizpit/internal/domain/entity"
	"github.com/yourusername/quizpit/internal/engine"
	"github.com/yourusername/quizpit/internal/eventbus"
	"github.com/yourusername/quizpit/internal/leaderboard"
	"github.com/yourusername/quizpit/internal/registry"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Сколько игрок ждёт появления шины сессии, если хост ещё не подключился
	busWaitTimeout = 5 * time.Second
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Идентичность участника — обладание кодом подключения, поэтому Origin
	// не проверяется: клиенты приходят и из браузера, и из нативных оболочек.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsCommand — входящий кадр {type, payload}. Неизвестные типы и битые
// полезные нагрузки молча игнорируются: так протокол расширяется без
// поломки старых серверов.
type wsCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitAnswerPayload struct {
	QuestionIndex int `json:"question_index"`
	SelectedIndex int `json:"selected_index"`
}

type setScoringRulePayload struct {
	Rule entity.ScoringRule `json:"rule"`
}

// WSHandler обрабатывает WebSocket соединения хоста и игроков
type WSHandler struct {
	sessions *registry.SessionManager
	buses    *eventbus.Registry
	engine   *engine.Engine
	cfg      *config.Config
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	sessions *registry.SessionManager,
	buses *eventbus.Registry,
	gameEngine *engine.Engine,
	cfg *config.Config,
) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		buses:    buses,
		engine:   gameEngine,
		cfg:      cfg,
	}
}

// HandleHost обрабатывает подключение хоста.
// GET /ws/host/{join_code}
func (h *WSHandler) HandleHost(c *gin.Context) {
	joinCode := c.MustGet("joinCode").(string)

	session, ok := h.sessions.GetSession(joinCode)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found", "message": "No session with this join code"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка апгрейда соединения хоста %s: %v", joinCode, err)
		return
	}

	hostID := uuid.New().String()

	session.Mu.Lock()
	session.HostID = hostID
	resumed := session.Status == entity.SessionStatusPaused
	if resumed {
		session.Status = entity.SessionStatusActive
	}
	session.Mu.Unlock()

	// Шина создаётся лениво при первом подключении хоста; игроки,
	// пришедшие раньше, ждут её появления.
	bus := h.buses.GetOrCreate(joinCode)
	sub := bus.Subscribe()

	if resumed {
		log.Printf("[WSHandler] Хост вернулся в сессию %s, снимаю паузу", joinCode)
		bus.BroadcastAll(eventbus.NewMessage(eventbus.GAME_RESUMED, eventbus.GameResumedPayload{
			Reason: "host_reconnected",
		}))
	} else {
		log.Printf("[WSHandler] Хост подключился к сессии %s", joinCode)
	}

	go h.sendPump(conn, sub, func(ev eventbus.Event) bool {
		return ev.Scope == eventbus.ScopeAll || ev.Scope == eventbus.ScopeHost
	})

	h.hostReceivePump(conn, session, bus)

	bus.Unsubscribe(sub)
	conn.Close()
	h.hostDetach(session, hostID)
}

// hostReceivePump читает команды хоста до закрытия соединения.
func (h *WSHandler) hostReceivePump(conn *gorillaws.Conn, session *entity.Session, bus *eventbus.Bus) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				log.Printf("[WSHandler] Ошибка чтения от хоста %s: %v", session.JoinCode, err)
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case "start_game":
			if err := h.engine.StartGame(session); err != nil {
				log.Printf("[WSHandler] start_game отклонён для %s: %v", session.JoinCode, err)
			}

		case "set_scoring_rule":
			var payload setScoringRulePayload
			if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
				continue
			}
			if !isKnownScoringRule(payload.Rule) {
				continue
			}

			session.Mu.Lock()
			allowed := session.Status == entity.SessionStatusLobby
			if allowed {
				session.ScoringRule = payload.Rule
			}
			session.Mu.Unlock()

			if allowed {
				bus.BroadcastAll(eventbus.NewMessage(eventbus.SCORING_RULE_SET, eventbus.ScoringRuleSetPayload{
					Rule: payload.Rule,
				}))
			}

		case "end_game":
			session.Mu.Lock()
			session.Status = entity.SessionStatusFinished
			session.Mu.Unlock()
			log.Printf("[WSHandler] Хост завершил игру в сессии %s", session.JoinCode)
			return

		default:
			// Неизвестная команда — игнорируем.
		}
	}
}

// hostDetach обрабатывает уход хоста. Активная игра ставится на паузу с
// таймером принудительного завершения; завершённая сессия сносится сразу;
// уход из лобби просто освобождает шину.
func (h *WSHandler) hostDetach(session *entity.Session, hostID string) {
	session.Mu.Lock()
	if session.HostID != hostID {
		// Пока это соединение умирало, успел подключиться новый хост —
		// его сессию не трогаем.
		session.Mu.Unlock()
		return
	}
	session.HostID = ""
	status := session.Status
	if status == entity.SessionStatusActive {
		session.Status = entity.SessionStatusPaused
	}
	joinCode := session.JoinCode
	session.Mu.Unlock()

	switch status {
	case entity.SessionStatusActive:
		log.Printf("[WSHandler] Хост отключился от активной сессии %s, пауза на %v", joinCode, h.cfg.Game.ReconnectTimeout())
		if bus, ok := h.buses.Get(joinCode); ok {
			bus.BroadcastAll(eventbus.NewMessage(eventbus.GAME_PAUSED, eventbus.GamePausedPayload{
				Reason: "host_disconnected",
			}))
		}
		time.AfterFunc(h.cfg.Game.ReconnectTimeout(), func() {
			h.terminateIfStillPaused(session)
		})

	case entity.SessionStatusFinished:
		h.engine.Teardown(joinCode)

	default:
		// Лобби: сессия остаётся ждать хоста, шина освобождается и будет
		// создана заново при его возвращении.
		h.buses.Remove(joinCode)
	}
}

// terminateIfStillPaused — таймер переподключения хоста: если пауза так и
// не снята, игра завершается принудительно.
func (h *WSHandler) terminateIfStillPaused(session *entity.Session) {
	session.Mu.Lock()
	if session.Status != entity.SessionStatusPaused {
		session.Mu.Unlock()
		return
	}
	session.Status = entity.SessionStatusFinished
	joinCode := session.JoinCode
	board := leaderboard.Build(session.Players, true)
	totalQuestions := len(session.Quiz.Questions)
	session.Mu.Unlock()

	log.Printf("[WSHandler] Хост не вернулся в сессию %s, завершаю игру", joinCode)
	if bus, ok := h.buses.Get(joinCode); ok {
		bus.BroadcastAll(eventbus.NewMessage(eventbus.GAME_TERMINATED, eventbus.GameTerminatedPayload{
			Reason:         "host_timeout",
			Leaderboard:    board,
			TotalQuestions: totalQuestions,
		}))
	}
	h.engine.Teardown(joinCode)
}

// HandlePlayer обрабатывает подключение игрока.
// GET /ws/player/{join_code}?name=…&avatar=…
func (h *WSHandler) HandlePlayer(c *gin.Context) {
	joinCode := c.MustGet("joinCode").(string)

	session, ok := h.sessions.GetSession(joinCode)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found", "message": "No session with this join code"})
		return
	}

	// Имя и аватар читаются один раз при подключении.
	requestedName := strings.TrimSpace(c.Query("name"))
	if requestedName == "" {
		requestedName = "Player"
	}
	avatar := strings.TrimSpace(c.Query("avatar"))

	// Игрок мог прийти раньше хоста: шина появляется только когда хост
	// подключается. Не дождались — сессия не готова принимать игроков.
	bus, ok := h.buses.WaitFor(joinCode, busWaitTimeout)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "session_not_joinable", "message": "Host has not connected yet"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка апгрейда соединения игрока %s: %v", joinCode, err)
		return
	}

	// Подписка до изменения состояния: игрок должен увидеть собственное
	// событие входа.
	sub := bus.Subscribe()

	player, ok := h.identifyPlayer(session, bus, requestedName, avatar)
	if !ok {
		bus.Unsubscribe(sub)
		conn.WriteControl(gorillaws.CloseMessage,
			gorillaws.FormatCloseMessage(gorillaws.ClosePolicyViolation, "session_not_joinable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.sendPump(conn, sub, func(ev eventbus.Event) bool {
		if ev.Scope == eventbus.ScopeAll {
			return true
		}
		return ev.Scope == eventbus.ScopePlayer && ev.PlayerID == player.ID
	})

	h.playerReceivePump(conn, session, player.ID)

	bus.Unsubscribe(sub)
	conn.Close()
	h.playerDetach(session, player.ID)
}

// identifyPlayer либо воскрешает отключённого игрока с тем же именем в
// окне переподключения, либо регистрирует нового. Возвращает false, если
// сессия не принимает игроков.
func (h *WSHandler) identifyPlayer(session *entity.Session, bus *eventbus.Bus, requestedName, avatar string) (*entity.Player, bool) {
	session.Mu.Lock()

	if existing, ok := session.FindDisconnectedByDisplayName(requestedName); ok &&
		time.Since(existing.DisconnectedAt) <= h.cfg.Game.ReconnectTimeout() {
		existing.ConnectionStatus = entity.ConnectionStatusConnected
		existing.DisconnectedAt = time.Time{}
		playerCount := session.PlayerCount()
		joinCode := session.JoinCode
		session.Mu.Unlock()

		log.Printf("[WSHandler] Игрок %q вернулся в сессию %s", existing.DisplayName, joinCode)
		bus.BroadcastAll(eventbus.NewMessage(eventbus.PLAYER_RECONNECTED, eventbus.PlayerReconnectedPayload{
			PlayerID:    existing.ID,
			DisplayName: existing.DisplayName,
			PlayerCount: playerCount,
		}))
		return existing, true
	}

	if !session.IsJoinable() {
		session.Mu.Unlock()
		return nil, false
	}
	if session.TotalPlayerCount() >= h.cfg.Game.MaxPlayers {
		session.Mu.Unlock()
		return nil, false
	}

	// Разрешаем коллизию имени против не отключённых игроков: "Alex",
	// "Alex 2", "Alex 3", ...
	assignedName := requestedName
	for n := 2; ; n++ {
		if _, taken := session.FindByDisplayName(assignedName); !taken {
			break
		}
		assignedName = requestedName + " " + strconv.Itoa(n)
	}

	player := entity.NewPlayer(uuid.New().String(), assignedName, avatar)
	session.Players[player.ID] = player
	playerCount := session.PlayerCount()
	joinCode := session.JoinCode
	session.Mu.Unlock()

	if assignedName != requestedName {
		bus.PlayerOnly(player.ID, eventbus.NewMessage(eventbus.NAME_ASSIGNED, eventbus.NameAssignedPayload{
			RequestedName: requestedName,
			AssignedName:  assignedName,
		}))
	}

	log.Printf("[WSHandler] Игрок %q вошёл в сессию %s (игроков: %d)", assignedName, joinCode, playerCount)
	bus.BroadcastAll(eventbus.NewMessage(eventbus.PLAYER_JOINED, eventbus.PlayerJoinedPayload{
		PlayerID:    player.ID,
		DisplayName: player.DisplayName,
		Avatar:      player.Avatar,
		PlayerCount: playerCount,
	}))
	return player, true
}

// playerReceivePump читает команды игрока до закрытия соединения.
func (h *WSHandler) playerReceivePump(conn *gorillaws.Conn, session *entity.Session, playerID string) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				log.Printf("[WSHandler] Ошибка чтения от игрока %s в сессии %s: %v", playerID, session.JoinCode, err)
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case "submit_answer":
			var payload submitAnswerPayload
			if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
				continue
			}
			h.engine.SubmitAnswer(session, playerID, payload.QuestionIndex, payload.SelectedIndex)

		default:
			// Неизвестная команда — игнорируем.
		}
	}
}

// playerDetach помечает игрока отключённым и взводит таймер окончательного
// удаления. Счёт и история ответов живут всё окно переподключения, чтобы
// вернувшийся игрок продолжил с того же места.
func (h *WSHandler) playerDetach(session *entity.Session, playerID string) {
	session.Mu.Lock()
	player, ok := session.Players[playerID]
	if !ok || player.ConnectionStatus != entity.ConnectionStatusConnected {
		session.Mu.Unlock()
		return
	}
	disconnectedAt := time.Now()
	player.ConnectionStatus = entity.ConnectionStatusDisconnected
	player.DisconnectedAt = disconnectedAt
	playerCount := session.PlayerCount()
	joinCode := session.JoinCode
	displayName := player.DisplayName
	session.Mu.Unlock()

	log.Printf("[WSHandler] Игрок %q отключился от сессии %s", displayName, joinCode)
	if bus, ok := h.buses.Get(joinCode); ok {
		bus.BroadcastAll(eventbus.NewMessage(eventbus.PLAYER_LEFT, eventbus.PlayerLeftPayload{
			Reason:      "disconnected",
			PlayerCount: playerCount,
		}))
	}

	time.AfterFunc(h.cfg.Game.ReconnectTimeout(), func() {
		h.removeIfStillDisconnected(session, playerID, disconnectedAt)
	})
}

// removeIfStillDisconnected — таймер переподключения игрока. Метка времени
// отключения сравнивается с той, под которую взводился таймер: игрок,
// успевший вернуться и отключиться снова, принадлежит уже другому таймеру.
func (h *WSHandler) removeIfStillDisconnected(session *entity.Session, playerID string, disconnectedAt time.Time) {
	session.Mu.Lock()
	player, ok := session.Players[playerID]
	if !ok || player.ConnectionStatus != entity.ConnectionStatusDisconnected || !player.DisconnectedAt.Equal(disconnectedAt) {
		session.Mu.Unlock()
		return
	}
	delete(session.Players, playerID)
	playerCount := session.PlayerCount()
	joinCode := session.JoinCode
	displayName := player.DisplayName
	session.Mu.Unlock()

	log.Printf("[WSHandler] Игрок %q не вернулся в сессию %s, удаляю", displayName, joinCode)
	if bus, ok := h.buses.Get(joinCode); ok {
		bus.BroadcastAll(eventbus.NewMessage(eventbus.PLAYER_LEFT, eventbus.PlayerLeftPayload{
			Reason:      "timeout",
			PlayerCount: playerCount,
		}))
	}
}

// sendPump пересылает клиенту события с шины, пропуская чужие по filter, и
// держит соединение живым ping-ами. Завершается на закрытии канала
// подписчика (отписка, снос шины, отключение за медлительность) или на
// ошибке записи.
func (h *WSHandler) sendPump(conn *gorillaws.Conn, sub *eventbus.Subscriber, filter func(eventbus.Event) bool) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				conn.WriteControl(gorillaws.CloseMessage,
					gorillaws.FormatCloseMessage(gorillaws.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if !filter(ev) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(gorillaws.TextMessage, ev.Data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isKnownScoringRule проверяет имя правила из команды хоста.
func isKnownScoringRule(rule entity.ScoringRule) bool {
	switch rule {
	case entity.ScoringRuleSteppedDecay, entity.ScoringRuleLinearDecay, entity.ScoringRuleFixedScore:
		return true
	}
	return false
}
