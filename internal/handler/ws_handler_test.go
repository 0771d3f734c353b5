package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quizpit/internal/config"
	"github.com/yourusername/quizpit/internal/domain/entity"
	"github.com/yourusername/quizpit/internal/engine"
	"github.com/yourusername/quizpit/internal/eventbus"
	"github.com/yourusername/quizpit/internal/middleware"
	"github.com/yourusername/quizpit/internal/registry"
)

// wsFrame — разобранный серверный кадр {type, payload}.
type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsRig struct {
	sessions *registry.SessionManager
	buses    *eventbus.Registry
	server   *httptest.Server
	joinCode string
}

// newWSRig поднимает полный стек поверх httptest: реестры, движок,
// обработчики, маршруты — и одну сессию с двумя вопросами.
func newWSRig(t *testing.T, cfg *config.Config) *wsRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := registry.NewSessionManager(cfg.Game.MaxSessions)
	buses := eventbus.NewRegistry()
	gameEngine := engine.New(sessions, buses)
	wsHandler := NewWSHandler(sessions, buses, gameEngine, cfg)

	router := gin.New()
	ws := router.Group("/ws")
	ws.Use(middleware.ExtractJoinCodeParam("code", "joinCode"))
	ws.GET("/host/:code", wsHandler.HandleHost)
	ws.GET("/player/:code", wsHandler.HandlePlayer)

	quiz := &entity.Quiz{
		Title: "Q",
		Questions: []entity.Question{
			{Text: "Q1", Options: []string{"A", "B"}, CorrectIndex: 1, TimeLimitSec: 20},
			{Text: "Q2", Options: []string{"X", "Y"}, CorrectIndex: 0, TimeLimitSec: 20},
		},
	}
	sess, err := sessions.CreateSession(quiz)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsRig{
		sessions: sessions,
		buses:    buses,
		server:   server,
		joinCode: sess.JoinCode,
	}
}

func (r *wsRig) dial(t *testing.T, path string) *gorillaws.Conn {
	t.Helper()
	url := strings.Replace(r.server.URL, "http", "ws", 1) + path
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (r *wsRig) dialHost(t *testing.T) *gorillaws.Conn {
	return r.dial(t, "/ws/host/"+r.joinCode)
}

func (r *wsRig) dialPlayer(t *testing.T, name string) *gorillaws.Conn {
	return r.dial(t, "/ws/player/"+r.joinCode+"?name="+name)
}

func sendCommand(t *testing.T, conn *gorillaws.Conn, commandType string, payload interface{}) {
	t.Helper()
	frame := map[string]interface{}{"type": commandType}
	if payload != nil {
		frame["payload"] = payload
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, data))
}

// waitForFrame читает кадры, пропуская посторонние, пока не встретит
// ожидаемый тип.
func waitForFrame(t *testing.T, conn *gorillaws.Conn, frameType string) wsFrame {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "ожидался кадр %s", frameType)

		var f wsFrame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == frameType {
			return f
		}
	}
}

// expectSilence убеждается, что в ближайшее окно не приходит кадр данного
// типа.
func expectSilence(t *testing.T, conn *gorillaws.Conn, frameType string, window time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(window)))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return // таймаут чтения — тишина подтверждена
		}
		var f wsFrame
		require.NoError(t, json.Unmarshal(data, &f))
		require.NotEqual(t, frameType, f.Type)
	}
}

func defaultWSConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Game: config.GameConfig{
			MaxSessions:         10,
			MaxPlayers:          50,
			QuestionTimeSec:     20,
			ReconnectTimeoutSec: 120,
		},
	}
}

func TestWS_HappyPathOnePlayerTwoQuestions(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")

	joined := waitForFrame(t, host, eventbus.PLAYER_JOINED)
	var jp eventbus.PlayerJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &jp))
	assert.Equal(t, "P", jp.DisplayName)
	assert.Equal(t, 1, jp.PlayerCount)
	assert.Equal(t, "🙂", jp.Avatar)

	sendCommand(t, host, "start_game", nil)

	starting := waitForFrame(t, host, eventbus.GAME_STARTING)
	var sp eventbus.GameStartingPayload
	require.NoError(t, json.Unmarshal(starting.Payload, &sp))
	assert.Equal(t, 2, sp.TotalQuestions)

	q := waitForFrame(t, player, eventbus.QUESTION)
	var qp eventbus.QuestionPayload
	require.NoError(t, json.Unmarshal(q.Payload, &qp))
	require.Equal(t, 0, qp.QuestionIndex)

	sendCommand(t, player, "submit_answer", map[string]int{"question_index": 0, "selected_index": 1})

	result := waitForFrame(t, player, eventbus.ANSWER_RESULT)
	var rp eventbus.AnswerResultPayload
	require.NoError(t, json.Unmarshal(result.Payload, &rp))
	assert.True(t, rp.Correct)

	count := waitForFrame(t, host, eventbus.ANSWER_COUNT)
	var cp eventbus.AnswerCountPayload
	require.NoError(t, json.Unmarshal(count.Payload, &cp))
	assert.Equal(t, 1, cp.Answered)
	assert.Equal(t, 1, cp.Total)

	ended := waitForFrame(t, player, eventbus.QUESTION_ENDED)
	var ep eventbus.QuestionEndedPayload
	require.NoError(t, json.Unmarshal(ended.Payload, &ep))
	assert.Equal(t, 1, ep.CorrectIndex)
	waitForFrame(t, host, eventbus.QUESTION_ENDED)

	q2 := waitForFrame(t, player, eventbus.QUESTION)
	require.NoError(t, json.Unmarshal(q2.Payload, &qp))
	require.Equal(t, 1, qp.QuestionIndex)
	waitForFrame(t, host, eventbus.QUESTION)

	sendCommand(t, player, "submit_answer", map[string]int{"question_index": 1, "selected_index": 0})
	waitForFrame(t, player, eventbus.QUESTION_ENDED)

	finished := waitForFrame(t, player, eventbus.GAME_FINISHED)
	var fp eventbus.GameFinishedPayload
	require.NoError(t, json.Unmarshal(finished.Payload, &fp))
	assert.Equal(t, 2, fp.TotalQuestions)
	require.Len(t, fp.Leaderboard, 1)
	assert.Equal(t, 1, fp.Leaderboard[0].Rank)
	assert.Equal(t, "P", fp.Leaderboard[0].DisplayName)
	assert.Equal(t, 2000, fp.Leaderboard[0].Score)
	assert.True(t, fp.Leaderboard[0].IsWinner)
	waitForFrame(t, host, eventbus.GAME_FINISHED)
}

func TestWS_NameCollisionGetsSuffix(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	first := rig.dialPlayer(t, "Alex")

	joined := waitForFrame(t, first, eventbus.PLAYER_JOINED)
	var jp eventbus.PlayerJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &jp))
	assert.Equal(t, "Alex", jp.DisplayName)

	second := rig.dialPlayer(t, "Alex")

	assigned := waitForFrame(t, second, eventbus.NAME_ASSIGNED)
	var np eventbus.NameAssignedPayload
	require.NoError(t, json.Unmarshal(assigned.Payload, &np))
	assert.Equal(t, "Alex", np.RequestedName)
	assert.Equal(t, "Alex 2", np.AssignedName)

	joined = waitForFrame(t, second, eventbus.PLAYER_JOINED)
	require.NoError(t, json.Unmarshal(joined.Payload, &jp))
	assert.Equal(t, "Alex 2", jp.DisplayName)
	assert.Equal(t, 2, jp.PlayerCount)

	// Приватный name_assigned первому игроку не виден.
	waitForFrame(t, host, eventbus.PLAYER_JOINED)
	expectSilence(t, first, eventbus.NAME_ASSIGNED, 300*time.Millisecond)
}

func TestWS_HostPauseAndResume(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")
	waitForFrame(t, host, eventbus.PLAYER_JOINED)

	sendCommand(t, host, "start_game", nil)
	waitForFrame(t, player, eventbus.QUESTION)

	host.Close()

	paused := waitForFrame(t, player, eventbus.GAME_PAUSED)
	var pp eventbus.GamePausedPayload
	require.NoError(t, json.Unmarshal(paused.Payload, &pp))
	assert.Equal(t, "host_disconnected", pp.Reason)

	sess, ok := rig.sessions.GetSession(rig.joinCode)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		sess.Mu.RLock()
		defer sess.Mu.RUnlock()
		return sess.Status == entity.SessionStatusPaused
	}, 2*time.Second, 20*time.Millisecond)

	rig.dialHost(t)

	resumed := waitForFrame(t, player, eventbus.GAME_RESUMED)
	var rp eventbus.GameResumedPayload
	require.NoError(t, json.Unmarshal(resumed.Payload, &rp))
	assert.Equal(t, "host_reconnected", rp.Reason)

	sess.Mu.RLock()
	assert.Equal(t, entity.SessionStatusActive, sess.Status)
	sess.Mu.RUnlock()
}

func TestWS_HostTimeoutTerminatesGame(t *testing.T) {
	cfg := defaultWSConfig()
	cfg.Game.ReconnectTimeoutSec = 1
	rig := newWSRig(t, cfg)

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")
	waitForFrame(t, host, eventbus.PLAYER_JOINED)

	sendCommand(t, host, "start_game", nil)
	waitForFrame(t, player, eventbus.QUESTION)

	host.Close()
	waitForFrame(t, player, eventbus.GAME_PAUSED)

	terminated := waitForFrame(t, player, eventbus.GAME_TERMINATED)
	var tp eventbus.GameTerminatedPayload
	require.NoError(t, json.Unmarshal(terminated.Payload, &tp))
	assert.Equal(t, "host_timeout", tp.Reason)
	assert.Equal(t, 2, tp.TotalQuestions)
	require.Len(t, tp.Leaderboard, 1)
	assert.True(t, tp.Leaderboard[0].IsWinner)

	// Сессия и шина выселяются.
	assert.Eventually(t, func() bool {
		_, sessionAlive := rig.sessions.GetSession(rig.joinCode)
		_, busAlive := rig.buses.Get(rig.joinCode)
		return !sessionAlive && !busAlive
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWS_ScoringRuleOnlyInLobby(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")
	waitForFrame(t, host, eventbus.PLAYER_JOINED)

	sendCommand(t, host, "set_scoring_rule", map[string]string{"rule": "linear_decay"})

	set := waitForFrame(t, player, eventbus.SCORING_RULE_SET)
	var sp eventbus.ScoringRuleSetPayload
	require.NoError(t, json.Unmarshal(set.Payload, &sp))
	assert.Equal(t, entity.ScoringRuleLinearDecay, sp.Rule)
	waitForFrame(t, host, eventbus.SCORING_RULE_SET)

	sendCommand(t, host, "start_game", nil)
	waitForFrame(t, host, eventbus.GAME_STARTING)

	// После старта команда игнорируется: ни события, ни смены правила.
	sendCommand(t, host, "set_scoring_rule", map[string]string{"rule": "fixed_score"})
	expectSilence(t, host, eventbus.SCORING_RULE_SET, 500*time.Millisecond)

	sess, ok := rig.sessions.GetSession(rig.joinCode)
	require.True(t, ok)
	sess.Mu.RLock()
	assert.Equal(t, entity.ScoringRuleLinearDecay, sess.ScoringRule)
	sess.Mu.RUnlock()
}

func TestWS_PlayerRejectedAfterGameStarted(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")
	waitForFrame(t, host, eventbus.PLAYER_JOINED)

	sendCommand(t, host, "start_game", nil)
	waitForFrame(t, player, eventbus.QUESTION)

	late, _, err := gorillaws.DefaultDialer.Dial(
		strings.Replace(rig.server.URL, "http", "ws", 1)+"/ws/player/"+rig.joinCode+"?name=Late", nil)
	require.NoError(t, err)
	defer late.Close()

	// Сервер закрывает соединение, не пуская игрока в активную игру.
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorillaws.IsCloseError(err, gorillaws.ClosePolicyViolation))
}

func TestWS_PlayerReconnectKeepsScore(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")
	waitForFrame(t, host, eventbus.PLAYER_JOINED)

	sendCommand(t, host, "start_game", nil)
	waitForFrame(t, player, eventbus.QUESTION)

	sendCommand(t, player, "submit_answer", map[string]int{"question_index": 0, "selected_index": 1})
	waitForFrame(t, player, eventbus.ANSWER_RESULT)

	player.Close()
	left := waitForFrame(t, host, eventbus.PLAYER_LEFT)
	var lp eventbus.PlayerLeftPayload
	require.NoError(t, json.Unmarshal(left.Payload, &lp))
	assert.Equal(t, "disconnected", lp.Reason)
	assert.Equal(t, 0, lp.PlayerCount)

	// Переподключение под тем же именем воскрешает игрока со счётом.
	rig.dialPlayer(t, "P")
	reconnected := waitForFrame(t, host, eventbus.PLAYER_RECONNECTED)
	var rp eventbus.PlayerReconnectedPayload
	require.NoError(t, json.Unmarshal(reconnected.Payload, &rp))
	assert.Equal(t, "P", rp.DisplayName)
	assert.Equal(t, 1, rp.PlayerCount)

	sess, ok := rig.sessions.GetSession(rig.joinCode)
	require.True(t, ok)
	sess.Mu.RLock()
	defer sess.Mu.RUnlock()
	require.Len(t, sess.Players, 1)
	for _, p := range sess.Players {
		assert.Equal(t, entity.ConnectionStatusConnected, p.ConnectionStatus)
		assert.Equal(t, 1000, p.Score)
	}
}

func TestWS_PlayerTimesOutWithoutBus(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	// Хост ещё не подключался — шины нет, игрок получает отказ HTTP.
	url := strings.Replace(rig.server.URL, "http", "ws", 1) + "/ws/player/" + rig.joinCode + "?name=Early"
	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestWS_UnknownSessionRejected(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	url := strings.Replace(rig.server.URL, "http", "ws", 1) + "/ws/host/ZZZZ99"
	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestWS_HostEndGameFinishesSession(t *testing.T) {
	rig := newWSRig(t, defaultWSConfig())

	host := rig.dialHost(t)
	player := rig.dialPlayer(t, "P")
	waitForFrame(t, host, eventbus.PLAYER_JOINED)

	sendCommand(t, host, "start_game", nil)
	waitForFrame(t, player, eventbus.QUESTION)

	sendCommand(t, host, "end_game", nil)

	assert.Eventually(t, func() bool {
		_, sessionAlive := rig.sessions.GetSession(rig.joinCode)
		return !sessionAlive
	}, 3*time.Second, 20*time.Millisecond)
}
