package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quizpit/internal/domain/entity"
	apperrors "github.com/yourusername/quizpit/internal/pkg/errors"
)

func testQuiz() *entity.Quiz {
	return &entity.Quiz{
		Title: "Test",
		Questions: []entity.Question{
			{Text: "Q1", Options: []string{"A", "B"}, CorrectIndex: 1, TimeLimitSec: 20},
		},
	}
}

func TestStoreQuiz_GetReturnsIndependentCopy(t *testing.T) {
	m := NewSessionManager(10)
	m.StoreQuiz("quiz-1", testQuiz())

	got, ok := m.GetQuiz("quiz-1")
	require.True(t, ok)
	got.Questions[0].Options[0] = "mutated"

	again, ok := m.GetQuiz("quiz-1")
	require.True(t, ok)
	assert.Equal(t, "A", again.Questions[0].Options[0], "копия не должна делить срезы с реестром")
}

func TestGetQuiz_Missing(t *testing.T) {
	m := NewSessionManager(10)
	_, ok := m.GetQuiz("nope")
	assert.False(t, ok)
}

func TestStoreQuiz_Idempotent(t *testing.T) {
	m := NewSessionManager(10)
	first := testQuiz()
	m.StoreQuiz("quiz-1", first)
	m.StoreQuiz("quiz-1", &entity.Quiz{Title: "Other"})

	got, ok := m.GetQuiz("quiz-1")
	require.True(t, ok)
	assert.Equal(t, "Test", got.Title)
}

func TestCreateSession_EnforcesLimit(t *testing.T) {
	m := NewSessionManager(2)

	_, err := m.CreateSession(testQuiz())
	require.NoError(t, err)
	_, err = m.CreateSession(testQuiz())
	require.NoError(t, err)

	_, err = m.CreateSession(testQuiz())
	require.ErrorIs(t, err, apperrors.ErrMaxSessionsReached)
	assert.Equal(t, 2, m.SessionCount())
}

func TestRemoveSession_FreesSlot(t *testing.T) {
	m := NewSessionManager(1)

	sess, err := m.CreateSession(testQuiz())
	require.NoError(t, err)

	m.RemoveSession(sess.JoinCode)
	m.RemoveSession(sess.JoinCode) // повторное удаление не ломает счётчик

	_, ok := m.GetSession(sess.JoinCode)
	assert.False(t, ok)
	assert.Equal(t, 0, m.SessionCount())

	_, err = m.CreateSession(testQuiz())
	assert.NoError(t, err)
}

func TestCreateSession_StartsInLobby(t *testing.T) {
	m := NewSessionManager(10)

	sess, err := m.CreateSession(testQuiz())
	require.NoError(t, err)

	assert.Equal(t, entity.SessionStatusLobby, sess.Status)
	assert.Equal(t, -1, sess.CurrentQuestion)
	assert.Equal(t, entity.DefaultScoringRule, sess.ScoringRule)

	got, ok := m.GetSession(sess.JoinCode)
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestJoinCodes_FormatAndUniqueness(t *testing.T) {
	m := NewSessionManager(1000)
	seen := make(map[string]bool, 1000)

	for i := 0; i < 1000; i++ {
		sess, err := m.CreateSession(testQuiz())
		require.NoError(t, err)

		code := sess.JoinCode
		require.Len(t, code, JoinCodeLength)
		for _, r := range code {
			valid := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			require.True(t, valid, "недопустимый символ %q в коде %s", r, code)
		}

		require.False(t, seen[code], "повторившийся код %s", code)
		seen[code] = true
	}
}
