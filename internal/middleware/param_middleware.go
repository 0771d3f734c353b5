package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const joinCodeLength = 6

// ExtractJoinCodeParam создает middleware для извлечения и валидации кода
// подключения из параметра URL. Код регистронезависим: перед сохранением в
// контекст он приводится к верхнему регистру.
// paramName - имя параметра в URL (например, "code").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractJoinCodeParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Param(paramName)))
		if !isValidJoinCode(code) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "session_not_found",
				"message": "Invalid join code",
			})
			c.Abort()
			return
		}
		c.Set(contextKey, code)
		c.Next()
	}
}

// isValidJoinCode проверяет формат кода: ровно 6 заглавных букв или цифр.
func isValidJoinCode(code string) bool {
	if len(code) != joinCodeLength {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
