// Package scoring реализует три правила начисления очков, плюс отдельную
// упрощённую трёхуровневую функцию, которая сохранилась в кодовой базе
// исторически и не вызывается движком игры.
package scoring

import "github.com/yourusername/quizpit/internal/domain/entity"

// MaxScore — верхняя граница очков за один вопрос.
const MaxScore = 1000

// Calculate считает очки по активному правилу сессии. Неверный ответ даёт
// 0 очков при любом правиле.
func Calculate(rule entity.ScoringRule, correct bool, elapsedMs int64, timeLimitSec int) int {
	if !correct {
		return 0
	}

	switch rule {
	case entity.ScoringRuleSteppedDecay:
		return steppedDecay(elapsedMs, timeLimitSec)
	case entity.ScoringRuleLinearDecay:
		return linearDecay(elapsedMs, timeLimitSec)
	case entity.ScoringRuleFixedScore:
		return MaxScore
	default:
		return steppedDecay(elapsedMs, timeLimitSec)
	}
}

func steppedDecay(elapsedMs int64, timeLimitSec int) int {
	steps := timeLimitSec / 5
	if steps < 1 {
		steps = 1
	}
	stepSize := MaxScore / steps
	elapsedSteps := elapsedMs / 5000
	raw := saturatingSub(MaxScore, int(elapsedSteps)*stepSize)
	return max(raw, 1)
}

func linearDecay(elapsedMs int64, timeLimitSec int) int {
	stepSize := MaxScore / timeLimitSec
	if stepSize < 1 {
		stepSize = 1
	}
	elapsedSec := elapsedMs / 1000
	raw := saturatingSub(MaxScore, int(elapsedSec)*stepSize)
	return max(raw, 1)
}

// saturatingSub вычитает без ухода в отрицательные числа.
func saturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}

// LegacyTieredScore — упрощённая схема начисления очков: первая треть
// лимита времени — 1000 очков, вторая треть — 500, оставшееся время — 250,
// после истечения лимита — 0. Не вызывается игровым движком; боевое
// начисление идёт через Calculate по правилу сессии.
func LegacyTieredScore(correct bool, elapsedMs int64, timeLimitSec int) int {
	if !correct {
		return 0
	}

	timeLimitMs := int64(timeLimitSec) * 1000
	third := timeLimitMs / 3

	switch {
	case elapsedMs <= third:
		return 1000
	case elapsedMs <= third*2:
		return 500
	case elapsedMs <= timeLimitMs:
		return 250
	default:
		return 0
	}
}
