// Package quiz реализует построчный текстовый формат викторины и его разбор.
package quiz

import (
	"strings"

	"github.com/yourusername/quizpit/internal/domain/entity"
)

// ParseError — одна ошибка разбора с привязкой к исходной строке (1-based).
type ParseError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type rawOption struct {
	text      string
	isCorrect bool
}

// Parse разбирает построчный текстовый формат: `#` — заголовок (первое вхождение
// побеждает), `?` — начало вопроса (сначала финализирует предыдущий),
// `-`/`*` — варианты ответа, пустые строки и `//`-комментарии игнорируются.
// defaultTimeLimitSec подставляется как time_limit_sec для каждого вопроса.
//
// Возвращает разобранную викторину только если список ошибок пуст;
// вопрос, не прошедший собственную валидацию, исключается из результата,
// но викторина в целом всё равно считается ошибочной.
func Parse(content string, defaultTimeLimitSec int) (*entity.Quiz, []ParseError) {
	var (
		title     string
		questions []entity.Question
		errs      []ParseError
	)

	var (
		currentQuestion *string
		currentOptions  []rawOption
		questionStart   int
	)

	finalize := func() {
		if currentQuestion == nil {
			return
		}
		q, qerrs := finalizeQuestion(*currentQuestion, currentOptions, questionStart, defaultTimeLimitSec)
		errs = append(errs, qerrs...)
		if q != nil {
			questions = append(questions, *q)
		}
	}

	for i, line := range strings.Split(content, "\n") {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			if title == "" {
				title = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			}
			continue
		}

		if strings.HasPrefix(trimmed, "?") {
			finalize()
			text := strings.TrimSpace(strings.TrimPrefix(trimmed, "?"))
			currentQuestion = &text
			currentOptions = nil
			questionStart = lineNum
			continue
		}

		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
			isCorrect := strings.HasPrefix(trimmed, "*")
			text := strings.TrimSpace(trimmed[1:])
			switch {
			case text == "":
				errs = append(errs, ParseError{Line: lineNum, Message: "Option text is empty"})
			case currentQuestion != nil:
				currentOptions = append(currentOptions, rawOption{text: text, isCorrect: isCorrect})
			default:
				errs = append(errs, ParseError{Line: lineNum, Message: "Option found before any question"})
			}
			continue
		}

		errs = append(errs, ParseError{
			Line:    lineNum,
			Message: "Unrecognized line format: expected #, ?, -, *, or //",
		})
	}

	finalize()

	if title == "" {
		errs = append(errs, ParseError{Line: 1, Message: "Quiz has no title (expected a line starting with #)"})
	}
	if len(questions) == 0 && len(errs) == 0 {
		errs = append(errs, ParseError{Line: 1, Message: "Quiz has no valid questions"})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return &entity.Quiz{Title: title, Questions: questions}, nil
}

// finalizeQuestion проверяет накопленные варианты ответа одного вопроса и
// либо возвращает готовый Question, либо сообщает ошибки против строки,
// на которой вопрос начался (questionStart), кроме пустого текста опции —
// та уже была отмечена на своей собственной строке при сборе.
func finalizeQuestion(text string, options []rawOption, questionStart, defaultTimeLimitSec int) (*entity.Question, []ParseError) {
	var errs []ParseError

	correctCount := 0
	for _, o := range options {
		if o.isCorrect {
			correctCount++
		}
	}

	switch {
	case correctCount == 0:
		errs = append(errs, ParseError{Line: questionStart, Message: "Question has no correct answer (no line starting with *)"})
	case correctCount > 1:
		errs = append(errs, ParseError{Line: questionStart, Message: "Question has multiple correct answers (only one * allowed)"})
	}

	if len(options) < 2 {
		errs = append(errs, ParseError{Line: questionStart, Message: "Question has too few options, minimum is 2"})
	}
	if len(options) > 4 {
		errs = append(errs, ParseError{Line: questionStart, Message: "Question has too many options, maximum is 4"})
	}

	if correctCount != 1 || len(options) < 2 || len(options) > 4 {
		return nil, errs
	}

	correctIndex := -1
	optTexts := make([]string, len(options))
	for i, o := range options {
		optTexts[i] = o.text
		if o.isCorrect {
			correctIndex = i
		}
	}

	return &entity.Question{
		Text:         text,
		Options:      optTexts,
		CorrectIndex: correctIndex,
		TimeLimitSec: defaultTimeLimitSec,
	}, errs
}
