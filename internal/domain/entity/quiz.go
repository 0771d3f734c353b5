package entity

// Question — один вопрос викторины. Неизменяем после создания.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"`
	TimeLimitSec int      `json:"time_limit_sec"`
}

// OptionsCount возвращает число вариантов ответа.
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption сообщает, попадает ли индекс в диапазон вариантов.
func (q *Question) IsValidOption(selectedIndex int) bool {
	return selectedIndex >= 0 && selectedIndex < len(q.Options)
}

// IsCorrect сравнивает выбранный вариант с правильным.
func (q *Question) IsCorrect(selectedIndex int) bool {
	return selectedIndex == q.CorrectIndex
}

// Quiz — набор вопросов, неизменяемый после парсинга. Хранится в реестре
// под непрозрачным quiz_id и копируется при создании сессии.
type Quiz struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Clone возвращает независимую копию викторины для передачи в новую
// сессию без разделения среза вопросов с реестром.
func (q *Quiz) Clone() *Quiz {
	questions := make([]Question, len(q.Questions))
	for i, orig := range q.Questions {
		options := make([]string, len(orig.Options))
		copy(options, orig.Options)
		questions[i] = Question{
			Text:         orig.Text,
			Options:      options,
			CorrectIndex: orig.CorrectIndex,
			TimeLimitSec: orig.TimeLimitSec,
		}
	}
	return &Quiz{Title: q.Title, Questions: questions}
}
