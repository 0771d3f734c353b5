// Package eventbus реализует пошинную доставку игровых событий: у каждой
// сессии своя широковещательная шина, на которую подписаны хост и игроки.
// Источник истины о состоянии игры — запись сессии; шина только разносит
// уже сериализованные кадры.
package eventbus

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Scope определяет, кому адресовано событие.
type Scope int

const (
	// ScopeAll — хосту и всем игрокам.
	ScopeAll Scope = iota

	// ScopeHost — только подписчику-хосту.
	ScopeHost

	// ScopePlayer — только подписчику с совпадающим PlayerID.
	ScopePlayer
)

// Event — одно событие на шине. Data — готовый текстовый кадр; шина его
// не разбирает и не переписывает.
type Event struct {
	Scope    Scope
	PlayerID string
	Data     []byte
}

// SubscriberBufferSize — глубина буфера каждого подписчика. Подписчик,
// отставший дальше буфера, отключается, а не блокирует публикацию.
const SubscriberBufferSize = 256

// Subscriber — один получатель событий шины.
type Subscriber struct {
	id string
	ch chan Event
}

// Events возвращает канал событий подписчика. Канал закрывается при
// отписке, закрытии шины или отключении за медлительность; цикл отправки
// соединения должен завершаться на закрытии канала.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Bus — широковещательная шина одной сессии: много издателей, много
// подписчиков, доставка в порядке публикации в пределах одного подписчика.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	closed      bool
}

// NewBus создаёт пустую шину.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe добавляет подписчика. Подписка после закрытия шины возвращает
// подписчика с уже закрытым каналом: цикл отправки завершится сразу.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.New().String(),
		ch: make(chan Event, SubscriberBufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe удаляет подписчика и закрывает его канал. Повторный вызов и
// вызов после закрытия шины безопасны.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.id]; ok {
		delete(b.subscribers, sub.id)
		close(sub.ch)
	}
}

// BroadcastAll публикует событие хосту и всем игрокам.
func (b *Bus) BroadcastAll(data []byte) {
	b.publish(Event{Scope: ScopeAll, Data: data})
}

// HostOnly публикует событие только хосту.
func (b *Bus) HostOnly(data []byte) {
	b.publish(Event{Scope: ScopeHost, Data: data})
}

// PlayerOnly публикует событие только игроку с данным id.
func (b *Bus) PlayerOnly(playerID string, data []byte) {
	b.publish(Event{Scope: ScopePlayer, PlayerID: playerID, Data: data})
}

// publish раскладывает событие по каналам подписчиков. Публикация никогда
// не блокируется: подписчик с переполненным буфером отключается тут же,
// его канал закрывается, и его цикл отправки завершает соединение.
// Отсутствие подписчиков — нормальное состояние, событие просто теряется.
func (b *Bus) publish(ev Event) {
	if ev.Data == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	var lagging []string
	for id, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			lagging = append(lagging, id)
		}
	}

	for _, id := range lagging {
		sub := b.subscribers[id]
		delete(b.subscribers, id)
		close(sub.ch)
		log.Printf("[EventBus] Подписчик %s отстал на %d сообщений и отключён", id, SubscriberBufferSize)
	}
}

// Close закрывает шину и каналы всех подписчиков. Буферизованные события
// подписчики дочитывают до конца, затем их каналы сообщают о закрытии.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// SubscriberCount возвращает число живых подписчиков.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
