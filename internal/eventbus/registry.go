package eventbus

import (
	"sync"
	"time"
)

// busWaitPollInterval — шаг опроса при ожидании появления шины сессии.
const busWaitPollInterval = 100 * time.Millisecond

// Registry — процессная карта шин по коду подключения. Жизненный цикл шины
// отделён от жизненного цикла сессии: шина создаётся лениво при первом
// подключении хоста и удаляется при завершении сессии, иначе запись течёт.
type Registry struct {
	buses sync.Map // map[string]*Bus
}

// NewRegistry создаёт пустой реестр шин.
func NewRegistry() *Registry {
	return &Registry{}
}

// GetOrCreate возвращает шину для кода подключения, создавая её при
// первом обращении.
func (r *Registry) GetOrCreate(joinCode string) *Bus {
	if existing, ok := r.buses.Load(joinCode); ok {
		return existing.(*Bus)
	}
	actual, _ := r.buses.LoadOrStore(joinCode, NewBus())
	return actual.(*Bus)
}

// Get возвращает шину, если она уже создана.
func (r *Registry) Get(joinCode string) (*Bus, bool) {
	b, ok := r.buses.Load(joinCode)
	if !ok {
		return nil, false
	}
	return b.(*Bus), true
}

// WaitFor опрашивает реестр, пока шина не появится или не истечёт timeout.
// Используется игроком, подключившимся раньше хоста.
func (r *Registry) WaitFor(joinCode string, timeout time.Duration) (*Bus, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if b, ok := r.Get(joinCode); ok {
			return b, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(busWaitPollInterval)
	}
}

// Remove удаляет шину из реестра и закрывает её. Повторный вызов безопасен.
func (r *Registry) Remove(joinCode string) {
	if b, ok := r.buses.LoadAndDelete(joinCode); ok {
		b.(*Bus).Close()
	}
}
