package ws

// Broadcaster — best-effort рассылка события по текущему составу комнаты.
// Ошибка отправки не поднимается наверх: сбойная сессия передаётся в
// onFailure асинхронно, чтобы её закрытие не мутировало набор, по
// которому идёт итерация.
type Broadcaster struct {
	registry  *Registry
	onFailure func(*Session)
}

func NewBroadcaster(registry *Registry, onFailure func(*Session)) *Broadcaster {
	return &Broadcaster{registry: registry, onFailure: onFailure}
}

// Broadcast шлёт event всем сессиям комнаты кроме exclude (nil — всем).
// Комната без сессий — no-op.
func (b *Broadcaster) Broadcast(roomID int64, event any, exclude *Session) {
	for _, s := range b.registry.Sessions(roomID) {
		if s == exclude {
			continue
		}
		if err := s.Send(event); err != nil {
			if b.onFailure != nil {
				go b.onFailure(s)
			}
		}
	}
}
