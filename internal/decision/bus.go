package decision

import (
	"sync"

	"github.com/xela07ax/wallet-gate/internal/domain"
	"go.uber.org/zap"
)

type subKey struct {
	kind domain.RequestKind
	id   string
}

// Bus — широковещательная шина решений внутри процесса шлюза.
// Каждая гонка брокера подписывается на свою пару (kind, id); чужие
// сообщения ее не будят. Подписка одноразовая: первое совпавшее решение
// доставляется и снимает подписчика — поздние дубликаты игнорируются.
//
// Шина принадлежит экземпляру брокера и умирает вместе с ним,
// глобального состояния нет.
type Bus struct {
	mu     sync.Mutex
	subs   map[subKey][]chan domain.Decision
	closed bool
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[subKey][]chan domain.Decision),
		logger: logger.Named("decision-bus"),
	}
}

// Subscribe возвращает одноразовый канал решения и функцию отмены.
// Отмена обязательна на всех путях выхода из гонки — проигравшая
// подписка не должна накапливаться.
func (b *Bus) Subscribe(kind domain.RequestKind, id string) (<-chan domain.Decision, func()) {
	ch := make(chan domain.Decision, 1)
	key := subKey{kind: kind, id: id}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[key] = append(b.subs[key], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[key]
		for i, c := range chans {
			if c == ch {
				b.subs[key] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
	}
	return ch, cancel
}

// Publish доставляет решение всем подписчикам его (kind, id) и снимает их.
// Решение без подписчика — нормальная ситуация: гонка уже разрешилась
// fallback-ом, поздний вердикт просто отбрасывается.
func (b *Bus) Publish(d domain.Decision) {
	key := subKey{kind: d.Kind, id: d.RequestID}

	b.mu.Lock()
	chans := b.subs[key]
	delete(b.subs, key)
	b.mu.Unlock()

	if len(chans) == 0 {
		b.logger.Debug("decision without active race, dropped",
			zap.String("request_id", d.RequestID),
			zap.String("kind", string(d.Kind)))
		return
	}

	for _, ch := range chans {
		// Буфер 1 гарантирует неблокирующую доставку одноразовому каналу
		select {
		case ch <- d:
		default:
		}
	}
}

// Close снимает всех подписчиков. Их каналы закрываются, гонки
// завершаются по своему fallback-пути.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(b.subs, key)
	}
}
