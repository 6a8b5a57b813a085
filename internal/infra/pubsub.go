package infra

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListenPatternResilient — «живучая» подписка на семейство каналов Redis
// по шаблону (PSubscribe). Обрабатывает переподключения и логирование;
// разбор полезной нагрузки отдан колбэку.
//
// Колбэк получает хвост имени канала после префикса (обычно request id)
// и сырой payload сообщения.
func ListenPatternResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	prefix string,
	onMessage func(suffix string, payload string),
) {
	pattern := prefix + ":*"

	for {
		pubsub := rdb.PSubscribe(ctx, pattern)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			logger.Error("failed to subscribe", zap.String("pattern", pattern), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		ch := pubsub.Channel()
		logger.Info("pubsub listener started", zap.String("pattern", pattern))

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				suffix := strings.TrimPrefix(msg.Channel, prefix+":")
				onMessage(suffix, msg.Payload)
			}
		}

		pubsub.Close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
