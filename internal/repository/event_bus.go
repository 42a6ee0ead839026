package repository

import (
	"context"
	"encoding/json"
	"log"

	"trivia-auth-server/config"
	"trivia-auth-server/internal/model"
	"trivia-auth-server/internal/util"
)

// InvalidationChannel — логический канал Redis, по которому экземпляры
// сервера узнают о массовом отзыве токенов.
const InvalidationChannel = "auth:token_invalidations"

type RedisEventBus struct {
	client  *config.RedisClient
	channel string
}

func NewRedisEventBus(rdb *config.RedisClient) *RedisEventBus {
	return &RedisEventBus{client: rdb, channel: InvalidationChannel}
}

// PublishInvalidation отправляет событие отзыва другим экземплярам.
func (b *RedisEventBus) PublishInvalidation(ctx context.Context, event model.InvalidationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return util.LogError("ошибка сериализации события отзыва", err)
	}

	if err := b.client.Client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return util.LogError("ошибка публикации события отзыва", err)
	}

	return nil
}

// SubscribeInvalidations подписывается на канал отзыва на всё время жизни
// контекста. Возвращает ошибку, если подписка не подтвердилась; дальше
// битые сообщения логируются и пропускаются.
func (b *RedisEventBus) SubscribeInvalidations(ctx context.Context) (<-chan model.InvalidationEvent, error) {
	pubsub := b.client.Client.Subscribe(ctx, b.channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, util.LogError("не удалось подписаться на канал отзыва", err)
	}

	events := make(chan model.InvalidationEvent)
	go func() {
		defer close(events)
		defer func() {
			if err := pubsub.Close(); err != nil {
				log.Printf("ошибка закрытия подписки: %v", err)
			}
		}()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var event model.InvalidationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("ошибка разбора события отзыва: %v", err)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
