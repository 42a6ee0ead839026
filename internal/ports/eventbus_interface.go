package ports

import (
	"context"

	"trivia-auth-server/internal/model"
)

// EventBus — канал синхронизации отзыва токенов между экземплярами
// сервера. Публикация best-effort: отказ шины логируется и не считается
// фатальным, источником истины остаётся БД.
type EventBus interface {
	PublishInvalidation(ctx context.Context, event model.InvalidationEvent) error

	// SubscribeInvalidations подписывается на события отзыва на всё время
	// жизни контекста. Канал закрывается при отмене контекста.
	SubscribeInvalidations(ctx context.Context) (<-chan model.InvalidationEvent, error)
}
