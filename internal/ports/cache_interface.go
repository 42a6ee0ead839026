package ports

import "time"

// RevocationCache — локальный кэш отметок отзыва: user id → момент,
// до которого включительно выданные токены недействительны.
//
// Модель согласованности: запись в кэш собственного процесса происходит
// до возврата из InvalidateUser, поэтому для этого процесса отзыв виден
// мгновенно. Остальные экземпляры сходятся через шину событий в пределах
// задержки доставки pub/sub (bounded staleness).
type RevocationCache interface {
	Get(userID int64) (time.Time, bool)
	Set(userID int64, invalidationTime time.Time)
	Delete(userID int64)

	// Sweep удаляет записи старше before, возвращает число удалённых.
	Sweep(before time.Time) int
}
