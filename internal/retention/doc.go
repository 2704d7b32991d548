// Package retention удаляет завершённые tasks по расписанию.
//
// Record остаётся в реестре после завершения task, чтобы контроллер
// мог прочитать результат. Reclaimer удаляет записи, завершённые
// раньше чем TTL назад; после этого task отвечает NOT_FOUND, а его ID
// можно использовать снова.
//
// Если настроен архив, Reclaimer также удаляет архивные записи старше
// ArchiveTTL.
//
// Расписание — cron-выражение (github.com/robfig/cron/v3):
//
//	*/5 * * * *   — каждые 5 минут
//	@every 30s    — каждые 30 секунд
package retention
