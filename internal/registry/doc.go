// Package registry хранит Task Records процесса по ID task.
//
// Registry — явный компонент с жизненным циклом (не глобальное состояние):
// создаётся при старте сервиса, записи добавляются при принятии task
// и удаляются политикой хранения (см. internal/retention).
//
// Чтение статуса не блокируется выполнением task: мьютекс защищает
// только map, а состояние записи читается через атомарный снимок.
//
// Политика дубликатов: ID занят, пока запись находится в реестре
// (в том числе после завершения task). Повторно использовать ID
// можно только после удаления записи.
package registry
