package miner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PropertyExecutor — свойство task с именем executor'а.
const PropertyExecutor = "executor"

// Job — входные данные тела task.
type Job struct {
	ID         uuid.UUID
	APIKey     string
	Properties map[string]string
	Body       []byte
}

// Executor выполняет тело task (алгоритм майнинга или анализа).
//
// Для ядра это чёрный ящик: результат — байты или ошибка.
// ctx отменяется при истечении MaxRunningTime или остановке miner'а;
// executor обязан прекратить работу как можно быстрее.
type Executor interface {
	Execute(ctx context.Context, job *Job) ([]byte, error)
}

// ExecutorFunc — адаптер функции к интерфейсу Executor.
type ExecutorFunc func(ctx context.Context, job *Job) ([]byte, error)

// Execute вызывает f(ctx, job).
func (f ExecutorFunc) Execute(ctx context.Context, job *Job) ([]byte, error) {
	return f(ctx, job)
}

// Registry — реестр executor'ов по имени.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт реестр с зарегистрированными executor'ами по умолчанию.
//
// Регистрирует: echo, delay, http, template.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("echo", &EchoExecutor{})
	r.Register("delay", &DelayExecutor{})
	r.Register("http", &HTTPExecutor{})
	r.Register("template", &TemplateExecutor{})
	return r
}

// Register добавляет executor. Существующий executor с тем же именем заменяется.
func (r *Registry) Register(name string, executor Executor) {
	r.executors[name] = executor
}

// Get возвращает executor по имени.
func (r *Registry) Get(name string) (Executor, error) {
	executor, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, name)
	}
	return executor, nil
}

// Names возвращает имена зарегистрированных executor'ов.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}
