package miner

import "errors"

// Ошибки mining actor'а.
//
// Все они приводят к отказу в TaskInitResponse (accepted=false)
// и никогда не возвращаются контроллеру как error.
var (
	// ErrUnknownExecutor — нет executor'а с указанным именем.
	ErrUnknownExecutor = errors.New("unknown executor")

	// ErrActorInitialized — actor уже принял TaskInitRequest.
	ErrActorInitialized = errors.New("actor already initialized")

	// ErrMinerStopped — miner остановлен и не принимает tasks.
	ErrMinerStopped = errors.New("miner stopped")

	// ErrHTTPRequest — HTTP-запрос к mining backend завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrTemplate — шаблон результата не разобран или не отрендерен.
	ErrTemplate = errors.New("template failed")

	// ErrTaskPanicked — тело task вызвало панику.
	ErrTaskPanicked = errors.New("task panicked")
)
