// Package cli реализует инструмент командной строки TaskMiner.
//
// CLI работает через HTTP API контроллера и не импортирует
// внутренние пакеты системы.
//
// # Client
//
// HTTP-клиент для TaskMiner API: разбор DataResponse/ListResponse,
// ошибки API возвращаются как *APIError (код REJECTED — отказ worker'а).
// API-ключ передаётся в заголовке X-Api-Key.
//
//	client := cli.NewClient("http://localhost:8080", "my-key")
//	resp, err := client.Submit(ctx, cli.SubmitRequest{MaxRunningTime: 1})
//
// # Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения в stderr:
//
//	taskminer archive list --json | jq .
//
// # Commands
//
//   - task: submit, status, wait
//   - archive: list, show
//
// Группы создаются фабриками (NewTaskCmd, NewArchiveCmd), принимающими
// clientFn и outputFn — Client и Output создаются после разбора флагов.
package cli
