package miner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// PropertyTemplate — свойство task с Go-шаблоном результата.
const PropertyTemplate = "template"

// TemplateExecutor рендерит результат task из Go-шаблона.
//
// Шаблон берётся из свойства "template". Данные шаблона:
//   - {{ .ID }} — ID task
//   - {{ .Properties.name }} — свойства task
//   - {{ .Body }} — тело task; JSON-тело разбирается в значение,
//     иначе передаётся строкой
//
// Пример: {{ range .Body }}{{ . }};{{ end }} для тела [1,2,3] даёт "1;2;3;".
type TemplateExecutor struct{}

// templateData — данные для рендеринга.
type templateData struct {
	ID         uuid.UUID
	Properties map[string]string
	Body       any
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — значение по умолчанию для пустого аргумента
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"join":    func(sep string, items []string) string { return strings.Join(items, sep) },
	"split":   func(sep, s string) []string { return strings.Split(s, sep) },
	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

// Execute рендерит шаблон. Ошибка разбора или рендеринга — провал task.
func (e *TemplateExecutor) Execute(ctx context.Context, job *Job) ([]byte, error) {
	tmpl, ok := job.Properties[PropertyTemplate]
	if !ok || tmpl == "" {
		return nil, fmt.Errorf("%w: property %q is required", ErrTemplate, PropertyTemplate)
	}

	t, err := template.New("task").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrTemplate, err)
	}

	data := templateData{
		ID:         job.ID,
		Properties: job.Properties,
		Body:       decodeBody(job.Body),
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: render: %v", ErrTemplate, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeBody разбирает JSON-тело; не-JSON тело возвращается строкой.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}
