package templatefmt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
)

const dateLayout = "2006-01-02"

// FuncMap returns helpers available to every notification template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"date":  FormatDate,
		"days":  FormatDays,
		"json":  MarshalJSON,
		"upper": strings.ToUpper,
	}
}

// ParseNotificationTemplate compiles a subject or body template.
// Missing map keys fail at render time instead of printing "<no value>".
func ParseNotificationTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// Render executes tpl against data.
func Render(tpl *template.Template, data any) (string, error) {
	var out strings.Builder
	if err := tpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", tpl.Name(), err)
	}
	return out.String(), nil
}

// FormatDate renders a calendar date in UTC.
// Params: time.Time or *time.Time; anything else renders empty.
// Returns: YYYY-MM-DD.
func FormatDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(dateLayout)
	case *time.Time:
		if v != nil {
			return v.UTC().Format(dateLayout)
		}
	}
	return ""
}

// FormatDays renders a whole day count with unit, e.g. "1 day" or "3 days".
// Params: integer or float count; floats are rounded up, matching expiry windows.
// Returns: formatted count, or "? days" for unsupported values.
func FormatDays(value any) string {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		n = int64(math.Ceil(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return "? days"
		}
		n = int64(math.Ceil(f))
	default:
		return "? days"
	}
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d day", n)
	}
	return fmt.Sprintf("%d days", n)
}

// MarshalJSON embeds value as JSON; marshal failures render "null".
func MarshalJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(encoded)
}
