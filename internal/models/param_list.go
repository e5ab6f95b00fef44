package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// ParamList stores an ordered list of parameter names as a comma-joined string,
// while tolerating empty/legacy values.
type ParamList []string

func (p ParamList) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "", nil
	}
	return strings.Join([]string(p), ","), nil
}

func (p *ParamList) Scan(value interface{}) error {
	if p == nil {
		return fmt.Errorf("models.ParamList: Scan on nil pointer")
	}
	if value == nil {
		*p = ParamList{}
		return nil
	}

	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.ParamList: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*p = ParamList{}
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*p = out
	return nil
}
