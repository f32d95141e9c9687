package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is a []string column. It is written as a JSON array on every
// driver. Reads also accept PostgreSQL array literals such as {a,"b c"} so
// columns created as text[] still load.
type StringList []string

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return l.decode(string(v))
	case string:
		return l.decode(v)
	default:
		return fmt.Errorf("database: cannot scan %T into StringList", value)
	}
}

func (l *StringList) decode(s string) error {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "null":
		*l = StringList{}
		return nil
	case s[0] == '[':
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return fmt.Errorf("database: decode StringList: %w", err)
		}
		*l = out
		return nil
	case s[0] == '{' && s[len(s)-1] == '}':
		*l = splitArrayLiteral(s[1 : len(s)-1])
		return nil
	default:
		*l = StringList{s}
		return nil
	}
}

// splitArrayLiteral splits the body of a PostgreSQL array literal.
// Double quotes group an element and a backslash escapes the next rune.
func splitArrayLiteral(body string) StringList {
	out := StringList{}
	if body == "" {
		return out
	}

	var (
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType returns the column type hint.
func (StringList) GormDataType() string {
	return "text"
}
