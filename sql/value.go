package sql

import (
	"fmt"
	"sort"
	"strings"
)

// Value is a single column value as seen by the engine: nil, bool, int64,
// float64, string, []byte, or a driver specific type such as time.Time.
type Value = interface{}

// Values maps column names to values; it is used for value assignments on
// insert and update statements and for rows fetched back from the engine.
type Values map[string]Value

func (vals Values) String() string {
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf strings.Builder
	buf.WriteRune('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %v", name, vals[name])
	}
	buf.WriteRune('}')
	return buf.String()
}
