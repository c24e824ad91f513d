package logger

import (
	"fmt"
	"sort"
	"strings"
)

const defaultDateLayout = "2006-01-02T15:04:05.000000Z07:00"

// StringFormatter is the default Formatter. It renders entries as a single
// console line with sorted key=value context pairs.
type StringFormatter struct {
	dateLayout string
}

var _ Formatter = &StringFormatter{}

func NewStringFormatter() *StringFormatter {
	return &StringFormatter{
		dateLayout: defaultDateLayout,
	}
}

// Format implements Formatter.
func (f *StringFormatter) Format(entry Entry) ([]byte, error) {
	var b strings.Builder

	keys := make([]string, 0, len(entry.Ctx))
	for k := range entry.Ctx {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(fmt.Sprintf("%+v", entry.Ctx[k]))
	}

	line := fmt.Sprintf("%s %5s [%20s] %s%s\n",
		entry.Timestamp.Format(f.dateLayout),
		entry.Level,
		entry.Namespace,
		strings.TrimRight(entry.Body, "\n"),
		b.String(),
	)

	return []byte(line), nil
}
