package logformatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wireline/wireline/server/logger"
)

// LogFormatter is the console formatter used by the wireline binary. It
// pulls client_id out of the context and prints it in its own column so
// that lines for the same connection are easy to grep.
type LogFormatter struct{}

func New() *LogFormatter {
	return &LogFormatter{}
}

var _ logger.Formatter = &LogFormatter{}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func (f *LogFormatter) Format(entry logger.Entry) ([]byte, error) {
	var keys []string

	if l := len(entry.Ctx); l > 0 {
		keys = make([]string, 0, l)

		for k := range entry.Ctx {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	var b strings.Builder

	var clientID string

	for _, k := range keys {
		v := entry.Ctx[k]

		if k == "client_id" {
			clientID = fmt.Sprintf("%s", v)

			continue
		}

		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(fmt.Sprintf("%+v", v))
	}

	namespace := entry.Namespace
	if l := 20; len(namespace) > l {
		namespace = namespace[len(namespace)-l:]
	}

	var line string

	if clientID != "" {
		line = fmt.Sprintf("%s %5s [%20s] [%s] %s%s\n",
			entry.Timestamp.Format(timeLayout),
			entry.Level,
			namespace,
			clientID,
			strings.TrimRight(entry.Body, "\n"),
			b.String(),
		)
	} else {
		line = fmt.Sprintf("%s %5s [%20s] %s%s\n",
			entry.Timestamp.Format(timeLayout),
			entry.Level,
			namespace,
			strings.TrimRight(entry.Body, "\n"),
			b.String(),
		)
	}

	return []byte(line), nil
}
