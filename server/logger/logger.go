package logger

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Ctx is the structured context attached to each log entry.
type Ctx map[string]interface{}

// WithCtx merges the current and the new context into a new Ctx. Neither
// argument is modified.
func (c Ctx) WithCtx(newCtx Ctx) Ctx {
	if c == nil {
		return newCtx
	}

	if newCtx == nil {
		return c
	}

	ret := make(Ctx, len(c)+len(newCtx))

	for k, v := range c {
		ret[k] = v
	}

	for k, v := range newCtx {
		ret[k] = v
	}

	return ret
}

// Entry is a single log entry handed to a Formatter.
type Entry struct {
	Timestamp time.Time
	Namespace string
	Level     Level
	Body      string
	Ctx       Ctx
}

// Formatter renders an Entry for transport, for example as a console line.
type Formatter interface {
	Format(entry Entry) ([]byte, error)
}

// Logger writes leveled, namespaced log entries. Loggers are immutable;
// the With* methods return derived instances.
type Logger struct {
	config    Config
	ctx       Ctx
	formatter Formatter
	namespace string
	writer    io.Writer
}

// New returns a root Logger that is disabled until WithConfig sets levels.
func New() *Logger {
	return &Logger{
		config:    LevelDisabled,
		formatter: NewStringFormatter(),
		writer:    os.Stderr,
	}
}

// NewFromEnv returns a Logger configured from the given environment
// variable, e.g. WIRELINE_LOG=server:debug,udpmux:trace.
func NewFromEnv(key string) *Logger {
	return New().WithConfig(NewConfigFromString(os.Getenv(key)))
}

func (l *Logger) clone() *Logger {
	clone := *l
	return &clone
}

// WithConfig returns a Logger with config set. A nil config is a no-op.
func (l *Logger) WithConfig(config Config) *Logger {
	if config == nil {
		return l
	}

	ret := l.clone()
	ret.config = config

	return ret
}

// WithCtx returns a Logger whose context has newCtx merged in.
func (l *Logger) WithCtx(ctx Ctx) *Logger {
	ret := l.clone()
	ret.ctx = l.ctx.WithCtx(ctx)

	return ret
}

// WithFormatter returns a Logger with formatter set.
func (l *Logger) WithFormatter(formatter Formatter) *Logger {
	ret := l.clone()
	ret.formatter = formatter

	return ret
}

// WithWriter returns a Logger with writer set.
func (l *Logger) WithWriter(writer io.Writer) *Logger {
	ret := l.clone()
	ret.writer = writer

	return ret
}

// WithNamespaceAppended returns a Logger whose namespace has the new
// segment appended with a colon separator.
func (l *Logger) WithNamespaceAppended(namespace string) *Logger {
	ret := l.clone()

	if l.namespace != "" {
		namespace = l.namespace + ":" + namespace
	}

	ret.namespace = namespace

	return ret
}

func (l *Logger) Namespace() string {
	return l.namespace
}

// Level returns the configured level for this logger's namespace.
func (l *Logger) Level() Level {
	return l.config.LevelForNamespace(l.namespace)
}

// IsLevelEnabled returns true when entries at level would be written.
func (l *Logger) IsLevelEnabled(level Level) bool {
	configured := l.Level()

	return configured > 0 && level <= configured
}

func (l *Logger) Trace(body string, ctx Ctx) {
	l.log(LevelTrace, body, ctx)
}

func (l *Logger) Debug(body string, ctx Ctx) {
	l.log(LevelDebug, body, ctx)
}

func (l *Logger) Info(body string, ctx Ctx) {
	l.log(LevelInfo, body, ctx)
}

func (l *Logger) Warn(body string, ctx Ctx) {
	l.log(LevelWarn, body, ctx)
}

// Error logs body together with the error's annotated stack trace.
func (l *Logger) Error(body string, err error, ctx Ctx) {
	if err != nil {
		if body != "" {
			body = fmt.Sprintf("%s: %+v", body, err)
		} else {
			body = fmt.Sprintf("%+v", err)
		}
	}

	l.log(LevelError, body, ctx)
}

func (l *Logger) log(level Level, body string, ctx Ctx) {
	if !l.IsLevelEnabled(level) {
		return
	}

	formatted, err := l.formatter.Format(Entry{
		Timestamp: time.Now(),
		Namespace: l.namespace,
		Level:     level,
		Body:      body,
		Ctx:       l.ctx.WithCtx(ctx),
	})
	if err != nil {
		return
	}

	_, _ = l.writer.Write(formatted)
}
