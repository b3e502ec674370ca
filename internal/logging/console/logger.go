// Package console writes leveled key/value log lines for local runs of the
// sync engine, the CLI and tests.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// Level is the severity attached to an entry.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "INFO"
}

// ParseLevel maps a configured level name onto a Level. Unknown names fall
// back to info.
func ParseLevel(name string) Level {
	for i, label := range levelNames {
		if strings.EqualFold(strings.TrimSpace(name), label) {
			return Level(i)
		}
	}
	if strings.EqualFold(strings.TrimSpace(name), "warning") {
		return LevelWarn
	}
	return LevelInfo
}

// Format selects the line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures a Provider. Zero values log text at debug level to
// stdout.
type Options struct {
	Writer io.Writer
	Now    func() time.Time
	Level  *Level
	Format Format
	// Focus restricts entries below warn to loggers whose name starts with
	// one of the prefixes.
	Focus []string
}

// Provider hands out loggers sharing one writer.
type Provider struct {
	mu     sync.Mutex
	out    io.Writer
	now    func() time.Time
	level  Level
	format Format
	focus  []string
}

var _ interfaces.LoggerProvider = (*Provider)(nil)

// NewProvider builds a console provider.
func NewProvider(opts Options) *Provider {
	p := &Provider{
		out:    opts.Writer,
		now:    opts.Now,
		level:  LevelDebug,
		format: opts.Format,
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if opts.Level != nil {
		p.level = *opts.Level
	}
	if p.format != FormatJSON {
		p.format = FormatText
	}
	for _, prefix := range opts.Focus {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			p.focus = append(p.focus, prefix)
		}
	}
	return p
}

// GetLogger returns a logger tagged with name.
func (p *Provider) GetLogger(name string) interfaces.Logger {
	return &logger{provider: p, name: name, fields: map[string]any{"logger": name}}
}

func (p *Provider) admits(name string, level Level) bool {
	if level < p.level {
		return false
	}
	if len(p.focus) == 0 || level >= LevelWarn {
		return true
	}
	for _, prefix := range p.focus {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

type logger struct {
	provider *Provider
	name     string
	fields   map[string]any
	ctx      context.Context
}

var (
	_ interfaces.Logger       = (*logger)(nil)
	_ interfaces.FieldsLogger = (*logger)(nil)
)

func (l *logger) Trace(msg string, args ...any) { l.write(LevelTrace, msg, args) }
func (l *logger) Debug(msg string, args ...any) { l.write(LevelDebug, msg, args) }
func (l *logger) Info(msg string, args ...any)  { l.write(LevelInfo, msg, args) }
func (l *logger) Warn(msg string, args ...any)  { l.write(LevelWarn, msg, args) }
func (l *logger) Error(msg string, args ...any) { l.write(LevelError, msg, args) }
func (l *logger) Fatal(msg string, args ...any) { l.write(LevelFatal, msg, args) }

func (l *logger) WithFields(fields map[string]any) interfaces.Logger {
	if len(fields) == 0 {
		return l
	}
	next := *l
	next.fields = merge(l.fields, fields)
	return &next
}

func (l *logger) WithContext(ctx context.Context) interfaces.Logger {
	next := *l
	next.ctx = ctx
	return &next
}

func (l *logger) write(level Level, msg string, args []any) {
	p := l.provider
	if p == nil || !p.admits(l.name, level) {
		return
	}
	fields := merge(l.fields, logging.ContextFields(l.ctx))
	fields = merge(fields, pairs(args))

	var line string
	if p.format == FormatJSON {
		line = encodeJSON(p.now().UTC(), level, msg, fields)
	} else {
		line = encodeText(p.now().UTC(), level, msg, fields)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, line+"\n")
}

func merge(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// pairs turns alternating key/value args into fields. Non-string keys and a
// dangling value are kept under positional names.
func pairs(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			out["arg_"+strconv.Itoa(i)] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok || key == "" {
			key = "arg_" + strconv.Itoa(i)
		}
		out[key] = args[i+1]
	}
	return out
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeText(ts time.Time, level Level, msg string, fields map[string]any) string {
	var b strings.Builder
	b.WriteString(ts.Format(time.RFC3339Nano))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, k := range sortedKeys(fields) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(textValue(fields[k]))
	}
	return b.String()
}

func encodeJSON(ts time.Time, level Level, msg string, fields map[string]any) string {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		switch value := v.(type) {
		case error:
			entry[k] = value.Error()
		case fmt.Stringer:
			entry[k] = value.String()
		default:
			entry[k] = value
		}
	}
	entry["time"] = ts.Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return encodeText(ts, level, msg, map[string]any{"encode_error": err})
	}
	return string(data)
}

func textValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	case error:
		return quote(value.Error())
	case fmt.Stringer:
		return quote(value.String())
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	default:
		return quote(fmt.Sprint(value))
	}
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
