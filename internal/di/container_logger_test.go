package di_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/di"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/runtimeconfig"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

func TestContainerLogsConfiguration(t *testing.T) {
	rec := newRecordingProvider()
	if _, err := di.NewContainer(runtimeconfig.DefaultConfig(), di.WithLoggerProvider(rec)); err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	entry := rec.find("container.configured")
	if entry == nil {
		t.Fatalf("expected container.configured log entry, got %#v", rec.entries)
	}
	if got := entry.fields["logging"]; got != "custom" {
		t.Fatalf("expected custom logging field, got %v", got)
	}
	if got := entry.fields["module"]; got != "mdsync" {
		t.Fatalf("expected module field to be mdsync, got %v", got)
	}
}

func TestControllerOptionsScopeLoggers(t *testing.T) {
	rec := newRecordingProvider()
	container, err := di.NewContainer(runtimeconfig.DefaultConfig(), di.WithLoggerProvider(rec))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	ctrl := controller.New("Hello", nil, nil, container.ControllerConfig(),
		container.ControllerOptions("notes.md", syntax.NewID())...)
	ctrl.Start()
	t.Cleanup(func() { _ = ctrl.Close(context.Background()) })

	ctx := context.Background()
	if _, err := ctrl.SubmitOperation(ctx, ops.TextEdit(syntax.Path{0, 0}, 5, 5, "!")); err != nil {
		t.Fatalf("SubmitOperation returned error: %v", err)
	}

	entry := rec.find("controller.view_pass.committed")
	if entry == nil {
		t.Fatalf("expected controller.view_pass.committed entry, got %#v", rec.entries)
	}
	if got := entry.fields["module"]; got != "mdsync.controller" {
		t.Fatalf("expected module mdsync.controller, got %v", got)
	}
	if got := entry.fields["document_path"]; got != "notes.md" {
		t.Fatalf("expected document_path notes.md, got %v", got)
	}
}

type recordingProvider struct {
	mu      sync.Mutex
	entries []recordedEntry
}

type recordedEntry struct {
	level  string
	msg    string
	fields map[string]any
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{entries: []recordedEntry{}}
}

func (p *recordingProvider) GetLogger(name string) interfaces.Logger {
	return &recordingLogger{
		provider: p,
		fields: map[string]any{
			"logger": name,
		},
	}
}

func (p *recordingProvider) record(entry recordedEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

func (p *recordingProvider) find(msg string) *recordedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		if p.entries[i].msg == msg {
			return &p.entries[i]
		}
	}
	return nil
}

type recordingLogger struct {
	provider *recordingProvider
	fields   map[string]any
}

var _ interfaces.Logger = (*recordingLogger)(nil)

func (l *recordingLogger) Trace(msg string, args ...any) { l.log("TRACE", msg, args...) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }
func (l *recordingLogger) Fatal(msg string, args ...any) { l.log("FATAL", msg, args...) }

func (l *recordingLogger) WithFields(fields map[string]any) interfaces.Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for key, value := range l.fields {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return &recordingLogger{
		provider: l.provider,
		fields:   merged,
	}
}

func (l *recordingLogger) WithContext(context.Context) interfaces.Logger {
	return &recordingLogger{
		provider: l.provider,
		fields:   cloneFields(l.fields),
	}
}

func (l *recordingLogger) log(level, msg string, args ...any) {
	fields := cloneFields(l.fields)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			break
		}
		key, _ := args[i].(string)
		if key == "" {
			continue
		}
		fields[key] = args[i+1]
	}
	l.provider.record(recordedEntry{
		level:  level,
		msg:    msg,
		fields: fields,
	})
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}
