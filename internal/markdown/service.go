package markdown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// ErrRoundTrip reports canonical text that does not survive a parse and
// re-serialization unchanged.
var ErrRoundTrip = errors.New("markdown: canonical text does not round-trip")

// RoundTripError carries the first differing offset between the canonical
// text and its re-serialization.
type RoundTripError struct {
	Offset int
	Want   string
	Got    string
}

func (e *RoundTripError) Error() string {
	return fmt.Sprintf("%s (first difference at byte %d)", ErrRoundTrip, e.Offset)
}

func (e *RoundTripError) Unwrap() error { return ErrRoundTrip }

// Config controls how the Markdown service discovers and parses files.
type Config struct {
	BasePath  string
	Pattern   string
	Recursive bool
	Parser    ParseOptions
}

// Document is a parsed Markdown file.
type Document struct {
	File        *File
	Text        string
	Tree        *syntax.Node
	FrontMatter map[string]any
	Diagnostics Diagnostics
}

// Service parses, loads and reformats Markdown documents.
type Service struct {
	cfg        Config
	parser     *GoldmarkParser
	serializer *Serializer
	loader     *Loader
	logger     interfaces.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for parse diagnostics.
func WithServiceLogger(logger interfaces.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Markdown service rooted at cfg.BasePath.
func NewService(cfg Config, opts ...ServiceOption) (*Service, error) {
	filesystem, err := prepareFilesystem(cfg.BasePath)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:        cfg,
		parser:     NewGoldmarkParser(cfg.Parser),
		serializer: NewSerializer(),
		loader: NewLoader(filesystem, LoaderConfig{
			BasePath:  cfg.BasePath,
			Pattern:   cfg.Pattern,
			Recursive: cfg.Recursive,
		}),
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Parser exposes the configured parser.
func (s *Service) Parser() *GoldmarkParser { return s.parser }

// Serializer exposes the canonical serializer.
func (s *Service) Serializer() *Serializer { return s.serializer }

// Parse parses text into a document and decodes its front matter.
func (s *Service) Parse(text string) *Document {
	tree, diags := s.parser.Parse(text)
	doc := &Document{Text: text, Tree: tree, Diagnostics: diags}
	if tree.Literal != "" {
		if values, err := DecodeFrontMatter(tree.Literal); err == nil {
			doc.FrontMatter = values
		}
	}
	for _, diag := range diags {
		s.logger.Debug("markdown.parse.degraded",
			"construct", diag.Construct,
			"start", diag.Span.Start,
			"end", diag.Span.End,
		)
	}
	return doc
}

// Load reads and parses a single Markdown file relative to the base path.
func (s *Service) Load(ctx context.Context, path string) (*Document, error) {
	file, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	doc := s.Parse(string(file.Source))
	doc.File = file
	return doc, nil
}

// LoadDirectory reads every Markdown file within dir.
func (s *Service) LoadDirectory(ctx context.Context, dir string) ([]*Document, error) {
	files, err := s.loader.LoadDirectory(ctx, normalisePath(dir))
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(files))
	for _, file := range files {
		doc := s.Parse(string(file.Source))
		doc.File = file
		docs = append(docs, doc)
	}
	return docs, nil
}

// Format returns the canonical form of text. The canonical form is checked to
// be a fixed point before it is returned.
func (s *Service) Format(ctx context.Context, text string) (string, Diagnostics, error) {
	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	default:
	}
	tree, diags := s.parser.Parse(text)
	canonical := s.serializer.Serialize(tree)
	if err := VerifyRoundTrip(s.parser, canonical); err != nil {
		return "", diags, err
	}
	return canonical, diags, nil
}

// VerifyRoundTrip parses canonical and checks that serializing the result
// reproduces it byte for byte.
func VerifyRoundTrip(p Parser, canonical string) error {
	tree, _ := p.Parse(canonical)
	got := Serialize(tree)
	if got == canonical {
		return nil
	}
	return &RoundTripError{Offset: firstDifference(canonical, got), Want: canonical, Got: got}
}

// CheckBlock serializes block on its own and verifies the text reads back
// unchanged. A block that fails cannot be stored without changing meaning.
func CheckBlock(p Parser, block *syntax.Node) error {
	if block == nil {
		return nil
	}
	return VerifyRoundTrip(p, Serialize(block))
}

func firstDifference(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func normalisePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return "."
	}
	return path
}

func prepareFilesystem(basePath string) (fs.FS, error) {
	if strings.TrimSpace(basePath) == "" {
		basePath = "."
	}
	if _, err := os.Stat(basePath); err != nil {
		return nil, fmt.Errorf("markdown service: stat base path %s: %w", basePath, err)
	}
	return os.DirFS(basePath), nil
}
