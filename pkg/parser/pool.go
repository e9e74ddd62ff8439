package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool holds up to maxSize parsers for one grammar. Parsers are
// created lazily; once maxSize exist, acquire blocks for a release.
type parserPool struct {
	pool    chan *ts.Parser
	langPtr unsafe.Pointer
	lang    Language
	isTSX   bool
	maxSize int
	logger  *slog.Logger

	mu      sync.Mutex
	created int
}

func newParserPool(lang Language, langPtr unsafe.Pointer, isTSX bool, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		lang:    lang,
		isTSX:   isTSX,
		maxSize: maxSize,
		logger:  logger,
	}
}

func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.pool:
		return parser, nil
	default:
		return p.createOrWait()
	}
}

func (p *parserPool) createOrWait() (*ts.Parser, error) {
	p.mu.Lock()
	if p.created >= p.maxSize {
		p.mu.Unlock()
		return <-p.pool, nil
	}

	parser := ts.NewParser()
	if parser == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	p.created++
	p.mu.Unlock()

	p.logger.Debug("created parser", "language", p.lang.String(), "tsx", p.isTSX, "pool_size", p.created)
	return parser, nil
}

func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	select {
	case p.pool <- parser:
	default:
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser", "language", p.lang.String())
	}
}

func (p *parserPool) close() {
	close(p.pool)
	for parser := range p.pool {
		parser.Close()
	}
}

func (p *parserPool) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
