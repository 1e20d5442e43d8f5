package server

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/babelcloud/vidcap/config"
	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/capture/source"
	"github.com/babelcloud/vidcap/internal/util"
)

// HandleOpener resolves a media path to a shared capture handle.
type HandleOpener interface {
	Handle(ctx context.Context, path string) (*core.Handle, error)
	Close()
}

type pooledSource struct {
	src    *source.FileSource
	handle *core.Handle
}

// SourcePool keeps one open source per media path so that concurrent
// requests against the same file contend on a single lease instead of
// spawning one decoder pipeline each.
type SourcePool struct {
	mu      sync.Mutex
	sources map[string]*pooledSource
}

func NewSourcePool() *SourcePool {
	return &SourcePool{sources: make(map[string]*pooledSource)}
}

// Handle returns the shared handle for path, opening the source on first use.
func (p *SourcePool) Handle(ctx context.Context, path string) (*core.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ps, ok := p.sources[path]; ok {
		return ps.handle, nil
	}

	src, err := source.Open(ctx, config.GetFFmpegPath(), config.GetFFprobePath(), path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open media source %s", path)
	}
	ps := &pooledSource{src: src, handle: core.NewHandle(src)}
	p.sources[path] = ps
	util.GetLogger().Info("Source pooled", "path", path)
	return ps.handle, nil
}

// Close releases every pooled source.
func (p *SourcePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, ps := range p.sources {
		if err := ps.src.Close(); err != nil {
			util.GetLogger().Warn("Failed to close pooled source", "path", path, "error", err)
		}
		delete(p.sources, path)
	}
}
