package descriptor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Provider owns the active descriptor snapshot. Reload swaps the snapshot
// atomically, so synthesis and merge calls in flight keep the descriptor they
// already captured and never observe a half-updated ruleset.
type Provider struct {
	path   string
	log    zerolog.Logger
	active atomic.Pointer[Descriptor]
}

// NewProvider loads the descriptor at path and returns a provider serving it.
// A load failure is logged at warn level and the provider starts empty; the
// service stays up with no protection rules rather than refusing to start.
func NewProvider(path string, log zerolog.Logger) *Provider {
	p := &Provider{
		path: path,
		log:  log.With().Str("component", "descriptor").Logger(),
	}
	p.Reload()
	return p
}

// Current returns the active descriptor snapshot. Never nil.
func (p *Provider) Current() *Descriptor {
	return p.active.Load()
}

// Reload re-reads the descriptor file and swaps the active snapshot in one
// atomic store. Failures fall back to an empty descriptor per the load
// contract and are reported as warnings, not errors.
func (p *Provider) Reload() Counts {
	d, err := Load(p.path)
	if err != nil {
		p.log.Warn().Err(err).Str("path", p.path).
			Msg("descriptor load failed, serving empty ruleset")
	}
	p.active.Store(d)

	counts := d.Counts()
	p.log.Info().
		Int("readonly", counts.ReadOnly).
		Int("enum", counts.Enum).
		Int("titles", counts.Titles).
		Msg("descriptor loaded")
	return counts
}

// Watch reloads the descriptor whenever its file changes on disk, until ctx
// is done. Editors typically replace files via rename, so the parent
// directory is watched and events are filtered by name.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("descriptor watcher: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(p.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				p.log.Debug().Str("op", event.Op.String()).Msg("descriptor file changed")
				p.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.log.Warn().Err(err).Msg("descriptor watch error")
			}
		}
	}()
	return nil
}
