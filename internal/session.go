package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/kvstore"
	"github.com/starford/jstcode/internal/persist"
	"github.com/starford/jstcode/internal/sse"
	"github.com/starford/jstcode/internal/workspace"
)

// treeThrottle coalesces bursts of structure events for live clients.
const treeThrottle = 500 * time.Millisecond

// Session bundles the long-lived components behind one workspace.
type Session struct {
	Engine    *bundler.Engine
	Store     kvstore.Store
	Broker    *sse.Broker
	Workspace *workspace.Workspace
}

// NewSession opens the snapshot store and wires the toolchain, the event
// broker and the workspace. The toolchain is not initialised; call
// Engine.Init.
func NewSession(logger *slog.Logger, cfg *Config) (*Session, error) {
	kv, err := kvstore.Open(cfg.Persistence.Store())
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	engine := bundler.NewEngine(logger,
		bundler.WithEngineCDN(cfg.Preview.CDNBase),
		bundler.WithInitTimeout(cfg.Bundler.InitTimeout),
	)
	broker := sse.NewBroker(treeThrottle)
	ws := workspace.New(logger,
		workspace.Config{
			FileDelay:    cfg.Preview.DebounceFile,
			ProjectDelay: cfg.Preview.DebounceProject,
			Preview:      cfg.Preview.Bridge(),
			Import:       cfg.Import.Limits(),
		},
		engine,
		workspace.WithEvents(broker),
		workspace.WithPersister(persist.New(logger, kv, cfg.Persistence.Persister())),
	)

	return &Session{Engine: engine, Store: kv, Broker: broker, Workspace: ws}, nil
}

// Close stops builds and event delivery and closes the snapshot store.
// The workspace's Run loop must have returned first so the final flush
// lands.
func (s *Session) Close() error {
	s.Workspace.Close()
	s.Broker.Close()
	return s.Store.Close()
}
