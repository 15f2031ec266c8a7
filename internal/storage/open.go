package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

// Open creates the store selected by cfg.Engine.
func Open(cfg KVConfig, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Engine) {
	case EngineBadger, "":
		return NewBadgerStore(cfg, logger)
	case EnginePebble:
		return NewPebbleStore(cfg, logger)
	case EngineBolt:
		return NewBoltStore(cfg, logger)
	case EngineMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}
