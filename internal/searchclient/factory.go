package searchclient

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/config"
)

// New creates the live search client based on configuration. Exactly one
// backend is instantiated; the inactive one is never constructed.
func New(cfg config.SearchConfig, logger zerolog.Logger) (Client, error) {
	switch cfg.ActiveBackend {
	case "clip":
		return NewClipClient(cfg.PrimaryURL, cfg.RequestTimeout, logger), nil
	case "faiss":
		return NewFaissClient(cfg.BackupURL, cfg.RequestTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported search backend: %s", cfg.ActiveBackend)
	}
}
