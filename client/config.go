package client

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	identityFilename = "client.json"
	sessionsFilename = "sessions.json"
	lockFilename     = "client.lock"
)

// Config holds the necessary config for instantiating a client.
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the server.
	RPCURL string

	// CDNURL is the CDN endpoint. When empty, it is fetched from the
	// server information the first time it is needed.
	CDNURL string

	// Root is the directory where the client identity and sessions are
	// stored. It is locked for exclusive use while the client is open.
	Root string

	// ClientName is reported to the server when a new client identity
	// is generated.
	ClientName string

	// RequestTimeout is the timeout of individual RPC requests. It is only
	// used when HTTPClient is nil.
	RequestTimeout time.Duration

	// HTTPClient, when set, is used for both RPC and CDN requests.
	HTTPClient *http.Client

	// Logger is a function that generates loggers for each of the client's
	// subsystems.
	Logger func(subsys string) slog.Logger

	// MetricsRegisterer, when set, receives the RPC request metrics.
	MetricsRegisterer prometheus.Registerer
}

func (cfg *Config) logger(subsys string) slog.Logger {
	if cfg.Logger == nil {
		return slog.Disabled
	}
	return cfg.Logger(subsys)
}

func (cfg *Config) validate() error {
	if cfg.RPCURL == "" {
		return errors.New("RPCURL cannot be empty")
	}
	if cfg.Root == "" {
		return errors.New("Root cannot be empty")
	}
	return nil
}

func (cfg *Config) identityPath() string { return filepath.Join(cfg.Root, identityFilename) }
func (cfg *Config) sessionsPath() string { return filepath.Join(cfg.Root, sessionsFilename) }
func (cfg *Config) lockPath() string     { return filepath.Join(cfg.Root, lockFilename) }
