package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

type logBackend struct {
	logRotator      *rotator.Rotator
	stderr          io.Writer
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level

	loggersMtx sync.Mutex
	loggers    map[string]slog.Logger
}

// parseDebugLevel parses a debuglevel string made of either a single level
// or comma separated subsys=level pairs (or both).
func parseDebugLevel(debugLevel string) (slog.Level, map[string]slog.Level, error) {
	def := slog.LevelInfo
	levels := make(map[string]slog.Level)
	if debugLevel == "" {
		return def, levels, nil
	}
	for _, v := range strings.Split(debugLevel, ",") {
		fields := strings.Split(strings.TrimSpace(v), "=")
		switch len(fields) {
		case 1:
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return def, nil, fmt.Errorf("unknown log level %q", fields[0])
			}
			def = level
		case 2:
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return def, nil, fmt.Errorf("unknown log level %q for "+
					"subsystem %s", fields[1], fields[0])
			}
			levels[strings.ToUpper(fields[0])] = level
		default:
			return def, nil, fmt.Errorf("unable to parse %q as subsys=level "+
				"debuglevel string", v)
		}
	}
	return def, levels, nil
}

func newLogBackend(logFile, debugLevel string, maxLogFiles int, stderr io.Writer) (*logBackend, error) {
	def, levels, err := parseDebugLevel(debugLevel)
	if err != nil {
		return nil, err
	}

	var logRotator *rotator.Rotator
	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		err := os.MkdirAll(logDir, 0o700)
		if err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logRotator, err = rotator.New(logFile, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
	}

	b := &logBackend{
		logRotator:      logRotator,
		stderr:          stderr,
		defaultLogLevel: def,
		logLevels:       levels,
		loggers:         make(map[string]slog.Logger),
	}
	b.bknd = slog.NewBackend(b)
	return b, nil
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}
	if bknd.stderr != nil {
		bknd.stderr.Write(b)
	}
	return len(b), nil
}

func (bknd *logBackend) logger(subsys string) slog.Logger {
	bknd.loggersMtx.Lock()
	defer bknd.loggersMtx.Unlock()

	if l, ok := bknd.loggers[subsys]; ok {
		return l
	}

	l := bknd.bknd.Logger(subsys)
	bknd.loggers[subsys] = l
	if level, ok := bknd.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(bknd.defaultLogLevel)
	}
	return l
}

func (bknd *logBackend) Close() error {
	if bknd.logRotator == nil {
		return nil
	}
	return bknd.logRotator.Close()
}
