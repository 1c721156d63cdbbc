package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/socialvoid/svclient/client"
	"github.com/socialvoid/svclient/internal/version"
)

// lockTimeout is how long to wait for another svsession to release the
// client root.
const lockTimeout = 5 * time.Second

func realMain(args []string, stdout, stderr io.Writer) error {
	ctx, cancel := shutdownListener()
	defer cancel()

	cfg, args, err := loadConfig(args, stderr)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return flag.ErrHelp
	}
	if _, ok := findCommand(args[0]); !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	var logStderr io.Writer
	if cfg.LogStderr {
		logStderr = stderr
	}
	bknd, err := newLogBackend(cfg.LogFile, cfg.DebugLevel, cfg.MaxLogFiles, logStderr)
	if err != nil {
		return err
	}
	defer bknd.Close()
	log := bknd.logger("MAIN")
	log.Debugf("%s version %s", appName, version.String())

	lockCtx, lockCancel := context.WithTimeout(ctx, lockTimeout)
	c, err := client.New(lockCtx, client.Config{
		RPCURL:         cfg.RPCURL,
		CDNURL:         cfg.CDNURL,
		Root:           cfg.Root,
		ClientName:     cfg.ClientName,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         bknd.logger,
	})
	lockCancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Errorf("Unable to close client: %v", err)
		}
	}()

	return runCommand(ctx, c, args, stdout)
}

func main() {
	err := realMain(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		fmt.Fprintf(os.Stderr, "Run '%s -h' for the list of commands\n", appName)
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
