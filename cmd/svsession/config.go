package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
	strduration "github.com/xhit/go-str2duration/v2"
)

const (
	appName = "svsession"

	defaultRPCURL         = "http://socialvoid.qlg1.com:5601/"
	defaultRequestTimeout = time.Minute
	defaultMaxLogFiles    = 5

	envRPCURL     = "SV_RPC_URL"
	envRoot       = "SV_ROOT"
	envDebugLevel = "SV_DEBUGLEVEL"
)

var (
	defaultRoot       = filepath.Join("~", "."+appName)
	defaultConfigFile = filepath.Join(defaultRoot, appName+".conf")

	errIniNotFound = errors.New("not found")
)

type config struct {
	// default section
	Root           string
	RPCURL         string
	CDNURL         string
	ClientName     string
	RequestTimeout time.Duration

	// log section
	LogFile     string
	DebugLevel  string
	MaxLogFiles int
	LogStderr   bool
}

func defaultConfig() *config {
	return &config{
		Root:           defaultRoot,
		RPCURL:         defaultRPCURL,
		RequestTimeout: defaultRequestTimeout,
		LogFile:        filepath.Join(defaultRoot, "logs", appName+".log"),
		DebugLevel:     "info",
		MaxLogFiles:    defaultMaxLogFiles,
	}
}

func iniString(cfg ini.File, p *string, section, key string) {
	if v, ok := cfg.Get(section, key); ok {
		*p = v
	}
}

func iniInt(cfg ini.File, p *int, section, key string) error {
	v, ok := cfg.Get(section, key)
	if !ok {
		return errIniNotFound
	}
	i, err := strconv.Atoi(v)
	if err == nil {
		*p = i
	}
	return err
}

func iniDuration(cfg ini.File, p *time.Duration, section, key string) error {
	v, ok := cfg.Get(section, key)
	if !ok {
		return errIniNotFound
	}
	dur, err := strduration.ParseDuration(v)
	if err == nil {
		*p = dur
	}
	return err
}

// loadFile loads the settings of the ini file fname. A missing file is not an
// error.
func (c *config) loadFile(fname string) error {
	f, err := ini.LoadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to load config file %s: %w", fname, err)
	}

	iniString(f, &c.Root, "", "root")
	iniString(f, &c.RPCURL, "", "rpcurl")
	iniString(f, &c.CDNURL, "", "cdnurl")
	iniString(f, &c.ClientName, "", "clientname")
	err = iniDuration(f, &c.RequestTimeout, "", "requesttimeout")
	if err != nil && !errors.Is(err, errIniNotFound) {
		return fmt.Errorf("invalid requesttimeout: %w", err)
	}

	iniString(f, &c.LogFile, "log", "logfile")
	iniString(f, &c.DebugLevel, "log", "debuglevel")
	err = iniInt(f, &c.MaxLogFiles, "log", "maxlogfiles")
	if err != nil && !errors.Is(err, errIniNotFound) {
		return fmt.Errorf("invalid maxlogfiles: %w", err)
	}
	return nil
}

// loadEnv applies the overrides from the environment, after loading any .env
// file in the working dir.
func (c *config) loadEnv(envFile string) error {
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to load %s: %w", envFile, err)
	}
	if v := os.Getenv(envRPCURL); v != "" {
		c.RPCURL = v
	}
	if v := os.Getenv(envRoot); v != "" {
		c.Root = v
	}
	if v := os.Getenv(envDebugLevel); v != "" {
		c.DebugLevel = v
	}
	return nil
}

func (c *config) expandPaths() error {
	var err error
	if c.Root, err = homedir.Expand(c.Root); err != nil {
		return err
	}
	if c.LogFile, err = homedir.Expand(c.LogFile); err != nil {
		return err
	}
	return nil
}

// loadConfig builds the config from (in increasing precedence) the defaults,
// the config file, the environment and the command line flags. It returns
// the remaining command line arguments.
func loadConfig(args []string, stderr io.Writer) (*config, []string, error) {
	cfg := defaultConfig()

	fset := flag.NewFlagSet(appName, flag.ContinueOnError)
	fset.SetOutput(stderr)
	cfgFile := fset.String("cfg", defaultConfigFile, "Path to the config file")
	envFile := fset.String("env", ".env", "Path to a file with environment overrides")
	root := fset.String("root", "", "Root dir of the client identity and sessions")
	rpcURL := fset.String("rpcurl", "", "URL of the JSON-RPC server")
	debugLevel := fset.String("debuglevel", "", "Log level, as 'level' or 'subsys=level,...'")
	fset.BoolVar(&cfg.LogStderr, "v", false, "Also write the log to stderr")
	fset.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <command> [args]\n\nFlags:\n", appName)
		fset.PrintDefaults()
		fmt.Fprintf(stderr, "\nCommands:\n")
		for _, cmd := range commands {
			fmt.Fprintf(stderr, "  %-10s %s\n", cmd.usage(), cmd.descr)
		}
	}
	if err := fset.Parse(args); err != nil {
		return nil, nil, err
	}

	fname, err := homedir.Expand(*cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.loadFile(fname); err != nil {
		return nil, nil, err
	}
	if err := cfg.loadEnv(*envFile); err != nil {
		return nil, nil, err
	}

	if *root != "" {
		cfg.Root = *root
	}
	if *rpcURL != "" {
		cfg.RPCURL = *rpcURL
	}
	if *debugLevel != "" {
		cfg.DebugLevel = *debugLevel
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, nil, err
	}
	return cfg, fset.Args(), nil
}
