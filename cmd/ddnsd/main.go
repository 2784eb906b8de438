package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	ddns "github.com/jmfederico/cloudflare-ddns"
)

var flags = struct {
	KeyFile   string
	CacheFile string
	Interval  time.Duration
	Once      bool
	Verbose   bool
}{}

func init() {
	flag.StringVar(&flags.KeyFile, "k", filepath.Join(os.Getenv("HOME"), ".cloudflare"), "Path to cloudflare API credentials file, used when CLOUDFLARE_API_TOKEN is unset")
	flag.StringVar(&flags.CacheFile, "cache", "", "Path to the cache file (overrides DNS_CACHE_FILE)")
	flag.DurationVar(&flags.Interval, "i", 0, "Duration to wait between reconciliation cycles (overrides POLL_INTERVAL_SECONDS)")
	flag.BoolVar(&flags.Once, "once", false, "Run a single reconciliation cycle and exit")
	flag.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging")
}

func main() {
	flag.Parse()

	logger, cleanup := newLogger()
	defer cleanup()
	if err := run(logger); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, func()) {
	zapCfg := zap.NewProductionConfig()
	if flags.Verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}

	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("fail to init logger, error: %v", err)
	}

	undo := zap.ReplaceGlobals(logger)
	return logger, func() {
		undo()
		_ = logger.Sync()
	}
}

func run(logger *zap.Logger) error {
	cfg, err := configFromEnv()
	if err != nil {
		return err
	}
	if flags.CacheFile != "" {
		cfg.CachePath = flags.CacheFile
	}
	if flags.Interval > 0 {
		cfg.Interval = flags.Interval
	}

	token := cfg.APIToken
	if token == "" {
		if token, err = tokenFromKeyFile(flags.KeyFile); err != nil {
			return fmt.Errorf("error reading API token: %w", err)
		}
	}

	// Library logs route through zap. Without -v the per-step lines sit at
	// debug and stay hidden; the per-cycle summary below is always emitted.
	stdLevel := zapcore.DebugLevel
	if flags.Verbose {
		stdLevel = zapcore.InfoLevel
	}
	stdlog, err := zap.NewStdLogAt(logger.Named("ddns"), stdLevel)
	if err != nil {
		return fmt.Errorf("error bridging logger: %w", err)
	}

	client, err := ddns.New(cfg.RecordName,
		ddns.UsingCloudflare(token, cfg.ZoneID),
		ddns.WithRecordType(cfg.RecordType),
		ddns.WithTTL(cfg.TTL),
		ddns.WithCacheFile(cfg.CachePath),
		ddns.WithCacheMaxAge(cfg.CacheMaxAge),
		ddns.WithLogger(stdlog),
	)
	if err != nil {
		return fmt.Errorf("error creating ddns client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := client.RunDDNS(ctx)
	logCycle(logger, cfg, outcome, err)
	if flags.Once {
		return err
	}

	// Cycle failures never stop the loop; the next tick simply retries.
	ddns.RunDaemon(client, ctx, cfg.Interval, stdlog)
	logger.Info("daemon started",
		zap.String("record", cfg.RecordName),
		zap.Duration("interval", cfg.Interval),
	)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func logCycle(logger *zap.Logger, cfg config, outcome ddns.Outcome, err error) {
	if err != nil {
		// bad credentials and missing records will not fix themselves
		if errors.Is(err, ddns.ErrAuth) || errors.Is(err, ddns.ErrNotFound) {
			logger.Error("cycle failed, operator attention required",
				zap.String("record", cfg.RecordName), zap.Error(err))
			return
		}
		logger.Warn("cycle failed", zap.String("record", cfg.RecordName), zap.Error(err))
		return
	}
	logger.Info("cycle finished",
		zap.String("record", cfg.RecordName),
		zap.Stringer("outcome", outcome),
	)
}

func tokenFromKeyFile(path string) (string, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		zap.L().Info("key file does not exist, starting setup", zap.String("path", path))
		if err := runSetup(path); err != nil {
			return "", fmt.Errorf("setup: %w", err)
		}
	}
	if err := verifyPermissions(path); err != nil {
		return "", err
	}
	return readKey(path)
}

func runSetup(path string) error {
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter Cloudflare API Token: \n")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := string(bytekey)

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	zap.L().Info("verifying token...")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	zap.L().Info("token verified successfully")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer f.Close()
	fmt.Fprintln(f, key)
	zap.L().Info("token written to key file", zap.String("path", path))
	return nil
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(keyb), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}

	return nil
}
