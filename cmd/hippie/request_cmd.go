package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nethippie/hippie/internal/audit"
	"github.com/nethippie/hippie/internal/client"
	"github.com/nethippie/hippie/internal/config"
	"github.com/nethippie/hippie/internal/requestid"
	"github.com/nethippie/hippie/internal/response"
	"github.com/nethippie/hippie/internal/sanitize"
)

type requestFlags struct {
	headers       []string
	data          string
	retries       int
	follow        int
	insecure      bool
	certFile      string
	keyFile       string
	keyPassphrase string
	caFile        string
	timeout       time.Duration
	include       bool
	fail          bool
	requestID     string
	blockPrivate  bool
	auditFile     string
}

func requestCmd(method string) *cobra.Command {
	var f requestFlags

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " URL",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0], &f)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&f.headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	flags.StringVarP(&f.data, "data", "d", "", "request body: JSON is sent verbatim, @file reads a file, @- reads stdin")
	flags.IntVar(&f.retries, "retries", 0, "retries after transient network failures (default from config)")
	flags.IntVar(&f.follow, "follow", 0, "redirect hops to follow (default from config)")
	flags.BoolVarP(&f.insecure, "insecure", "k", false, "skip server certificate verification")
	flags.StringVar(&f.certFile, "cert", "", "client certificate PEM file")
	flags.StringVar(&f.keyFile, "key", "", "client private key PEM file")
	flags.StringVar(&f.keyPassphrase, "key-passphrase", "", "passphrase for an encrypted client key")
	flags.StringVar(&f.caFile, "cacert", "", "CA bundle used to verify the server")
	flags.DurationVar(&f.timeout, "timeout", 0, "read timeout (default from config)")
	flags.BoolVarP(&f.include, "include", "i", false, "print the status line and response headers")
	flags.BoolVarP(&f.fail, "fail", "f", false, "exit non-zero on 4xx and 5xx responses")
	flags.StringVar(&f.requestID, "request-id", "", "request ID to log and stamp (default: generated)")
	flags.BoolVar(&f.blockPrivate, "block-private", false, "refuse loopback, private and link-local targets")
	flags.StringVar(&f.auditFile, "audit-file", "", "append a JSON audit line per exchange to this file (- for stderr)")

	return cmd
}

// applyFlags overlays explicitly set flags onto the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *requestFlags) {
	changed := cmd.Flags().Changed

	if changed("retries") {
		cfg.HTTP.Retries = f.retries
	}
	if changed("follow") {
		cfg.HTTP.FollowRedirects = f.follow
	}
	if changed("timeout") {
		cfg.HTTP.ReadTimeout = f.timeout.String()
	}
	if f.insecure {
		cfg.HTTP.VerifyMode = "none"
	}
	if f.certFile != "" {
		cfg.TLS.CertFile = f.certFile
	}
	if f.keyFile != "" {
		cfg.TLS.KeyFile = f.keyFile
	}
	if f.keyPassphrase != "" {
		cfg.TLS.KeyPassphrase = f.keyPassphrase
	}
	if f.caFile != "" {
		cfg.TLS.CAFile = f.caFile
	}
	if f.blockPrivate {
		cfg.HTTP.BlockPrivateNetworks = true
	}
	if f.auditFile != "" {
		cfg.Logging.AuditFile = f.auditFile
	}
}

func runRequest(cmd *cobra.Command, method, target string, f *requestFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg, f)

	logger, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	headers, err := parseHeaders(f.headers)
	if err != nil {
		return err
	}
	body, err := parseBody(f.data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	clientCfg, err := cfg.ToClientConfig(logger)
	if err != nil {
		return err
	}

	switch cfg.Logging.AuditFile {
	case "":
	case "-":
		clientCfg.Audit = audit.NewStreamWriter(cmd.ErrOrStderr())
	default:
		auditLog, err := audit.NewJSONWriter(audit.JSONWriterConfig{Path: cfg.Logging.AuditFile})
		if err != nil {
			return err
		}
		defer func() { _ = auditLog.Close() }()
		clientCfg.Audit = auditLog
	}
	c, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.requestID != "" {
		ctx = requestid.NewContextWithID(ctx, f.requestID, logger)
	} else {
		ctx = requestid.NewContext(ctx, logger)
	}

	start := time.Now()
	resp, err := c.WithRetry(ctx, cfg.HTTP.Retries, func(ctx context.Context) (*response.Response, error) {
		return c.Do(ctx, method, target, headers, body)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %s", method, sanitize.RawURL(target), sanitize.Error(err))
	}

	requestid.LoggerFromContext(ctx, logger).Debug("Request complete",
		zap.String("method", method),
		zap.String("url", sanitize.RawURL(target)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("elapsed", time.Since(start)))

	if err := writeResponse(cmd.OutOrStdout(), resp, f.include); err != nil {
		return err
	}

	if f.fail && resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d %s", resp.StatusCode, resp.Category())
	}
	return nil
}
