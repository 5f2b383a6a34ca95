package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nethippie/hippie/internal/config"
	"github.com/nethippie/hippie/internal/sanitize"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration (%s)\n", configPath())
			fmt.Fprintf(w, "══════════════════════════════════════\n")
			fmt.Fprintf(w, "\n[http]\n")
			fmt.Fprintf(w, "  read_timeout      = %s\n", cfg.HTTP.ReadTimeout)
			fmt.Fprintf(w, "  open_timeout      = %s\n", cfg.HTTP.OpenTimeout)
			fmt.Fprintf(w, "  verify_mode       = %s\n", cfg.HTTP.VerifyMode)
			fmt.Fprintf(w, "  follow_redirects  = %d\n", cfg.HTTP.FollowRedirects)
			fmt.Fprintf(w, "  retries           = %d\n", cfg.HTTP.Retries)
			fmt.Fprintf(w, "  max_connections   = %d\n", cfg.HTTP.MaxConnections)
			fmt.Fprintf(w, "  rate_limit        = %g\n", cfg.HTTP.RateLimit)
			fmt.Fprintf(w, "  rate_burst        = %d\n", cfg.HTTP.RateBurst)
			fmt.Fprintf(w, "  request_id_header = %s\n", cfg.HTTP.RequestIDHeader)
			fmt.Fprintf(w, "  debug             = %v\n", cfg.HTTP.Debug)
			fmt.Fprintf(w, "  block_private_networks = %v\n", cfg.HTTP.BlockPrivateNetworks)

			fmt.Fprintf(w, "\n[headers]\n")
			headers := sanitize.Headers(cfg.Headers)
			for _, name := range sanitize.HeaderNames(headers) {
				fmt.Fprintf(w, "  %s = %s\n", name, headers[name])
			}

			fmt.Fprintf(w, "\n[tls]\n")
			fmt.Fprintf(w, "  cert_file         = %s\n", cfg.TLS.CertFile)
			fmt.Fprintf(w, "  key_file          = %s\n", cfg.TLS.KeyFile)
			fmt.Fprintf(w, "  key_passphrase    = %s\n", redact(cfg.TLS.KeyPassphrase))
			fmt.Fprintf(w, "  ca_file           = %s\n", cfg.TLS.CAFile)

			fmt.Fprintf(w, "\n[logging]\n")
			fmt.Fprintf(w, "  level             = %s\n", cfg.Logging.Level)
			fmt.Fprintf(w, "  file              = %s\n", cfg.Logging.File)
			fmt.Fprintf(w, "  audit_file        = %s\n", cfg.Logging.AuditFile)

			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := configPath()

			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}

			if err := config.DefaultConfig().Save(cfgPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", cfgPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return sanitize.Redacted
}
