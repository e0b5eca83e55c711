// Package cli implements the certsync command-line client: offline-first
// certificate editing backed by a local SQLite store, with explicit and
// background synchronization against the gateway.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/certsync/certsync/internal/client/config"
	"github.com/certsync/certsync/internal/client/gateway"
	"github.com/certsync/certsync/internal/client/repositories"
	"github.com/certsync/certsync/internal/client/services"
	"github.com/certsync/certsync/internal/client/syncer"
	"github.com/certsync/certsync/internal/logging"
)

var (
	version    = "dev"
	configPath string
)

// SetVersion sets the version string shown by the version command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "certsync",
	Short: "Offline-first electrical certificate client",
	Long: `certsync keeps electrical installation condition reports editable
offline and synchronizes them with the certificate server whenever a
connection is available.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

// app bundles everything a command needs: config, local store, gateway and
// the sync coordinator. Commands open it per invocation and close it on the
// way out.
type app struct {
	cfg   config.Config
	log   logging.Logger
	repos *repositories.Repositories
	gw    *gateway.HTTPClient
	certs services.CertificateService
	auth  services.AuthService
	coord *syncer.Coordinator
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	repos, err := repositories.InitDatabase(ctx, repositories.DSN(cfg.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	gw := gateway.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
	if token, err := loadToken(); err == nil && token != "" {
		gw.SetToken(token)
	}

	syncCfg := syncer.DefaultConfig()
	syncCfg.Interval = cfg.SyncInterval
	syncCfg.RequestTimeout = cfg.RequestTimeout
	coord := syncer.NewCoordinator(repos.Certificates, repos.Attachments, gw, log, syncCfg)

	return &app{
		cfg:   cfg,
		log:   log,
		repos: repos,
		gw:    gw,
		certs: services.NewCertificateService(repos.Certificates, repos.Attachments, gw, coord, log, cfg.RequestTimeout),
		auth:  services.NewAuthService(gw),
		coord: coord,
	}, nil
}

func (a *app) close() {
	if a.repos != nil && a.repos.DB != nil {
		a.repos.DB.Close()
	}
	if a.gw != nil {
		a.gw.Close()
	}
}

func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "certsync", "token"), nil
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken() (string, error) {
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
