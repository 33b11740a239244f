// Command houdl lists and downloads SideFX Houdini builds.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/houdl/houdl"
	"github.com/houdl/houdl/client"
	"github.com/houdl/houdl/client/auth"
)

const rootDesc = `
Query the SideFX build-distribution service and download Houdini builds.

Credentials are read from the SESI_USER_ID and SESI_USER_SECRET
environment variables. The bearer token is cached under the user cache
directory and reused until it expires.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	product  string
	platform string
	verbose  bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "houdl",
		Short:        "download SideFX Houdini builds",
		Long:         rootDesc,
		SilenceUsage: true,
	}

	p := cmd.PersistentFlags()
	p.StringVar(&opts.product, "product", string(client.ProductHoudini), "product line to query (houdini, houdini-launcher)")
	p.StringVar(&opts.platform, "platform", defaultPlatform(), "target platform (linux, win64, macos, macosx_arm64)")
	p.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	cmd.AddCommand(newListCmd(out, opts))
	cmd.AddCommand(newGetCmd(out, opts))

	return cmd
}

// defaultPlatform guesses the platform flag from the host OS.
func defaultPlatform() string {
	switch runtime.GOOS {
	case "windows":
		return string(client.PlatformWin64)
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return string(client.PlatformMacosArm64)
		}
		return string(client.PlatformMacos)
	default:
		return string(client.PlatformLinux)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildClient assembles the API client from environment credentials
// and the file-backed token cache.
func buildClient(opts *rootOptions, logger *slog.Logger) (*client.Client, error) {
	userID := os.Getenv("SESI_USER_ID")
	userSecret := os.Getenv("SESI_USER_SECRET")
	if userID == "" || userSecret == "" {
		return nil, errors.New("SESI_USER_ID and SESI_USER_SECRET are required")
	}

	clientOpts := []client.Option{client.WithLogger(logger)}

	if path, err := tokenCachePath(); err != nil {
		logger.Warn("token cache unavailable, re-authenticating every run", "error", err)
	} else {
		clientOpts = append(clientOpts, client.WithTokenStore(auth.NewFileStore(path)))
	}

	if base := os.Getenv("HOUDL_BASE_URL"); base != "" {
		clientOpts = append(clientOpts, client.WithBaseURL(base))
	}

	return houdl.NewClient(auth.Credentials{UserID: userID, UserSecret: userSecret}, clientOpts...)
}

func tokenCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "houdl", "token.json"), nil
}
