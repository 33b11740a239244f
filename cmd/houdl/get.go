package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/houdl/houdl/client"
	"github.com/houdl/houdl/client/download"
)

const getDesc = `
Download one build archive into the output directory.

The file is streamed to a temporary path and renamed into place once
the transfer completes, so an interrupted download never leaves a
partial file under the final name. The archive's MD5 checksum is
verified after the transfer; a mismatch is reported as a warning but
the file is kept, since the advertised hash can lag behind fresh daily
builds.
`

type getCmd struct {
	version   string
	build     uint64
	outputDir string
	overwrite bool
	yes       bool

	root *rootOptions
	out  io.Writer
}

func newGetCmd(out io.Writer, root *rootOptions) *cobra.Command {
	gc := &getCmd{out: out, root: root}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "download one build",
		Long:  getDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gc.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&gc.version, "version", "", "major.minor version of the build, e.g. 20.5")
	f.Uint64Var(&gc.build, "build", 0, "build number to download")
	f.StringVar(&gc.outputDir, "output-dir", ".", "directory to save the archive into")
	f.BoolVar(&gc.overwrite, "overwrite", false, "re-download even if the file already exists")
	f.BoolVar(&gc.yes, "yes", false, "skip the confirmation prompt")

	cobra.CheckErr(cmd.MarkFlagRequired("version"))
	cobra.CheckErr(cmd.MarkFlagRequired("build"))

	return cmd
}

func (g *getCmd) run(ctx context.Context) error {
	logger := newLogger(g.root.verbose)

	c, err := buildClient(g.root, logger)
	if err != nil {
		return err
	}

	desc, err := c.ResolveDownload(ctx, client.Product(g.root.product), client.Platform(g.root.platform), g.version, g.build)
	if err != nil {
		return fmt.Errorf("resolving build download: %w", err)
	}

	dest := filepath.Join(g.outputDir, desc.Filename)
	if !g.overwrite {
		if _, err := os.Stat(dest); err == nil {
			fmt.Fprintf(g.out, "File already downloaded: %s\n", dest)
			return nil
		}
	}

	if !g.yes && !confirm(g.out, fmt.Sprintf("Download %s (%d bytes)?", desc.Filename, desc.Size)) {
		return nil
	}

	tmp, err := os.CreateTemp(g.outputDir, ".houdl-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var renamed bool
	defer func() {
		if err := tmp.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !renamed {
			if err := os.Remove(tmp.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	fmt.Fprintf(g.out, "Downloading %s\n", desc.Filename)

	reporter := download.NewReporter(logger, int64(desc.Size))
	res, err := c.Download(ctx, desc, tmp, download.WithProgress(reporter.Add))
	if err != nil {
		return fmt.Errorf("downloading %s: %w", desc.Filename, err)
	}

	if res.Outcome == download.OutcomeCancelled {
		fmt.Fprintln(g.out, "Download cancelled")
		return nil
	}

	// Rename into place only on a complete transfer, so a failed or
	// cancelled download never occupies the final name.
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	renamed = true

	fmt.Fprintf(g.out, "Build md5 checksum: %s\n", res.Digest)
	if res.Outcome == download.OutcomeHashMismatch {
		fmt.Fprintf(os.Stderr, "[warning]: downloaded file hash %s differs from the advertised hash %s\n", res.Digest, desc.Hash)
	}
	fmt.Fprintf(g.out, "Downloaded: %s\n", dest)

	return nil
}

func confirm(out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
