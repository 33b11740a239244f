package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/houdl/houdl/client"
)

const listDesc = `
List the builds available for the selected product and platform.

By default only production builds are shown; pass --include-daily to
see daily development builds as well.
`

type listCmd struct {
	version      string
	includeDaily bool

	root *rootOptions
	out  io.Writer
}

func newListCmd(out io.Writer, root *rootOptions) *cobra.Command {
	lc := &listCmd{out: out, root: root}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list available builds",
		Long:  listDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return lc.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&lc.version, "version", "", "restrict to one major.minor version, e.g. 20.5")
	f.BoolVar(&lc.includeDaily, "include-daily", false, "include daily development builds")

	return cmd
}

func (l *listCmd) run(ctx context.Context) error {
	c, err := buildClient(l.root, newLogger(l.root.verbose))
	if err != nil {
		return err
	}

	builds, err := c.ListBuilds(ctx, client.BuildQuery{
		Product:        client.Product(l.root.product),
		Platform:       client.Platform(l.root.platform),
		Version:        l.version,
		OnlyProduction: !l.includeDaily,
	})
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}

	for i, b := range builds {
		fmt.Fprintf(l.out, "%2d. Date: %s, Platform: %s, Version: %s, Status: %s, Release: %s\n",
			i, b.Date, b.Platform, b.FullVersion(), b.Status, b.Release)
	}

	return nil
}
