package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/wayfare/internal/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print module, version, revision and Go toolchain",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			line := info.Module + " " + info.Version
			if info.Revision != "" {
				line += " (" + shortRevision(info.Revision)
				if info.Dirty {
					line += ", dirty"
				}
				line += ")"
			}
			if info.GoVersion != "" {
				line += " " + info.GoVersion
			}
			_, err := fmt.Fprintln(out, line)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version details as JSON")
	return cmd
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
