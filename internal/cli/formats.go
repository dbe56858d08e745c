package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/collage/pkg/ingest"
)

// formatsCommand lists the accepted photo formats and how each is loaded.
func (c *CLI) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List accepted photo formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			for _, f := range ingest.Formats() {
				route := f.Route(cfg.Ingest.HEICDecode)
				line := fmt.Sprintf("%-5s %s", f.Name, StyleDim.Render(strings.Join(f.Extensions, " ")))
				switch route {
				case ingest.RouteDirect:
					printSuccess("%s", line)
				case ingest.RouteReencode:
					printInfo("%s %s", line, StyleDim.Render("(converted to PNG)"))
				default:
					printWarning("%s (not supported here)", f.Name)
				}
			}
			return nil
		},
	}
}
