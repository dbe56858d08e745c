package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/slots"
)

// layoutCommand creates the layout command, which prints the geometry an
// export would use without loading any photos.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		kind  string
		width float64
	)

	cmd := &cobra.Command{
		Use:   "layout [photos]",
		Short: "Show the collage geometry for a number of photos",
		Long: `Show the collage geometry for a number of photos (1-8).

Every rectangle is listed in slot order with its position and size in
pixels. With --width the geometry is scaled to that canvas width, the way
a preview would show it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 || n > slots.Count {
				return errors.New(errors.ErrCodeInvalidInput, "photo count must be 1-%d, got %q", slots.Count, args[0])
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			k, err := layout.ParseKind(kind)
			if err != nil {
				return err
			}
			geo, err := layout.Compute(k, n, cfg.Layout)
			if err != nil {
				return err
			}
			if width > 0 {
				geo = geo.Fit(width)
			}
			printGeometry(geo)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "layout", "l", string(layout.Grid), "layout: grid, asymmetric")
	cmd.Flags().Float64Var(&width, "width", 0, "scale to this canvas width")

	return cmd
}

func printGeometry(geo layout.Geometry) {
	w, h := geo.Size()
	printKeyValue("Layout", string(geo.Kind))
	printKeyValue("Canvas", fmt.Sprintf("%dx%d", w, h))
	printNewline()

	rows := make([][]string, 0, len(geo.Rects))
	for i, r := range geo.Rects {
		rows = append(rows, []string{
			strconv.Itoa(i),
			formatUnit(r.X), formatUnit(r.Y),
			formatUnit(r.W), formatUnit(r.H),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Slot", "X", "Y", "Width", "Height").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(StyleHeader)
			}
			if col == 0 {
				return base.Inherit(StyleNumber)
			}
			return base.Inherit(StyleValue)
		})
	fmt.Println(t.Render())
}

// formatUnit prints whole pixels without decimals.
func formatUnit(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
