package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/window"
	"github.com/spf13/cobra"
)

func newWindowsCmd(root *rootOptions) *cobra.Command {
	var (
		input string
		rows  int
	)
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Print the outer-loop validation windows for a series",
		Example: `  directcv windows --rows 24
  directcv windows --input sales.csv --config directcv.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input != "" {
				s, err := readCSV(input)
				if err != nil {
					return err
				}
				rows = s.Len()
			}
			if rows <= 0 {
				return fmt.Errorf("either --input or a positive --rows is required")
			}

			wc := root.cfg.Windows
			windows, err := window.Partition(rows, window.Options{
				Length:         wc.Length,
				Skip:           wc.Skip,
				Start:          wc.Start,
				Stop:           wc.Stop,
				IncludePartial: wc.IncludePartial,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "window_id\tstart\tstop\tlength\tpartial")
			for _, w := range windows {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%t\n", w.ID, w.Start, w.Stop, w.Length, w.Partial())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input CSV series")
	cmd.Flags().IntVar(&rows, "rows", 0, "Row count, when no input is given")
	return cmd
}

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the built-in model variants",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range model.List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
