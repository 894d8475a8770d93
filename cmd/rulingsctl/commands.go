package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rulings-explorer/backend/internal/cache/redis"
	"github.com/rulings-explorer/backend/internal/dashboard"
	"github.com/rulings-explorer/backend/internal/dataset"
	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/pkg/config"
	"github.com/rulings-explorer/backend/pkg/logger"
)

type globalFlags struct {
	configFile string
	dataset    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "rulingsctl",
		Short:         "Query the environmental rulings dataset",
		Long:          `rulingsctl loads the rulings CSV and prints the same term rankings, selector options, timelines and filtered exports the dashboard serves.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !g.debug {
				return nil
			}
			return logger.Init("debug", "console", "stderr")
		},
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (default searches ./config.yaml)")
	root.PersistentFlags().StringVar(&g.dataset, "dataset", "", "dataset CSV path (overrides config)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging on stderr")

	root.AddCommand(
		newTermsCmd(g),
		newOptionsCmd(g),
		newExportCmd(g),
		newTimelineCmd(g),
		newSearchCmd(g),
		newInfoCmd(g),
		newFlushCacheCmd(g),
	)
	return root
}

// engine loads configuration and the dataset and builds a dashboard engine.
func (g *globalFlags) engine() (*dashboard.Engine, error) {
	cfg, err := config.LoadFile(g.configFile)
	if err != nil {
		return nil, err
	}
	path := cfg.Dataset.Path
	if g.dataset != "" {
		path = g.dataset
	}

	ds, err := dataset.Load(path, dataset.LoadOptions{
		FillMissing: cfg.Dataset.FillMissing,
		StripHTML:   cfg.Dataset.StripHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("error al cargar los datos: %w", err)
	}

	return dashboard.NewEngine(ds, dashboard.Options{
		Sentinel:        cfg.Dataset.Sentinel,
		DateLayout:      cfg.Dataset.DateLayout,
		ChartLimit:      cfg.Dashboard.ChartLimit,
		ChartTerms:      cfg.Dashboard.ChartTerms,
		DefaultTopTerms: cfg.Dashboard.DefaultTopTerms,
		MinTopTerms:     cfg.Dashboard.MinTopTerms,
		MaxTopTerms:     cfg.Dashboard.MaxTopTerms,
		MaxSearchTerms:  cfg.Dashboard.MaxSearchTerms,
	}), nil
}

func newTermsCmd(g *globalFlags) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "List the most frequent descriptor terms",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine()
			if err != nil {
				return err
			}
			view := e.Terms(n)
			out := cmd.OutOrStdout()
			if view.Warning != "" {
				fmt.Fprintln(out, view.Warning)
				return nil
			}
			for _, t := range append(view.Left, view.Right...) {
				fmt.Fprintf(out, "%d. %s: %d ocurrencias\n", t.Rank, t.Term, t.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "top", "n", 0, "number of terms (clamped to the configured range)")
	return cmd
}

func newOptionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print the selector values for category, resource type and outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine()
			if err != nil {
				return err
			}
			o := e.Options()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "materia: %s\n", strings.Join(o.Categories, " | "))
			fmt.Fprintf(out, "tipo: %s\n", strings.Join(o.ResourceTypes, " | "))
			fmt.Fprintf(out, "resultado: %s\n", strings.Join(o.Outcomes, " | "))
			for _, w := range o.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
			}
			return nil
		},
	}
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		state   filter.State
		columns []string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered rulings as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			var cols []string
			if cmd.Flags().Changed("columns") {
				cols = columns
				if cols == nil {
					cols = []string{}
				}
			}
			n, err := e.Export(context.Background(), w, state, cols)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d sentencias exportadas\n", n)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&state.Category, "materia", "", "category filter")
	f.StringVar(&state.ResourceType, "tipo", "", "resource type filter")
	f.StringVar(&state.Outcome, "resultado", "", "outcome filter")
	f.StringVar(&state.Search, "search", "", "descriptor substring, case-insensitive")
	f.StringSliceVar(&columns, "columns", nil, "columns to export (default: the dashboard grid columns)")
	f.StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newTimelineCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Count rulings per sentence year",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine()
			if err != nil {
				return err
			}
			view := e.Timeline()
			if view.Warning != "" {
				fmt.Fprintln(cmd.OutOrStdout(), view.Warning)
				return nil
			}
			for _, y := range view.Years {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %d\n", y.Year, y.Count)
			}
			return nil
		},
	}
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM...",
		Short: "List rulings whose descriptors contain every term, as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			rows := e.Matching(context.Background(), args)
			for _, r := range rows {
				if err := enc.Encode(e.Dataset().Record(r)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Resultados encontrados: %d sentencias\n", len(rows))
			return nil
		},
	}
}

func newInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the loaded dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine()
			if err != nil {
				return err
			}
			info := e.Info()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fuente: %s\nFilas: %d\nColumnas: %d\n", info.Source, info.Rows, len(info.Columns))
			for _, c := range info.Columns {
				fmt.Fprintf(out, "- %s\n", c)
			}
			for _, w := range info.Schema.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
			}
			return nil
		},
	}
}

func newFlushCacheCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop every row set cached in the shared redis cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(g.configFile)
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				return errors.New("redis cache is not enabled in the configuration")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			client, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Invalidate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache vaciada")
			return nil
		},
	}
}
