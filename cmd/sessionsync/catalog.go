package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/server"
)

func catalogCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the public planning catalog",
	}
	cmd.PersistentFlags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")

	// run opens an engine and prints rows, or the raw value with --json
	run := func(cmd *cobra.Command, fetch func(e *server.Engine) (any, [][]string, error)) error {
		cfg, err := flags.load()
		if err != nil {
			return err
		}
		cfg.Workspace.MirrorDir = ""

		engine, err := server.NewEngine(cfg, flags.logger(cfg), nil, nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		value, rows, err := fetch(engine)
		if err != nil {
			return err
		}
		if asJSON {
			data, err := sonic.MarshalIndent(value, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		return writeTable(cmd.OutOrStdout(), rows)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "collections",
		Short: "List catalog collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(e *server.Engine) (any, [][]string, error) {
				collections, err := e.Catalog.Collections(cmd.Context())
				rows := [][]string{{"ID", "NAME", "DOMAINS"}}
				for _, c := range collections {
					rows = append(rows, []string{strconv.Itoa(c.ID), c.Name, strconv.Itoa(len(c.DomainSet))})
				}
				return collections, rows, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "domains <collection-id>",
		Short: "List the domains of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid collection id %q", args[0])
			}
			return run(cmd, func(e *server.Engine) (any, [][]string, error) {
				domains, err := e.Catalog.Domains(cmd.Context(), id)
				rows := [][]string{{"ID", "NAME", "DESCRIPTION"}}
				for _, d := range domains {
					rows = append(rows, []string{strconv.Itoa(d.ID), d.Name, d.Description})
				}
				return domains, rows, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "problems <domain-id>",
		Short: "List the problems of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid domain id %q", args[0])
			}
			return run(cmd, func(e *server.Engine) (any, [][]string, error) {
				problems, err := e.Catalog.Problems(cmd.Context(), id)
				rows := [][]string{{"ID", "NAME", "PROBLEM URL"}}
				for _, p := range problems {
					rows = append(rows, []string{strconv.Itoa(p.ID), p.Name, p.ProblemURL})
				}
				return problems, rows, err
			})
		},
	})

	return cmd
}

func writeTable(w io.Writer, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
