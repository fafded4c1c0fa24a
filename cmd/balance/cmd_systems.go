package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/spf13/cobra"
)

func newSystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List the registered systems and genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSystems(cmd.OutOrStdout(), registry.Default())
		},
	}
}

func listSystems(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range reg.Systems() {
		sys, err := reg.System(name)
		if err != nil {
			return err
		}
		spec := sys.Spec()
		fmt.Fprintf(tw, "%s\n", name)
		fmt.Fprintln(tw, "  PARAM\tMIN\tMAX\tDEFAULT")
		for _, p := range spec.Params {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Name, num(p.Domain.Min), num(p.Domain.Max), num(p.Default))
		}
		fmt.Fprintf(tw, "  kpis:\t%s\n", strings.Join(spec.KPIs, ", "))
		controls := make([]string, len(spec.Controls))
		for i, c := range spec.Controls {
			sign := "+"
			if c.Sign < 0 {
				sign = "-"
			}
			controls[i] = fmt.Sprintf("%s<-%s%s", c.KPI, sign, c.Param)
		}
		fmt.Fprintf(tw, "  controls:\t%s\n", strings.Join(controls, ", "))
		if len(spec.Env) > 0 {
			keys := make([]string, 0, len(spec.Env))
			for k := range spec.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			env := make([]string, len(keys))
			for i, k := range keys {
				env[i] = k + "=" + num(spec.Env[k])
			}
			fmt.Fprintf(tw, "  env:\t%s\n", strings.Join(env, ", "))
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "genres:\t%s\n", strings.Join(reg.Genres(), ", "))
	return tw.Flush()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
