package cmd

import (
	"fmt"
	"os"
	"regexp"

	"tmt/internal/fmf"
	"tmt/internal/formatting"
	"tmt/internal/plan"
	"tmt/internal/run"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	plansNames  []string
	plansOutput string
)

func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect the plans of the metadata tree",
	}
	cmd.PersistentFlags().StringArrayVar(&plansNames, "name", nil, "Regular expression selecting plans")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List plans",
		Args:  cobra.NoArgs,
		RunE:  runPlansLs,
	}
	ls.Flags().StringVarP(&plansOutput, "output", "o", "table", "Output format: table, yaml or json")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show plan details",
		Args:  cobra.NoArgs,
		RunE:  runPlansShow,
	}

	cmd.AddCommand(ls, show)
	return cmd
}

// selectedPlans loads the plans matching --name without a run. Remote
// references are listed as such and not fetched.
func selectedPlans() ([]*plan.Plan, error) {
	if _, err := loadConfig(); err != nil {
		return nil, err
	}
	tree, err := loadTree()
	if err != nil {
		return nil, err
	}
	var names []*regexp.Regexp
	for _, name := range plansNames {
		re, err := regexp.Compile(name)
		if err != nil {
			return nil, usageErrorf("invalid plan name pattern '%s': %v", name, err)
		}
		names = append(names, re)
	}

	var plans []*plan.Plan
	for _, node := range run.SelectPlans(tree, names) {
		p, err := plan.New(node, tree, nil, nil)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func runPlansLs(cmd *cobra.Command, args []string) error {
	switch formatting.OutputFormat(plansOutput) {
	case formatting.FormatTable, formatting.FormatYAML, formatting.FormatJSON:
	default:
		return usageErrorf("unsupported output format '%s'", plansOutput)
	}
	plans, err := selectedPlans()
	if err != nil {
		return err
	}

	rows := make([]formatting.PlanRow, 0, len(plans))
	for _, p := range plans {
		row := formatting.PlanRow{Name: p.Name(), Summary: p.Summary(), Enabled: p.Enabled()}
		if ref := p.Reference(); ref != nil {
			row.Import = importLabel(ref.FmfID())
		}
		rows = append(rows, row)
	}

	formatter := formatting.NewFormatter(formatting.Options{
		Format: formatting.OutputFormat(plansOutput),
		Color:  isatty.IsTerminal(os.Stdout.Fd()),
	})
	return formatter.Plans(cmd.OutOrStdout(), rows)
}

func runPlansShow(cmd *cobra.Command, args []string) error {
	plans, err := selectedPlans()
	if err != nil {
		return err
	}
	for i, p := range plans {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprint(cmd.OutOrStdout(), p.Show())
	}
	return nil
}

func importLabel(id fmf.ID) string {
	if id.URL == "" {
		return "local " + id.Name
	}
	return id.String()
}
