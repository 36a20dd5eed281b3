package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/brigade/internal/graph"
	"github.com/ShayCichocki/brigade/internal/plan"
)

var planImportOut string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Validate and import plan files",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a plan file and print its execution order",
	Long: `Load a plan, reject duplicate IDs, dangling dependencies, cycles and
undeclared roles, then print one valid execution order. Roles without an
executor in the config are reported as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanValidate,
}

var planImportCmd = &cobra.Command{
	Use:   "import <planner-output>",
	Short: "Convert raw planner output into a plan file",
	Long: `Read text produced by a planning model, strip any reasoning block and
code fences, extract its task list, and write it as a plan file.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanImport,
}

func init() {
	planImportCmd.Flags().StringVarP(&planImportOut, "out", "o", "", "Write the plan here instead of stdout")
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planImportCmd)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	if err := graph.Validate(p.Tasks, p.Roles); err != nil {
		return fmt.Errorf("plan %s: %w", args[0], err)
	}

	g := graph.New()
	if err := g.Build(p.Tasks); err != nil {
		return fmt.Errorf("plan %s: %w", args[0], err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return fmt.Errorf("plan %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	name := p.Name
	if name == "" {
		name = args[0]
	}
	fmt.Fprintf(out, "Plan %s: %d tasks, roles %v\n", name, len(p.Tasks), taskRoles(p.Tasks))
	for i, id := range order {
		t := g.GetTask(id)
		fmt.Fprintf(out, "  %2d. %-14s %s\n", i+1, t.Role, id)
	}

	if cfg, err := loadConfig(); err == nil {
		for _, r := range unconfiguredRoles(cfg, taskRoles(p.Tasks)) {
			fmt.Fprintf(out, "warning: role %s has no executor configured\n", r)
		}
	}
	return nil
}

func runPlanImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read planner output: %w", err)
	}
	tasks, err := plan.ParseOutput(string(data))
	if err != nil {
		return err
	}
	if err := graph.Validate(tasks, nil); err != nil {
		return fmt.Errorf("planner output: %w", err)
	}

	rendered, err := plan.Marshal(&plan.Plan{Roles: taskRoles(tasks), Tasks: tasks})
	if err != nil {
		return err
	}
	if planImportOut == "" {
		_, err := cmd.OutOrStdout().Write(rendered)
		return err
	}
	if err := os.WriteFile(planImportOut, rendered, 0644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tasks to %s\n", len(tasks), planImportOut)
	return nil
}
