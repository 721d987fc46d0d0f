package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/blockpipe/internal/pipeline"
)

type taskInfo struct {
	Name        string   `json:"name"`
	Deps        []string `json:"deps,omitempty"`
	Description string   `json:"description"`
}

type tasksOutput struct {
	Tasks   []taskInfo `json:"tasks"`
	Plan    string     `json:"plan"`
	Styles  []string   `json:"styles"`
	Scripts []string   `json:"scripts"`
	Images  []string   `json:"images"`
}

func (a *app) tasksCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"list", "l"},
		Short:   "List tasks, resolved inputs and the build plan",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := a.newPipeline()
			if err != nil {
				return err
			}

			out := describe(pl)
			switch format {
			case "json":
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			case "text":
				return printTasks(a.stdout, out)
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	return cmd
}

func describe(pl *pipeline.Pipeline) tasksOutput {
	out := tasksOutput{
		Plan:    pipeline.DefaultPlan().String(),
		Styles:  pl.Env.Lists.Styles,
		Scripts: pl.Env.Lists.Scripts,
		Images:  pl.Env.Lists.Images,
	}
	for _, name := range pl.Registry.Names() {
		t, err := pl.Registry.Lookup(name)
		if err != nil {
			continue
		}
		out.Tasks = append(out.Tasks, taskInfo{Name: t.Name, Deps: t.Deps, Description: t.Description})
	}
	return out
}

func printTasks(w io.Writer, out tasksOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDEPENDS ON\tDESCRIPTION")
	for _, t := range out.Tasks {
		deps := strings.Join(t.Deps, ", ")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, deps, t.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nBuild plan: %s\n", out.Plan)
	printList(w, "Styles", out.Styles)
	printList(w, "Scripts", out.Scripts)
	printList(w, "Images", out.Images)
	return nil
}

func printList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}
