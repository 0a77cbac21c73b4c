package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/step"
)

func newSchemaCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the intake steps and the task JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				doc, err := step.JSONSchema[step.TaskInfo]("TaskInfo", "Task requirements collected by the intake agent")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(doc))
				return err
			}
			s := step.DefaultSchema()
			table := tablewriter.NewWriter(out)
			table.Header("#", "Step", "Required fields")
			for i, def := range s.Steps() {
				fields := "-"
				if len(def.RequiredFields) > 0 {
					fields = strings.Join(def.RequiredFields, ", ")
				}
				if err := table.Append(fmt.Sprint(i+1), def.Name, fields); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the JSON schema of the collected task")
	return cmd
}
