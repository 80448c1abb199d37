// Copyright 2026 The Redscope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redscope/redscope/internal/api"
)

var workflowsCmd = &cobra.Command{
	Use:     "workflows",
	Aliases: []string{"wf"},
	Short:   "Run and inspect workflow executions",
}

var workflowEngagement string

var workflowsRunCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Execute a workflow against an engagement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		exec, err := a.client.ExecuteWorkflow(cmd.Context(), api.ExecuteWorkflowRequest{
			WorkflowID:   args[0],
			EngagementID: workflowEngagement,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Execution %s started (%s)\n", exec.ID, exec.Status)
		return nil
	},
}

var workflowsStatusCmd = &cobra.Command{
	Use:   "status <execution-id>",
	Short: "Show a workflow execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		exec, err := a.client.GetExecution(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Execution %s\n", exec.ID)
		fmt.Printf("Workflow:  %s\n", exec.WorkflowID)
		fmt.Printf("Status:    %s\n", exec.Status)
		fmt.Printf("Started:   %s\n", exec.StartedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	workflowsRunCmd.Flags().StringVarP(&workflowEngagement, "engagement", "e", "", "engagement to run against")
	_ = workflowsRunCmd.MarkFlagRequired("engagement")
	workflowsCmd.AddCommand(workflowsRunCmd)
	workflowsCmd.AddCommand(workflowsStatusCmd)
	rootCmd.AddCommand(workflowsCmd)
}
