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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/redscope/redscope/internal/api"
)

var engagementsCmd = &cobra.Command{
	Use:     "engagements",
	Aliases: []string{"eng"},
	Short:   "Work with engagements",
}

var engagementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List engagements",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		engagements, err := a.client.ListEngagements(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLIENT\tSTATUS")
		for _, e := range engagements {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.ClientName, e.Status)
		}
		return w.Flush()
	},
}

var engagementClient string

var engagementsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an engagement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		eng, err := a.client.CreateEngagement(cmd.Context(), api.CreateEngagementRequest{
			Name:       args[0],
			ClientName: engagementClient,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%s)\n", eng.Name, eng.ID)
		return nil
	},
}

var engagementsStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Move an engagement to active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionEngagement(cmd, args[0], func(a *app, id string) (*api.Engagement, error) {
			return a.client.StartEngagement(cmd.Context(), id)
		})
	},
}

var engagementsCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark an engagement completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionEngagement(cmd, args[0], func(a *app, id string) (*api.Engagement, error) {
			return a.client.CompleteEngagement(cmd.Context(), id)
		})
	},
}

func transitionEngagement(cmd *cobra.Command, id string, fn func(*app, string) (*api.Engagement, error)) error {
	a, err := restored(cmd.Context())
	if err != nil {
		return err
	}
	eng, err := fn(a, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", eng.Name, eng.Status)
	return nil
}

func init() {
	engagementsCreateCmd.Flags().StringVarP(&engagementClient, "client", "c", "", "client name")
	engagementsCmd.AddCommand(engagementsListCmd)
	engagementsCmd.AddCommand(engagementsCreateCmd)
	engagementsCmd.AddCommand(engagementsStartCmd)
	engagementsCmd.AddCommand(engagementsCompleteCmd)
	rootCmd.AddCommand(engagementsCmd)
}
