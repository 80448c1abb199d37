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

	"github.com/redscope/redscope/internal/authz"
)

var canCmd = &cobra.Command{
	Use:   "can <permission>",
	Short: "Check whether the signed-in user holds a permission",
	Long: `Check a permission such as workflows:execute against the signed-in
user's role. Exits 0 when the permission is held and 1 otherwise,
so it composes in shell scripts:

  redscope can workflows:execute && redscope workflows run wf-recon`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		user := a.flow.CurrentUser()
		perm := authz.Permission(args[0])

		if !user.HasPermission(perm) {
			return fmt.Errorf("%s may not %s", user.Role, perm)
		}
		fmt.Printf("%s may %s\n", user.Role, perm)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(canCmd)
}
