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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redscope/redscope/internal/authz"
)

var whoamiJSON bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and their permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		user := a.flow.CurrentUser()

		if whoamiJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"id":          user.ID,
				"email":       user.Email,
				"username":    user.Username,
				"full_name":   user.FullName,
				"role":        user.Role,
				"mfa_enabled": user.MFAEnabled,
				"permissions": authz.Permissions(user.Role),
			})
		}

		fmt.Printf("%s (%s)\n", user.Email, user.Role)
		if user.FullName != "" {
			fmt.Printf("Name:  %s\n", user.FullName)
		}
		fmt.Println("Permissions:")
		for _, p := range authz.Permissions(user.Role) {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

func init() {
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(whoamiCmd)
}
