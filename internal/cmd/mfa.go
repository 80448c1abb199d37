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
)

var mfaCmd = &cobra.Command{
	Use:   "mfa",
	Short: "Manage the account's second factor",
}

var mfaEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enroll an authenticator app",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}

		setup, err := a.client.SetupMFA(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("Add this secret to your authenticator app:")
		fmt.Printf("  %s\n", setup.Secret)
		fmt.Printf("  %s\n", setup.OTPAuthURL)

		code, err := promptLine("Enter the current code to confirm: ")
		if err != nil {
			return err
		}
		if err := a.client.EnableMFA(cmd.Context(), code); err != nil {
			return err
		}
		fmt.Println("Second factor enabled")
		return nil
	},
}

var mfaDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove the second factor",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		if err := a.client.DisableMFA(cmd.Context(), password); err != nil {
			return err
		}
		fmt.Println("Second factor disabled")
		return nil
	},
}

func init() {
	mfaCmd.AddCommand(mfaEnableCmd)
	mfaCmd.AddCommand(mfaDisableCmd)
	rootCmd.AddCommand(mfaCmd)
}
