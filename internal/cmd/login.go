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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redscope/redscope/internal/identity"
)

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in to the dashboard",
	Long: `Sign in with your email and password. Accounts with a second factor
enrolled are prompted for a one-time code after the password is
accepted. The session is stored locally and reused until it expires
or 'redscope logout' is run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var email string
	if len(args) == 1 {
		email = args[0]
	} else {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	state, err := a.flow.Login(ctx, email, password, "")
	if err != nil {
		return err
	}

	// MFA branch: keep asking for codes until one is accepted or the
	// user gives up with an empty line.
	for state == identity.StateChallengeRequired {
		if reason := a.flow.Failure(); reason != "" {
			fmt.Fprintln(os.Stderr, reason)
		}
		code, err := promptLine("One-time code: ")
		if err != nil {
			return err
		}
		if code == "" {
			return fmt.Errorf("login aborted")
		}
		state, err = a.flow.Login(ctx, email, password, code)
		if err != nil {
			return err
		}
	}

	if state != identity.StateAuthenticated {
		if reason := a.flow.Failure(); reason != "" {
			return fmt.Errorf("login failed: %s", reason)
		}
		return fmt.Errorf("login failed")
	}

	user := a.flow.CurrentUser()
	fmt.Printf("Signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// Piped input, e.g. in scripts.
		return promptLine("")
	}
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
