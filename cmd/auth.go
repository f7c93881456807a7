// ABOUTME: Login, register, and logout commands for the omnibus CLI
// ABOUTME: Prompts for secrets with huh when they are not supplied on stdin

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/session"
)

var (
	loginUsername string
	loginEmail    string
	passwordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the ledger",
	Long: `Sign in and store the session credential for later commands.

The password is read from a prompt, or from stdin with --password-stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, w io.Writer, rt *runtime) int {
			creds, err := collectCredentials(false)
			if err != nil {
				fmt.Fprintf(w, "Error: %v\n", err)
				return exitError
			}
			return runLogin(ctx, w, rt, creds)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, w io.Writer, rt *runtime) int {
			creds, err := collectCredentials(true)
			if err != nil {
				fmt.Fprintf(w, "Error: %v\n", err)
				return exitError
			}
			return runRegister(ctx, w, rt, creds)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session credential",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, w io.Writer, rt *runtime) int {
			return runLogout(w, rt)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
		c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	}
	registerCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}

// credentials is what the user typed
type credentials struct {
	Username string
	Email    string
	Password string
}

// collectCredentials fills in flags, then stdin, then interactive prompts
func collectCredentials(withEmail bool) (credentials, error) {
	creds := credentials{Username: loginUsername, Email: loginEmail}

	if passwordStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return creds, fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = strings.TrimRight(line, "\r\n")
	}

	var fields []huh.Field
	if creds.Username == "" {
		fields = append(fields, huh.NewInput().Title("Username").Value(&creds.Username).Validate(required("Username")))
	}
	if withEmail && creds.Email == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(&creds.Email).Validate(required("Email")))
	}
	if creds.Password == "" {
		fields = append(fields, huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&creds.Password).Validate(required("Password")))
	}
	if len(fields) == 0 {
		return creds, nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return creds, err
	}
	return creds, nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// runLogin signs in and returns exit code
func runLogin(ctx context.Context, w io.Writer, rt *runtime, creds credentials) int {
	err := session.SignIn(ctx, rt.session, rt.client, creds.Username, creds.Password)
	return reportAuth(w, rt, err, "Logged in")
}

// runRegister creates the account, signs in, and returns exit code
func runRegister(ctx context.Context, w io.Writer, rt *runtime, creds credentials) int {
	err := session.SignUp(ctx, rt.session, rt.client, creds.Username, creds.Email, creds.Password)
	return reportAuth(w, rt, err, "Registered")
}

func reportAuth(w io.Writer, rt *runtime, err error, verb string) int {
	if err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			fmt.Fprintln(w, "Error: invalid username or password")
			return exitSession
		case errors.Is(err, session.ErrSessionChanged):
			fmt.Fprintln(w, "Error: session ended before sign-in completed")
			return exitSession
		default:
			fmt.Fprintf(w, "Error: %s\n", authMessage(err))
			return exitError
		}
	}

	profile := rt.session.State().Profile
	if profile == nil {
		fmt.Fprintln(w, "Error: session ended before sign-in completed")
		return exitSession
	}
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"status":   "ok",
			"user_id":  profile.UserID,
			"username": profile.Username,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return exitOK
	}
	fmt.Fprintf(w, "%s as %s\n", verb, profile.Username)
	return exitOK
}

// authMessage prefers the server's problem detail
func authMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

// runLogout clears the session and returns exit code
func runLogout(w io.Writer, rt *runtime) int {
	if err := rt.session.Logout(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintln(w, "Logged out")
	return exitOK
}
