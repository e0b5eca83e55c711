package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate against the certificate server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		if err := a.auth.Login(ctx, args[0], password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if err := saveToken(a.gw.Token()); err != nil {
			return fmt.Errorf("store session: %w", err)
		}

		fmt.Println("Logged in.")
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	// Piped input, e.g. in scripts.
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
