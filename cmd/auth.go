package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign up, log in and out of your recipe account",
	}
	cmd.AddCommand(newSignUpCmd(a))
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newWhoAmICmd(a))
	return cmd
}

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "Account email (required)")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password (default $LARDER_PASSWORD, then prompt)")
	_ = cmd.MarkFlagRequired("email")
}

// resolve fills the password from the environment or the first line of in.
func (f *credentialFlags) resolve(in io.Reader, out io.Writer) error {
	if f.password == "" {
		f.password = os.Getenv("LARDER_PASSWORD")
	}
	if f.password != "" {
		return nil
	}
	fmt.Fprint(out, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read password: %w", err)
	}
	f.password = strings.TrimRight(line, "\r\n")
	if f.password == "" {
		return errors.New("password is required")
	}
	return nil
}

func newSignUpCmd(a *app) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:     "signup",
		Short:   "Create an account",
		Example: `  larder auth signup --email cook@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.resolve(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
				return err
			}
			sess, err := a.auth().SignUp(cmd.Context(), creds.email, creds.password)
			if err != nil {
				return userError(err)
			}
			if sess == nil {
				printSuccess(cmd.OutOrStdout(), "Check %s for a confirmation link, then run larder auth login.", creds.email)
				return nil
			}
			printSuccess(cmd.OutOrStdout(), "Signed up and logged in as %s", sess.User.Email)
			return nil
		},
	}
	creds.register(cmd)
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Example: `  larder auth login --email cook@example.com
  LARDER_PASSWORD=secret larder auth login -e cook@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.resolve(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
				return err
			}
			sess, err := a.auth().Login(cmd.Context(), creds.email, creds.password)
			if err != nil {
				return userError(err)
			}
			printSuccess(cmd.OutOrStdout(), "Logged in as %s", sess.User.Email)
			return nil
		},
	}
	creds.register(cmd)
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth().Logout(cmd.Context()); err != nil {
				return userError(err)
			}
			printSuccess(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.auth().WhoAmI(cmd.Context())
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", titleStyle.Render(user.Email), mutedStyle.Render(user.ID))
			return nil
		},
	}
}
