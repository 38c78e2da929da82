package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zlnvch/flashlist/client"
)

var (
	registerPassword string
	loginPassword    string
)

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password (prompted when empty)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	password, err := readPassword(registerPassword, os.Stdin)
	if err != nil {
		return err
	}

	user, err := a.remote.Register(cmd.Context(), args[0], args[1], password)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Registered %s. Run `flashlist login %s` to sign in.", user.Username, user.Email))
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	password, err := readPassword(loginPassword, os.Stdin)
	if err != nil {
		return err
	}

	result, err := a.remote.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	printSuccess("Logged in as " + result.User.Username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if snapshot := a.snapshot(); snapshot != nil {
		if err := snapshot.Remove(); err != nil {
			printWarning(fmt.Sprintf("could not remove the local copy: %v", err))
		}
	}

	err = a.remote.Logout(cmd.Context())
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		printWarning(fmt.Sprintf("the server could not revoke the session: %v", err))
	}
	printSuccess("Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}

	user, err := a.remote.Profile(cmd.Context())
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return errExpired
		}
		return err
	}
	fmt.Printf("%s <%s>\n", user.Username, user.Email)
	return nil
}
