package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"folio/internal/apperr"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		newUserAddCmd(),
		newUserListCmd(),
		newUserDelCmd(),
		newUserPasswdCmd(),
	)
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password, err = promptNewPassword()
				if err != nil {
					return err
				}
			}

			role, _ := cmd.Flags().GetString("role")
			user, err := authService(db).CreateUser(cmd.Context(), args[0], password, role)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created user: %s (role: %s, id: %s)\n",
				user.Username, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	cmd.Flags().String("role", "user", "account role, user or admin")
	return cmd
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := db.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-10s %-36s %s\n", "USERNAME", "ROLE", "ID", "LAST LOGIN")
			fmt.Fprintln(out, strings.Repeat("-", 80))
			for i := range users {
				lastLogin := "never"
				if users[i].LastLogin > 0 {
					lastLogin = time.Unix(users[i].LastLogin, 0).Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%-20s %-10s %-36s %s\n",
					users[i].Username, users[i].Role, users[i].ID, lastLogin)
			}
			return nil
		},
	}
}

func newUserDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <username>",
		Short: "Delete a user account and its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			found, err := db.DeleteUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "User not found: %s\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user: %s\n", args[0])
			return nil
		},
	}
}

func newUserPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password, err = promptNewPassword()
				if err != nil {
					return err
				}
			}

			err = authService(db).ChangePassword(cmd.Context(), args[0], password)
			if errors.Is(err, apperr.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "User not found: %s\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password changed for: %s\n", args[0])
			fmt.Fprintln(cmd.OutOrStdout(), "All existing sessions have been invalidated.")
			return nil
		},
	}
	cmd.Flags().String("password", "", "new password (prompted when omitted)")
	return cmd
}

// promptNewPassword reads a password twice from the terminal without echo
// and requires both reads to match.
func promptNewPassword() (string, error) {
	fmt.Print("New password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if !bytes.Equal(password, confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(password), nil
}
