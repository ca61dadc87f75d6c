package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"folio/internal/database"

	"github.com/spf13/cobra"
)

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage book libraries",
	}
	cmd.AddCommand(
		newLibraryAddCmd(),
		newLibraryListCmd(),
		newLibraryDelCmd(),
	)
	return cmd
}

func newLibraryAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a book directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Book ids derive from absolute file paths, so the stored root
			// must not depend on where the command ran.
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("path does not exist: %s", args[1])
			}
			if !info.IsDir() {
				return fmt.Errorf("path is not a directory: %s", args[1])
			}

			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			public, _ := cmd.Flags().GetBool("public")
			lib := &database.Library{
				Name:     args[0],
				Path:     path,
				IsPublic: public,
			}
			if err := db.CreateLibrary(cmd.Context(), lib); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added library: %s -> %s (public: %v)\n",
				lib.Name, lib.Path, lib.IsPublic)
			return nil
		},
	}
	cmd.Flags().Bool("public", false, "visible to anonymous users")
	return cmd
}

func newLibraryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			libs, err := db.ListLibraries(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(libs) == 0 {
				fmt.Fprintln(out, "No libraries found.")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-50s %s\n", "NAME", "PATH", "PUBLIC")
			fmt.Fprintln(out, strings.Repeat("-", 80))
			for i := range libs {
				public := "no"
				if libs[i].IsPublic {
					public = "yes"
				}
				fmt.Fprintf(out, "%-20s %-50s %s\n", libs[i].Name, libs[i].Path, public)
			}
			return nil
		},
	}
}

func newLibraryDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <name>",
		Short: "Delete a library and its catalog rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			found, err := db.DeleteLibrary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "Library not found: %s\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted library: %s\n", args[0])
			return nil
		},
	}
}
