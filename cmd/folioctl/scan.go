package main

import (
	"fmt"
	"time"

	"folio/internal/covers"
	"folio/internal/database"
	"folio/internal/mirror"
	"folio/internal/scanner"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [library]",
		Short: "Index book files into the catalog",
		Long: `Scan walks one library (or all of them) and indexes changed book
files. Unchanged files are detected by size and modification time and
skipped without re-extraction.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			coverCache, err := covers.New(resolveDataDir(cmd), coverThumbnailSize, db)
			if err != nil {
				return err
			}

			var libs []database.Library
			if len(args) == 1 {
				lib, err := db.GetLibraryByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				libs = []database.Library{*lib}
			} else {
				if libs, err = db.ListLibraries(cmd.Context()); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(libs) == 0 {
				fmt.Fprintln(out, "No libraries to scan.")
				return nil
			}

			workers, _ := cmd.Flags().GetInt("workers")
			cat := mirror.New()
			scan := scanner.New(db, coverCache, cat, nil, scanner.Config{Workers: workers})

			start := time.Now()
			for i := range libs {
				fmt.Fprintf(out, "Scanning library: %s (%s)\n", libs[i].Name, libs[i].Path)
				if err := scan.Scan(cmd.Context(), &libs[i]); err != nil {
					return fmt.Errorf("scanning %s: %w", libs[i].Name, err)
				}
			}

			fmt.Fprintf(out, "Scan complete: %d books in %s\n",
				cat.Count(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "extraction workers, 0 selects from CPU count")
	return cmd
}

// coverThumbnailSize mirrors the server's THUMBNAIL_SIZE default so CLI
// scans fill the same cache the server reads.
const coverThumbnailSize = 200
