package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			books, err := db.GetAllBooks(ctx)
			if err != nil {
				return err
			}
			libs, err := db.ListLibraries(ctx)
			if err != nil {
				return err
			}
			users, err := db.ListUsers(ctx)
			if err != nil {
				return err
			}

			var totalSize int64
			formatCounts := make(map[string]int)
			for i := range books {
				totalSize += books[i].FileSize
				formatCounts[string(books[i].Format)]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Books:      %d\n", len(books))
			fmt.Fprintf(out, "Libraries:  %d\n", len(libs))
			fmt.Fprintf(out, "Users:      %d\n", len(users))
			fmt.Fprintf(out, "Total size: %s\n", formatSize(totalSize))
			if len(formatCounts) > 0 {
				fmt.Fprintf(out, "Formats:    %s\n", formatSummary(formatCounts))
			}
			if stats, err := db.Stats(ctx); err == nil {
				fmt.Fprintf(out, "Database:   %s\n", formatSize(stats.MainSize+stats.WALSize+stats.SHMSize))
			}
			return nil
		},
	}
}

// formatSummary renders format counts as "cbz: 12, epub: 3" with stable
// ordering.
func formatSummary(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
