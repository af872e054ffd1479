package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var source string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger a sync pass (all sources, or one with --source)",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := apiFlag + "/api/sync"
			if source != "" {
				target += "/" + url.PathEscape(source)
			}
			data, err := doPost(target)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	syncCmd.Flags().StringVarP(&source, "source", "s", "", "Sync a single source")
	rootCmd.AddCommand(syncCmd)

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured sources and their sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/api/sources")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(sourcesCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/api/health")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(healthCmd)
}
