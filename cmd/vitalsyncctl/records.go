package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var kind, from, to string
	recordsCmd := &cobra.Command{
		Use:   "records SOURCE",
		Short: "List merged records for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if kind != "" {
				q.Set("kind", kind)
			}
			if from != "" {
				q.Set("from", from)
			}
			if to != "" {
				q.Set("to", to)
			}
			target := fmt.Sprintf("%s/api/sources/%s/records", apiFlag, url.PathEscape(args[0]))
			if len(q) > 0 {
				target += "?" + q.Encode()
			}
			data, err := doGet(target)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	recordsCmd.Flags().StringVarP(&kind, "kind", "k", "", "Filter by record kind (sleep, readiness, activity, weight, nutrition)")
	recordsCmd.Flags().StringVarP(&from, "from", "f", "", "Window start (RFC3339 or YYYY-MM-DD)")
	recordsCmd.Flags().StringVarP(&to, "to", "t", "", "Window end (RFC3339 or YYYY-MM-DD)")
	rootCmd.AddCommand(recordsCmd)

	summaryCmd := &cobra.Command{
		Use:   "summary SOURCE",
		Short: "Show per-kind record counts for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/sources/%s/summary", apiFlag, url.PathEscape(args[0])))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(summaryCmd)
}
