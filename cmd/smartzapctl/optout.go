package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/smartzap/backend/internal/repositories"
	"github.com/spf13/cobra"
)

var optOutCmd = &cobra.Command{
	Use:   "optout",
	Short: "Recipients that refused marketing messages",
}

var optOutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List opted-out phones, newest first",
	RunE:  runOptOutList,
}

var optOutLimit int

func init() {
	optOutListCmd.Flags().IntVar(&optOutLimit, "limit", 100, "Maximum number of rows")
	optOutCmd.AddCommand(optOutListCmd)
	rootCmd.AddCommand(optOutCmd)
}

func runOptOutList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	rows, err := repositories.NewOptOutRepo(e.pool).List(cmd.Context(), optOutLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No opted-out phones")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHONE\tCODE\tSINCE\tREASON")
	for _, o := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", o.Phone, o.Code, o.CreatedAt.Format(time.RFC3339), o.Reason)
	}
	return w.Flush()
}
