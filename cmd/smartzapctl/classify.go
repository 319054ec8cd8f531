package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [code...]",
	Short: "Explain WhatsApp Cloud API error codes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tCATEGORY\tCRITICAL\tRETRYABLE\tOPT-OUT\tMESSAGE")
	for _, arg := range args {
		code, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid error code %q", arg)
		}
		c := whatsapp.Classify(code)
		fmt.Fprintf(w, "%d\t%s\t%v\t%v\t%v\t%s\n", c.Code, c.Category, c.Critical, c.Retryable, c.OptOut, whatsapp.FormatFailureReason(code))
		if c.Action != "" {
			fmt.Fprintf(w, "\t\t\t\t\t-> %s\n", c.Action)
		}
	}
	return w.Flush()
}
