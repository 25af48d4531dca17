package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/passmarket/internal/calendar"
)

func newParseDatesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "parse-dates <text>",
		Short:   "Parse requested-dates text into a date range",
		Example: `  passmarket parse-dates "Dec 15-17, 2025"` + "\n" + `  passmarket parse-dates "Nov 28 - Dec 2, 2025" --json`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := calendar.ParseRequestedDates(strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Start, r.End)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the range as JSON")

	return cmd
}
