package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var eventsLimit int32

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent payment audit events",
	Run: func(_ *cobra.Command, _ []string) {
		_, stack, cleanup := mustCreatePaymentStack()
		defer cleanup()

		if stack.events == nil {
			logrus.Fatal("MYSQL_DSN is not configured, audit trail is disabled")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		items, err := stack.events.ListRecent(ctx, eventsLimit)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to list payment events")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEVENT\tROUTE\tCHARGE\tTXN\tAMOUNT\tCURRENCY\tAT")
		for _, item := range items {
			txn := ""
			if item.TransactionID != nil {
				txn = *item.TransactionID
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				item.ID, item.EventType, item.RouteKey, item.ChargeID, txn,
				item.Amount, item.Currency, item.CreatedAt.Format(time.RFC3339))
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().Int32Var(&eventsLimit, "limit", 50, "Maximum number of events to list")
}
