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

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect protected-route configuration",
}

var routesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync protected routes from the backend into the local registry",
	Run: func(_ *cobra.Command, _ []string) {
		_, stack, cleanup := mustCreatePaymentStack()
		defer cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		runJob("routes_sync", func() error {
			count, err := stack.registry.SyncAll(ctx)
			if err != nil {
				return err
			}
			logrus.WithField("routes", count).Info("Routes synced")
			return nil
		})
	},
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List protected routes known to the backend",
	Run: func(_ *cobra.Command, _ []string) {
		_, stack, cleanup := mustCreatePaymentStack()
		defer cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		routes, err := stack.backend.ListRoutes(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to list routes")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMETHOD\tPATTERN\tAMOUNT\tCURRENCY\tSTATUS\tNAME")
		for _, route := range routes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				route.ID, route.Method, route.Pattern, route.Amount, route.Currency, route.Status, route.Name)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesSyncCmd)
	routesCmd.AddCommand(routesListCmd)
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
