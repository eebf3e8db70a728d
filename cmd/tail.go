package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logfmt/logfmt"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow new log records live",
	Long:  `Tail subscribes to the live feed and prints every record persisted after the subscription starts, optionally filtered. Interrupt to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Shutdown(context.Background())

		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		enc := logfmt.NewEncoder(os.Stdout)
		for rec := range svc.Stream(ctx, &q) {
			if err := encodeRecord(enc, rec); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addFilterFlags(tailCmd)
}
