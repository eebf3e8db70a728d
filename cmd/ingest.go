package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/logvault/internal/event"
	"github.com/opencode-ai/logvault/internal/logging"
	"github.com/opencode-ai/logvault/internal/logs"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest logfmt records from stdin",
	Long:  `Ingest reads logfmt lines from standard input and records each one as a log event. Well-known keys (time, level, msg, label, tag, source) map to event fields; everything else becomes metadata.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Shutdown(context.Background())

		err = logging.DecodeStream(os.Stdin, "", func(ev event.LogEvent) {
			svc.Record(logs.RecordParams{
				Time:     ev.Timestamp,
				Level:    ev.Level,
				Message:  ev.Message,
				Label:    ev.Label,
				Tag:      ev.Tag,
				Metadata: ev.Metadata,
				Source:   ev.Source,
				// The call site here is the decode loop, not a caller
				// worth attributing the record to.
				OmitCaller: true,
			})
		})
		if err != nil {
			return err
		}
		return svc.Flush(cmd.Context())
	},
}
