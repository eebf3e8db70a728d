package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logfmt/logfmt"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/logvault/internal/event"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored log records",
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
		records, err := svc.Query(cmd.Context(), q)
		if err != nil {
			return err
		}

		enc := logfmt.NewEncoder(os.Stdout)
		for _, rec := range records {
			if err := encodeRecord(enc, rec); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addFilterFlags(queryCmd)
	queryCmd.Flags().Int("limit", 0, "maximum records to return")
	queryCmd.Flags().Int("offset", 0, "records to skip after ordering")
	queryCmd.Flags().String("order", "newest", "sort order: newest or oldest")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("label", "", "exact label (case-insensitive)")
	cmd.Flags().String("tag", "", "exact tag")
	cmd.Flags().String("app", "", "exact app name")
	cmd.Flags().String("search", "", "message substring")
	cmd.Flags().StringSlice("level", nil, "levels to include")
	cmd.Flags().String("from", "", "inclusive lower time bound (RFC3339)")
	cmd.Flags().String("to", "", "inclusive upper time bound (RFC3339)")
}

func queryFromFlags(cmd *cobra.Command) (event.LogQuery, error) {
	var q event.LogQuery

	q.Label, _ = cmd.Flags().GetString("label")
	q.Tag, _ = cmd.Flags().GetString("tag")
	q.AppName, _ = cmd.Flags().GetString("app")
	q.MessageSearch, _ = cmd.Flags().GetString("search")

	names, _ := cmd.Flags().GetStringSlice("level")
	for _, name := range names {
		l, err := event.ParseLevel(name)
		if err != nil {
			return q, err
		}
		q.Levels = append(q.Levels, l)
	}

	for _, bound := range []struct {
		flag string
		dst  **time.Time
	}{
		{"from", &q.From},
		{"to", &q.To},
	} {
		raw, _ := cmd.Flags().GetString(bound.flag)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("invalid --%s: %w", bound.flag, err)
		}
		*bound.dst = &t
	}

	if cmd.Flags().Lookup("limit") != nil {
		q.Limit, _ = cmd.Flags().GetInt("limit")
		q.Offset, _ = cmd.Flags().GetInt("offset")
		order, _ := cmd.Flags().GetString("order")
		if order == "oldest" {
			q.Order = event.OldestFirst
		}
	}
	return q, nil
}

func encodeRecord(enc *logfmt.Encoder, rec event.LogRecord) error {
	pairs := []any{
		"id", rec.ID,
		"time", rec.Timestamp.Format(time.RFC3339Nano),
		"level", rec.Level.String(),
		"label", rec.Label,
		"tag", rec.Tag,
		"app", rec.AppName,
		"msg", rec.Message,
	}
	if rec.MetadataJSON != "{}" {
		pairs = append(pairs, "metadata", rec.MetadataJSON)
	}
	if err := enc.EncodeKeyvals(pairs...); err != nil {
		return err
	}
	return enc.EndRecord()
}
