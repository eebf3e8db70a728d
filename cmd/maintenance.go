package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored log record",
	Long:  `Clear removes all records. Record ids are never reused; future appends continue the sequence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Shutdown(context.Background())
		return svc.ClearAll(cmd.Context())
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Report the database size on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Shutdown(context.Background())

		size, ok := svc.SizeBytes()
		if !ok {
			fmt.Println("unknown (in-memory store)")
			return nil
		}
		fmt.Printf("%d bytes\n", size)
		return nil
	},
}
