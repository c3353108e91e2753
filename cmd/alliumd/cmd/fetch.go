package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/1aeo/allium-sub000/check"
	"github.com/1aeo/allium-sub000/collector"
	"github.com/1aeo/allium-sub000/telemetry"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch votes and bandwidth files and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetch()
	},
}

func init() {
	Register(fetchCmd.Flags(), archive, authorities)
	rootCmd.AddCommand(fetchCmd)
}

func fetch() error {
	l, err := logger()
	if err != nil {
		return err
	}

	scope, closer := metrics(l)
	defer check.Close(l, closer)

	if telemetryAddr != "" {
		go telemetry.Serve(telemetryAddr, l)
		go telemetry.ReportRuntime(scope, time.Second)
	}

	fetcher := collector.NewFetcher(archive.Base(), nil, authorities.Authorities(l), scope, l)
	res := fetcher.FetchAll(context.Background())

	fmt.Printf("votes: %d\n", len(res.Votes))
	fmt.Printf("relays indexed: %d\n", len(res.RelayIndex))
	fmt.Printf("bandwidth measurements: %d (source %s)\n", len(res.BandwidthFile), res.BandwidthSource)
	fmt.Printf("bandwidth scanner authorities: %v\n", res.BandwidthScannerAuthorities)
	for phase, d := range res.Timings {
		fmt.Printf("timing %s: %s\n", phase, d)
	}
	fmt.Printf("downloaded: %d bytes\n", fetcher.Downloaded())
	for _, msg := range res.Errors {
		fmt.Printf("error: %s\n", msg)
	}

	return nil
}
