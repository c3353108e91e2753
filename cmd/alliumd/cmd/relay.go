package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/1aeo/allium-sub000/check"
	"github.com/1aeo/allium-sub000/collector"
	"github.com/1aeo/allium-sub000/diagnostics"
)

var relayCmd = &cobra.Command{
	Use:   "relay <fingerprint>",
	Short: "Diagnose a single relay's consensus standing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return relay(args[0])
	},
}

func init() {
	Register(relayCmd.Flags(), archive, authorities)
	rootCmd.AddCommand(relayCmd)
}

func relay(fingerprint string) error {
	l, err := logger()
	if err != nil {
		return err
	}

	scope, closer := metrics(l)
	defer check.Close(l, closer)

	auths := authorities.Authorities(l)
	fetcher := collector.NewFetcher(archive.Base(), nil, auths, scope, l)

	res := fetcher.FetchAll(context.Background())
	for _, msg := range res.Errors {
		l.Warn("fetch degraded", "err", msg)
	}

	diag := fetcher.GetRelayDiagnostics(fingerprint, len(auths))
	if !diag.Available {
		fmt.Printf("relay %s: %s\n", fingerprint, diag.Error)
		return nil
	}

	fmt.Printf("%s (%s)\n", diag.Nickname, diag.Fingerprint)
	fmt.Printf("  votes: %d/%d (majority %d, in consensus: %v)\n",
		diag.VoteCount, diag.AuthorityCount, diag.MajorityRequired, diag.InConsensus)
	fmt.Printf("  flags: %s\n", strings.Join(diag.ConsensusFlags(), " "))
	if diag.Bandwidth.Sources > 0 {
		fmt.Printf("  bandwidth: avg %.0f min %.0f max %.0f (%d sources)\n",
			diag.Bandwidth.Average, diag.Bandwidth.Min, diag.Bandwidth.Max, diag.Bandwidth.Sources)
	}

	issues := diagnostics.GenerateRelayIssues(
		&diagnostics.RelayInfo{
			Nickname:          diag.Nickname,
			Fingerprint:       diag.Fingerprint,
			Flags:             diag.ConsensusFlags(),
			ObservedBandwidth: int64(diag.Bandwidth.Max),
		},
		diagnostics.FromRelayDiagnostics(diag),
		diagnostics.Options{Now: time.Now()},
	)

	if len(issues) == 0 {
		fmt.Println("  no issues found")
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("  [%s/%s] %s: %s\n", issue.Severity, issue.Category, issue.Title, issue.Description)
		if issue.Suggestion != "" {
			fmt.Printf("    %s\n", issue.Suggestion)
		}
	}

	return nil
}
