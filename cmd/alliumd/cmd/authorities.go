package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1aeo/allium-sub000/check"
	"github.com/1aeo/allium-sub000/monitor"
)

var authoritiesCmd = &cobra.Command{
	Use:   "authorities",
	Short: "Check directory authority health",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkAuthorities()
	},
}

var forceCheck bool

func init() {
	authoritiesCmd.Flags().BoolVar(&forceCheck, "force", false, "ignore the cached snapshot")
	Register(authoritiesCmd.Flags(), authorities)
	rootCmd.AddCommand(authoritiesCmd)
}

func checkAuthorities() error {
	l, err := logger()
	if err != nil {
		return err
	}

	scope, closer := metrics(l)
	defer check.Close(l, closer)

	m := monitor.New(authorities.Authorities(l), nil, scope, l)
	status := m.CheckAllAuthorities(context.Background(), forceCheck)

	summary := monitor.GetSummary(status)
	fmt.Printf("authorities: %d online, %d offline\n", summary.OnlineCount, summary.OfflineCount)
	if summary.OnlineCount > 0 {
		fmt.Printf("latency: avg %.0fms min %.0fms max %.0fms\n",
			summary.AverageLatencyMS, summary.MinLatencyMS, summary.MaxLatencyMS)
	}

	for _, alert := range monitor.GetAlerts(status) {
		fmt.Printf("[%s] %s\n", alert.Severity, alert.Message)
	}

	return nil
}
