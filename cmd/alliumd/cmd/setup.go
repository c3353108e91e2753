package cmd

import (
	"io"
	"os"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/uber-go/tally"
	"github.com/uber-go/tally/multi"

	"github.com/1aeo/allium-sub000/log"
	"github.com/1aeo/allium-sub000/meta"
	"github.com/1aeo/allium-sub000/telemetry/expvar"
	"github.com/1aeo/allium-sub000/telemetry/logging"
)

var (
	logfile       string
	telemetryAddr string
	debug         bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&logfile, "logfile", "l", "", "also log JSON to this file")
	rootCmd.PersistentFlags().StringVarP(&telemetryAddr, "telemetry", "t", "", "telemetry address")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")
}

func logger() (log.Logger, error) {
	if debug && logfile == "" {
		return log.NewDebug(), nil
	}

	base := log15.New()
	lvl := log15.LvlInfo
	if debug {
		lvl = log15.LvlDebug
	}
	stdout := log15.LvlFilterHandler(lvl,
		log15.StreamHandler(os.Stdout, log15.TerminalFormat()),
	)
	if logfile == "" {
		base.SetHandler(stdout)
		return log.NewLog15(base), nil
	}

	fh, err := log15.FileHandler(logfile, log15.JsonFormat())
	if err != nil {
		return nil, err
	}
	base.SetHandler(log15.MultiHandler(stdout, fh))
	return log.NewLog15(base), nil
}

func metrics(l log.Logger) (tally.Scope, io.Closer) {
	return tally.NewRootScope(tally.ScopeOptions{
		Prefix: meta.Name,
		Tags:   map[string]string{},
		CachedReporter: multi.NewMultiCachedReporter(
			expvar.NewReporter(),
			logging.NewReporter(l),
		),
	}, 1*time.Second)
}
