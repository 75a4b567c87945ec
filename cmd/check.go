package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/linkcheck/internal/checker"
	"github.com/tanq16/linkcheck/internal/output"
	"github.com/tanq16/linkcheck/internal/report"
	"github.com/tanq16/linkcheck/internal/utils"
)

// buildConfig layers command line flags over the loaded settings.
func buildConfig(cmd *cobra.Command) (utils.Config, int, error) {
	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return utils.Config{}, 0, err
	}
	n := cfg.MaxThreads
	if cmd.Flags().Changed("workers") {
		n = workers
	}
	if cmd.Flags().Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	cfg.UserAgent = utils.ResolveUserAgent(cfg.UserAgent)
	if proxyURL != "" {
		cfg.ProxyURL = proxyURL
	}
	cfg.Headers = utils.ParseHeaderArgs(headers)
	return cfg, n, nil
}

func runCheck(cmd *cobra.Command, url string) error {
	cfg, n, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if reportPath != "" {
		if _, err := report.ForPath(reportPath); err != nil {
			return err
		}
	}

	m := checker.NewManager(url, n, cfg)
	printer := output.NewPrinter(m)
	m.AddListener(printer)
	fmt.Println(output.FHeader("Checking " + m.RootURL()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warn().Str("op", "cmd/check").Str("signal", sig.String()).Msg("interrupted, stopping")
			m.Stop()
		case <-done:
		}
	}()

	if err := m.Start(); err != nil {
		return err
	}
	m.Wait()
	records := m.Records()
	printer.Summary(records)

	if reportPath != "" {
		if err := report.Write(records, reportPath); err != nil {
			log.Error().Str("op", "cmd/check").Err(err).Msg("cannot write report")
		} else {
			fmt.Println(output.FDebug("Report written to " + reportPath))
		}
	}
	if keepTemp {
		fmt.Println(output.FDebug("Downloaded files kept in " + m.TempDir()))
		return nil
	}
	if err := m.Cleanup(); err != nil {
		log.Warn().Str("op", "cmd/check").Err(err).Msg("cannot remove temp files")
	}
	return nil
}
