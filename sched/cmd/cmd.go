package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/telemetry"
	"github.com/zjkmxy/pktsched/std/utils"
	"github.com/zjkmxy/pktsched/std/utils/toolutils"
)

var config = core.DefaultConfig()

var CmdPktsched = &cobra.Command{
	Use:     "pktsched",
	Short:   "Packet scheduler and queueing discipline manager",
	Version: utils.PktschedVersion,
}

var cmdRun = &cobra.Command{
	Use:   "run CONFIG-FILE",
	Short: "Attach the configured disciplines and offer synthetic traffic",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

var cmdConfig = &cobra.Command{
	Use:   "config [CONFIG-FILE]",
	Short: "Print the effective configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  printConfig,
}

var cmdDrops = &cobra.Command{
	Use:   "drops DB-PATH",
	Short: "Dump drop records stored by the badger sink",
	Args:  cobra.ExactArgs(1),
	RunE:  dumpDrops,
}

func init() {
	cobra.EnableCommandSorting = false
	CmdPktsched.CompletionOptions.HiddenDefaultCmd = true
	CmdPktsched.SilenceUsage = true

	cmdRun.Flags().StringVar(&config.Core.CpuProfile, "cpu-profile", "", "Write CPU profile to file")
	cmdRun.Flags().StringVar(&config.Core.MemProfile, "mem-profile", "", "Write memory profile to file")
	cmdRun.Flags().StringVar(&config.Core.BlockProfile, "block-profile", "", "Write block profile to file")

	CmdPktsched.AddCommand(cmdRun, cmdConfig, cmdDrops)
}

func loadConfig(file string) error {
	config.Core.BaseDir = filepath.Dir(file)
	if err := toolutils.ReadYaml(config, file); err != nil {
		return err
	}
	return config.Validate()
}

func run(cmd *cobra.Command, args []string) (err error) {
	if err := loadConfig(args[0]); err != nil {
		return err
	}

	sched, err := NewScheduler(config)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := sched.Stop(); err == nil {
			err = stopErr
		}
	}()
	if err := sched.Start(); err != nil {
		return err
	}

	reports, err := sched.RunTraffic()
	if err != nil {
		return err
	}
	printReports(cmd, reports)

	// keep serving metrics until interrupted
	if config.Telemetry.MetricsAddr != "" {
		sigChannel := make(chan os.Signal, 1)
		signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)
		receivedSig := <-sigChannel
		core.Log.Info(sched, "Received signal - exit", "signal", receivedSig)
	}
	return nil
}

func printReports(cmd *cobra.Command, reports []TrafficReport) {
	p := toolutils.StatusPrinter{File: cmd.OutOrStdout(), Padding: 16}
	for _, r := range reports {
		p.Header(fmt.Sprintf("Interface %s (%s):", r.Iface, r.Stats.Kind))
		p.Print("offered", r.Offered)
		p.Print("enqueued", r.Enqueued)
		p.Print("sent", r.Sent)
		p.Print("rejected", r.Dropped)
		p.Print("drops", r.Stats.Drops)
		p.Print("paused", r.Paused)
		p.Print("flow-controlled", r.FlowControlled)
		p.Print("advisories", r.Stats.FlowAdvised)
		p.Print("ecn-marks", r.Stats.ECNMarks)
		p.Print("bytes", r.Stats.Bytes)
	}
}

func printConfig(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if err := loadConfig(args[0]); err != nil {
			return err
		}
	}
	return toolutils.WriteYaml(os.Stdout, config)
}

func dumpDrops(cmd *cobra.Command, args []string) error {
	sink, err := telemetry.OpenBadgerSink(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	err = sink.Scan(func(seq uint64, r telemetry.Record) bool {
		fmt.Fprintf(out, "%d reason=%s site=%s dir=%s rep=%s flow=%d len=%d pid=%s\n",
			seq, r.Reason, r.Site, r.Dir, r.Rep, r.FlowID, r.Length, r.PID)
		return true
	})
	return multierr.Combine(err, sink.Close())
}
