package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/observability"
	"github.com/fakeyudi/moyu/internal/tui"
	"github.com/fakeyudi/moyu/internal/webserver"
)

// defaultListen is used when --mdns or --qr is given without --listen.
const defaultListen = ":7777"

var (
	runListen string
	runMDNS   bool
	runQR     bool
	runNoTUI  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the work timer and the loafing detector",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		useTUI := !runNoTUI && isatty.IsTerminal(os.Stdout.Fd())
		if useTUI {
			// The dashboard owns the terminal, so logs go to a file.
			f, err := observability.OpenLogFile(dataDir)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer f.Close()
			observability.Setup(f, cfg.LogLevel, "text")
		}
		log := observability.WithFields("command", "run")

		d, err := newDaemon(ctx, nil, log)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan struct{})
		go func() {
			d.run(ctx)
			close(done)
		}()
		defer func() { <-done }()
		defer cancel()

		listenURL := ""
		listen := runListen
		if listen == "" && (runMDNS || runQR) {
			listen = defaultListen
		}
		if listen != "" {
			srv := webserver.New(d.bus, d.status, log)
			if err := srv.Listen(listen); err != nil {
				return err
			}
			listenURL = webserver.URL(srv.Addr())
			go func() {
				if err := srv.Serve(ctx); err != nil {
					log.Error("web bridge stopped", "error", err)
				}
			}()
			log.Info("web bridge listening", "url", listenURL)

			if runMDNS {
				host, _ := os.Hostname()
				zone, err := webserver.Advertise("moyu on "+host, srv.Port(), listenURL)
				if err != nil {
					log.Warn("mDNS advertisement failed", "error", err)
				} else {
					defer zone.Shutdown()
				}
			}
			if runQR {
				fmt.Fprintf(cmd.OutOrStdout(), "Scan to follow along: %s\n", listenURL)
				if err := webserver.PrintQR(cmd.OutOrStdout(), listenURL); err != nil {
					log.Warn("QR code failed", "error", err)
				}
			}
		}

		if !useTUI {
			log.Info("moyu running", "work_interval", cfg.WorkInterval.Std(), "poll_interval", cfg.PollInterval.Std())
			d.logEvents(ctx)
			return nil
		}

		ch, unsubscribe := d.bus.Subscribe(0)
		defer unsubscribe()
		model, err := d.dashboard(ctx, ch, listenURL)
		if err != nil {
			return err
		}
		return tui.RunDashboard(model)
	},
}

func init() {
	runCmd.Flags().StringVar(&runListen, "listen", "", "serve live events over a websocket on this address (e.g. :7777)")
	runCmd.Flags().BoolVar(&runMDNS, "mdns", false, "advertise the websocket bridge on the local network")
	runCmd.Flags().BoolVar(&runQR, "qr", false, "print the websocket URL as a QR code")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "log events instead of showing the dashboard")
	rootCmd.AddCommand(runCmd)
}
