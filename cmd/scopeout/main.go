package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SeanMcGrath/ScopeOut"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("scopeout %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to engine configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := scopeout.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, err := scopeout.NewEngine(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go printStatusEvents(ctx, eng)
	return eng.Run(ctx)
}

func printStatusEvents(ctx context.Context, eng *scopeout.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-eng.StatusEvents():
			log.Printf("status: %s", msg)
		case w := <-eng.Waveforms():
			if w.Error != "" {
				log.Printf("waveform %s rejected: %s", w.ID, w.Error)
				continue
			}
			log.Printf("waveform %s: %s points=%d peak=[%d,%d) integral=%g",
				w.ID, w.Channel, len(w.Y), w.PeakStart, w.PeakEnd, w.Integral)
		}
	}
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := scopeout.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"scopeout_waveforms_acquired_total": 0,
		"scopeout_acquisition_errors_total": 0,
		"scopeout_instruments_connected":    0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] waveforms=%f errors=%f connected=%f\n",
		time.Now().Format(time.RFC3339),
		targets["scopeout_waveforms_acquired_total"],
		targets["scopeout_acquisition_errors_total"],
		targets["scopeout_instruments_connected"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`ScopeOut acquisition engine

Usage:
  scopeout <command> [flags]

Commands:
  run        Start the acquisition engine using the provided config
  validate   Load and validate a config file without starting the engine
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  scopeout run -config ./data/config.yaml
  scopeout validate -config ./data/config.yaml
  scopeout stats -url http://localhost:9100/metrics -interval 1s
`)
}
