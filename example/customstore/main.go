// Demonstrates replacing the Postgres archive with an in-process store
// and consuming processed waveforms directly from the engine.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/SeanMcGrath/ScopeOut"
)

type logStore struct{}

func (logStore) Name() string { return "log" }

func (logStore) SaveWaveform(w *scopeout.Waveform) error {
	log.Printf("archived waveform %s on %s (%d points)", w.ID, w.Channel, len(w.Y))
	return nil
}

func main() {
	cfg, err := scopeout.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	eng, err := scopeout.NewEngine(cfg, scopeout.WithStore(logStore{}))
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	if err := eng.Start(); err != nil {
		log.Fatalf("start engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case w := <-eng.Waveforms():
				if w.HasPeak() {
					log.Printf("peak on %s: [%d,%d) integral=%g", w.Channel, w.PeakStart, w.PeakEnd, w.Integral)
				}
			}
		}
	}()

	// Kick off a continuous run once an instrument shows up.
	go func() {
		for eng.State() != scopeout.Connected {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
		if err := eng.Acquire(ctx, scopeout.AcquisitionRequest{Mode: scopeout.Continuous}); err != nil {
			log.Printf("acquire: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
