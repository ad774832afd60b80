package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epigrid/internal/config"
	"epigrid/internal/sim"
	"epigrid/internal/wire"
)

func main() {
	addr := flag.String("addr", ":8080", "server listen address")
	configPath := flag.String("config", "", "scenario YAML file (defaults when empty)")
	interval := flag.Duration("interval", 250*time.Millisecond, "time between simulation steps")
	seed := flag.Int64("seed", 0, "random seed overriding the scenario (0 keeps it)")
	flag.Parse()

	file := config.Default()
	if *configPath != "" {
		var err error
		if file, err = config.Load(*configPath); err != nil {
			log.Fatalf("load scenario: %v", err)
		}
	}
	if *seed != 0 {
		file.Seed = *seed
	}
	simulation, err := file.NewSimulation(log.Default())
	if err != nil {
		log.Fatalf("build simulation: %v", err)
	}

	frames := newHub("stream")
	controls := newHub("control")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		err := simulation.Play(ctx, *interval, func(snap sim.Snapshot) {
			frames.broadcast(wire.EncodeFrame(snap))
		})
		switch {
		case err == nil:
			log.Printf("simulation finished at step %d: %s", simulation.Clock(), simulation.Counts())
		case errors.Is(err, context.Canceled):
		default:
			log.Printf("simulation stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/proto/", http.StripPrefix("/proto/", http.FileServer(http.Dir("proto"))))
	mux.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
		frames.serve(w, r, nil)
	})
	mux.HandleFunc("/ws/control", func(w http.ResponseWriter, r *http.Request) {
		// Send the current control state immediately.
		controls.broadcast(wire.EncodeControl(simulation.Controls()))

		controls.serve(w, r, func(data []byte) {
			settings, err := wire.DecodeControl(data, simulation.Controls().ControlSettings)
			if err != nil {
				log.Printf("unable to decode control update: %v", err)
				return
			}
			state := simulation.ApplyControlSettings(settings)
			log.Printf("controls: modifier=%.2f lockdown=%t capacity=%d probability=%.3f",
				state.TransmissionModifier, state.LockdownEnabled, state.HospitalCapacity, state.InfectionProbability)
			controls.broadcast(wire.EncodeControl(state))
		})
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("streaming simulation on ws://localhost%v/ws/stream", *addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
