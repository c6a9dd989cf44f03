package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"battleship-rampage/internal/app"
	"battleship-rampage/internal/codec"
	"battleship-rampage/internal/game"
	"battleship-rampage/internal/logging"
	"battleship-rampage/internal/notify"
	"battleship-rampage/internal/server"
	"battleship-rampage/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = cmdServe(os.Args[2:])
	case "fleet":
		err = cmdFleet(os.Args[2:])
	case "replay":
		err = cmdReplay(os.Args[2:])
	default:
		usage()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`Battleship CLI

Commands:
  serve  --addr :8080 --snapshot games.cbor --log-level info --pretty
         --cleanup-secret S --cleanup-every 10m
  fleet  --size 10 --quota carrier=1,destroyer=2 --seed N --out fleet.json
  replay --match match.json

`)
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	snapshot := fs.String("snapshot", "", "snapshot file; empty keeps games in memory only")
	flushEvery := fs.Duration("flush-every", 5*time.Second, "snapshot interval")
	level := fs.String("log-level", "info", "log level")
	pretty := fs.Bool("pretty", false, "human readable logs")
	secret := fs.String("cleanup-secret", os.Getenv("BATTLESHIP_CLEANUP_SECRET"), "bearer token for /v1/admin/cleanup")
	cleanupEvery := fs.Duration("cleanup-every", 10*time.Minute, "stale game sweep interval; 0 disables")
	manual := fs.Bool("manual-start", false, "wait for /start after both fleets are placed")
	_ = fs.Parse(args)

	log, err := logging.New(*level, *pretty)
	if err != nil {
		return err
	}

	st := store.NewMemory()
	if *snapshot != "" {
		if st, err = store.OpenFile(*snapshot); err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	hub := notify.NewHub(log)
	opts := []app.Option{app.WithNotifier(hub), app.WithLogger(log.With().Str("component", "app").Logger())}
	if *manual {
		opts = append(opts, app.WithManualStart())
	}
	svc := app.New(st, opts...)
	srv := server.New(svc, hub, log, *secret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: *addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", *addr).Msg("serving")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if *cleanupEvery > 0 {
		g.Go(func() error { return janitor(ctx, svc, *cleanupEvery, log) })
	}
	if *snapshot != "" {
		g.Go(func() error { return flusher(ctx, st, *snapshot, *flushEvery, log) })
	}
	return g.Wait()
}

func janitor(ctx context.Context, svc *app.Service, every time.Duration, log zerolog.Logger) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := svc.Cleanup(); err != nil {
				log.Error().Err(err).Msg("cleanup")
			}
		}
	}
}

// flusher writes a snapshot whenever the store changed, and once more on
// shutdown.
func flusher(ctx context.Context, st *store.Memory, path string, every time.Duration, log zerolog.Logger) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_, err := st.Flush(path)
			return err
		case <-t.C:
			if wrote, err := st.Flush(path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("snapshot")
			} else if wrote {
				log.Debug().Str("path", path).Msg("snapshot written")
			}
		}
	}
}

func cmdFleet(args []string) error {
	fs := flag.NewFlagSet("fleet", flag.ExitOnError)
	size := fs.Int("size", 10, "board size")
	quotaFlag := fs.String("quota", "", "ship counts, e.g. carrier=1,destroyer=2 (default one of each)")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	out := fs.String("out", "fleet.json", "output fleet file")
	_ = fs.Parse(args)

	q, err := parseQuota(*quotaFlag)
	if err != nil {
		return err
	}
	if err := game.ValidateConfig(*size, q); err != nil {
		return err
	}
	fleet, err := game.RandomFleet(rand.New(rand.NewPCG(*seed, *seed>>1)), *size, q)
	if err != nil {
		return err
	}
	if err := saveJSON(*out, fleet); err != nil {
		return err
	}
	fmt.Println("✓ wrote", *out, "root", fleet.Root(*size))
	return nil
}

func parseQuota(s string) (game.Quota, error) {
	if strings.TrimSpace(s) == "" {
		return game.DefaultQuota(), nil
	}
	q := game.Quota{}
	for _, part := range strings.Split(s, ",") {
		name, count, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("quota entry %q: want type=count", part)
		}
		t, err := game.ParseShipType(name)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return nil, fmt.Errorf("quota entry %q: %w", part, err)
		}
		q[t] = n
	}
	return q, nil
}

func cmdReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	matchPath := fs.String("match", "match.json", "recorded match")
	_ = fs.Parse(args)

	var m codec.MatchFile
	if err := loadJSON(*matchPath, &m); err != nil {
		return err
	}
	rep, err := m.Report()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func saveJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	return dec.Decode(v)
}
