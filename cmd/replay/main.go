package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "beltline.ai/internal/persistence/log"
	"beltline.ai/internal/sim/catalogs"
	"beltline.ai/internal/sim/replay"
	"beltline.ai/internal/sim/tuning"
	"beltline.ai/internal/sim/world"
)

func main() {
	var (
		worldDir   = flag.String("world_dir", "", "world data dir containing events/events-*.jsonl.zst")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "layout the server started from (default: <configs>/layout.yaml; \"none\" for empty)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *worldDir == "" {
		fmt.Fprintln(os.Stderr, "missing -world_dir")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	w, err := world.New(world.WorldConfig{
		ID:         *worldID,
		TickRateHz: tune.TickRateHz,
		TickDelta:  tune.TickDelta,
		Width:      tune.Width,
		Height:     tune.Height,
	}, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	lp := *layoutPath
	if lp == "" {
		lp = filepath.Join(*configDir, "layout.yaml")
	}
	if lp != "none" {
		layout, err := tuning.LoadLayout(lp)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load layout:", err)
			os.Exit(1)
		}
		if err := w.ApplyLayout("layout", layout); err != nil {
			fmt.Fprintln(os.Stderr, "apply layout:", err)
			os.Exit(1)
		}
	}

	files, err := persistlog.EventFiles(*worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", filepath.Join(*worldDir, "events"))
		os.Exit(1)
	}

	res, err := replay.Files(w, files, replay.Options{VerifyFrom: *fromTick, ToTick: *toTick})
	if err != nil {
		var mm *replay.MismatchError
		if errors.As(err, &mm) {
			fmt.Fprintln(os.Stderr, "replay diverged:", mm)
		} else {
			fmt.Fprintln(os.Stderr, "replay:", err)
		}
		os.Exit(1)
	}
	m := w.Metrics()
	fmt.Printf("replay ok: stepped=%d checked=%d tick=%d segments=%d items=%d delivered=%d\n",
		res.Stepped, res.Checked, w.CurrentTick(), m.Segments, m.Items, m.DeliveredTotal)
}
