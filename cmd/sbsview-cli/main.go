package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/librescoot/sbs-host/pkg/client"
	"github.com/librescoot/sbs-host/pkg/sbs"
	"github.com/librescoot/sbs-host/pkg/window"
)

// Configuration flags
var (
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	windowSecs   = flag.Uint("window", 10, "Sliding-window retention, in seconds")
	pollInterval = flag.Duration("poll", time.Second, "Snapshot print interval")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting sbsview-cli")
	log.Printf("Serial device: %s", *serialDevice)
	log.Printf("Baud rate: %d", *baudRate)

	c := client.New()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := c.Connect(ctx, *serialDevice, *baudRate); err != nil {
		cancel()
		log.Fatalf("Failed to connect to serial device: %v", err)
	}
	cancel()
	log.Printf("Connected to %s", *serialDevice)

	buf := window.New()
	defer buf.Quit()
	buf.SetWindow(uint32(*windowSecs))

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	frames, err := c.GetFrames(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to list frames: %v", err)
	}
	log.Printf("Discovered %d frame(s)", len(frames))

	for _, f := range frames {
		log.Printf("  frame %d %q: %d signal(s)", f.ID, f.Name, len(f.Signals))
		for _, s := range f.Signals {
			buf.AddSignal(sbs.SignalID{FrameID: f.ID, Name: s.Name})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.EnableFrame(ctx, f.ID)
		cancel()
		if err != nil {
			log.Printf("Warning: failed to enable frame %d: %v", f.ID, err)
		}
	}

	c.AddCallback(func(frameID sbs.FrameID, value sbs.SignalFrameValue) {
		buf.ProcessFrame(frameID, value)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			log.Printf("Shutting down...")
			return
		case <-ticker.C:
			buf.RequestSnapshot()
			if snap, ok := buf.PollSnapshot(); ok {
				printSnapshot(snap)
			}
		}
	}
}

func printSnapshot(snap window.Snapshot) {
	for id, samples := range snap {
		if len(samples) == 0 {
			continue
		}
		latest := samples[len(samples)-1]
		log.Printf("frame %d %s = %s (t=%d, %d sample(s) in window)",
			id.FrameID, id.Name, latest.Value, latest.Timestamp, len(samples))
	}
}
