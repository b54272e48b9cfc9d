package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"go2rtc_home/client/go2rtc"
	"go2rtc_home/client/go2rtc/ws"
	"go2rtc_home/client/internal/config"
	"go2rtc_home/client/internal/viewer"
	"go2rtc_home/client/internal/webrtc"
)

const helpText = `go2rtcview - Play a go2rtc stream via WebRTC

Usage:
  go2rtcview [options]

The raw H264 stream is written to stdout. Pipe to ffplay or ffmpeg for
playback or recording.

Environment Variables:
  GO2RTC_URL          go2rtc server base URL, e.g. http://127.0.0.1:1984 (required)
  GO2RTC_STREAM       Stream name to play (required)
  GO2RTC_SRC          Source URL to register as GO2RTC_STREAM before playback
  GO2RTC_TIMEOUT_SEC  Seconds to wait for the SDP answer (default 10)

Examples:
  # Live playback
  go2rtcview | ffplay -f h264 -

  # Record to MP4
  go2rtcview | ffmpeg -f h264 -i - -c copy output.mp4

Options:
  -h, --help  Show this help message
`

var defaultICEServers = []ws.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Check the server is reachable and supported
	rest, err := go2rtc.NewClient(nil, cfg.ServerURL)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	version, err := rest.ValidateServerVersion(ctx)
	if err != nil {
		log.Fatalf("[main] validate server: %v", err)
	}
	log.Printf("[main] go2rtc %s at %s", version, cfg.ServerURL)

	// Step 2: Register the stream if a source was given
	if cfg.Source != "" {
		if err := rest.Streams.Add(ctx, cfg.StreamName, cfg.Source); err != nil {
			log.Fatalf("[main] add stream: %v", err)
		}
		log.Printf("[main] registered stream %s <- %s", cfg.StreamName, cfg.Source)
	}

	// Step 3: Create peer connection
	peer, err := webrtc.NewPeer(defaultICEServers)
	if err != nil {
		log.Fatalf("[main] create peer: %v", err)
	}

	// Step 4: Add transceivers
	if err := peer.AddTransceivers(); err != nil {
		log.Fatalf("[main] add transceivers: %v", err)
	}

	// Step 5: Create signaling client bound to the stream
	sig, err := ws.NewClient(nil, cfg.ServerURL,
		ws.WithSource(cfg.StreamName),
		ws.WithAnswerTimeout(cfg.AnswerTimeout),
	)
	if err != nil {
		log.Fatalf("[main] signal client: %v", err)
	}

	// Step 6: Set up track handler (H264 -> stdout)
	peer.SetOnTrack(os.Stdout)

	// Step 7: Run the offer/answer/candidate flow
	v := viewer.New(peer, sig, defaultICEServers, cancel)
	if err := v.Start(ctx); err != nil {
		log.Fatalf("[main] start viewer: %v", err)
	}

	<-ctx.Done()
	log.Printf("[main] shutting down")

	v.Stop()
	peer.Close()
	sig.Close()

	log.Printf("[main] done")
}
