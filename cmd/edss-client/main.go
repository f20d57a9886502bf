// Command edss-client exercises the client Decoder (spec §4.7) against
// an SDP read from a file or stdin, logging a summary of each fetched
// frame as a stand-in for the out-of-scope rendering/UI layer.
//
// Grounded on richinsley-bunghole/main.go's flag-driven bootstrap style.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	"edss/internal/decoder"
)

var flagSDPFile = flag.String("sdp", "", "path to a file containing the session SDP (default: stdin)")

func main() {
	flag.Parse()

	sdp, err := readSDP(*flagSDPFile)
	if err != nil {
		log.Fatalf("edss-client: failed to read SDP: %v", err)
	}

	dec, err := decoder.New(sdp)
	if err != nil {
		log.Fatalf("edss-client: failed to open decoder: %v", err)
	}
	defer dec.Close()

	dec.Start()
	log.Printf("edss-client: decoding started")

	ticker := time.NewTicker(16600 * time.Microsecond)
	defer ticker.Stop()

	for range ticker.C {
		frame, ok := dec.FetchRingFrame()
		if !ok {
			continue
		}
		log.Printf("edss-client: frame %dx%d (%d bytes)", frame.Width, frame.Height, len(frame.Data))
	}
}

func readSDP(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
