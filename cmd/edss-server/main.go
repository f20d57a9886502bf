// Command edss-server drives the Server Facade (spec §4.6, §6): it
// wires CLI flags into a server.Config, opens the vgpu CAL backend,
// initializes the encoder/muxer, and starts streaming until
// interrupted.
//
// Grounded on richinsley-bunghole/main.go's flag-driven bootstrap and
// signal-handled graceful shutdown.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	_ "edss/internal/cal/vgpu" // registers the "vgpu" backend via init()
	"edss/internal/server"
	"edss/internal/status"
)

var (
	flagVgpuID     = flag.String("vgpu-id", "0", "vGPU device index (/dev/nvidia-vgpu<N>)")
	flagDest       = flag.String("dest", "", "destination host:port for the SRTP stream (required)")
	flagSRTPParams = flag.String("srtp-params", "", "SRTP out-parameter string, pre-negotiated (required)")
	flagSRTPSuite  = flag.String("srtp-suite", "AES_CM_128_HMAC_SHA1_80", "SRTP crypto suite")
	flagBitrate    = flag.Uint("bitrate", 4_000_000, "target encoder bitrate in bits/sec")
	flagFramerate  = flag.Uint("framerate", 60, "framerate stored in server.Config; the encoder and muxer use the framerate the CAL backend reports")
)

func main() {
	flag.Parse()

	if *flagDest == "" || *flagSRTPParams == "" {
		log.Fatal("edss-server: --dest and --srtp-params are required")
	}

	host, portStr, err := net.SplitHostPort(*flagDest)
	if err != nil {
		log.Fatalf("edss-server: invalid --dest %q: %v", *flagDest, err)
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		log.Fatalf("edss-server: --dest host %q is not a valid IPv4 address", host)
	}
	port, err := net.LookupPort("udp", portStr)
	if err != nil {
		log.Fatalf("edss-server: invalid --dest port %q: %v", portStr, err)
	}

	ipv4 := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])

	f := server.New()

	options, st := f.OpenCAL("vgpu")
	mustOK("OpenCAL", st)

	options["vgpuId"] = *flagVgpuID

	cfg := server.Config{
		IPv4Addr:   ipv4,
		UDPPort:    uint16(port),
		BitrateBps: uint32(*flagBitrate),
		Framerate:  uint32(*flagFramerate),
		SRTPParams: *flagSRTPParams,
		SRTPSuite:  *flagSRTPSuite,
		CalOptions: options,
	}

	sdp, st := f.InitServer(cfg, options)
	mustOK("InitServer", st)
	log.Printf("edss-server: session SDP:\n%s", sdp)

	mustOK("InitStreaming", f.InitStreaming())
	log.Printf("edss-server: streaming to %s", *flagDest)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("edss-server: received %s, shutting down", sig)

	if st := f.CloseStreaming(); st != status.OK {
		log.Printf("edss-server: CloseStreaming returned %s", st)
	}
}

func mustOK(op string, st status.Status) {
	if st != status.OK {
		log.Fatalf("edss-server: %s failed: %s", op, st)
	}
}

