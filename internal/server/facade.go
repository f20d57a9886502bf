// Package server implements the Server Facade (spec §4.6, §6): the state
// machine Uninit -> CalOpened -> ServerReady -> Streaming -> Closed and
// the exported methods standing in for the original C ABI's
// edssOpenCAL/edssInitServer/edssInitStreaming/edssWriteMouseEvent/
// edssCloseStreaming/edssUpdateStreaming functions.
//
// Grounded on richinsley-bunghole/internal/server/server.go's Server
// type (a struct wrapping a state flag plus start/stop methods spawning
// the capture/stream goroutines) and on
// _examples/original_source/EDSS/src/edssInterface.c's call ordering and
// "any call out of order returns Uninitialised" policy.
package server

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"edss/internal/cal"
	"edss/internal/encode"
	"edss/internal/mux"
	"edss/internal/ring"
	"edss/internal/status"
	streampkg "edss/internal/stream"

	capturepkg "edss/internal/capture"
)

type state int

const (
	stateUninit state = iota
	stateCalOpened
	stateServerReady
	stateStreaming
	stateClosed
)

// Config is the session configuration a caller supplies to InitServer
// (spec §6's configuration record, minus the keyboard-event path which
// spec §1 declares out of scope).
type Config struct {
	IPv4Addr   uint32 // host-order
	UDPPort    uint16
	BitrateBps uint32
	Framerate  uint32
	SRTPParams string // caller-supplied out-parameter string, <=40 bytes + NUL in the original ABI
	SRTPSuite  string // defaults to AES_CM_128_HMAC_SHA1_80 if empty (spec §4.4)
	CalOptions map[string]string
}

// Facade is the single entry point a control-plane drives through the
// OpenCAL -> InitServer -> InitStreaming -> CloseStreaming lifecycle.
// Exactly one Facade exists per streaming session.
type Facade struct {
	mu sync.Mutex

	st state

	sessionID uuid.UUID

	pluginName string
	plugin     cal.Plugin
	cfg        cal.Config

	encoder *encode.Encoder
	muxer   *mux.Muxer
	frames  *ring.FrameRing

	captureThread *capturepkg.Thread
	streamThread  *streampkg.Thread

	sdp string
}

// New constructs a Facade in the Uninit state, tagging it with a fresh
// session id used to disambiguate this session's log lines from any
// other Facade's (a control-plane may drive several sequentially).
func New() *Facade {
	return &Facade{st: stateUninit, sessionID: uuid.New()}
}

// OpenCAL loads the named backend and returns its recognized options
// dictionary (spec §4.6: "must be the first call").
func (f *Facade) OpenCAL(pluginName string) (map[string]string, status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.st != stateUninit {
		return nil, status.Uninitialised
	}

	plugin, err := cal.LoadPlugin(pluginName)
	if err != nil {
		return nil, status.InvalidCal
	}

	f.pluginName = pluginName
	f.plugin = plugin
	f.st = stateCalOpened
	log.Printf("server[%s]: opened CAL plugin %q", f.sessionID, pluginName)
	return plugin.Options(), status.OK
}

// InitServer initializes the plugin with the (possibly caller-modified)
// options dictionary, runs the encoder/muxer setup in full (spec §4.4),
// and returns the generated SDP.
func (f *Facade) InitServer(cfg Config, options map[string]string) (string, status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.st != stateCalOpened {
		return "", status.Uninitialised
	}

	if st := f.plugin.Init(options, &f.cfg); st != status.OK {
		f.st = stateClosed
		return "", st
	}

	enc, err := encode.New(&f.cfg, int64(cfg.BitrateBps))
	if err != nil {
		f.st = stateClosed
		return "", status.EncodeFailure
	}

	suite := cfg.SRTPSuite
	if suite == "" {
		suite = "AES_CM_128_HMAC_SHA1_80"
	}
	dest := fmt.Sprintf("srtp://%s:%d/", ipv4ToString(cfg.IPv4Addr), cfg.UDPPort)

	m, err := mux.New(mux.Params{
		DestURL:    dest,
		SRTPSuite:  suite,
		SRTPParams: cfg.SRTPParams,
		Width:      int(f.cfg.Width),
		Height:     int(f.cfg.Height),
		Framerate:  int(f.cfg.Framerate),
		Extradata:  enc.Extradata(),
	})
	if err != nil {
		enc.Close()
		f.st = stateClosed
		return "", status.LibavFailure
	}

	f.encoder = enc
	f.muxer = m
	f.frames = ring.NewFrameRing()
	f.sdp = m.SDP()
	f.st = stateServerReady
	return f.sdp, status.OK
}

// InitStreaming spawns the capture and stream threads and returns
// immediately (spec §4.6).
func (f *Facade) InitStreaming() status.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.st != stateServerReady {
		return status.Uninitialised
	}

	f.captureThread = capturepkg.NewThread(f.plugin, &f.cfg, f.frames)
	f.streamThread = streampkg.NewThread(f.frames, f.encoder, f.muxer)

	go f.captureThread.Run()
	go f.streamThread.Run()

	f.st = stateStreaming
	return status.OK
}

// WriteMouseEvent forwards one input event to the plugin (spec §4.6,
// §5: re-entrant-safe in the reference plugin, so no additional locking
// is required around the plugin call itself).
func (f *Facade) WriteMouseEvent(event cal.MouseEvent) status.Status {
	f.mu.Lock()
	streaming := f.st == stateStreaming
	plugin := f.plugin
	f.mu.Unlock()

	if !streaming {
		return status.Uninitialised
	}
	return plugin.WriteMouseEvent(event)
}

// WriteKeyboardEvent mirrors edssWriteKeyboardEvent's presence in the
// ABI surface (spec §6); the keyboard event path is declared but never
// wired to a plugin operation in the reference implementation (spec §1
// Out of scope), so this always returns OK without effect.
func (f *Facade) WriteKeyboardEvent() status.Status {
	return status.OK
}

// CloseStreaming sets encodingFinished, joins both threads, tears down
// the muxer/encoder, and shuts down the plugin (spec §4.6). Idempotent:
// calling it again once Closed is a no-op returning OK. If the stream
// thread terminated early because of a fatal encoder failure (spec
// §4.5 step 5), that status takes precedence over a clean plugin
// shutdown (spec §7: session-level failures are fatal).
func (f *Facade) CloseStreaming() status.Status {
	f.mu.Lock()
	if f.st == stateClosed {
		f.mu.Unlock()
		return status.OK
	}
	if f.st != stateStreaming {
		f.mu.Unlock()
		return status.Uninitialised
	}
	capture := f.captureThread
	streamThread := f.streamThread
	frames := f.frames
	f.mu.Unlock()

	// Stop is cooperative (spec §5): set both flags, then post the
	// semaphore once so a stream thread blocked in Wait observes it.
	capture.Stop()
	streamThread.Stop()
	frames.PostShutdown()

	<-capture.Done()
	<-streamThread.Done()

	streamFailure := streamThread.Status()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.muxer.Close()
	f.encoder.Close()

	st := f.plugin.Shutdown()
	cal.UnloadPlugin(f.plugin)

	f.st = stateClosed
	if streamFailure != status.OK {
		return streamFailure
	}
	if st != status.OK {
		return st
	}
	return status.OK
}

// UpdateStreaming is reserved and currently a no-op (spec §4.6, §9 Open
// Question d).
func (f *Facade) UpdateStreaming(Config) status.Status {
	return status.OK
}

func ipv4ToString(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}
