// Package decoder implements the Client Decoder (spec §4.7): opens an
// SDP-described input tuned for low latency, decodes H.264 to RGB24, and
// exposes decoded frames through a bounded SPSC ring for the UI to poll.
//
// Grounded on richinsley-bunghole's cgo wrapper style (the teacher has no
// decode path, so this is the small-C-shim-plus-Go-struct idiom of its
// encode path applied in the decode direction) and on
// _examples/original_source/EDC/.../decoder.cc's decode-loop sequence.
// The demuxer/decoder option set (fflags=nobuffer, probesize=32,
// analyzeduration=0, max_delay=2, flags=low_delay, framedrop=1,
// thread_count=1, tune=zerolatency, profile=baseline) is not taken from
// decoder.cc (see DESIGN.md).
package decoder

/*
#cgo pkg-config: libavformat libavcodec libavutil libswscale
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libavutil/opt.h>
#include <libswscale/swscale.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	AVFormatContext *fmt;
	AVCodecContext  *dec;
	struct SwsContext *sws;
	int videoStreamIndex;
	int width;
	int height;
} edssDecoder;

static edssDecoder* edss_decoder_init(const char *url) {
	edssDecoder *d = (edssDecoder*)calloc(1, sizeof(edssDecoder));
	if (!d) return NULL;

	AVDictionary *opts = NULL;
	av_dict_set(&opts, "fflags", "nobuffer", 0);
	av_dict_set(&opts, "probesize", "32", 0);
	av_dict_set(&opts, "analyzeduration", "0", 0);
	av_dict_set(&opts, "max_delay", "2", 0);
	av_dict_set(&opts, "flags", "low_delay", 0);
	av_dict_set(&opts, "framedrop", "1", 0);

	if (avformat_open_input(&d->fmt, url, NULL, &opts) < 0) {
		av_dict_free(&opts);
		free(d);
		return NULL;
	}
	av_dict_free(&opts);

	if (avformat_find_stream_info(d->fmt, NULL) < 0) {
		avformat_close_input(&d->fmt);
		free(d);
		return NULL;
	}

	d->videoStreamIndex = -1;
	for (unsigned i = 0; i < d->fmt->nb_streams; i++) {
		enum AVMediaType t = d->fmt->streams[i]->codecpar->codec_type;
		if (t == AVMEDIA_TYPE_VIDEO) {
			if (d->videoStreamIndex != -1) {
				// more than one video stream: fatal per spec
				avformat_close_input(&d->fmt);
				free(d);
				return NULL;
			}
			d->videoStreamIndex = i;
		} else {
			// any non-video stream is fatal
			avformat_close_input(&d->fmt);
			free(d);
			return NULL;
		}
	}
	if (d->videoStreamIndex < 0) {
		avformat_close_input(&d->fmt);
		free(d);
		return NULL;
	}

	AVCodecParameters *params = d->fmt->streams[d->videoStreamIndex]->codecpar;
	const AVCodec *codec = avcodec_find_decoder(params->codec_id);
	if (!codec) {
		avformat_close_input(&d->fmt);
		free(d);
		return NULL;
	}

	d->dec = avcodec_alloc_context3(codec);
	if (!d->dec || avcodec_parameters_to_context(d->dec, params) < 0) {
		if (d->dec) avcodec_free_context(&d->dec);
		avformat_close_input(&d->fmt);
		free(d);
		return NULL;
	}

	d->dec->thread_count = 1;
	d->dec->flags |= AV_CODEC_FLAG_LOW_DELAY;
	av_opt_set(d->dec->priv_data, "tune", "zerolatency", 0);
	av_opt_set(d->dec->priv_data, "profile", "baseline", 0);

	if (avcodec_open2(d->dec, codec, NULL) < 0) {
		avcodec_free_context(&d->dec);
		avformat_close_input(&d->fmt);
		free(d);
		return NULL;
	}

	d->width = d->dec->width;
	d->height = d->dec->height;

	return d;
}

// Returns: 1 = frame produced (out_rgb/out_size filled, caller owns
// out_rgb via av_freep-compatible free()), 0 = no frame this step (read
// error, non-video packet, or decoder needs more input; the caller
// continues without logging, so read errors are not logged), -1 = fatal.
static int edss_decoder_step(edssDecoder *d, uint8_t **out_rgb, int *out_size, int *out_w, int *out_h) {
	AVPacket *pkt = av_packet_alloc();
	if (!pkt) return -1;

	int ret = av_read_frame(d->fmt, pkt);
	if (ret < 0) {
		av_packet_free(&pkt);
		return 0; // recoverable: log and continue
	}
	if (pkt->stream_index != d->videoStreamIndex) {
		av_packet_unref(pkt);
		av_packet_free(&pkt);
		return 0;
	}

	ret = avcodec_send_packet(d->dec, pkt);
	av_packet_unref(pkt);
	av_packet_free(&pkt);
	if (ret < 0) return 0;

	AVFrame *frame = av_frame_alloc();
	ret = avcodec_receive_frame(d->dec, frame);
	if (ret < 0) {
		av_frame_free(&frame);
		return 0;
	}

	if (!d->sws) {
		d->sws = sws_getContext(frame->width, frame->height, (enum AVPixelFormat)frame->format,
		                        frame->width, frame->height, AV_PIX_FMT_RGB24,
		                        SWS_BICUBIC, NULL, NULL, NULL);
		if (!d->sws) {
			av_frame_free(&frame);
			return -1;
		}
	}

	int rgbStride = frame->width * 3;
	int size = rgbStride * frame->height;
	uint8_t *rgb = (uint8_t*)av_malloc(size);
	uint8_t *dstData[1] = { rgb };
	int dstLinesize[1] = { rgbStride };

	sws_scale(d->sws, (const uint8_t * const*)frame->data, frame->linesize, 0, frame->height, dstData, dstLinesize);

	*out_rgb = rgb;
	*out_size = size;
	*out_w = frame->width;
	*out_h = frame->height;

	av_frame_free(&frame);
	return 1;
}

static void edss_decoder_destroy(edssDecoder *d) {
	if (!d) return;
	if (d->sws) sws_freeContext(d->sws);
	if (d->dec) avcodec_free_context(&d->dec);
	if (d->fmt) avformat_close_input(&d->fmt);
	free(d);
}
*/
import "C"

import (
	"fmt"
	"log"
	"sync/atomic"
	"unsafe"
)

// Frame is one decoded, RGB24-scaled picture. The caller owns Data; it
// is a Go-owned copy (copied out of the C allocation immediately), so no
// explicit free call is required, unlike the original ABI's
// caller-frees-the-image-backing contract.
type Frame struct {
	Width, Height int
	Data          []byte
}

// Decoder owns the demuxer/decoder/scaler triple and runs its decode
// loop on its own goroutine once Start is called.
type Decoder struct {
	c *C.edssDecoder

	frames   chan *Frame // capacity 2, drops the new frame on overflow
	finished atomic.Bool
	done     chan struct{}
}

// New opens the SDP-described input and probes its single video stream
// (spec §4.7: any non-video stream or more than one video stream is a
// fatal configuration error).
func New(sdp string) (*Decoder, error) {
	url := fmt.Sprintf("data:application/sdp;charset=UTF-8,%s", sdp)
	curl := C.CString(url)
	defer C.free(unsafe.Pointer(curl))

	c := C.edss_decoder_init(curl)
	if c == nil {
		return nil, fmt.Errorf("decoder: failed to open SDP input or stream layout is invalid")
	}
	return &Decoder{
		c:      c,
		frames: make(chan *Frame, 2),
		done:   make(chan struct{}),
	}, nil
}

// Start runs the decode loop (spec §4.7) on its own goroutine.
func (d *Decoder) Start() {
	go d.run()
}

// Stop sets the cooperative shutdown flag; the decode loop observes it
// at the top of its next iteration.
func (d *Decoder) Stop() { d.finished.Store(true) }

func (d *Decoder) run() {
	defer close(d.done)

	for {
		if d.finished.Load() {
			return
		}

		var rgb *C.uint8_t
		var size, w, h C.int
		ret := C.edss_decoder_step(d.c, &rgb, &size, &w, &h)
		if ret < 0 {
			log.Printf("decoder: fatal decode error")
			return
		}
		if ret == 0 {
			continue
		}

		data := C.GoBytes(unsafe.Pointer(rgb), size)
		C.free(unsafe.Pointer(rgb))

		f := &Frame{Width: int(w), Height: int(h), Data: data}

		select {
		case d.frames <- f:
		default:
			// Ring full: drop this frame (spec §4.7 step 6), matching
			// internal/ring.FrameRing.Push's drop-on-overrun behavior on
			// the server side rather than evicting an older frame.
			log.Printf("decoder: frame ring full, dropping decoded frame")
		}
	}
}

// FetchRingFrame non-blockingly pops one decoded frame (spec §4.7's
// fetch_ring_frame). Returns (nil, false) if none is available.
func (d *Decoder) FetchRingFrame() (*Frame, bool) {
	select {
	case f := <-d.frames:
		return f, true
	default:
		return nil, false
	}
}

// Close stops the decode loop, joins it, and releases the demuxer/
// decoder/scaler.
func (d *Decoder) Close() {
	d.Stop()
	<-d.done
	C.edss_decoder_destroy(d.c)
}
