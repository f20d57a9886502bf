// Package encode implements EncoderContext (spec §3, §4.4): an H.264
// encoder configured for zero-latency, a color-space converter from the
// capture pixel format to YUV420P, and a reusable target frame whose
// presentation timestamp increments once per encoded frame.
//
// Grounded on richinsley-bunghole/encode.go's cgo-libavcodec wrapper
// idiom (a small C shim in a `/* ... */` cgo comment block, wrapped by a
// Go struct exposing New/Encode/Close) and on the exact field values in
// _examples/original_source/EDSS/src/edssInterface.c's encoder setup
// section (gop_size=60, max_b_frames=0, preset "ultrafast", tune
// "zerolatency", SWS_BICUBIC).
package encode

/*
#cgo pkg-config: libavcodec libavutil libswscale
#include <libavcodec/avcodec.h>
#include <libavutil/imgutils.h>
#include <libavutil/opt.h>
#include <libswscale/swscale.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	AVCodecContext *ctx;
	AVFrame *frame;      // reusable YUV420P target frame
	AVPacket *pkt;
	struct SwsContext *sws;
	int width;
	int height;
	int srcStride;
	int64_t pts;
} edssEncoder;

static edssEncoder* edss_encoder_init(int width, int height, int fps, int64_t bitrate, int srcPixFmt, int srcStride) {
	edssEncoder *e = (edssEncoder*)calloc(1, sizeof(edssEncoder));
	if (!e) return NULL;

	e->width = width;
	e->height = height;
	e->srcStride = srcStride;

	const AVCodec *codec = avcodec_find_encoder_by_name("libx264");
	if (!codec) { free(e); return NULL; }

	e->ctx = avcodec_alloc_context3(codec);
	if (!e->ctx) { free(e); return NULL; }

	e->ctx->width = width;
	e->ctx->height = height;
	e->ctx->time_base = (AVRational){1, fps};
	e->ctx->framerate = (AVRational){fps, 1};
	e->ctx->pix_fmt = AV_PIX_FMT_YUV420P;
	e->ctx->bit_rate = bitrate;
	e->ctx->gop_size = 60;
	e->ctx->max_b_frames = 0;

	av_opt_set(e->ctx->priv_data, "preset", "ultrafast", 0);
	av_opt_set(e->ctx->priv_data, "tune", "zerolatency", 0);

	if (avcodec_open2(e->ctx, codec, NULL) < 0) {
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->frame = av_frame_alloc();
	e->frame->format = AV_PIX_FMT_YUV420P;
	e->frame->width = width;
	e->frame->height = height;
	if (av_image_alloc(e->frame->data, e->frame->linesize, width, height, AV_PIX_FMT_YUV420P, 1) < 0) {
		av_frame_free(&e->frame);
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->pkt = av_packet_alloc();

	e->sws = sws_getContext(width, height, (enum AVPixelFormat)srcPixFmt,
	                        width, height, AV_PIX_FMT_YUV420P,
	                        SWS_BICUBIC, NULL, NULL, NULL);
	if (!e->sws) {
		av_packet_free(&e->pkt);
		av_freep(&e->frame->data[0]);
		av_frame_free(&e->frame);
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	return e;
}

// Returns: 0 = success, -1 = error. *out_size==0 means no packet yet.
static int edss_encoder_encode(edssEncoder *e, const uint8_t *src, uint8_t **out_buf, int *out_size, int *is_key) {
	*out_size = 0;

	const uint8_t *srcData[1] = { src };
	int srcLinesize[1] = { e->srcStride };

	if (av_frame_make_writable(e->frame) < 0) return -1;
	sws_scale(e->sws, srcData, srcLinesize, 0, e->height, e->frame->data, e->frame->linesize);

	e->frame->pts = e->pts;

	int ret = avcodec_send_frame(e->ctx, e->frame);
	if (ret < 0) return -1;

	ret = avcodec_receive_packet(e->ctx, e->pkt);
	if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) {
		return 0;
	}
	if (ret < 0) return -1;

	*out_buf = e->pkt->data;
	*out_size = e->pkt->size;
	*is_key = (e->pkt->flags & AV_PKT_FLAG_KEY) ? 1 : 0;
	return 0;
}

static void edss_encoder_advance_pts(edssEncoder *e) {
	e->pts++;
}

static int edss_encoder_extradata_size(edssEncoder *e) {
	return e->ctx->extradata_size;
}

static const uint8_t* edss_encoder_extradata(edssEncoder *e) {
	return e->ctx->extradata;
}

static void edss_encoder_unref_packet(edssEncoder *e) {
	av_packet_unref(e->pkt);
}

static void edss_encoder_destroy(edssEncoder *e) {
	if (!e) return;
	if (e->sws) sws_freeContext(e->sws);
	if (e->pkt) av_packet_free(&e->pkt);
	if (e->frame) {
		av_freep(&e->frame->data[0]);
		av_frame_free(&e->frame);
	}
	if (e->ctx) avcodec_free_context(&e->ctx);
	free(e);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"edss/internal/cal"
)

// Packet is one drained, timestamp-unrescaled encoded access unit.
type Packet struct {
	Data  []byte
	IsKey bool
}

// Encoder owns the H.264 encoder and color-space converter described by
// EncoderContext (spec §3). It is exclusively owned by the Stream
// Thread between InitStreaming and CloseStreaming (spec §5).
type Encoder struct {
	c *C.edssEncoder
}

// New configures an encoder for the given capture dimensions, pixel
// format and framerate, with the fixed zero-latency settings spec §3
// mandates (gop_size=60, max_b_frames=0, preset ultrafast, tune
// zerolatency, bicubic scaling to YUV420P).
func New(cfg *cal.Config, bitrateBps int64) (*Encoder, error) {
	srcStride := int(cfg.Width) * cfg.PixFmt.BytesPerPixel()
	c := C.edss_encoder_init(
		C.int(cfg.Width), C.int(cfg.Height), C.int(cfg.Framerate),
		C.int64_t(bitrateBps), C.int(pixFmtToAV(cfg.PixFmt)), C.int(srcStride))
	if c == nil {
		return nil, fmt.Errorf("encode: failed to initialize libx264 encoder")
	}
	return &Encoder{c: c}, nil
}

// Encode converts src (one raw frame in the source pixel format) into
// the reusable YUV420P target frame, submits it to the encoder, and
// receives at most one packet. Returns (nil, nil) when the encoder has
// not produced output yet (still buffering). The encoder is not drained
// fully: any further packets already pending after the first stay queued
// in the codec until a later call, and internal/stream calls Encode once
// per frame with no drain loop of its own.
func (e *Encoder) Encode(src []byte) (*Packet, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("encode: empty source frame")
	}
	var outBuf *C.uint8_t
	var outSize C.int
	var isKey C.int

	ret := C.edss_encoder_encode(e.c, (*C.uint8_t)(unsafe.Pointer(&src[0])), &outBuf, &outSize, &isKey)
	if ret != 0 {
		return nil, fmt.Errorf("encode: avcodec send/receive failed")
	}
	if outSize == 0 {
		return nil, nil
	}

	data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
	C.edss_encoder_unref_packet(e.c)

	return &Packet{Data: data, IsKey: isKey != 0}, nil
}

// Extradata returns the encoder's SPS/PPS out-of-band codec data, copied
// into the stream's codec parameters by the muxer (spec §4.4: "copy
// codec parameters into the stream").
func (e *Encoder) Extradata() []byte {
	size := C.edss_encoder_extradata_size(e.c)
	if size <= 0 {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(C.edss_encoder_extradata(e.c)), size)
}

// AdvancePTS increments the reusable frame's presentation timestamp by
// one (spec §4.5 step 7: "Increment the YUV frame's presentation
// timestamp"), called once per stream-thread loop iteration regardless
// of whether a packet was produced this iteration.
func (e *Encoder) AdvancePTS() { C.edss_encoder_advance_pts(e.c) }

func (e *Encoder) Close() {
	C.edss_encoder_destroy(e.c)
}

func pixFmtToAV(f cal.PixFmt) int {
	switch f {
	case cal.PixFmtBGRA:
		return int(C.AV_PIX_FMT_BGRA)
	case cal.PixFmtNV12:
		return int(C.AV_PIX_FMT_NV12)
	default:
		return int(C.AV_PIX_FMT_BGRA)
	}
}
