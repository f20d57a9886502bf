// Package mux implements MuxerContext (spec §3, §4.4): an RTP output
// bound to an SRTP AVIO sink, a single video stream mirroring the
// encoder's codec parameters, and SDP emission into a caller-supplied
// buffer.
//
// Grounded on richinsley-bunghole/internal/server/server.go's output
// context setup (the teacher opens an AVIOContext-equivalent sink and
// writes an SDP-like session description before streaming) and on the
// exact libavformat call sequence in
// _examples/original_source/EDSS/src/edssInterface.c (avformat_alloc_
// output_context2 with an "rtp" format name against an "srtp://" URL,
// srtp_out_suite/srtp_out_params AVOptions, avformat_write_header,
// av_sdp_create).
package mux

/*
#cgo pkg-config: libavformat libavcodec libavutil
#include <libavformat/avformat.h>
#include <libavutil/opt.h>
#include <stdlib.h>

typedef struct {
	AVFormatContext *fmt;
	AVStream *stream;
	int64_t firstPts;
	int haveFirstPts;
} edssMuxer;

static edssMuxer* edss_muxer_init(const char *url, const char *suite, const char *params,
                                   int width, int height, int fps,
                                   int extradataLen, const uint8_t *extradata,
                                   char *sdpBuf, int sdpBufLen) {
	edssMuxer *m = (edssMuxer*)calloc(1, sizeof(edssMuxer));
	if (!m) return NULL;

	if (avformat_alloc_output_context2(&m->fmt, NULL, "rtp", url) < 0 || !m->fmt) {
		free(m);
		return NULL;
	}

	if (av_opt_set(m->fmt->priv_data, "srtp_out_suite", suite, 0) < 0 ||
	    av_opt_set(m->fmt->priv_data, "srtp_out_params", params, 0) < 0) {
		avformat_free_context(m->fmt);
		free(m);
		return NULL;
	}

	m->stream = avformat_new_stream(m->fmt, NULL);
	if (!m->stream) {
		avformat_free_context(m->fmt);
		free(m);
		return NULL;
	}

	m->stream->codecpar->codec_type = AVMEDIA_TYPE_VIDEO;
	m->stream->codecpar->codec_id = AV_CODEC_ID_H264;
	m->stream->codecpar->width = width;
	m->stream->codecpar->height = height;
	m->stream->time_base = (AVRational){1, fps};

	if (extradataLen > 0) {
		m->stream->codecpar->extradata = (uint8_t*)av_mallocz(extradataLen + AV_INPUT_BUFFER_PADDING_SIZE);
		memcpy(m->stream->codecpar->extradata, extradata, extradataLen);
		m->stream->codecpar->extradata_size = extradataLen;
	}

	if (!(m->fmt->oformat->flags & AVFMT_NOFILE)) {
		if (avio_open(&m->fmt->pb, url, AVIO_FLAG_WRITE) < 0) {
			avformat_free_context(m->fmt);
			free(m);
			return NULL;
		}
	}

	if (avformat_write_header(m->fmt, NULL) < 0) {
		avformat_free_context(m->fmt);
		free(m);
		return NULL;
	}

	if (av_sdp_create(&m->fmt, 1, sdpBuf, sdpBufLen) < 0) {
		avformat_free_context(m->fmt);
		free(m);
		return NULL;
	}

	m->haveFirstPts = 0;
	return m;
}

static int edss_muxer_write(edssMuxer *m, const uint8_t *data, int size, int64_t pts, int64_t dts, int64_t durationTb, int keyframe) {
	AVPacket *pkt = av_packet_alloc();
	if (!pkt) return -1;

	if (av_new_packet(pkt, size) < 0) {
		av_packet_free(&pkt);
		return -1;
	}
	memcpy(pkt->data, data, size);

	pkt->stream_index = m->stream->index;
	pkt->pts = pts;
	pkt->dts = dts;
	pkt->duration = durationTb;
	if (keyframe) pkt->flags |= AV_PKT_FLAG_KEY;

	int ret = av_interleaved_write_frame(m->fmt, pkt);
	av_packet_free(&pkt);
	return ret < 0 ? -1 : 0;
}

static void edss_muxer_destroy(edssMuxer *m) {
	if (!m) return;
	if (m->fmt) {
		av_write_trailer(m->fmt);
		if (m->fmt->pb && !(m->fmt->oformat->flags & AVFMT_NOFILE)) {
			avio_closep(&m->fmt->pb);
		}
		avformat_free_context(m->fmt);
	}
	free(m);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// minSDPBuffer matches spec §4.4's requirement that the SDP destination
// buffer be at least 3000 bytes.
const minSDPBuffer = 3000

// Muxer owns the RTP/SRTP output context and emits the session's SDP
// once at construction time (spec §3 MuxerContext).
type Muxer struct {
	c   *C.edssMuxer
	sdp string
}

// Params configures the destination and codec parameters the muxer's
// single video stream mirrors from the encoder (spec §4.4 init order:
// encoder must already be open so extradata/width/height are known).
type Params struct {
	DestURL    string // e.g. "srtp://203.0.113.9:5004/"
	SRTPSuite  string // e.g. "AES_CM_128_HMAC_SHA1_80"
	SRTPParams string // caller-supplied base64 key/salt
	Width      int
	Height     int
	Framerate  int
	Extradata  []byte // SPS/PPS from the encoder's codec context, if any
}

// New opens the RTP output, writes its header and produces the SDP body
// describing the session (spec §4.4 steps: alloc output context, set
// SRTP options, open stream, write header, av_sdp_create).
func New(p Params) (*Muxer, error) {
	url := C.CString(p.DestURL)
	defer C.free(unsafe.Pointer(url))
	suite := C.CString(p.SRTPSuite)
	defer C.free(unsafe.Pointer(suite))
	params := C.CString(p.SRTPParams)
	defer C.free(unsafe.Pointer(params))

	var extraPtr *C.uint8_t
	if len(p.Extradata) > 0 {
		extraPtr = (*C.uint8_t)(unsafe.Pointer(&p.Extradata[0]))
	}

	sdpBuf := make([]byte, minSDPBuffer)
	c := C.edss_muxer_init(url, suite, params,
		C.int(p.Width), C.int(p.Height), C.int(p.Framerate),
		C.int(len(p.Extradata)), extraPtr,
		(*C.char)(unsafe.Pointer(&sdpBuf[0])), C.int(len(sdpBuf)))
	if c == nil {
		return nil, fmt.Errorf("mux: failed to initialize RTP/SRTP output to %s", p.DestURL)
	}

	sdp := C.GoString((*C.char)(unsafe.Pointer(&sdpBuf[0])))
	return &Muxer{c: c, sdp: sdp}, nil
}

// SDP returns the session description produced at construction time,
// suitable for copying into a caller-supplied buffer (spec §6's
// edssInitServer output parameter).
func (m *Muxer) SDP() string { return m.sdp }

// WritePacket interleaves one encoded access unit into the output,
// rescaling the encoder's per-frame PTS into the stream's time base is
// the caller's responsibility (spec §4.5 step: "rescale timestamps,
// write interleaved").
func (m *Muxer) WritePacket(data []byte, pts, dts, duration int64, keyframe bool) error {
	if len(data) == 0 {
		return fmt.Errorf("mux: empty packet")
	}
	key := C.int(0)
	if keyframe {
		key = 1
	}
	ret := C.edss_muxer_write(m.c, (*C.uint8_t)(unsafe.Pointer(&data[0])), C.int(len(data)), C.int64_t(pts), C.int64_t(dts), C.int64_t(duration), key)
	if ret != 0 {
		return fmt.Errorf("mux: failed to write interleaved packet")
	}
	return nil
}

// Close writes the trailer and releases the output context.
func (m *Muxer) Close() {
	C.edss_muxer_destroy(m.c)
}
