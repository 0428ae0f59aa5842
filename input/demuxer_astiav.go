// demuxer_astiav.go implements the Demuxer contract on top of libav via
// go-astiav.

package input

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/avmixer/types"
	"github.com/xaionaro-go/secret"
)

type FileDemuxer struct {
	URL string

	fmtCtx     *astiav.FormatContext
	dictionary *astiav.Dictionary
	decoders   map[int]*astiav.CodecContext
	closer     *astikit.Closer
}

var _ Demuxer = (*FileDemuxer)(nil)

// OpenFile opens a media container by filename/URL and probes its
// streams. Any non-zero open status is a failure.
func OpenFile(
	ctx context.Context,
	urlString string,
	authKey secret.String,
	customOptions types.DictionaryItems,
) (_ret *FileDemuxer, _err error) {
	logger.Debugf(ctx, "OpenFile('%s')", urlString)
	defer func() { logger.Debugf(ctx, "/OpenFile('%s'): %v", urlString, _err) }()

	d := &FileDemuxer{
		URL:      urlString,
		decoders: map[int]*astiav.CodecContext{},
		closer:   astikit.NewCloser(),
	}

	if len(customOptions) > 0 {
		d.dictionary = astiav.NewDictionary()
		d.closer.Add(func() {
			d.dictionary.Free()
		})
		for _, opt := range customOptions {
			logger.Debugf(ctx, "input.Dictionary['%s'] = '%s'", opt.Key, opt.Value)
			d.dictionary.Set(opt.Key, opt.Value, 0)
		}
	}

	d.fmtCtx = astiav.AllocFormatContext()
	if d.fmtCtx == nil {
		return nil, OpenError{
			Filename: urlString,
			APIName:  "avformat_alloc_context",
			Err:      fmt.Errorf("unable to allocate a format context"),
		}
	}

	urlWithSecret := urlString
	if authKey.Get() != "" {
		urlWithSecret += authKey.Get()
	}
	if err := d.fmtCtx.OpenInput(urlWithSecret, nil, d.dictionary); err != nil {
		d.fmtCtx.Free()
		return nil, OpenError{
			Filename: urlString,
			APIName:  "avformat_open_input",
			Err:      err,
		}
	}
	d.closer.Add(func() {
		d.fmtCtx.CloseInput()
		d.fmtCtx.Free()
	})

	if err := d.fmtCtx.FindStreamInfo(nil); err != nil {
		_ = d.closer.Close()
		return nil, StreamInfoError{
			Filename: urlString,
			APIName:  "avformat_find_stream_info",
			Err:      err,
		}
	}

	logger.Debugf(ctx, "input streams: %s", spew.Sdump(d.Streams(ctx)))
	return d, nil
}

func (d *FileDemuxer) Streams(ctx context.Context) []StreamInfo {
	var result []StreamInfo
	for _, stream := range d.fmtCtx.Streams() {
		kind := StreamOther
		if params := stream.CodecParameters(); params != nil {
			switch params.MediaType() {
			case astiav.MediaTypeVideo:
				kind = StreamVideo
			case astiav.MediaTypeAudio:
				kind = StreamAudio
			}
		}
		tb := stream.TimeBase()
		result = append(result, StreamInfo{
			Index:    stream.Index(),
			Kind:     kind,
			TimeBase: Rational{Num: tb.Num(), Den: tb.Den()},
		})
	}
	return result
}

func (d *FileDemuxer) OpenDecoder(
	ctx context.Context,
	streamIndex int,
) (_ret Rational, _err error) {
	logger.Debugf(ctx, "OpenDecoder(%d)", streamIndex)
	defer func() { logger.Debugf(ctx, "/OpenDecoder(%d): %v %v", streamIndex, _ret, _err) }()

	stream := d.findStream(streamIndex)
	if stream == nil {
		return Rational{}, fmt.Errorf("there is no stream with index %d", streamIndex)
	}

	params := stream.CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return Rational{}, fmt.Errorf("unable to find a decoder for codec %v", params.CodecID())
	}

	codecCtx := astiav.AllocCodecContext(codec)
	if codecCtx == nil {
		return Rational{}, fmt.Errorf("unable to allocate a codec context for %v", params.CodecID())
	}
	if err := params.ToCodecContext(codecCtx); err != nil {
		codecCtx.Free()
		return Rational{}, fmt.Errorf("unable to copy the codec parameters: %w", err)
	}
	if err := codecCtx.Open(codec, nil); err != nil {
		codecCtx.Free()
		return Rational{}, fmt.Errorf("unable to open the decoder: %w", err)
	}

	d.decoders[streamIndex] = codecCtx
	d.closer.Add(func() {
		codecCtx.Free()
	})

	tb := codecCtx.TimeBase()
	return Rational{Num: tb.Num(), Den: tb.Den()}, nil
}

func (d *FileDemuxer) ReadPacket(
	ctx context.Context,
) (_ []byte, _ int, _err error) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	err := d.fmtCtx.ReadFrame(pkt)
	switch {
	case err == nil:
	case errors.Is(err, astiav.ErrEof), errors.Is(err, astiav.ErrEio):
		return nil, 0, io.EOF
	default:
		return nil, 0, fmt.Errorf("unable to read a packet: %w", err)
	}

	logger.Tracef(
		ctx,
		"received a packet (stream:%d, pos:%d, pts:%d, dts:%d, dur:%d), dataLen:%d",
		pkt.StreamIndex(),
		pkt.Pos(), pkt.Pts(), pkt.Dts(), pkt.Duration(),
		len(pkt.Data()),
	)

	data := make([]byte, len(pkt.Data()))
	copy(data, pkt.Data())
	return data, pkt.StreamIndex(), nil
}

func (d *FileDemuxer) Seek(
	ctx context.Context,
	streamIndex int,
	timestamp int64,
	backward bool,
) (_err error) {
	logger.Debugf(ctx, "Seek(%d, %d, %t)", streamIndex, timestamp, backward)
	defer func() { logger.Debugf(ctx, "/Seek(%d, %d, %t): %v", streamIndex, timestamp, backward, _err) }()

	flags := astiav.NewSeekFlags()
	if backward {
		flags = astiav.NewSeekFlags(astiav.SeekFlagBackward)
	}
	return d.fmtCtx.SeekFrame(streamIndex, timestamp, flags)
}

func (d *FileDemuxer) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close")
	return d.closer.Close()
}

func (d *FileDemuxer) findStream(streamIndex int) *astiav.Stream {
	for _, stream := range d.fmtCtx.Streams() {
		if stream.Index() == streamIndex {
			return stream
		}
	}
	return nil
}

func (d *FileDemuxer) String() string {
	return fmt.Sprintf("FileDemuxer(%s)", d.URL)
}
