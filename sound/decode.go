package sound

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"github.com/mitchellh/go-homedir"
)

// maxFetchBytes caps how much of a remote source is read
const maxFetchBytes = 32 << 20

// fetch reads src, which is a data: URI, an http(s) URL or a file path
func (r *Registry) fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return parseDataURI(src)

	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("fetch "+src))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fault.New(fmt.Sprintf("fetch %s: status %d", src, resp.StatusCode), ftag.With(ftag.NotFound))
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))

	case src == "":
		return nil, fault.New("empty source", ftag.With(ftag.InvalidArgument))

	default:
		path, err := homedir.Expand(src)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("expand "+src))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("read "+path))
		}
		return data, nil
	}
}

// parseDataURI decodes data:[<mediatype>][;base64],<data>
func parseDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fault.New("malformed data uri", ftag.With(ftag.InvalidArgument))
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("decode data uri"), ftag.With(ftag.InvalidArgument))
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("unescape data uri"), ftag.With(ftag.InvalidArgument))
	}
	return []byte(s), nil
}

// sniff picks a decoder from the leading bytes of data
func sniff(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	r := bytes.NewReader(data)
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return wav.Decode(r)
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return vorbis.Decode(io.NopCloser(r))
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return flac.Decode(r)
	case len(data) >= 3 && string(data[:3]) == "ID3",
		len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return mp3.Decode(io.NopCloser(r))
	}
	return nil, beep.Format{}, ErrUnknownFormat
}

// decodeBuffer decodes data and resamples it into a stereo buffer at rate.
// A decoder panic on malformed input is returned as an error.
func decodeBuffer(data []byte, rate beep.SampleRate) (buf *beep.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fault.Wrap(fmt.Errorf("%w: decoder panic: %v", ErrUnknownFormat, r),
				ftag.With(ftag.InvalidArgument))
		}
	}()

	s, format, err := sniff(data)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fault.Wrap(ErrUnknownFormat,
			fmsg.With(fmt.Sprintf("header: %d Hz, %d channels", format.SampleRate, format.NumChannels)),
			ftag.With(ftag.InvalidArgument))
	}

	var src beep.Streamer = s
	if format.SampleRate != rate {
		src = beep.Resample(4, format.SampleRate, rate, s)
	}

	buf = beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyAudio
	}
	return buf, nil
}
