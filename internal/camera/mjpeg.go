package camera

import "bytes"

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc that cuts an MJPEG byte stream (as written by
// ffmpeg's image2pipe muxer) into complete JPEG images. Bytes outside an
// SOI..EOI pair are discarded, as is a truncated image at EOF.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if !atEOF && len(data) > 0 && data[len(data)-1] == 0xFF {
			// The marker may continue in the next read.
			return len(data) - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}
