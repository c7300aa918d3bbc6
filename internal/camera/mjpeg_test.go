package camera

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"testing/iotest"
)

func testJPEG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := range 16 {
		for y := range 16 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

func scanFrames(t *testing.T, stream []byte, oneByte bool) [][]byte {
	t.Helper()
	var r = bytes.NewReader(stream)
	scanner := bufio.NewScanner(r)
	if oneByte {
		scanner = bufio.NewScanner(iotest.OneByteReader(r))
	}
	scanner.Split(SplitJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, bytes.Clone(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}
	return frames
}

func TestSplitJPEG(t *testing.T) {
	red := testJPEG(t, color.RGBA{R: 255, A: 255})
	blue := testJPEG(t, color.RGBA{B: 255, A: 255})

	tests := []struct {
		name   string
		stream []byte
		want   [][]byte
	}{
		{
			name:   "single image",
			stream: red,
			want:   [][]byte{red},
		},
		{
			name:   "two back to back",
			stream: append(append([]byte{}, red...), blue...),
			want:   [][]byte{red, blue},
		},
		{
			name:   "garbage around images",
			stream: append(append(append([]byte("junk"), red...), []byte{0x00, 0x01}...), blue...),
			want:   [][]byte{red, blue},
		},
		{
			name:   "truncated trailing image dropped",
			stream: append(append([]byte{}, red...), blue[:len(blue)/2]...),
			want:   [][]byte{red},
		},
		{
			name:   "empty stream",
			stream: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		for _, oneByte := range []bool{false, true} {
			t.Run(tt.name, func(t *testing.T) {
				got := scanFrames(t, tt.stream, oneByte)
				if len(got) != len(tt.want) {
					t.Fatalf("expected %d frames, got %d (oneByte=%v)", len(tt.want), len(got), oneByte)
				}
				for i := range got {
					if !bytes.Equal(got[i], tt.want[i]) {
						t.Errorf("frame %d differs (oneByte=%v)", i, oneByte)
					}
					if _, err := jpeg.Decode(bytes.NewReader(got[i])); err != nil {
						t.Errorf("frame %d does not decode: %v", i, err)
					}
				}
			})
		}
	}
}
