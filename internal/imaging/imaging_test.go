package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeResult(t *testing.T, result *Result) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img
}

func TestNormalizeJPEG(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestJPEG(100, 100)))
	if err != nil {
		t.Fatalf("NormalizeImage JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestNormalizePNGOutputsJPEG(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestPNG(100, 100)))
	if err != nil {
		t.Fatalf("NormalizeImage PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
	}
}

func TestNormalizeDownscalesLandscape(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestJPEG(1600, 1000)))
	if err != nil {
		t.Fatalf("NormalizeImage large image: %v", err)
	}

	bounds := decodeResult(t, result).Bounds()
	if bounds.Dx() != 800 || bounds.Dy() != 500 {
		t.Errorf("expected 800x500, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	if result.Width != 800 || result.Height != 500 {
		t.Errorf("expected reported 800x500, got %dx%d", result.Width, result.Height)
	}
}

func TestNormalizeDownscalesPortrait(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestPNG(900, 1800)))
	if err != nil {
		t.Fatalf("NormalizeImage portrait: %v", err)
	}

	bounds := decodeResult(t, result).Bounds()
	if bounds.Dx() != 400 || bounds.Dy() != 800 {
		t.Errorf("expected 400x800, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestNormalizeSmallImageNotUpscaled(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestJPEG(50, 30)))
	if err != nil {
		t.Fatalf("NormalizeImage small image: %v", err)
	}

	bounds := decodeResult(t, result).Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 30 {
		t.Errorf("small image should not be resized: got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestNormalizeExactlyAtCap(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestJPEG(800, 600)))
	if err != nil {
		t.Fatalf("NormalizeImage: %v", err)
	}
	if result.Width != 800 || result.Height != 600 {
		t.Errorf("expected 800x600 untouched, got %dx%d", result.Width, result.Height)
	}
}

func TestNormalizeInvalidFormat(t *testing.T) {
	_, err := NormalizeImage(bytes.NewReader([]byte("not an image")))
	if !errors.Is(err, ErrMediaDecode) {
		t.Errorf("expected ErrMediaDecode, got %v", err)
	}
}

func TestNormalizeTruncatedJPEG(t *testing.T) {
	data := createTestJPEG(64, 64)
	_, err := NormalizeImage(bytes.NewReader(data[:len(data)/3]))
	if !errors.Is(err, ErrMediaDecode) {
		t.Errorf("expected ErrMediaDecode for truncated image, got %v", err)
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	result, err := NormalizeImage(bytes.NewReader(createTestPNG(10, 10)))
	if err != nil {
		t.Fatalf("NormalizeImage: %v", err)
	}

	uri := result.DataURI()
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data URI prefix: %.40s", uri)
	}

	data, mime, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", mime)
	}
	if !bytes.Equal(data, result.Data) {
		t.Error("decoded data differs from original")
	}
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "https://example.com/a.jpg", "data:image/jpeg,abc", "data:image/jpeg;base64"} {
		if _, _, err := DecodeDataURI(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}
