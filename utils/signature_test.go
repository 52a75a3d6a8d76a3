package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeSignature_DataURL(t *testing.T) {
	raw := pngBytes(t, 10, 10)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	got, err := DecodeSignature(encoded)
	if err != nil {
		t.Fatalf("DecodeSignature error: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("decoded bytes differ")
	}
	if _, err := DecodeSignature("   "); err == nil {
		t.Fatalf("expected error for empty signature")
	}
}

func TestNormalizeSignature_FitsBox(t *testing.T) {
	out, err := NormalizeSignature(pngBytes(t, 1200, 300))
	if err != nil {
		t.Fatalf("NormalizeSignature error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > signatureMaxWidth || b.Dy() > signatureMaxHeight {
		t.Fatalf("signature not resized: %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeSignature_RejectsNonImage(t *testing.T) {
	if _, err := NormalizeSignature([]byte("hello")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExtractObjectKeyFromURL(t *testing.T) {
	cases := map[string]string{
		"signatures/3/abc.png": "signatures/3/abc.png",
		"https://storage.googleapis.com/bucket/signatures/3/abc.png": "signatures/3/abc.png",
		"gs://bucket/signatures/3/abc.png":                           "signatures/3/abc.png",
		"../etc/passwd":                                              "",
	}
	for in, expected := range cases {
		if got := ExtractObjectKeyFromURL(in); got != expected {
			t.Fatalf("ExtractObjectKeyFromURL(%q) expected %q, got %q", in, expected, got)
		}
	}
}
