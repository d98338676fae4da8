package embedded

import (
	"bytes"
	"image/png"
	"testing"
)

func TestIconsDecode(t *testing.T) {
	for name, data := range map[string][]byte{
		"ready":    IconReady,
		"held":     IconHeld,
		"disabled": IconDisabled,
		"failed":   IconFailed,
	} {
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != IconSize || b.Dy() != IconSize {
			t.Fatalf("%s: size %v", name, b)
		}
	}
}

func TestHollowIconHasTransparentCenter(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(IconDisabled))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := img.At(12, 32).RGBA(); a != 0 {
		t.Fatalf("hollow icon should be transparent inside the ring, alpha=%d", a)
	}
	filled, _ := png.Decode(bytes.NewReader(IconReady))
	if _, _, _, a := filled.At(12, 32).RGBA(); a == 0 {
		t.Fatalf("filled icon should be opaque inside the ring")
	}
}
