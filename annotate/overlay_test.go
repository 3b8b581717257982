package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNativeRectFlipsVerticalAxis(t *testing.T) {
	// A 12pt-tall region 30pt from the top of a US Letter page sits at
	// 750pt in PDF user space.
	r := Region{Page: 1, X: 72, Y: 30, Width: 100, Height: 12}
	native := NativeRect(r, 792)

	assert.Equal(t, 72.0, native.X)
	assert.Equal(t, 750.0, native.Y)
	assert.Equal(t, 100.0, native.W)
	assert.Equal(t, 12.0, native.H)
}

func TestNativeRectFullPageRegion(t *testing.T) {
	r := Region{Page: 1, X: 0, Y: 0, Width: 612, Height: 792}
	native := NativeRect(r, 792)
	assert.Equal(t, 0.0, native.Y)
}

func TestOverlayNoRegionsIsIdentity(t *testing.T) {
	doc := []byte("%PDF-1.4 fake document")
	out := Overlay(doc, nil)
	assert.Same(t, &doc[0], &out[0], "no-region overlay must return the original slice")
}

func TestOverlayMalformedDocumentFallsBack(t *testing.T) {
	doc := []byte("this is not a pdf at all")
	out := Overlay(doc, []Region{{Page: 1, X: 10, Y: 10, Width: 50, Height: 10}})
	assert.Equal(t, doc, out, "malformed input must fall back to the original bytes")
}
