// Package annotate burns highlight regions into PDF documents. Regions
// arrive in top-left page coordinates; PDF user space puts the origin at
// the bottom-left, so the overlay converts before drawing.
package annotate

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/phpdave11/gofpdi"
	"github.com/signintech/gopdf"
)

// Region is one highlight rectangle. Page is 1-based; X and Y locate the
// top-left corner of the rectangle in PDF points.
type Region struct {
	Page   int
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Rect is a rectangle in PDF user space (bottom-left origin).
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// NativeRect converts a top-left region to PDF user space on a page of
// the given height.
func NativeRect(r Region, pageHeight float64) Rect {
	return Rect{
		X: r.X,
		Y: pageHeight - r.Y - r.Height,
		W: r.Width,
		H: r.Height,
	}
}

const highlightAlpha = 0.4

// Overlay returns a copy of doc with semi-transparent yellow rectangles
// burned onto the referenced pages. Regions on pages the document does
// not have are skipped. Viewing never fails: with no regions, or when the
// transform errors on a malformed document, the original bytes come back
// untouched.
func Overlay(doc []byte, regions []Region) []byte {
	if len(regions) == 0 {
		return doc
	}
	out, err := overlay(doc, regions)
	if err != nil {
		slog.Warn("pdf overlay failed, serving original document", "error", err)
		return doc
	}
	return out
}

// overlay rebuilds the document page by page, stamping each imported page
// and drawing its highlights on top. The pdf import library panics on
// malformed input, hence the recover.
func overlay(doc []byte, regions []Region) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("importing pdf: %v", r)
		}
	}()

	byPage := make(map[int][]Region)
	for _, r := range regions {
		byPage[r.Page] = append(byPage[r.Page], r)
	}

	var meta io.ReadSeeker = bytes.NewReader(doc)
	imp := gofpdi.NewImporter()
	imp.SetSourceStream(&meta)
	pageCount := imp.GetNumPages()
	pageSizes := imp.GetPageSizes()

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{Unit: gopdf.UnitPT})

	var src io.ReadSeeker = bytes.NewReader(doc)
	for page := 1; page <= pageCount; page++ {
		box, ok := pageSizes[page]["/MediaBox"]
		if !ok {
			return nil, fmt.Errorf("page %d: no media box", page)
		}
		w, h := box["w"], box["h"]

		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &gopdf.Rect{W: w, H: h}})
		tpl := pdf.ImportPageStream(&src, page, "/MediaBox")
		pdf.UseImportedTemplate(tpl, 0, 0, w, h)

		for _, reg := range byPage[page] {
			native := NativeRect(reg, h)
			if err := drawHighlight(&pdf, native, h); err != nil {
				return nil, err
			}
		}
	}

	return pdf.GetBytesPdfReturnErr()
}

// drawHighlight fills one user-space rectangle in translucent yellow.
// gopdf draws in top-left coordinates, so the rectangle converts back
// from user space for the call.
func drawHighlight(pdf *gopdf.GoPdf, r Rect, pageHeight float64) error {
	if err := pdf.SetTransparency(gopdf.Transparency{
		Alpha:         highlightAlpha,
		BlendModeType: gopdf.NormalBlendMode,
	}); err != nil {
		return err
	}
	defer pdf.ClearTransparency()

	pdf.SetFillColor(255, 255, 0)
	top := pageHeight - r.Y - r.H
	return pdf.Rectangle(r.X, top, r.X+r.W, top+r.H, "F", 0, 0)
}
