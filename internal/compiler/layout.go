package compiler

import "google.golang.org/api/slides/v1"

// EMU is the Slides API length unit. One inch is 914400 EMU.
const (
	emuPerInch = 914400
	unitEMU    = "EMU"
	unitPT     = "PT"
)

func inch(v float64) float64 {
	return v * emuPerInch
}

// Page geometry for the default 16:9 presentation.
var (
	pageWidth  = inch(10)
	pageHeight = inch(5.625)
	margin     = inch(0.5)
)

type box struct {
	x, y, w, h float64
}

// Fixed element boxes. Layout never depends on text length.
var (
	titleBox      = box{margin, inch(0.4), inch(9), inch(0.9)}
	subtitleBox   = box{margin, inch(1.4), inch(9), inch(0.6)}
	coverTitleBox = box{margin, inch(1.8), inch(9), inch(1.2)}
	coverSubBox   = box{margin, inch(3.1), inch(9), inch(0.8)}

	// Image beside text on the right, or alone and centered.
	sideImageBox = box{inch(6), inch(1.5), inch(3.5), inch(3.5)}
	fullImageBox = box{inch(2), inch(1.4), inch(6), inch(3.8)}
)

// Text blocks stack downward from contentTop in slots of these heights, in
// inches.
const (
	bodySlot = 1.4
	listSlot = 2.4
	slotGap  = 0.1
)

// contentTop returns where the first text block starts.
func contentTop(hasTitle, hasSubtitle bool) float64 {
	switch {
	case hasTitle && hasSubtitle:
		return inch(2.1)
	case hasTitle:
		return inch(1.5)
	default:
		return margin
	}
}

// stackSlots places text blocks of the given slot heights below top. When
// they would run past the bottom margin every slot shrinks by the same factor.
func stackSlots(top, width float64, slots []float64) []box {
	if len(slots) == 0 {
		return nil
	}
	gap := inch(slotGap)
	var total float64
	for _, s := range slots {
		total += inch(s)
	}
	scale := 1.0
	if avail := pageHeight - margin - top - gap*float64(len(slots)-1); total > avail {
		scale = avail / total
	}

	boxes := make([]box, 0, len(slots))
	y := top
	for _, s := range slots {
		h := inch(s) * scale
		boxes = append(boxes, box{margin, y, width, h})
		y += h + gap
	}
	return boxes
}

// textWidth narrows text blocks when an image sits beside them.
func textWidth(sideImage bool) float64 {
	if sideImage {
		return inch(5.3)
	}
	return inch(9)
}

func dimension(v float64, unit string) *slides.Dimension {
	return &slides.Dimension{Magnitude: v, Unit: unit}
}

func (b box) properties(pageID string) *slides.PageElementProperties {
	return &slides.PageElementProperties{
		PageObjectId: pageID,
		Size: &slides.Size{
			Width:  dimension(b.w, unitEMU),
			Height: dimension(b.h, unitEMU),
		},
		Transform: &slides.AffineTransform{
			ScaleX:     1,
			ScaleY:     1,
			TranslateX: b.x,
			TranslateY: b.y,
			Unit:       unitEMU,
		},
	}
}
