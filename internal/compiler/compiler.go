// Package compiler turns validated slides into Google Slides batchUpdate
// requests. It performs no I/O.
package compiler

import (
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/model"
)

// SlideIDPrefix marks page ids produced by Compile.
const SlideIDPrefix = "slide_"

const (
	bulletGlyph = "• "

	titleSize    = 36
	coverSize    = 44
	subtitleSize = 20
	bodySize     = 16
	bulletSize   = 16
	questionSize = 18
	blankLayout  = "BLANK"
	textBoxShape = "TEXT_BOX"
	allTextRange = "ALL"
)

// SlideID returns the page object id for the slide at index.
func SlideID(index int) string {
	return fmt.Sprintf("%s%d", SlideIDPrefix, index)
}

// IsCompiledSlideID reports whether id was produced by SlideID.
func IsCompiledSlideID(id string) bool {
	return strings.HasPrefix(id, SlideIDPrefix)
}

// Compile returns the ordered requests that materialize s as slide index.
// A nil theme selects the default theme. When the image URL is not an
// absolute https URL, Compile returns an ImageInsertion error and no requests.
func Compile(s model.ValidatedSlide, index int, theme *model.ColorTheme) ([]*slides.Request, error) {
	if theme == nil {
		theme = DefaultTheme()
	}
	if s.ImageURL != "" {
		if err := checkImageURL(s.ImageURL); err != nil {
			return nil, deckerr.ImageInsertion(index, err)
		}
	}

	pageID := SlideID(index)
	reqs := []*slides.Request{{
		CreateSlide: &slides.CreateSlideRequest{
			ObjectId:             pageID,
			SlideLayoutReference: &slides.LayoutReference{PredefinedLayout: blankLayout},
		},
	}}

	hasTitle := s.Title != ""
	hasSubtitle := s.Subtitle != ""
	hasText := s.Body != "" || len(s.Bullets) > 0 || len(s.Questions) > 0
	sideImage := s.ImageURL != "" && hasText

	if s.Kind == model.SlideKindTitle && !hasText {
		if hasTitle {
			reqs = append(reqs, textBox(pageID+"_title", pageID, coverTitleBox, s.Title, textStyle{size: coverSize, bold: true, color: theme.Primary})...)
		}
		if hasSubtitle {
			reqs = append(reqs, textBox(pageID+"_subtitle", pageID, coverSubBox, s.Subtitle, textStyle{size: subtitleSize, color: theme.Secondary})...)
		}
	} else {
		if hasTitle {
			reqs = append(reqs, textBox(pageID+"_title", pageID, titleBox, s.Title, textStyle{size: titleSize, bold: true, color: theme.Primary})...)
		}
		if hasSubtitle {
			reqs = append(reqs, textBox(pageID+"_subtitle", pageID, subtitleBox, s.Subtitle, textStyle{size: subtitleSize, color: theme.Secondary})...)
		}
	}

	type block struct {
		id    string
		slot  float64
		text  string
		style textStyle
	}
	var blocks []block
	if s.Body != "" {
		blocks = append(blocks, block{"_body", bodySlot, s.Body, textStyle{size: bodySize, color: theme.Primary}})
	}
	if len(s.Bullets) > 0 {
		blocks = append(blocks, block{"_bullets", listSlot, bulletText(s.Bullets), textStyle{size: bulletSize, color: theme.Primary}})
	}
	if len(s.Questions) > 0 {
		blocks = append(blocks, block{"_questions", listSlot, questionText(s.Questions), textStyle{size: questionSize, color: theme.Accent}})
	}
	slots := make([]float64, len(blocks))
	for i, b := range blocks {
		slots[i] = b.slot
	}
	boxes := stackSlots(contentTop(hasTitle, hasSubtitle), textWidth(sideImage), slots)
	for i, b := range blocks {
		reqs = append(reqs, textBox(pageID+b.id, pageID, boxes[i], b.text, b.style)...)
	}

	if s.ImageURL != "" {
		b := fullImageBox
		if sideImage {
			b = sideImageBox
		}
		reqs = append(reqs, &slides.Request{
			CreateImage: &slides.CreateImageRequest{
				ObjectId:          pageID + "_image",
				Url:               s.ImageURL,
				ElementProperties: b.properties(pageID),
			},
		})
	}
	return reqs, nil
}

// DeleteObject returns a request removing a page or page element.
func DeleteObject(objectID string) *slides.Request {
	return &slides.Request{DeleteObject: &slides.DeleteObjectRequest{ObjectId: objectID}}
}

// InsertText returns a request inserting text at the start of a shape.
func InsertText(objectID, text string) *slides.Request {
	return &slides.Request{InsertText: &slides.InsertTextRequest{ObjectId: objectID, Text: text}}
}

type textStyle struct {
	size  float64
	bold  bool
	color model.RGB
}

func textBox(objectID, pageID string, b box, text string, style textStyle) []*slides.Request {
	fields := "fontSize,foregroundColor"
	if style.bold {
		fields += ",bold"
	}
	return []*slides.Request{
		{CreateShape: &slides.CreateShapeRequest{
			ObjectId:          objectID,
			ShapeType:         textBoxShape,
			ElementProperties: b.properties(pageID),
		}},
		InsertText(objectID, text),
		{UpdateTextStyle: &slides.UpdateTextStyleRequest{
			ObjectId:  objectID,
			TextRange: &slides.Range{Type: allTextRange},
			Style: &slides.TextStyle{
				FontSize:        dimension(style.size, unitPT),
				Bold:            style.bold,
				ForegroundColor: optionalColor(style.color),
			},
			Fields: fields,
		}},
	}
}

func optionalColor(c model.RGB) *slides.OptionalColor {
	return &slides.OptionalColor{
		OpaqueColor: &slides.OpaqueColor{
			RgbColor: &slides.RgbColor{
				Red:             c.R,
				Green:           c.G,
				Blue:            c.B,
				ForceSendFields: []string{"Red", "Green", "Blue"},
			},
		},
	}
}

func bulletText(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = bulletGlyph + item
	}
	return strings.Join(lines, "\n")
}

func questionText(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n\n")
}

func checkImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("image url %q is not an absolute https url", raw)
	}
	return nil
}
