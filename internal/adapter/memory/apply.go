package memory

import (
	"fmt"
	"slices"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/adapter"
)

// apply mutates p with one request, mirroring the checks the real service
// makes on object ids.
func apply(p *slides.Presentation, r *slides.Request) error {
	if r == nil {
		return pkgerrors.Wrap(adapter.ErrInvalidRequest, "nil request")
	}
	if n := kinds(r); n != 1 {
		return pkgerrors.Wrapf(adapter.ErrInvalidRequest, "request sets %d operations", n)
	}

	switch {
	case r.CreateSlide != nil:
		id := r.CreateSlide.ObjectId
		if id == "" {
			id = fmt.Sprintf("gen_%d", len(p.Slides))
		}
		if exists(p, id) {
			return pkgerrors.Wrapf(adapter.ErrInvalidRequest, "object id %s already exists", id)
		}
		if len(p.Slides) >= maxDemoSlides {
			return fmt.Errorf("slide limit reached for demo mode (max %d)", maxDemoSlides)
		}
		p.Slides = append(p.Slides, newSlide(id))

	case r.CreateShape != nil:
		c := r.CreateShape
		page, err := elementPage(p, c.ObjectId, c.ElementProperties)
		if err != nil {
			return err
		}
		page.PageElements = append(page.PageElements, &slides.PageElement{
			ObjectId:  c.ObjectId,
			Size:      c.ElementProperties.Size,
			Transform: c.ElementProperties.Transform,
			Shape:     &slides.Shape{ShapeType: c.ShapeType},
		})

	case r.CreateImage != nil:
		c := r.CreateImage
		page, err := elementPage(p, c.ObjectId, c.ElementProperties)
		if err != nil {
			return err
		}
		page.PageElements = append(page.PageElements, &slides.PageElement{
			ObjectId:  c.ObjectId,
			Size:      c.ElementProperties.Size,
			Transform: c.ElementProperties.Transform,
			Image:     &slides.Image{ContentUrl: c.Url, SourceUrl: c.Url},
		})

	case r.InsertText != nil:
		el := findElement(p, r.InsertText.ObjectId)
		if el == nil || el.Shape == nil {
			return pkgerrors.Wrapf(adapter.ErrInvalidRequest, "no shape with id %s", r.InsertText.ObjectId)
		}
		text := shapeText(el.Shape)
		at := min(int(r.InsertText.InsertionIndex), len(text))
		text = text[:at] + r.InsertText.Text + text[at:]
		if len(text) > maxDemoTextLength {
			return fmt.Errorf("text too long for demo mode (max %d characters)", maxDemoTextLength)
		}
		el.Shape.Text = &slides.TextContent{
			TextElements: []*slides.TextElement{{TextRun: &slides.TextRun{Content: text}}},
		}

	case r.UpdateTextStyle != nil:
		el := findElement(p, r.UpdateTextStyle.ObjectId)
		if el == nil || el.Shape == nil {
			return pkgerrors.Wrapf(adapter.ErrInvalidRequest, "no shape with id %s", r.UpdateTextStyle.ObjectId)
		}
		if el.Shape.Text != nil {
			for _, te := range el.Shape.Text.TextElements {
				if te.TextRun != nil {
					te.TextRun.Style = r.UpdateTextStyle.Style
				}
			}
		}

	case r.DeleteObject != nil:
		id := r.DeleteObject.ObjectId
		if i := slices.IndexFunc(p.Slides, func(s *slides.Page) bool { return s.ObjectId == id }); i >= 0 {
			p.Slides = slices.Delete(p.Slides, i, i+1)
			return nil
		}
		for _, page := range p.Slides {
			if i := slices.IndexFunc(page.PageElements, func(e *slides.PageElement) bool { return e.ObjectId == id }); i >= 0 {
				page.PageElements = slices.Delete(page.PageElements, i, i+1)
				return nil
			}
		}
		return pkgerrors.Wrapf(adapter.ErrInvalidRequest, "no object with id %s", id)

	default:
		return pkgerrors.Wrap(adapter.ErrInvalidRequest, "unsupported request")
	}
	return nil
}

func kinds(r *slides.Request) int {
	n := 0
	for _, set := range []bool{
		r.CreateSlide != nil,
		r.CreateShape != nil,
		r.InsertText != nil,
		r.UpdateTextStyle != nil,
		r.CreateImage != nil,
		r.DeleteObject != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// elementPage validates a new element and returns the slide it belongs on.
func elementPage(p *slides.Presentation, id string, props *slides.PageElementProperties) (*slides.Page, error) {
	if id == "" || exists(p, id) {
		return nil, pkgerrors.Wrapf(adapter.ErrInvalidRequest, "object id %q is empty or taken", id)
	}
	if props == nil {
		return nil, pkgerrors.Wrap(adapter.ErrInvalidRequest, "missing element properties")
	}
	for _, page := range p.Slides {
		if page.ObjectId == props.PageObjectId {
			return page, nil
		}
	}
	return nil, pkgerrors.Wrapf(adapter.ErrInvalidRequest, "no page with id %s", props.PageObjectId)
}

func exists(p *slides.Presentation, id string) bool {
	for _, page := range p.Slides {
		if page.ObjectId == id {
			return true
		}
	}
	return findElement(p, id) != nil
}

// findElement looks in slides and their notes pages.
func findElement(p *slides.Presentation, id string) *slides.PageElement {
	for _, page := range p.Slides {
		pages := []*slides.Page{page}
		if page.SlideProperties != nil && page.SlideProperties.NotesPage != nil {
			pages = append(pages, page.SlideProperties.NotesPage)
		}
		for _, pg := range pages {
			for _, el := range pg.PageElements {
				if el.ObjectId == id {
					return el
				}
			}
		}
	}
	return nil
}

func shapeText(s *slides.Shape) string {
	if s.Text == nil {
		return ""
	}
	var text string
	for _, te := range s.Text.TextElements {
		if te.TextRun != nil {
			text += te.TextRun.Content
		}
	}
	return text
}
