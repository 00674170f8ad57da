package validate

import "github.com/jun/gophdeck/internal/model"

// Estimated primitive operations contributed by each slide element.
const (
	opsCreateSlide = 1
	opsTextBox     = 3 // createShape + insertText + updateTextStyle
	opsListItem    = 1
	opsImage       = 1
	opsNotes       = 1
)

// EstimateOperations returns the estimated number of primitive remote
// operations needed to materialize s, including the speaker-notes pass.
func EstimateOperations(s model.SlideContent) int {
	n := opsCreateSlide
	for _, field := range []string{s.Title, s.Subtitle, s.Body} {
		if field != "" {
			n += opsTextBox
		}
	}
	if len(s.Bullets) > 0 {
		n += opsTextBox + len(s.Bullets)*opsListItem
	}
	if len(s.Questions) > 0 {
		n += opsTextBox + len(s.Questions)*opsListItem
	}
	if s.ImageURL != "" {
		n += opsImage
	}
	if s.SpeakerNotes != "" {
		n += opsNotes
	}
	return n
}
