package model

// SlideKind is the semantic kind of a slide.
type SlideKind string

const (
	SlideKindTitle            SlideKind = "title"
	SlideKindContent          SlideKind = "content"
	SlideKindImage            SlideKind = "image"
	SlideKindGuidingQuestions SlideKind = "guiding-questions"
	SlideKindReflection       SlideKind = "reflection"
)

// SlideKinds lists every supported slide kind.
var SlideKinds = []SlideKind{
	SlideKindTitle,
	SlideKindContent,
	SlideKindImage,
	SlideKindGuidingQuestions,
	SlideKindReflection,
}

// SlideContent is the semantic description of one slide as produced by the
// generation step. It is untrusted input.
type SlideContent struct {
	Kind         SlideKind `json:"type" validate:"omitempty,oneof=title content image guiding-questions reflection"`
	Title        string    `json:"title,omitempty" validate:"max=1000"`
	Subtitle     string    `json:"subtitle,omitempty" validate:"max=1000"`
	Body         string    `json:"body,omitempty" validate:"max=10000"`
	Bullets      []string  `json:"bullets,omitempty" validate:"max=50"`
	Questions    []string  `json:"questions,omitempty" validate:"max=50"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	ImageQuery   string    `json:"imageQuery,omitempty"`
	ImageAlt     string    `json:"imageAlt,omitempty"`
	SpeakerNotes string    `json:"speakerNotes,omitempty" validate:"max=20000"`
}

// ValidatedSlide is a SlideContent that passed validation. ImageURL is either
// a trusted https URL or empty.
type ValidatedSlide struct {
	SlideContent
	// Index is the slide's position in the caller's original list.
	Index int `json:"index"`
}

// HasNotes reports whether the slide carries speaker notes.
func (s ValidatedSlide) HasNotes() bool {
	return s.SpeakerNotes != ""
}

// RGB is a color with components in [0, 1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// ColorTheme is a named palette applied to slide text.
type ColorTheme struct {
	Name      string `json:"name"`
	Primary   RGB    `json:"primary"`
	Secondary RGB    `json:"secondary"`
	Accent    RGB    `json:"accent"`
}
