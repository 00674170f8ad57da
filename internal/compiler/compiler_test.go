package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/deckerr"
	"github.com/jun/gophdeck/internal/model"
)

func slide(c model.SlideContent) model.ValidatedSlide {
	return model.ValidatedSlide{SlideContent: c}
}

// populated counts the operation fields set on r.
func populated(r *slides.Request) int {
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

func TestCompile_EmptySlide(t *testing.T) {
	reqs, err := Compile(slide(model.SlideContent{}), 0, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].CreateSlide)
	assert.Equal(t, "slide_0", reqs[0].CreateSlide.ObjectId)
	assert.Equal(t, "BLANK", reqs[0].CreateSlide.SlideLayoutReference.PredefinedLayout)
}

func TestCompile_TitleOnly(t *testing.T) {
	reqs, err := Compile(slide(model.SlideContent{Kind: model.SlideKindContent, Title: "Photosynthesis"}), 3, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 4)

	assert.NotNil(t, reqs[0].CreateSlide)
	require.NotNil(t, reqs[1].CreateShape)
	assert.Equal(t, "slide_3_title", reqs[1].CreateShape.ObjectId)
	assert.Equal(t, "slide_3", reqs[1].CreateShape.ElementProperties.PageObjectId)
	require.NotNil(t, reqs[2].InsertText)
	assert.Equal(t, "Photosynthesis", reqs[2].InsertText.Text)
	require.NotNil(t, reqs[3].UpdateTextStyle)
	style := reqs[3].UpdateTextStyle
	assert.Equal(t, float64(36), style.Style.FontSize.Magnitude)
	assert.Equal(t, "PT", style.Style.FontSize.Unit)
	assert.True(t, style.Style.Bold)
	assert.Contains(t, style.Fields, "bold")
}

func TestCompile_EveryRequestHasExactlyOneOperation(t *testing.T) {
	s := slide(model.SlideContent{
		Kind:      model.SlideKindContent,
		Title:     "Water cycle",
		Subtitle:  "How rain happens",
		Body:      "Water moves between sea, air and land.",
		Bullets:   []string{"Evaporation", "Condensation", "Precipitation"},
		Questions: []string{"Where does rain come from?"},
		ImageURL:  "https://images.unsplash.com/rain.jpg",
	})
	reqs, err := Compile(s, 1, nil)
	require.NoError(t, err)
	// createSlide + 5 text boxes + image
	assert.Len(t, reqs, 1+5*3+1)
	for i, r := range reqs {
		assert.Equal(t, 1, populated(r), "request %d", i)
	}
}

func TestCompile_ListFormatting(t *testing.T) {
	s := slide(model.SlideContent{
		Kind:      model.SlideKindGuidingQuestions,
		Bullets:   []string{"one", "two"},
		Questions: []string{"Why?", "How?"},
	})
	reqs, err := Compile(s, 0, nil)
	require.NoError(t, err)

	var texts []string
	for _, r := range reqs {
		if r.InsertText != nil {
			texts = append(texts, r.InsertText.Text)
		}
	}
	assert.Equal(t, []string{"• one\n• two", "1. Why?\n\n2. How?"}, texts)
}

func TestCompile_ThemeColors(t *testing.T) {
	theme, ok := ThemeByName("ocean")
	require.True(t, ok)

	reqs, err := Compile(slide(model.SlideContent{Title: "T", Questions: []string{"Q"}}), 0, theme)
	require.NoError(t, err)

	var styles []*slides.UpdateTextStyleRequest
	for _, r := range reqs {
		if r.UpdateTextStyle != nil {
			styles = append(styles, r.UpdateTextStyle)
		}
	}
	require.Len(t, styles, 2)
	assert.Equal(t, theme.Primary.B, styles[0].Style.ForegroundColor.OpaqueColor.RgbColor.Blue)
	assert.Equal(t, theme.Accent.G, styles[1].Style.ForegroundColor.OpaqueColor.RgbColor.Green)
	assert.Equal(t, float64(18), styles[1].Style.FontSize.Magnitude)
}

func TestCompile_ImagePlacement(t *testing.T) {
	alone, err := Compile(slide(model.SlideContent{Kind: model.SlideKindImage, ImageURL: "https://images.unsplash.com/a.jpg"}), 0, nil)
	require.NoError(t, err)
	img := alone[len(alone)-1].CreateImage
	require.NotNil(t, img)
	assert.Equal(t, "slide_0_image", img.ObjectId)
	assert.Equal(t, fullImageBox.x, img.ElementProperties.Transform.TranslateX)

	beside, err := Compile(slide(model.SlideContent{Body: "text", ImageURL: "https://images.unsplash.com/a.jpg"}), 0, nil)
	require.NoError(t, err)
	img = beside[len(beside)-1].CreateImage
	require.NotNil(t, img)
	assert.Equal(t, sideImageBox.x, img.ElementProperties.Transform.TranslateX)
	assert.Equal(t, "EMU", img.ElementProperties.Transform.Unit)
}

func TestCompile_TextBlocksStayOnPage(t *testing.T) {
	full := model.SlideContent{
		Kind:      model.SlideKindContent,
		Title:     "Water cycle",
		Subtitle:  "Evaporation to rain",
		Body:      "Water moves between the ocean, the air and the land.",
		Bullets:   []string{"Evaporation", "Condensation", "Precipitation"},
		Questions: []string{"Where does rain come from?", "Why do puddles dry up?"},
	}
	reqs, err := Compile(slide(full), 0, nil)
	require.NoError(t, err)

	bottom := pageHeight - margin
	var prevEnd float64
	shapes := 0
	for _, r := range reqs {
		if r.CreateShape == nil {
			continue
		}
		shapes++
		props := r.CreateShape.ElementProperties
		top := props.Transform.TranslateY
		end := top + props.Size.Height.Magnitude
		assert.LessOrEqual(t, end, bottom+1, "%s runs off the page", r.CreateShape.ObjectId)
		assert.GreaterOrEqual(t, top, prevEnd, "%s overlaps the block above", r.CreateShape.ObjectId)
		prevEnd = end
	}
	assert.Equal(t, 5, shapes)

	// A single block keeps its natural slot height.
	reqs, err = Compile(slide(model.SlideContent{Title: "T", Body: "b"}), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, inch(bodySlot), reqs[4].CreateShape.ElementProperties.Size.Height.Magnitude)
}

func TestCompile_NonHTTPSImageFails(t *testing.T) {
	for _, raw := range []string{"http://images.unsplash.com/a.jpg", "/relative/a.jpg", "https://"} {
		t.Run(raw, func(t *testing.T) {
			reqs, err := Compile(slide(model.SlideContent{Title: "T", ImageURL: raw}), 4, nil)
			assert.Nil(t, reqs)
			require.Error(t, err)

			var e *deckerr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, deckerr.KindImageInsertion, e.Kind)
			assert.Equal(t, 4, e.SlideIndex)
		})
	}
}

func TestCompile_TitleSlideUsesCoverLayout(t *testing.T) {
	reqs, err := Compile(slide(model.SlideContent{Kind: model.SlideKindTitle, Title: "Volcanoes", Subtitle: "Grade 5"}), 0, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 7)
	assert.Equal(t, coverTitleBox.y, reqs[1].CreateShape.ElementProperties.Transform.TranslateY)
	assert.Equal(t, float64(44), reqs[3].UpdateTextStyle.Style.FontSize.Magnitude)
}

func TestSlideIDs(t *testing.T) {
	assert.Equal(t, "slide_12", SlideID(12))
	assert.True(t, IsCompiledSlideID("slide_12"))
	assert.False(t, IsCompiledSlideID("p"))

	del := DeleteObject("p")
	assert.Equal(t, 1, populated(del))
	assert.Equal(t, "p", del.DeleteObject.ObjectId)
}

func TestThemeByName(t *testing.T) {
	for _, name := range ThemeNames() {
		theme, ok := ThemeByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, theme.Name)
	}
	_, ok := ThemeByName("neon")
	assert.False(t, ok)

	theme, ok := ThemeByName(" Ocean ")
	require.True(t, ok)
	assert.Equal(t, "ocean", theme.Name)
	assert.Equal(t, DefaultThemeName, DefaultTheme().Name)
}
