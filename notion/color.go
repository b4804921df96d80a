package notion

// Color is the closed set of values Notion accepts for annotations.color and option colors.
type Color string

const (
	ColorDefault Color = "default"
	ColorGray    Color = "gray"
	ColorBrown   Color = "brown"
	ColorOrange  Color = "orange"
	ColorYellow  Color = "yellow"
	ColorGreen   Color = "green"
	ColorBlue    Color = "blue"
	ColorPurple  Color = "purple"
	ColorPink    Color = "pink"
	ColorRed     Color = "red"

	ColorGrayBackground   Color = "gray_background"
	ColorBrownBackground  Color = "brown_background"
	ColorOrangeBackground Color = "orange_background"
	ColorYellowBackground Color = "yellow_background"
	ColorGreenBackground  Color = "green_background"
	ColorBlueBackground   Color = "blue_background"
	ColorPurpleBackground Color = "purple_background"
	ColorPinkBackground   Color = "pink_background"
	ColorRedBackground    Color = "red_background"
)

var allColors = []Color{
	ColorDefault,
	ColorGray, ColorBrown, ColorOrange, ColorYellow, ColorGreen, ColorBlue, ColorPurple, ColorPink, ColorRed,
	ColorGrayBackground, ColorBrownBackground, ColorOrangeBackground, ColorYellowBackground, ColorGreenBackground,
	ColorBlueBackground, ColorPurpleBackground, ColorPinkBackground, ColorRedBackground,
}

// Colors returns every recognized color, default first.
func Colors() []Color {
	return append([]Color(nil), allColors...)
}

func (c Color) Valid() bool {
	for _, known := range allColors {
		if c == known {
			return true
		}
	}
	return false
}

// ParseColor accepts only the recognized set; unknown values are a schema mismatch.
func ParseColor(raw string) (Color, error) {
	c := Color(raw)
	if !c.Valid() {
		return "", mismatch("", "unknown color %q", raw)
	}
	return c, nil
}
