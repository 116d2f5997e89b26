package cli

import (
	"fmt"
	"strings"

	"github.com/bobarin/facelessrender/internal/models"
)

func presetList() string {
	return strings.Join(models.PresetNames(models.StylePresets), ", ")
}

// renderPresets lists the built-in styles and resolutions.
func renderPresets() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Styles") + "\n")
	for _, name := range models.PresetNames(models.StylePresets) {
		s := models.StylePresets[name]
		fmt.Fprintf(&b, "  %-10s background %s  text %s  accent %s\n", name, s.BackgroundColor, s.TextColor, s.AccentColor)
	}
	b.WriteString("\n" + titleStyle.Render("Resolutions") + "\n")
	for _, name := range models.PresetNames(models.ResolutionPresets) {
		fmt.Fprintf(&b, "  %-10s %s\n", name, models.ResolutionPresets[name])
	}
	return b.String()
}
