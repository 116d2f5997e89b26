package render

import (
	"strings"
	"testing"

	"github.com/bobarin/facelessrender/internal/models"
)

func testCompositor(t *testing.T) *Compositor {
	return &Compositor{Font: testFont(t), Cache: newTestCache(t)}
}

func brandedStyle(t *testing.T) models.Style {
	return models.Style{
		Title:     "Five Facts About Coffee",
		Author:    "Jane Roe",
		Slogan:    "Stay curious",
		Logo:      pngBytes(t, 200, 100),
		Watermark: pngBytes(t, 100, 100),
	}.WithDefaults()
}

func names(set OverlaySet) []string {
	var out []string
	for _, l := range set.Layers {
		out = append(out, l.Name)
	}
	return out
}

func TestBuildZOrder(t *testing.T) {
	c := testCompositor(t)
	set, err := c.Build(models.Scene{SceneNumber: 1, Script: "Coffee was discovered in Ethiopia."}, brandedStyle(t), 8, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "logo,title,author,slogan,watermark,subtitle"
	if got := strings.Join(names(set), ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestBuildTitleOnlyOnFirstScene(t *testing.T) {
	c := testCompositor(t)
	set, err := c.Build(models.Scene{SceneNumber: 2, Script: "More"}, brandedStyle(t), 8, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set.Find("title"); ok {
		t.Error("title rendered on a later scene")
	}
}

func TestBuildTitleWindow(t *testing.T) {
	c := testCompositor(t)
	style := brandedStyle(t)

	long, _ := c.Build(models.Scene{Script: "x"}, style, 8, true)
	title, _ := long.Find("title")
	if title.End != 5 || title.FadeOut != 1 {
		t.Errorf("long scene title window = %.1f fade %.1f", title.End, title.FadeOut)
	}

	short, _ := c.Build(models.Scene{Script: "x"}, style, 0.8, true)
	title, _ = short.Find("title")
	if title.End != 0.8 || title.FadeOut != 0.8 {
		t.Errorf("short scene title window = %.1f fade %.1f", title.End, title.FadeOut)
	}
}

func TestBuildGeometry(t *testing.T) {
	c := testCompositor(t)
	style := brandedStyle(t)
	set, err := c.Build(models.Scene{Script: "Hello"}, style, 4, true)
	if err != nil {
		t.Fatal(err)
	}
	w, h, m := style.Resolution.Width, style.Resolution.Height, style.Margin

	logo, _ := set.Find("logo")
	if logo.Width != int(float64(w)*0.13) || logo.X != w-logo.Width-m || logo.Y != m || logo.Opacity != 0.7 {
		t.Errorf("logo = %+v", logo)
	}
	wm, _ := set.Find("watermark")
	if wm.Width != int(float64(w)*0.12) || wm.Y != h-wm.Height-m || wm.Opacity != 0.5 {
		t.Errorf("watermark = %+v", wm)
	}

	author, _ := set.Find("author")
	slogan, _ := set.Find("slogan")
	if author.FontSize != int(float64(style.FontSize)*0.6) {
		t.Errorf("author font size = %d", author.FontSize)
	}
	if author.Y+author.Height > slogan.Y {
		t.Errorf("author (y=%d h=%d) overlaps slogan (y=%d)", author.Y, author.Height, slogan.Y)
	}
	if slogan.Y+slogan.Height != h-m || slogan.X != m {
		t.Errorf("slogan not anchored bottom-left: %+v", slogan)
	}

	sub, _ := set.Find("subtitle")
	if sub.Y+sub.Height > author.Y {
		t.Errorf("bottom subtitle overlaps the author block")
	}
	for _, l := range sub.Lines {
		if len(l) == 0 {
			t.Error("empty subtitle line")
		}
	}
}

func TestBuildDropsUndecodableLogo(t *testing.T) {
	c := testCompositor(t)
	style := models.Style{Logo: []byte("not a png")}.WithDefaults()

	set, err := c.Build(models.Scene{Script: "Hello"}, style, 4, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(set.Dropped) != 1 || set.Dropped[0].Name != "logo" {
		t.Fatalf("dropped = %+v", set.Dropped)
	}
	if _, ok := set.Find("subtitle"); !ok {
		t.Error("subtitle missing after logo drop")
	}
}

func TestBuildDropsOversizedBranding(t *testing.T) {
	c := testCompositor(t)
	huge := oversizedPNG(1 << 29)
	style := models.Style{Logo: huge, Watermark: huge}.WithDefaults()

	set, err := c.Build(models.Scene{Script: "Hello"}, style, 4, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dropped := map[string]bool{}
	for _, d := range set.Dropped {
		dropped[d.Name] = true
	}
	if !dropped["logo"] || !dropped["watermark"] {
		t.Fatalf("dropped = %+v", set.Dropped)
	}
	if _, ok := set.Find("subtitle"); !ok {
		t.Error("subtitle missing after branding drop")
	}
}

func TestBuildSubtitlePresence(t *testing.T) {
	c := testCompositor(t)
	style := models.Style{}.WithDefaults()

	set, _ := c.Build(models.Scene{Script: "   "}, style, 4, false)
	if len(set.Layers) != 0 {
		t.Errorf("blank script produced layers %v", names(set))
	}

	set, _ = c.Build(models.Scene{Script: "Hi", SubtitlePosition: models.SubtitleCenter}, style, 4, false)
	sub, ok := set.Find("subtitle")
	if !ok || sub.Position != models.SubtitleCenter {
		t.Errorf("subtitle = %+v", sub)
	}
}

func TestHighlightWords(t *testing.T) {
	got := highlightWords([]models.Entity{
		{Text: "Ethiopia", Label: "GPE"},
		{Text: "1671", Label: "DATE"},
		{Text: "Kaldi", Label: "PERSON"},
		{Text: "ethiopia", Label: "GPE"},
		{Text: "Starbucks", Label: "org"},
		{Text: "Yemen", Label: "GPE"},
	})
	if strings.Join(got, ",") != "Ethiopia,Kaldi,Starbucks" {
		t.Errorf("highlights = %v", got)
	}
}
