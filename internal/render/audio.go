package render

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobarin/facelessrender/internal/ffmpeg"
	"github.com/bobarin/facelessrender/internal/models"
)

// MusicSegment is one music bed placed on the timeline.
type MusicSegment struct {
	Source string
	Start  float64
	End    float64
	Volume float64
	// Whole marks the single bed spanning the entire video; it gets fade in/out.
	Whole bool
}

type MusicPlan struct {
	Segments []MusicSegment
}

func (p MusicPlan) Empty() bool { return len(p.Segments) == 0 }

const (
	bedFadeIn  = 1.0
	bedFadeOut = 2.0
	// musicCeiling is the loudest a bed may play, relative to the narration.
	musicCeiling = 0.5
)

// PlanMusic places beds on the timeline. Without per-scene overrides the global
// music covers [0, Total]; otherwise each scene uses its override or the global
// music, and neighbouring scenes with the same source share one bed.
func PlanMusic(tl *Timeline, global *models.MusicSpec, perScene map[int]*models.MusicSpec, volume float64) MusicPlan {
	vol := func(spec *models.MusicSpec) float64 {
		if spec.Volume != nil && *spec.Volume >= 0 {
			return *spec.Volume
		}
		return volume
	}
	usable := func(spec *models.MusicSpec) bool {
		return spec != nil && strings.TrimSpace(spec.Source) != ""
	}

	overrides := false
	for _, n := range tl.SceneNumbers {
		if usable(perScene[n]) {
			overrides = true
			break
		}
	}

	if !overrides {
		if !usable(global) {
			return MusicPlan{}
		}
		return MusicPlan{Segments: []MusicSegment{{
			Source: global.Source,
			Start:  0,
			End:    tl.Total,
			Volume: vol(global),
			Whole:  true,
		}}}
	}

	var plan MusicPlan
	for i, n := range tl.SceneNumbers {
		spec := perScene[n]
		if !usable(spec) {
			spec = global
		}
		if !usable(spec) {
			continue
		}
		end := tl.Starts[i] + tl.Durations[i]
		if k := len(plan.Segments) - 1; k >= 0 && plan.Segments[k].Source == spec.Source &&
			plan.Segments[k].Volume == vol(spec) && plan.Segments[k].End >= tl.Starts[i] {
			plan.Segments[k].End = end
			continue
		}
		plan.Segments = append(plan.Segments, MusicSegment{
			Source: spec.Source,
			Start:  tl.Starts[i],
			End:    end,
			Volume: vol(spec),
		})
	}
	if len(plan.Segments) == 1 && plan.Segments[0].Start == 0 && plan.Segments[0].End >= tl.Total {
		plan.Segments[0].Whole = true
	}
	return plan
}

// MixResult is the mixed video, or the unmixed timeline when music could not be used.
type MixResult struct {
	Path    string
	Outcome Outcome
	Skipped []string
}

// Mixer lays music beds under the timeline's narration track.
type Mixer struct {
	Runner          ffmpeg.Runner
	Fetcher         Fetcher // optional, for http(s) music
	TempDir         string
	NarrationVolume float64
}

func (m *Mixer) Mix(ctx context.Context, tl *Timeline, plan MusicPlan) MixResult {
	if plan.Empty() {
		return MixResult{Path: tl.Path, Outcome: Ok()}
	}

	narration := m.NarrationVolume
	if narration <= 0 {
		narration = 1.0
	}
	limit := narration * musicCeiling

	var segs []MusicSegment
	var skipped []string
	capped := false
	resolved := map[string]string{}
	for _, s := range plan.Segments {
		path, ok := resolved[s.Source]
		if !ok {
			p, err := m.resolve(ctx, s.Source)
			if err != nil {
				log.Printf("[Mixer] Warning: skipping music %s: %v", s.Source, err)
				skipped = append(skipped, s.Source)
			}
			resolved[s.Source] = p
			path = p
		}
		if path == "" {
			continue
		}
		if s.Volume > limit {
			log.Printf("[Mixer] Warning: music volume %.2f for %s would cover the narration, capping at %.2f", s.Volume, s.Source, limit)
			s.Volume = limit
			capped = true
		}
		s.Source = path
		segs = append(segs, s)
	}

	if len(segs) == 0 {
		return MixResult{Path: tl.Path, Outcome: Fallback("no usable music"), Skipped: skipped}
	}

	if err := os.MkdirAll(m.TempDir, 0755); err != nil {
		return MixResult{Path: tl.Path, Outcome: Fallback("mix temp dir: %v", err), Skipped: skipped}
	}
	out := filepath.Join(m.TempDir, "mixed.mp4")

	log.Printf("[Mixer] Mixing %d music bed(s) under %.3fs of narration", len(segs), tl.Total)
	if err := m.Runner.Run(ctx, mixArgs(tl, segs, narration, out)); err != nil {
		if ctx.Err() != nil {
			return MixResult{Path: tl.Path, Outcome: Fallback("cancelled"), Skipped: skipped}
		}
		log.Printf("[Mixer] Warning: mix failed, keeping narration only: %v", err)
		return MixResult{Path: tl.Path, Outcome: Fallback("mix failed: %s", firstLine(err.Error())), Skipped: skipped}
	}

	outcome := Ok()
	switch {
	case len(skipped) > 0:
		outcome = Fallback("skipped music: %s", strings.Join(skipped, ", "))
	case capped:
		outcome = Fallback("music volume capped at %.2f", limit)
	}
	return MixResult{Path: out, Outcome: outcome, Skipped: skipped}
}

func (m *Mixer) resolve(ctx context.Context, source string) (string, error) {
	if isURL(source) {
		if m.Fetcher == nil {
			return "", fmt.Errorf("no fetcher configured")
		}
		return m.Fetcher.Fetch(ctx, source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return "", err
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("not a music file")
	}
	return source, nil
}

// mixArgs loops each bed, trims it to its span, applies gain and fades, delays it to
// its start and sums it with the narration. Video is copied.
func mixArgs(tl *Timeline, segs []MusicSegment, narration float64, out string) []string {
	args := []string{"-i", tl.Path}
	for _, s := range segs {
		args = append(args, "-stream_loop", "-1", "-i", s.Source)
	}

	graph := []string{fmt.Sprintf("[0:a]volume=%.2f[nar]", narration)}
	labels := "[nar]"
	for i, s := range segs {
		span := s.End - s.Start
		chain := []string{
			fmt.Sprintf("atrim=0:%s", ffmpeg.Seconds(span)),
			"asetpts=PTS-STARTPTS",
			"aresample=44100",
			fmt.Sprintf("volume=%.2f", s.Volume),
		}
		if s.Whole {
			in := math.Min(bedFadeIn, span/3)
			outFade := math.Min(bedFadeOut, span*2/3)
			chain = append(chain,
				fmt.Sprintf("afade=t=in:st=0:d=%s", ffmpeg.Seconds(in)),
				fmt.Sprintf("afade=t=out:st=%s:d=%s", ffmpeg.Seconds(span-outFade), ffmpeg.Seconds(outFade)),
			)
		}
		if ms := int64(math.Round(s.Start * 1000)); ms > 0 {
			chain = append(chain, fmt.Sprintf("adelay=%d:all=1", ms))
		}
		label := fmt.Sprintf("[m%d]", i)
		graph = append(graph, fmt.Sprintf("[%d:a]%s%s", i+1, strings.Join(chain, ","), label))
		labels += label
	}
	graph = append(graph, fmt.Sprintf("%samix=inputs=%d:normalize=0:duration=first[aout]", labels, len(segs)+1))

	return append(args,
		"-filter_complex", strings.Join(graph, ";"),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", ffmpeg.Seconds(tl.Total),
		out,
	)
}
