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

// RenderedClip is one scene composited and encoded to a temp file.
type RenderedClip struct {
	Path          string
	SceneNumber   int
	Duration      float64
	AudioDuration float64
	HasAudio      bool
	// Audio is a fallback when a narration file was given but could not be used.
	Audio      Outcome
	Transition models.Transition
	Background Outcome
	Dropped    []DroppedOverlay
	// Degraded is set when the full composite failed and the subtitle-only graph was used.
	Degraded bool
}

// Renderer turns one scene into one clip with a single ffmpeg invocation.
type Renderer struct {
	Runner      ffmpeg.Runner
	Prober      ffmpeg.Prober
	Backgrounds *BackgroundResolver
	Overlays    *Compositor
	TempDir     string
	// AudioBuffer is added to the narration length when it exceeds the declared duration.
	AudioBuffer float64
	// DefaultTransition is recorded on clips whose scene declares none.
	DefaultTransition models.Transition
	// TransitionDuration is the configured cross-fade length; zero means per kind.
	TransitionDuration float64
}

// FrameCeil rounds seconds up to a whole number of frames.
func FrameCeil(seconds float64, fps int) float64 {
	if fps <= 0 {
		return seconds
	}
	frames := math.Ceil(seconds*float64(fps) - 1e-9)
	return frames / float64(fps)
}

// EffectiveDuration reconciles the declared scene length with its narration. The
// result is never shorter than either and always lands on a frame boundary. When
// narration exists, reserve seconds are kept free after it for the outgoing
// cross-fade, so the next scene's narration never plays over it.
func EffectiveDuration(declared, audio, buffer, reserve float64, fps int) float64 {
	d := declared
	if audio > 0 && audio+reserve > declared {
		d = math.Max(declared, audio+buffer+reserve)
	}
	return FrameCeil(d, fps)
}

// Render composites one scene. first puts the title card on it; last means no
// transition follows it.
func (r *Renderer) Render(ctx context.Context, scene models.Scene, style models.Style, audioPath string, first, last bool) (*RenderedClip, error) {
	transition := scene.EffectiveTransition(r.DefaultTransition)
	audioDur, audio := r.narration(ctx, scene.SceneNumber, audioPath)
	if audioDur == 0 {
		audioPath = ""
	}
	reserve := 0.0
	if audioDur > 0 && !last {
		kind := transition
		if !kind.Valid() {
			kind = models.TransitionFade
		}
		reserve = kind.FadeDuration(r.TransitionDuration)
	}
	duration := EffectiveDuration(scene.DeclaredDuration(), audioDur, r.AudioBuffer, reserve, style.FPS)
	if duration > scene.DeclaredDuration()+1e-9 {
		log.Printf("[Scene %d] Extending duration %.3fs -> %.3fs to fit narration", scene.SceneNumber, scene.DeclaredDuration(), duration)
	}

	workDir, err := os.MkdirTemp(r.TempDir, fmt.Sprintf("scene-%03d-*", scene.SceneNumber))
	if err != nil {
		return nil, fmt.Errorf("scene %d: failed to create work dir: %w", scene.SceneNumber, err)
	}

	bg := r.Backgrounds.Resolve(ctx, scene.Background, style.Resolution, duration)
	if style.Animate && bg.Layer.Kind == LayerImage {
		bg.Layer.Motion = MotionForScene(scene.SceneNumber)
	}

	overlays, err := r.Overlays.Build(scene, style, duration, first)
	if err != nil {
		return nil, fmt.Errorf("scene %d: %w", scene.SceneNumber, err)
	}

	clip := &RenderedClip{
		Path:          filepath.Join(workDir, "clip.mp4"),
		SceneNumber:   scene.SceneNumber,
		Duration:      duration,
		AudioDuration: audioDur,
		HasAudio:      audioPath != "",
		Audio:         audio,
		Transition:    transition,
		Background:    bg.Outcome,
		Dropped:       overlays.Dropped,
	}

	full, err := r.prepare(workDir, "full", bg.Layer, overlays.Layers, style, duration, audioPath, clip.Path)
	if err == nil {
		err = r.Runner.Run(ctx, full)
	}
	if err == nil {
		return clip, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Printf("[Scene %d] Warning: composite failed, retrying with plain background: %v", scene.SceneNumber, err)

	// degraded graph: solid background and the subtitle only
	plain := Layer{
		Kind:     LayerColor,
		Color:    r.Backgrounds.fill(),
		Width:    style.Resolution.Width,
		Height:   style.Resolution.Height,
		Duration: duration,
	}
	var subOnly []Overlay
	if sub, ok := overlays.Find("subtitle"); ok {
		subOnly = append(subOnly, sub)
	}
	degraded, perr := r.prepare(workDir, "degraded", plain, subOnly, style, duration, audioPath, clip.Path)
	if perr != nil {
		return nil, fmt.Errorf("scene %d: %w", scene.SceneNumber, perr)
	}
	if derr := r.Runner.Run(ctx, degraded); derr != nil {
		return nil, fmt.Errorf("scene %d render failed: %w", scene.SceneNumber, derr)
	}

	clip.Degraded = true
	clip.Background = Fallback("composite failed: %v", firstLine(err.Error()))
	clip.Dropped = nil
	for _, l := range overlays.Layers {
		if l.Name != "subtitle" {
			clip.Dropped = append(clip.Dropped, DroppedOverlay{Name: l.Name, Reason: "degraded render"})
		}
	}
	return clip, nil
}

// narration returns the length of the scene's narration. A file that cannot be
// used yields 0 and a fallback so the scene renders silent.
func (r *Renderer) narration(ctx context.Context, sceneNumber int, path string) (float64, Outcome) {
	if path == "" {
		return 0, Ok()
	}
	var reason string
	info, err := os.Stat(path)
	switch {
	case err != nil:
		reason = fmt.Sprintf("narration unreadable: %v", err)
	case info.Size() == 0:
		reason = "narration file is empty"
	default:
		media, perr := r.Prober.Probe(ctx, path)
		switch {
		case perr != nil:
			reason = fmt.Sprintf("narration not decodable: %s", firstLine(perr.Error()))
		case !media.HasAudio || media.Seconds() <= 0:
			reason = "narration has no audio"
		default:
			return media.Seconds(), Ok()
		}
	}
	log.Printf("[Scene %d] Warning: rendering silent, %s", sceneNumber, reason)
	return 0, Fallback("%s", reason)
}

// graphLayer is an overlay with the files the filter graph reads for it.
type graphLayer struct {
	Overlay
	textFiles []string
	assPath   string
}

// prepare writes the text and subtitle files for a graph and returns its ffmpeg args.
func (r *Renderer) prepare(workDir, tag string, bg Layer, overlays []Overlay, style models.Style, duration float64, audioPath, out string) ([]string, error) {
	font := r.Overlays.Font
	layers := make([]graphLayer, 0, len(overlays))
	for i, o := range overlays {
		gl := graphLayer{Overlay: o}
		switch o.Kind {
		case OverlayText:
			for j, line := range o.Lines {
				p := filepath.Join(workDir, fmt.Sprintf("%s-%d-%s-%d.txt", tag, i, o.Name, j))
				if err := os.WriteFile(p, []byte(line), 0644); err != nil {
					return nil, fmt.Errorf("failed to write %s text: %w", o.Name, err)
				}
				gl.textFiles = append(gl.textFiles, p)
			}
		case OverlaySubtitle:
			gl.assPath = filepath.Join(workDir, tag+"-subtitle.ass")
			if err := writeASS(gl.assPath, o, font.Family, style.Resolution.Width, style.Resolution.Height, duration); err != nil {
				return nil, err
			}
		}
		layers = append(layers, gl)
	}

	return sceneArgs(sceneGraph{
		Background: bg,
		Layers:     layers,
		FontPath:   font.Path,
		FontsDir:   font.Dir,
		FPS:        style.FPS,
		Duration:   duration,
		AudioPath:  audioPath,
		Output:     out,
	}), nil
}

type sceneGraph struct {
	Background Layer
	Layers     []graphLayer
	FontPath   string
	FontsDir   string
	FPS        int
	Duration   float64
	AudioPath  string
	Output     string
}

// sceneArgs builds the single ffmpeg invocation for a scene: background input, image
// overlay inputs, one audio input, and a filter graph compositing bottom to top.
func sceneArgs(g sceneGraph) []string {
	dur := ffmpeg.Seconds(g.Duration)
	bg := g.Background
	var args []string

	switch {
	case bg.Kind == LayerImage && bg.Motion != MotionNone:
		// zoompan expands the single frame to the full clip
		args = append(args, "-i", bg.Path)
	case bg.Kind == LayerImage:
		args = append(args, "-loop", "1", "-framerate", fmt.Sprint(g.FPS), "-t", dur, "-i", bg.Path)
	default:
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s", ffmpegColor(bg.Color), bg.Width, bg.Height, g.FPS, dur))
	}

	input := 1
	imageInputs := map[int]int{}
	for i, l := range g.Layers {
		if l.Kind == OverlayImage {
			args = append(args, "-loop", "1", "-framerate", fmt.Sprint(g.FPS), "-t", dur, "-i", l.ImagePath)
			imageInputs[i] = input
			input++
		}
	}

	audioIn := input
	if g.AudioPath != "" {
		args = append(args, "-i", g.AudioPath)
	} else {
		args = append(args, "-f", "lavfi", "-t", dur, "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
	}

	var chain []string
	base := "[0:v]"
	if bg.Kind == LayerImage && bg.Motion != MotionNone {
		base += motionFilter(bg.Motion, bg.Width, bg.Height, g.FPS, g.Duration) + ","
	}
	chain = append(chain, fmt.Sprintf("%sscale=%d:%d,setsar=1,fps=%d,format=yuv420p[v0]", base, bg.Width, bg.Height, g.FPS))

	cur := "[v0]"
	step := 0
	next := func() string {
		step++
		return fmt.Sprintf("[v%d]", step)
	}

	for i, l := range g.Layers {
		switch l.Kind {
		case OverlayImage:
			in := imageInputs[i]
			ov := fmt.Sprintf("[ov%d]", in)
			chain = append(chain, fmt.Sprintf("[%d:v]format=rgba,colorchannelmixer=aa=%.2f%s", in, l.Opacity, ov))
			out := next()
			chain = append(chain, fmt.Sprintf("%s%soverlay=x=%d:y=%d%s%s", cur, ov, l.X, l.Y, enableExpr(l.Overlay, g.Duration), out))
			cur = out

		case OverlayText:
			filters := make([]string, 0, len(l.textFiles))
			for j, tf := range l.textFiles {
				filters = append(filters, drawtext(l.Overlay, tf, g.FontPath, l.Y+j*l.LineHeight, g.Duration))
			}
			if len(filters) == 0 {
				continue
			}
			out := next()
			chain = append(chain, cur+strings.Join(filters, ",")+out)
			cur = out

		case OverlaySubtitle:
			out := next()
			chain = append(chain, fmt.Sprintf("%sass='%s':fontsdir='%s'%s", cur, ffmpeg.EscapePath(l.assPath), ffmpeg.EscapePath(g.FontsDir), out))
			cur = out
		}
	}
	chain = append(chain, cur+"null[vout]")
	chain = append(chain, fmt.Sprintf("[%d:a]aresample=44100,aformat=sample_fmts=fltp:channel_layouts=stereo,apad=whole_dur=%s[aout]", audioIn, dur))

	args = append(args,
		"-filter_complex", strings.Join(chain, ";"),
		"-map", "[vout]",
		"-map", "[aout]",
		"-t", dur,
		"-r", fmt.Sprint(g.FPS),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-ac", "2",
		g.Output,
	)
	return args
}

// drawtext renders one pre-wrapped line. Text comes from a file so no escaping of
// user content is needed.
func drawtext(o Overlay, textFile, fontPath string, y int, duration float64) string {
	x := fmt.Sprint(o.X)
	if o.Align == AlignCenter {
		x = "(w-text_w)/2"
	}
	opts := []string{
		fmt.Sprintf("textfile='%s'", ffmpeg.EscapePath(textFile)),
		"expansion=none",
		fmt.Sprintf("fontsize=%d", o.FontSize),
		fmt.Sprintf("fontcolor=%s", ffmpegColor(o.Color)),
		fmt.Sprintf("alpha='%s'", alphaExpr(o)),
		fmt.Sprintf("borderw=%d", outlineWidth(o.FontSize)),
		"bordercolor=black",
		fmt.Sprintf("x=%s", x),
		fmt.Sprintf("y=%d", y),
	}
	if fontPath != "" {
		opts = append([]string{fmt.Sprintf("fontfile='%s'", ffmpeg.EscapePath(fontPath))}, opts...)
	}
	s := "drawtext=" + strings.Join(opts, ":")
	return s + enableExpr(o, duration)
}

// alphaExpr is the layer opacity, ramping to zero over the last FadeOut seconds of
// its window.
func alphaExpr(o Overlay) string {
	op := fmt.Sprintf("%.2f", o.Opacity)
	if o.FadeOut <= 0 {
		return op
	}
	end := ffmpeg.Seconds(o.End)
	fade := ffmpeg.Seconds(o.FadeOut)
	return fmt.Sprintf("%s*if(lt(t,%s-%s),1,max(0,(%s-t)/%s))", op, end, fade, end, fade)
}

// enableExpr limits a layer to its window unless it spans the whole clip.
func enableExpr(o Overlay, duration float64) string {
	if o.Start <= 0 && o.End >= duration-1e-9 {
		return ""
	}
	return fmt.Sprintf(":enable='between(t,%s,%s)'", ffmpeg.Seconds(o.Start), ffmpeg.Seconds(o.End))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
