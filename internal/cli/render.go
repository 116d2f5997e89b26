package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bobarin/facelessrender/internal/app"
	"github.com/bobarin/facelessrender/internal/config"
	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/pipeline"
)

// renderFlags are the command line overrides of a render.
type renderFlags struct {
	style      string
	resolution string
	out        string
	music      string
	workers    int
	report     bool
}

func readRenderFlags(cmd *cobra.Command) renderFlags {
	f := cmd.Flags()
	var rf renderFlags
	rf.style, _ = f.GetString("style")
	rf.resolution, _ = f.GetString("resolution")
	rf.out, _ = f.GetString("out")
	rf.music, _ = f.GetString("music")
	rf.workers, _ = f.GetInt("workers")
	rf.report, _ = f.GetBool("report")
	return rf
}

// resolveRun merges the style and settings of a render. Later sources win:
// the scene file's own blocks, then a settings file, then flags, then
// environment defaults for anything still unset.
func resolveRun(sf *config.SceneFile, rf *config.RenderFile, flags renderFlags, cfg *config.Config) (models.Style, models.Settings, error) {
	var style models.Style
	var settings models.Settings
	if sf.Style != nil {
		style = *sf.Style
	}
	if sf.Settings != nil {
		settings = *sf.Settings
	}
	if rf != nil {
		style, settings = rf.Style, rf.Settings
	}

	if flags.style != "" {
		p, ok := models.StylePreset(flags.style)
		if !ok {
			return style, settings, fmt.Errorf("unknown style %q (available: %s)", flags.style, presetList())
		}
		style.Name = p.Name
		style.BackgroundColor, style.TextColor, style.AccentColor = p.BackgroundColor, p.TextColor, p.AccentColor
	}
	if flags.resolution != "" {
		res, err := models.ParseResolution(flags.resolution)
		if err != nil {
			return style, settings, err
		}
		style.Resolution = res
	}
	if flags.out != "" {
		settings.OutputDir = flags.out
	}
	if flags.music != "" {
		settings.Music = &models.MusicSpec{Source: flags.music}
	}
	if flags.workers > 0 {
		settings.Workers = flags.workers
	}
	if flags.report {
		settings.Report = true
	}

	if cfg != nil {
		if settings.OutputDir == "" {
			settings.OutputDir = cfg.OutputDir
		}
		if settings.Music == nil && cfg.BackgroundMusicPath != "" {
			settings.Music = &models.MusicSpec{Source: cfg.BackgroundMusicPath}
		}
		if settings.MusicVolume <= 0 {
			settings.MusicVolume = cfg.MusicVolume
		}
		if settings.Workers <= 0 {
			settings.Workers = cfg.RenderWorkers
		}
	}
	return style.WithPreset(), settings, nil
}

func runRender(cmd *cobra.Command, path string) error {
	cfg := config.LoadLocal()

	sf, err := config.LoadScenes(path)
	if err != nil {
		return err
	}
	var rf *config.RenderFile
	if settingsPath, _ := cmd.Flags().GetString("settings"); settingsPath != "" {
		if rf, err = config.LoadSettings(settingsPath); err != nil {
			return err
		}
	}
	style, settings, err := resolveRun(sf, rf, readRenderFlags(cmd), cfg)
	if err != nil {
		return err
	}

	cfg.ImageAspectRatio = aspectRatio(style.WithDefaults().Resolution)

	plain, _ := cmd.Flags().GetBool("plain")
	interactive := !plain && isTerminal(os.Stdout)
	if interactive {
		// Logs would tear the progress view; keep them in a file instead.
		logPath := filepath.Join(cfg.CacheDir, "faceless.log")
		if err := os.MkdirAll(cfg.CacheDir, 0755); err == nil {
			if f, err := tea.LogToFile(logPath, "faceless"); err == nil {
				defer f.Close()
			}
		}
	}

	a, err := app.Build(cfg)
	if err != nil {
		return err
	}
	orch, err := a.Orchestrator()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *pipeline.Result
	if interactive {
		res, err = renderInteractive(ctx, orch, filepath.Base(path), sf.Scenes, style, settings)
	} else {
		res, err = renderPlain(ctx, cmd.OutOrStdout(), orch, sf.Scenes, style, settings)
	}
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	return nil
}

// aspectRatio picks the closest ratio image providers accept for a frame size.
func aspectRatio(res models.Resolution) string {
	switch {
	case res.Height > res.Width:
		return "9:16"
	case res.Height == res.Width:
		return "1:1"
	}
	return "16:9"
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func renderPlain(ctx context.Context, w io.Writer, orch *pipeline.Orchestrator, sc []models.Scene, style models.Style, settings models.Settings) (*pipeline.Result, error) {
	fmt.Fprintf(w, "Rendering %d scenes...\n", len(sc))
	orch.OnProgress = plainProgress(w)
	return orch.Run(ctx, sc, style, settings)
}

// plainProgress prints one line per 10% step.
func plainProgress(w io.Writer) func(float64) {
	last := 0
	return func(p float64) {
		step := int(p * 10)
		if step <= last {
			return
		}
		last = step
		fmt.Fprintf(w, "[%3.0f%%] %s\n", p*100, stageLabel(p))
	}
}

func renderInteractive(ctx context.Context, orch *pipeline.Orchestrator, name string, sc []models.Scene, style models.Style, settings models.Settings) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newRenderModel(name, len(sc), cancel))
	orch.OnProgress = func(p float64) { program.Send(progressMsg(p)) }

	go func() {
		res, err := orch.Run(ctx, sc, style, settings)
		program.Send(doneMsg{result: res, err: err})
	}()

	final, err := program.Run()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("progress view failed: %w", err)
	}
	m := final.(renderModel)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func printSummary(w io.Writer, res *pipeline.Result) {
	var b strings.Builder
	b.WriteString(successStyle.Render("Video ready: "+res.OutputPath) + "\n")
	b.WriteString(fmt.Sprintf("Duration:   %s\n", (time.Duration(res.Duration * float64(time.Second))).Round(100*time.Millisecond)))
	b.WriteString(fmt.Sprintf("Style:      %s %s\n", res.Style, res.Resolution))
	if dropped := res.DroppedScenes(); len(dropped) > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Dropped:    scenes %v", dropped)) + "\n")
	}
	if n := res.Fallbacks(); n > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Fallbacks:  %d (see report for details)", n)) + "\n")
	}
	if res.ReportPath != "" {
		b.WriteString(infoStyle.Render("Report:     "+res.ReportPath) + "\n")
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	log.Printf("[CLI] Finished %s", res.OutputPath)
}
