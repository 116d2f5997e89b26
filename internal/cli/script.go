package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bobarin/facelessrender/internal/app"
	"github.com/bobarin/facelessrender/internal/config"
	"github.com/bobarin/facelessrender/internal/models"
	"github.com/bobarin/facelessrender/internal/scenes"
)

func runScript(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	topic, _ := f.GetString("topic")
	provider, _ := f.GetString("provider")
	out, _ := f.GetString("out")
	seconds, _ := f.GetInt("seconds")

	cfg := config.LoadLocal()
	if provider == "" {
		provider = cfg.TextProvider
	}
	text, err := app.TextProvider(cfg, provider)
	if err != nil {
		return err
	}

	planner := &scenes.Planner{Text: text, TargetSeconds: seconds}
	sc, err := planner.Plan(cmd.Context(), topic, scenes.Options{})
	if err != nil {
		return err
	}

	data, err := marshalScenes(sc)
	if err != nil {
		return err
	}
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Wrote %d scenes to %s", len(sc), out)))
	return nil
}

// marshalScenes encodes scenes as a YAML list that LoadScenes reads back.
func marshalScenes(sc []models.Scene) ([]byte, error) {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scenes: %w", err)
	}
	return data, nil
}
