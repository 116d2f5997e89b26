// Package cli implements the faceless command: local renders, script planning
// and preset listing.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func Main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "faceless",
		Short:         "Render narrated scene lists into finished videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.AddCommand(newRenderCommand(), newScriptCommand(), newPresetsCommand())
	return root
}

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <scenes.yaml|scenes.json>",
		Short: "Render a scene file into an MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
	}
	f := cmd.Flags()
	f.String("settings", "", "Settings file (YAML or JSON) with style and settings blocks")
	f.String("style", "", "Style preset: "+presetList())
	f.String("resolution", "", "Resolution preset (hd, fhd, 4k, shorts) or WxH")
	f.String("out", "", "Output directory (default \"output\")")
	f.String("music", "", "Background music file or URL")
	f.Int("workers", 0, "Parallel scene renders (0 = sized from CPU and memory)")
	f.Bool("plain", false, "Print plain progress lines instead of the interactive view")
	f.Bool("report", false, "Write a JSON run report next to the video")
	return cmd
}

func newScriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Plan a scene file for a topic with a text provider",
		Args:  cobra.NoArgs,
		RunE:  runScript,
	}
	f := cmd.Flags()
	f.String("topic", "", "What the video is about (required)")
	f.String("provider", "", "Text provider: openai or gemini (default from TEXT_PROVIDER)")
	f.String("out", "scenes.yaml", "Where to write the scene file (- for stdout)")
	f.Int("seconds", 60, "Target video length in seconds")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List style and resolution presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), renderPresets())
			return nil
		},
	}
}
