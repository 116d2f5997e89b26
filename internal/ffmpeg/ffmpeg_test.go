package ffmpeg

import (
	"strings"
	"testing"
	"time"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080},
			{"codec_type": "audio"}
		],
		"format": {"duration": "3.200000"}
	}`)

	info, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Duration != 3200*time.Millisecond {
		t.Errorf("duration = %v", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("size = %dx%d", info.Width, info.Height)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Errorf("streams not detected: %+v", info)
	}
}

func TestParseProbeStreamDurationFallback(t *testing.T) {
	out := []byte(`{"streams": [{"codec_type": "audio", "duration": "1.5"}], "format": {"duration": "N/A"}}`)
	info, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Seconds() != 1.5 {
		t.Errorf("duration = %v", info.Seconds())
	}
	if info.HasVideo {
		t.Error("audio-only file reported video")
	}
}

func TestParseProbeGarbage(t *testing.T) {
	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestEscapePath(t *testing.T) {
	got := EscapePath(`C:\tmp\it's.ass`)
	want := `C\:\\tmp\\it'\''s.ass`
	if got != want {
		t.Errorf("EscapePath = %q, want %q", got, want)
	}
}

func TestTail(t *testing.T) {
	long := strings.Repeat("a", 10) + "END"
	if got := tail(long, 3); got != "...END" {
		t.Errorf("tail = %q", got)
	}
	if got := OutputPath([]string{"-i", "in", "out.mp4"}); got != "out.mp4" {
		t.Errorf("OutputPath = %q", got)
	}
	if Seconds(1.23456) != "1.235" {
		t.Errorf("Seconds = %q", Seconds(1.23456))
	}
}
