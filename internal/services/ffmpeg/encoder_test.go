package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"wavbatch/internal/audio"
	"wavbatch/internal/services"
)

func TestNewCLIOptions(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/ffmpeg"), WithBitrate("128k"))
	if cli.binary != "/opt/ffmpeg" || cli.bitrate != "128k" {
		t.Fatalf("options not applied: %+v", cli)
	}
	if def := NewCLI(WithBinary(""), WithBitrate("")); def.binary != "ffmpeg" || def.bitrate != "192k" {
		t.Fatalf("empty options should keep defaults: %+v", def)
	}
}

func TestArgsForWholeFileAndSpan(t *testing.T) {
	cli := NewCLI()
	whole := cli.args("in.wav", "out.mp3", audio.Span{})
	if findArg(whole, "-ss") != -1 || findArg(whole, "-t") != -1 {
		t.Fatalf("whole-file encode should not seek: %v", whole)
	}

	span := cli.args("in.wav", "out.mp3", audio.Span{Start: 20 * time.Second, Length: 5 * time.Second})
	ss := findArg(span, "-ss")
	in := findArg(span, "-i")
	dur := findArg(span, "-t")
	if ss == -1 || in == -1 || dur == -1 {
		t.Fatalf("missing span flags: %v", span)
	}
	if ss > in {
		t.Fatalf("expected input seeking before -i: %v", span)
	}
	if span[ss+1] != "20.000" || span[dur+1] != "5.000" {
		t.Fatalf("unexpected span values: %v", span)
	}
	if span[len(span)-1] != "out.mp3" {
		t.Fatalf("expected output path last: %v", span)
	}
}

func TestEncodeRequiresPaths(t *testing.T) {
	cli := NewCLI()
	if err := cli.Encode(context.Background(), "", "/tmp/out.mp3", audio.Span{}); err == nil {
		t.Fatal("expected error when input path is empty")
	}
	if err := cli.Encode(context.Background(), "/tmp/in.wav", "", audio.Span{}); err == nil {
		t.Fatal("expected error when output path is empty")
	}
}

func TestEncodeSuccessWritesOutput(t *testing.T) {
	setHelperCommand(t, "success")
	dst := filepath.Join(t.TempDir(), "converted", "a.mp3")

	if err := NewCLI().Encode(context.Background(), "a.wav", dst, audio.Span{}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestEncodeFailureIsExternalToolError(t *testing.T) {
	setHelperCommand(t, "failure")
	dst := filepath.Join(t.TempDir(), "a.mp3")

	err := NewCLI().Encode(context.Background(), "a.wav", dst, audio.Span{})
	if err == nil {
		t.Fatal("expected encode failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestEncodeWithoutOutputFails(t *testing.T) {
	setHelperCommand(t, "silent")
	err := NewCLI().Encode(context.Background(), "a.wav", filepath.Join(t.TempDir(), "a.mp3"), audio.Span{})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool when no output is produced, got %v", err)
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	output := args[len(args)-1]

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		if err := os.WriteFile(output, []byte("ID3"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(0)
	case "failure":
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
