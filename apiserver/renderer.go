package apiserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/linanwx/hypermath/logger"
)

const (
	videosDir = "videos"
	codeDir   = "manim_code"

	placeholderVideo = "dummy video content"

	defaultRenderTimeout = 2 * time.Minute
	defaultManimQuality  = "medium_quality"

	// Placeholders expanded in command renderer arguments.
	sceneArg = "{scene}"
	outArg   = "{out}"
)

// Renderer kinds accepted by NewRenderer.
const (
	RendererFFmpeg  = "ffmpeg"
	RendererManim   = "manim"
	RendererCommand = "command"
)

// VideoRenderer turns a stored Manim scene into a video file at outPath.
type VideoRenderer interface {
	Render(ctx context.Context, scenePath, outPath string) error
}

// RenderOptions selects and configures a renderer.
type RenderOptions struct {
	Kind    string   // ffmpeg (default), manim or command
	Command string   // executable; ffmpeg, python or required, by kind
	Args    []string // command arguments with {scene} and {out} placeholders
	Quality string   // manim quality preset, e.g. medium_quality
	Timeout time.Duration
}

// NewRenderer builds the renderer named by opts.Kind.
func NewRenderer(opts RenderOptions) (VideoRenderer, error) {
	var r VideoRenderer
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", RendererFFmpeg:
		r = NewCommandRenderer(opts.Command, opts.Args)
	case RendererCommand:
		if strings.TrimSpace(opts.Command) == "" {
			return nil, fmt.Errorf("apiserver: renderer %q needs a command", RendererCommand)
		}
		r = NewCommandRenderer(opts.Command, opts.Args)
	case RendererManim:
		r = NewManimRenderer(opts.Command, opts.Quality)
	default:
		return nil, fmt.Errorf("apiserver: unknown renderer %q", opts.Kind)
	}
	if opts.Timeout > 0 {
		switch v := r.(type) {
		case *CommandRenderer:
			v.timeout = opts.Timeout
		case *ManimRenderer:
			v.timeout = opts.Timeout
		}
	}
	return r, nil
}

// CommandRenderer runs an external command to produce the video. With no
// arguments, ffmpeg draws a titled test pattern and any other command gets
// the scene and output paths. A failing command leaves a placeholder file so
// the reply still carries a playable path.
type CommandRenderer struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCommandRenderer returns a renderer for command, or ffmpeg when empty.
func NewCommandRenderer(command string, args []string) *CommandRenderer {
	command = strings.TrimSpace(command)
	if command == "" {
		command = "ffmpeg"
	}
	if len(args) == 0 {
		if filepath.Base(command) == "ffmpeg" {
			args = ffmpegArgs
		} else {
			args = []string{sceneArg, outArg}
		}
	}
	return &CommandRenderer{command: command, args: args, timeout: defaultRenderTimeout}
}

var ffmpegArgs = []string{
	"-y", "-f", "lavfi", "-i", "testsrc=duration=10:size=640x480:rate=30",
	"-vf", "drawtext=text='Mathematical Visualization':fontcolor=white:fontsize=24:x=(w-text_w)/2:y=(h-text_h)/2",
	"-c:v", "libx264", outArg,
}

func expandArgs(args []string, scenePath, outPath string) []string {
	out := make([]string, len(args))
	r := strings.NewReplacer(sceneArg, scenePath, outArg, outPath)
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// Render runs the command, falling back to the placeholder file.
func (c *CommandRenderer) Render(ctx context.Context, scenePath, outPath string) error {
	start := time.Now()
	if err := run(ctx, c.timeout, "", c.command, expandArgs(c.args, scenePath, outPath)...); err != nil {
		return writePlaceholder(outPath, c.command, err)
	}
	logger.Info("created video", "path", outPath, "latencyMs", time.Since(start).Milliseconds())
	return nil
}

// ManimRenderer renders the scene with `python -m manim` in a scratch media
// dir and copies the produced mp4 to the output path.
type ManimRenderer struct {
	python  string
	quality string
	timeout time.Duration
}

// NewManimRenderer returns a renderer using python (default "python") and the
// manim quality preset (default medium_quality).
func NewManimRenderer(python, quality string) *ManimRenderer {
	python = strings.TrimSpace(python)
	if python == "" {
		python = "python"
	}
	quality = strings.TrimPrefix(strings.TrimSpace(quality), "--")
	if quality == "" {
		quality = defaultManimQuality
	}
	return &ManimRenderer{python: python, quality: quality, timeout: defaultRenderTimeout}
}

// Render falls back to the placeholder file on any failure.
func (m *ManimRenderer) Render(ctx context.Context, scenePath, outPath string) error {
	start := time.Now()
	if err := m.render(ctx, scenePath, outPath); err != nil {
		return writePlaceholder(outPath, m.python, err)
	}
	logger.Info("created video", "path", outPath, "renderer", RendererManim, "latencyMs", time.Since(start).Milliseconds())
	return nil
}

func (m *ManimRenderer) render(ctx context.Context, scenePath, outPath string) error {
	code, err := os.ReadFile(scenePath)
	if err != nil {
		return fmt.Errorf("read scene: %w", err)
	}
	class := SceneClass(string(code))
	if class == "" {
		return errors.New("no Scene subclass in code")
	}

	work, err := os.MkdirTemp("", "hypermath-manim-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	script := filepath.Join(work, "animation_script.py")
	if err := os.WriteFile(script, code, 0o644); err != nil {
		return err
	}
	media := filepath.Join(work, "media")
	if err := os.MkdirAll(media, 0o755); err != nil {
		return err
	}

	logger.Debug("running manim", "scene", class, "quality", m.quality)
	if err := run(ctx, m.timeout, work, m.python, "-m", "manim", script, class, "--"+m.quality, "--media_dir", media); err != nil {
		return err
	}

	video, err := findVideo(filepath.Join(media, videosDir))
	if err != nil {
		return err
	}
	return copyFile(video, outPath)
}

var sceneClassRe = regexp.MustCompile(`(?m)^class\s+([A-Za-z_]\w*)\s*\(([^)]*)\)\s*:`)

// SceneClass returns the first class whose bases name a Scene type.
func SceneClass(code string) string {
	for _, m := range sceneClassRe.FindAllStringSubmatch(code, -1) {
		if strings.Contains(m[2], "Scene") {
			return m[1]
		}
	}
	return ""
}

// findVideo returns the first finished mp4 under dir.
func findVideo(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "partial_movie_files" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".mp4") {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("find rendered video: %w", err)
	}
	if found == "" {
		return "", errors.New("no mp4 produced")
	}
	return found, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := truncate(stderr.String(), 512); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func writePlaceholder(outPath, command string, cause error) error {
	logger.Error("error creating video", "command", command, "err", cause)
	if err := os.WriteFile(outPath, []byte(placeholderVideo), 0o644); err != nil {
		return fmt.Errorf("write placeholder video: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
