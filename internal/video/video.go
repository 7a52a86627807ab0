// Package video exports a played greeting as an encoded video file.
package video

import (
	"context"
	"fmt"
	"os/exec"
)

// Job describes one assembly of numbered frames into a video.
type Job struct {
	FramePattern string // printf pattern such as dir/frame_%05d.png
	FPS          int
	Duration     float64
	AudioPath    string
	Output       string
	VideoEncoder string
	Quality      int
}

// Encoder turns a frame sequence into a video file.
type Encoder interface {
	Assemble(ctx context.Context, job Job) error
}

// FFmpegEncoder assembles frames with the ffmpeg binary.
type FFmpegEncoder struct {
	Binary string // defaults to "ffmpeg"
}

// Assemble runs ffmpeg for job and returns its output on failure.
func (e *FFmpegEncoder) Assemble(ctx context.Context, job Job) error {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, e.buildFFmpegArgs(job)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg assemble error: %v, output: %s", err, string(out))
	}
	return nil
}

func (e *FFmpegEncoder) buildFFmpegArgs(job Job) []string {
	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", job.FPS),
		"-i", job.FramePattern,
	}
	if job.AudioPath != "" {
		args = append(args, "-i", job.AudioPath, "-map", "0:v", "-map", "1:a", "-c:a", "aac")
		if job.Duration > 0 {
			args = append(args, "-t", fmt.Sprintf("%f", job.Duration))
		}
	}

	encoder := job.VideoEncoder
	if encoder == "" {
		encoder = "libx264"
	}
	args = append(args, "-r", fmt.Sprintf("%d", job.FPS), "-pix_fmt", "yuv420p", "-c:v", encoder)
	args = append(args, qualityArgs(encoder, job.Quality)...)
	args = append(args, job.Output)
	return args
}

// qualityArgs maps quality to encoder flags. Zero keeps ffmpeg's defaults.
func qualityArgs(encoder string, quality int) []string {
	if quality <= 0 {
		return nil
	}
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox does not take -q:v everywhere; use a bitrate (75 -> 7.5 Mbit/s).
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}
