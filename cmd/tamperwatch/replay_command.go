package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/frames"
	"tamperwatch/internal/replay"
	"tamperwatch/internal/tamper"
)

type replayFlags struct {
	camera    string
	reference string
	framesDir string
	video     string
	threshold float64
	stride    int
	quiet     bool
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var flags replayFlags

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run recorded frames against a key frame to tune thresholds",
		Long: "Replay a directory of snapshots (or a video, in builds with the gocv tag)\n" +
			"against a camera's key frame. Nothing is moved, archived, or notified.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if (flags.framesDir == "") == (flags.video == "") {
				return errors.New("exactly one of --frames or --video is required")
			}
			keyPath, cameraID, err := resolveKeyImage(cfg, flags.camera, flags.reference)
			if err != nil {
				return err
			}

			logger := ctx.cliLogger(cfg)
			embedder, err := embedding.New(cfg, logger)
			if err != nil {
				return err
			}
			stride := cfg.Detector.SampleStride
			if cmd.Flags().Changed("stride") {
				stride = flags.stride
			}
			det := tamper.NewDetector(embedder, tamper.WithSampleStride(stride))
			threshold := camera.NewThresholds(cfg.DefaultThreshold(), cfg.CameraThresholds()).For(cameraID)
			if cmd.Flags().Changed("threshold") {
				threshold = flags.threshold
			}
			if err := det.SetThreshold(threshold); err != nil {
				return err
			}

			key, err := frames.Decode(keyPath)
			if err != nil {
				return fmt.Errorf("key frame: %w", err)
			}
			if err := det.SetReference(cmd.Context(), key); err != nil {
				return err
			}

			var source frames.Source
			if flags.framesDir != "" {
				source, err = frames.OpenDir(flags.framesDir, cfg.ImageFormats)
			} else {
				source, err = frames.OpenVideo(flags.video)
			}
			if err != nil {
				return err
			}
			defer source.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var rows [][]string
			summary, err := replay.Run(cmd.Context(), det, source, logger, func(r replay.Result) {
				if flags.quiet {
					return
				}
				detail := ""
				if r.Err != nil {
					detail = r.Err.Error()
				}
				rows = append(rows, []string{
					strconv.Itoa(r.Index),
					r.Label,
					verdictLabel(r.Decision.Tampered, r.Decision.Inferred, detail, colorize),
					formatDistance(r.Decision.Distance, r.Decision.Inferred),
					dashIfEmpty(detail),
				})
			})
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(tableSpec{
					Title:   fmt.Sprintf("Replay vs %s (threshold %s, stride %d)", keyPath, formatThreshold(threshold), max(stride, 1)),
					Headers: []string{"#", "Frame", "Verdict", "Distance", "Detail"},
					Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
					Rows:    rows,
				}))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d frames, %d embedded, %d tampered, %d skipped, max distance %s\n",
				summary.Frames, summary.Inferred, summary.Tampered, summary.Skipped,
				strconv.FormatFloat(summary.MaxDistance, 'f', 4, 64))
			if summary.FirstTampered != "" {
				fmt.Fprintf(out, "first tampered frame: %s\n", summary.FirstTampered)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.camera, "camera", "", "Camera whose reference folder supplies the key frame")
	cmd.Flags().StringVar(&flags.reference, "reference", "", "Key frame image (or folder; newest image wins)")
	cmd.Flags().StringVar(&flags.framesDir, "frames", "", "Directory of frames, replayed in name order")
	cmd.Flags().StringVar(&flags.video, "video", "", "Video file (requires a gocv build)")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", tamper.DefaultThreshold, "Override the camera's threshold")
	cmd.Flags().IntVar(&flags.stride, "stride", 1, "Override detector.sample_stride")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Only print the summary")
	return cmd
}

// resolveKeyImage returns the key frame path and the camera id used for
// threshold lookup.
func resolveKeyImage(cfg *config.Config, cameraName, reference string) (string, string, error) {
	cameraName = strings.TrimSpace(cameraName)
	reference = strings.TrimSpace(reference)
	picker := camera.NewPicker(cfg.ImageFormats)

	if reference != "" {
		info, err := os.Stat(reference)
		if err != nil {
			return "", "", fmt.Errorf("reference: %w", err)
		}
		if !info.IsDir() {
			return reference, cameraName, nil
		}
		path, err := picker.Newest(reference)
		if err != nil {
			return "", "", fmt.Errorf("reference: %w", err)
		}
		if cameraName == "" {
			cameraName = camera.ID(reference)
		}
		return path, cameraName, nil
	}

	if cameraName == "" {
		return "", "", errors.New("one of --camera or --reference is required")
	}
	dir, err := camera.ResolveReferenceDir(cameraName, cfg.ReferenceDirs)
	if err != nil {
		return "", "", fmt.Errorf("camera %s: %w", cameraName, err)
	}
	path, err := picker.Newest(dir)
	if err != nil {
		return "", "", fmt.Errorf("camera %s: %w", cameraName, err)
	}
	return path, camera.ID(cameraName), nil
}
