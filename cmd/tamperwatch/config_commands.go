package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit folders_to_watch and folder_with_valid_images before running tamperwatch.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file and show the camera layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", dashIfEmpty(ctx.configPath))
			fmt.Fprintln(out, renderTable(cameraLayout(cfg)))

			unused := unusedOverrides(cfg)
			for _, name := range unused {
				fmt.Fprintf(out, "warning: thresholds_per_camera.%s matches no watch folder\n", name)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// cameraLayout pairs each watch folder with its reference folder and
// effective threshold. Unmatched cameras are reported rather than rejected;
// the daemon skips them at runtime.
func cameraLayout(cfg *config.Config) tableSpec {
	thresholds := camera.NewThresholds(cfg.DefaultThreshold(), cfg.CameraThresholds())
	rows := make([][]string, 0, len(cfg.FoldersToWatch))
	for _, watch := range cfg.FoldersToWatch {
		id := camera.ID(watch)
		reference, err := camera.ResolveReferenceDir(watch, cfg.ReferenceDirs)
		if err != nil {
			reference = "(no matching reference folder)"
		}
		rows = append(rows, []string{id, watch, reference, formatThreshold(thresholds.For(id))})
	}
	return tableSpec{
		Title:   "Cameras",
		Headers: []string{"Camera", "Watch folder", "Reference folder", "Threshold"},
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		Rows:    rows,
	}
}

func unusedOverrides(cfg *config.Config) []string {
	known := make(map[string]struct{}, len(cfg.FoldersToWatch))
	for _, watch := range cfg.FoldersToWatch {
		known[camera.ID(watch)] = struct{}{}
	}
	var unused []string
	for name := range camera.NewThresholds(0, cfg.CameraThresholds()).PerCamera {
		if _, ok := known[name]; !ok {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	return unused
}
