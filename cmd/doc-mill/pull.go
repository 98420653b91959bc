package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-mill/internal/artifacts"
	"github.com/pdiddy/doc-mill/internal/container"
	"github.com/pdiddy/doc-mill/pkg/types"
)

const artifactClientTimeout = 5 * time.Minute

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the engine image and model artifacts",
	Long: `Pull prepares the conversion engine before a batch. For container engines
it pulls the configured image through docker or podman; when a model
manifest URL is configured it downloads the listed model artifacts into the
artifacts directory, skipping files that are already present.`,
	RunE: runPull,
}

func init() {
	def := types.DefaultConfig()
	pullCmd.Flags().String("engine", string(def.Engine.Kind), "engine: auto, docker, podman, binary, or service")
	pullCmd.Flags().String("engine-image", def.Engine.Image, "container image to pull")
	pullCmd.Flags().String("artifacts-path", "", "destination directory for model artifacts")
	pullCmd.Flags().String("manifest-url", "", "YAML manifest listing the model files to fetch")
	pullCmd.Flags().Duration("download-delay", def.Artifacts.DownloadDelay, "pause between artifact downloads")
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return exitWithCode(2, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pulled := false

	switch cfg.Engine.Kind {
	case types.EngineDocker, types.EnginePodman:
		rt, err := container.NewRuntime(string(cfg.Engine.Kind))
		if err != nil {
			return exitWithCode(2, err)
		}
		if err := pullImage(ctx, rt, cfg.Engine.Image); err != nil {
			return exitWithCode(2, err)
		}
		pulled = true
	case types.EngineAuto:
		rt, err := container.DetectRuntime()
		if err != nil {
			fmt.Println("No container runtime available; skipping image pull.")
		} else {
			if err := pullImage(ctx, rt, cfg.Engine.Image); err != nil {
				return exitWithCode(2, err)
			}
			pulled = true
		}
	}

	if cfg.Artifacts.ManifestURL != "" {
		dest := cfg.Conversion.ArtifactsPath
		if dest == "" {
			return exitWithCode(2, fmt.Errorf("artifacts path required to fetch models (set --artifacts-path)"))
		}
		client := &http.Client{Timeout: artifactClientTimeout}
		result, err := artifacts.Fetch(ctx, client, cfg.Artifacts.ManifestURL, dest, cfg.Artifacts.DownloadDelay, os.Stdout)
		if err != nil {
			return exitWithCode(2, err)
		}
		if result.HasFailures() {
			return exitWithCode(1, fmt.Errorf("%d artifact(s) failed to download", result.Failed))
		}
		pulled = true
	}

	if !pulled {
		fmt.Println("Nothing to pull: no container engine selected and no manifest URL configured.")
	}
	return nil
}

func pullImage(ctx context.Context, rt container.Runtime, image string) error {
	fmt.Printf("Pulling %s with %s...\n", image, rt.Name())
	return rt.Pull(ctx, image, os.Stdout)
}
