package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/larder-app/larder/internal/config"
	"github.com/larder-app/larder/internal/logging"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	a := &app{}
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "larder",
		Short: "Recipe drafts, images and an AI chef from the command line",
		Long: `Larder manages your recipes against the recipe API.

Create and edit recipe drafts with ordered ingredients, steps and images,
fill drafts from a photo of a recipe card, ask the AI chef about a recipe,
and export your collection. "larder serve" runs the same draft editor as
an HTTP service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if configPath == "" {
				configPath = config.DefaultPath()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			a.flush = logging.Setup(logging.Options{
				Verbose:  verbose,
				FilePath: cfg.LogFile,
				Console:  cmd.ErrOrStderr(),
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.flush != nil {
				a.flush()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/larder/config.yaml)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	cmd.PersistentFlags().StringVar(&a.uploadsDir, "uploads", "uploads", "Directory for images when Supabase storage is not configured")
	cmd.PersistentFlags().StringVar(&a.publicURL, "public-url", defaultPublicURL, "Base URL local images are served from by larder serve")

	// Add subcommands
	cmd.AddCommand(newAuthCmd(a))
	cmd.AddCommand(newRecipesCmd(a))
	cmd.AddCommand(newCreateCmd(a))
	cmd.AddCommand(newEditCmd(a))
	cmd.AddCommand(newAnalyzeCmd(a))
	cmd.AddCommand(newAskCmd(a))
	cmd.AddCommand(newInspireCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}
