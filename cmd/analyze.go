package cmd

import (
	"fmt"
	"log/slog"

	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/scan"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		provider string
		model    string
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Read a recipe from a photo",
		Long: `Extracts a recipe from a photo of a recipe card, a cookbook page or a
screenshot. The image may be a local file or an http(s) URL.

Without --provider the recipe API does the extraction. With --save the
result is saved as a new recipe with the photo as its cover.`,
		Example: `  larder analyze ./grandmas-card.jpg
  larder analyze ./card.png --provider ollama --model llava
  larder analyze https://example.com/page.jpg --provider openai --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			analyzer, err := a.analyzer(provider, model)
			if err != nil {
				return err
			}

			name, data, err := scan.LoadImage(cmd.Context(), a.httpClient(), src)
			if err != nil {
				return fmt.Errorf("failed to load image: %w", err)
			}
			slog.Info("Analyzing image", "image", name, "bytes", len(data))

			recipe, err := analyzer.Analyze(cmd.Context(), name, data)
			if err != nil {
				return userError(err)
			}

			sess := editor.NewSession(draft.New())
			st, err := sess.Apply(
				draft.MergeFields{Recipe: *recipe},
				draft.AttachImages{Refs: []draft.ImageRef{draft.ParseImageRef(src)}},
			)
			if err != nil {
				return userError(err)
			}
			if !save {
				printDraft(cmd.OutOrStdout(), st)
				return nil
			}

			res, err := sess.Save(cmd.Context(), a.reconciler(a.auth()))
			if err != nil {
				printWarning(cmd.ErrOrStderr(), "Nothing was saved.")
				return userError(err)
			}
			printRecipe(cmd.OutOrStdout(), res.Recipe)
			fmt.Fprintln(cmd.OutOrStdout())
			printSuccess(cmd.OutOrStdout(), "Saved recipe #%s", res.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider (ollama, openai, gemini); default uses the recipe API")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "Save the extracted recipe")

	return cmd
}
