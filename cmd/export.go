package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/export"
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/recipeapi"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output    string
		format    string
		favorites bool
		search    string
		tag       string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Back up your recipes to YAML, JSON or Parquet",
		Long: `Writes your recipes to a file or stdout. With --output the format comes
from the file extension (.yaml, .json, .parquet).`,
		Example: `  larder export -o recipes.yaml
  larder export -o recipes.parquet --favorites
  larder export --format json | jq '.recipes[].title'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.auth().CurrentUser(cmd.Context())
			if err != nil {
				return userError(err)
			}
			api := a.api()
			q := recipeapi.Query{UserID: user.ID, Search: search, Tag: tag}
			var recipes []models.Recipe
			if favorites {
				recipes, err = api.ListFavorites(cmd.Context(), q)
			} else {
				recipes, err = api.ListRecipes(cmd.Context(), q)
			}
			if err != nil {
				return userError(err)
			}

			if output != "" {
				if err := export.WriteFile(output, recipes); err != nil {
					return err
				}
				printSuccess(cmd.ErrOrStderr(), "Exported %d recipes to %s", len(recipes), output)
				return nil
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return export.Write(cmd.OutOrStdout(), f, recipes)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", string(export.FormatYAML), "Format when writing to stdout (yaml, json, parquet)")
	cmd.Flags().BoolVarP(&favorites, "favorites", "f", false, "Only favorited recipes")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only titles containing this text")
	cmd.Flags().StringVarP(&tag, "tag", "t", recipeapi.TagAll, "Only recipes with this tag")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create recipes from a backup file",
		Long: `Reads a backup written by "larder export" (or a plain YAML/JSON list of
recipes) and saves every recipe as a new one. Local image paths are
uploaded like any other draft image.`,
		Example: `  larder import recipes.yaml
  larder import recipes.parquet --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipes, err := export.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				printRecipeList(out, recipes)
				return nil
			}

			saver := a.reconciler(a.auth())
			saved := 0
			for _, r := range recipes {
				sess := editor.NewSession(draft.New())
				if _, err := sess.Apply(recipeActions(r)...); err != nil {
					return userError(err)
				}
				res, err := sess.Save(cmd.Context(), saver)
				if errors.Is(err, domain.ErrUnauthenticated) {
					return userError(err)
				}
				if err != nil {
					printWarning(cmd.ErrOrStderr(), "Skipped %q: %s", r.Title, domain.UserMessage(err))
					slog.Debug("Import failed", "title", r.Title, "err", err)
					continue
				}
				saved++
				fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("#"+res.ID.String()), r.Title)
			}
			printSuccess(out, "Imported %d of %d recipes", saved, len(recipes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the recipes without saving")
	return cmd
}
