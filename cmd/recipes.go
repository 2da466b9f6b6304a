package cmd

import (
	"github.com/larder-app/larder/internal/models"
	"github.com/larder-app/larder/internal/recipeapi"
	"github.com/spf13/cobra"
)

func newRecipesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recipes",
		Aliases: []string{"r"},
		Short:   "Browse and favorite your recipes",
	}
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newShowCmd(a))
	cmd.AddCommand(newFavoriteCmd(a, true))
	cmd.AddCommand(newFavoriteCmd(a, false))
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		search    string
		tag       string
		favorites bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your recipes",
		Example: `  larder recipes list
  larder recipes list --search taco --tag Dinner
  larder recipes list --favorites`,
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
			printRecipeList(cmd.OutOrStdout(), recipes)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Match titles containing this text")
	cmd.Flags().StringVarP(&tag, "tag", "t", recipeapi.TagAll, "Only recipes with this tag")
	cmd.Flags().BoolVarP(&favorites, "favorites", "f", false, "Only favorited recipes")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.findRecipe(cmd, models.ID(args[0]))
			if err != nil {
				return userError(err)
			}
			printRecipe(cmd.OutOrStdout(), *r)
			return nil
		},
	}
}

func newFavoriteCmd(a *app, favorite bool) *cobra.Command {
	use, short, done := "favorite <id>", "Add a recipe to your favorites", "Added #%s to favorites"
	if !favorite {
		use, short, done = "unfavorite <id>", "Remove a recipe from your favorites", "Removed #%s from favorites"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.auth().CurrentUser(cmd.Context())
			if err != nil {
				return userError(err)
			}
			id := models.ID(args[0])
			if err := a.api().SetFavorite(cmd.Context(), user.ID, id, favorite); err != nil {
				return userError(err)
			}
			printSuccess(cmd.OutOrStdout(), done, id)
			return nil
		},
	}
}

// findRecipe loads one of the signed-in user's recipes.
func (a *app) findRecipe(cmd *cobra.Command, id models.ID) (*models.Recipe, error) {
	user, err := a.auth().CurrentUser(cmd.Context())
	if err != nil {
		return nil, err
	}
	return a.api().FindRecipe(cmd.Context(), user.ID, id)
}
