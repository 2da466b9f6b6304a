package cmd

import (
	"fmt"
	"strings"

	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/models"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "ask <id> <question>",
		Short: "Ask the AI chef about one of your recipes",
		Example: `  larder ask 42 "Can I make this without an oven?"
  larder ask 42 what wine goes with this --provider ollama`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.chef(provider, model)
			if err != nil {
				return err
			}
			r, err := a.findRecipe(cmd, models.ID(args[0]))
			if err != nil {
				return userError(err)
			}
			answer, err := c.Ask(cmd.Context(), strings.Join(args[1:], " "), *r)
			if err != nil {
				return userError(err)
			}
			renderMarkdown(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider (ollama, openai, gemini); default uses the recipe API")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (default from config)")
	return cmd
}

func newInspireCmd(a *app) *cobra.Command {
	var (
		provider string
		model    string
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "inspire <prompt>",
		Short: "Get recipe ideas from the AI chef",
		Example: `  larder inspire something cozy with lentils
  larder inspire "quick vegan lunch" --save`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.chef(provider, model)
			if err != nil {
				return err
			}
			recipes, err := c.Inspire(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			var saver editor.Saver
			if save {
				saver = a.reconciler(a.auth())
			}
			for i, r := range recipes {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printRecipe(out, r)
				if saver == nil {
					continue
				}
				sess := editor.NewSession(draft.New())
				if _, err := sess.Apply(recipeActions(r)...); err != nil {
					return userError(err)
				}
				res, err := sess.Save(cmd.Context(), saver)
				if err != nil {
					return userError(err)
				}
				printSuccess(out, "Saved recipe #%s", res.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider (ollama, openai, gemini); default uses the recipe API")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "Save every suggestion to your recipes")
	return cmd
}
