package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/editor"
	"github.com/larder-app/larder/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// draftFlags are the edits create and edit accept. Removals run first,
// then moves, then additions. Positions are 1-based as printed by
// "larder recipes show".
type draftFlags struct {
	file      string
	title     string
	highlight string
	tags      []string

	ingredients []string
	steps       []string
	images      []string
	nutrition   []string

	removeIngredients []int
	removeSteps       []int
	removeImages      []int
	removeNutrients   []string
	renameNutrients   []string

	moveIngredients []string
	moveSteps       []string
	moveImages      []string
	cover           int

	dryRun bool
}

func (f *draftFlags) register(fs *pflag.FlagSet, editing bool) {
	fs.StringVarP(&f.file, "file", "f", "", "YAML recipe file to start from")
	fs.StringVar(&f.title, "title", "", "Recipe title")
	fs.StringVar(&f.highlight, "highlight", "", "One-line description")
	fs.StringSliceVar(&f.tags, "tag", nil, "Tags (comma separated or repeated)")
	fs.StringArrayVarP(&f.ingredients, "ingredient", "i", nil, "Add an ingredient (repeatable)")
	fs.StringArrayVarP(&f.steps, "step", "s", nil, "Add an instruction step (repeatable)")
	fs.StringArrayVar(&f.images, "image", nil, "Add an image file or URL (repeatable, first is the cover)")
	fs.StringArrayVar(&f.nutrition, "nutrition", nil, "Set a nutrient as name=amount (repeatable)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print the draft without saving")
	if !editing {
		return
	}
	fs.IntSliceVar(&f.removeIngredients, "remove-ingredient", nil, "Remove the ingredient at this position")
	fs.IntSliceVar(&f.removeSteps, "remove-step", nil, "Remove the step at this position")
	fs.IntSliceVar(&f.removeImages, "remove-image", nil, "Remove the image at this position")
	fs.StringSliceVar(&f.removeNutrients, "remove-nutrient", nil, "Remove a nutrient by name")
	fs.StringArrayVar(&f.renameNutrients, "rename-nutrient", nil, "Rename a nutrient as old=new (repeatable)")
	fs.StringArrayVar(&f.moveIngredients, "move-ingredient", nil, "Move an ingredient as from:to (repeatable)")
	fs.StringArrayVar(&f.moveSteps, "move-step", nil, "Move a step as from:to (repeatable)")
	fs.StringArrayVar(&f.moveImages, "move-image", nil, "Move an image as from:to (repeatable)")
	fs.IntVar(&f.cover, "cover", 0, "Make the image at this position the cover")
}

// actions translates the flags into editor actions. changed reports
// whether a flag was given so an explicit empty value still applies.
func (f *draftFlags) actions(changed func(string) bool) ([]draft.Action, error) {
	var out []draft.Action

	if f.file != "" {
		r, err := readRecipeFile(f.file)
		if err != nil {
			return nil, err
		}
		out = append(out, recipeActions(r)...)
	}

	if changed("title") {
		out = append(out, draft.SetTitle{Title: f.title})
	}
	if changed("highlight") {
		out = append(out, draft.SetHighlight{Highlight: f.highlight})
	}
	if changed("tag") {
		out = append(out, draft.SetTags{Tags: f.tags})
	}

	// Highest position first so earlier removals don't shift later ones.
	for _, list := range []struct {
		name      draft.ListName
		positions []int
	}{
		{draft.ListIngredients, f.removeIngredients},
		{draft.ListSteps, f.removeSteps},
	} {
		for _, pos := range descending(list.positions) {
			out = append(out, draft.EditChips{List: list.name, Op: draft.OpRemove, Index: pos - 1})
		}
	}
	for _, pos := range descending(f.removeImages) {
		out = append(out, draft.RemoveImage{Index: pos - 1})
	}
	for _, name := range f.removeNutrients {
		out = append(out, draft.RemoveNutrient{Name: name})
	}
	for _, kv := range f.renameNutrients {
		from, to, err := splitPair(kv, "=")
		if err != nil {
			return nil, fmt.Errorf("invalid --rename-nutrient %q: %w", kv, err)
		}
		out = append(out, draft.RenameNutrient{From: from, To: to})
	}

	for _, list := range []struct {
		name  draft.ListName
		moves []string
	}{
		{draft.ListIngredients, f.moveIngredients},
		{draft.ListSteps, f.moveSteps},
	} {
		for _, m := range list.moves {
			from, to, err := parseMove(m)
			if err != nil {
				return nil, err
			}
			out = append(out, draft.EditChips{List: list.name, Op: draft.OpMove, Index: from, To: to})
		}
	}
	for _, m := range f.moveImages {
		from, to, err := parseMove(m)
		if err != nil {
			return nil, err
		}
		out = append(out, draft.MoveImage{From: from, To: to})
	}
	if f.cover > 0 {
		out = append(out, draft.MoveImage{From: f.cover - 1, To: 0})
	}

	for _, ing := range f.ingredients {
		out = append(out, draft.EditChips{List: draft.ListIngredients, Op: draft.OpAdd, Label: ing})
	}
	for _, step := range f.steps {
		out = append(out, draft.EditChips{List: draft.ListSteps, Op: draft.OpAdd, Label: step})
	}
	for _, kv := range f.nutrition {
		name, amount, err := splitPair(kv, "=")
		if err != nil {
			return nil, fmt.Errorf("invalid --nutrition %q: %w", kv, err)
		}
		out = append(out, draft.SetNutrient{Name: name, Amount: amount})
	}
	if len(f.images) > 0 {
		refs := make([]draft.ImageRef, 0, len(f.images))
		for _, img := range f.images {
			refs = append(refs, draft.ParseImageRef(img))
		}
		out = append(out, draft.AttachImages{Refs: refs})
	}

	return out, nil
}

// recipeActions fills a draft from a recipe read from disk. Its images may
// be local paths as well as URLs.
func recipeActions(r models.Recipe) []draft.Action {
	refs := make([]draft.ImageRef, 0, len(r.Images()))
	for _, img := range r.Images() {
		refs = append(refs, draft.ParseImageRef(img))
	}
	r.Image, r.SupportingImages = "", nil
	out := []draft.Action{draft.MergeFields{Recipe: r}}
	if len(refs) > 0 {
		out = append(out, draft.AttachImages{Refs: refs})
	}
	return out
}

func readRecipeFile(path string) (models.Recipe, error) {
	var r models.Recipe
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("failed to read recipe file: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse recipe file: %w", err)
	}
	return r, nil
}

func descending(positions []int) []int {
	out := slices.Clone(positions)
	slices.Sort(out)
	slices.Reverse(out)
	return slices.Compact(out)
}

func splitPair(s, sep string) (string, string, error) {
	k, v, ok := strings.Cut(s, sep)
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected name%svalue", sep)
	}
	return k, v, nil
}

// parseMove reads "from:to" in 1-based positions and returns 0-based ones.
func parseMove(s string) (int, int, error) {
	a, b, err := splitPair(s, ":")
	if err != nil {
		return 0, 0, fmt.Errorf("invalid move %q: %w", s, err)
	}
	from, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid move %q: %w", s, err)
	}
	to, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid move %q: %w", s, err)
	}
	return from - 1, to - 1, nil
}

func newCreateCmd(a *app) *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recipe",
		Long: `Builds a new recipe draft from flags and an optional YAML file, uploads
any local images and saves the recipe. The first image becomes the cover.`,
		Example: `  larder create --title Tacos --tag Dinner \
    -i "8 tortillas" -i "500g beef" \
    -s "Brown the beef" -s "Fill the tortillas" \
    --image ./tacos.jpg --nutrition calories=450

  larder create -f pancakes.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDraft(cmd, editor.NewSession(draft.New()), &flags)
		},
	}
	flags.register(cmd.Flags(), false)
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an existing recipe",
		Args:  cobra.ExactArgs(1),
		Example: `  larder edit 42 --title "Weeknight Tacos"
  larder edit 42 --move-step 3:1 --remove-ingredient 2
  larder edit 42 --image ./plated.jpg --cover 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.findRecipe(cmd, models.ID(args[0]))
			if err != nil {
				return userError(err)
			}
			return a.runDraft(cmd, editor.NewSession(draft.FromRecipe(*r)), &flags)
		},
	}
	flags.register(cmd.Flags(), true)
	return cmd
}

func (a *app) runDraft(cmd *cobra.Command, sess *editor.Session, flags *draftFlags) error {
	actions, err := flags.actions(cmd.Flags().Changed)
	if err != nil {
		return err
	}
	st, err := sess.Apply(actions...)
	if err != nil {
		return userError(err)
	}

	out := cmd.OutOrStdout()
	if flags.dryRun {
		printDraft(out, st)
		return nil
	}

	identity := a.auth()
	res, err := sess.Save(cmd.Context(), a.reconciler(identity))
	if err != nil {
		printWarning(cmd.ErrOrStderr(), "Nothing was saved.")
		return userError(err)
	}

	printRecipe(out, res.Recipe)
	fmt.Fprintln(out)
	switch res.Mode {
	case draft.ModeUpdate:
		printSuccess(out, "Updated recipe #%s", res.ID)
	default:
		printSuccess(out, "Saved recipe #%s", res.ID)
	}
	return nil
}
