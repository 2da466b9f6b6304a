package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F2A65A"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FB7BE"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E1E1E")).Background(lipgloss.Color("#D3E298")).Padding(0, 1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A3D977"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E06C75"))
)

// userError turns a domain error into the message a cook should see while
// keeping the original error for --verbose logs.
func userError(err error) error {
	if err == nil {
		return nil
	}
	msg := domain.UserMessage(err)
	if msg == err.Error() {
		return err
	}
	return fmt.Errorf("%s (%w)", msg, err)
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func renderTags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, tagStyle.Render(t))
	}
	return strings.Join(parts, " ")
}

func printRecipeList(w io.Writer, recipes []models.Recipe) {
	if len(recipes) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No recipes found."))
		return
	}
	for _, r := range recipes {
		line := fmt.Sprintf("%s  %s", mutedStyle.Render(fmt.Sprintf("#%-5s", r.ID)), titleStyle.Render(r.Title))
		if len(r.Tag) > 0 {
			line += "  " + renderTags(r.Tag)
		}
		fmt.Fprintln(w, line)
		if r.Highlight != "" {
			fmt.Fprintln(w, "       "+r.Highlight)
		}
	}
}

func printRecipe(w io.Writer, r models.Recipe) {
	header := titleStyle.Render(r.Title)
	if r.ID != "" {
		header += " " + mutedStyle.Render("#"+r.ID.String())
	}
	fmt.Fprintln(w, header)
	if len(r.Tag) > 0 {
		fmt.Fprintln(w, renderTags(r.Tag))
	}
	if r.Highlight != "" {
		fmt.Fprintln(w, r.Highlight)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Ingredients"))
	for _, ing := range r.Ingredients {
		fmt.Fprintf(w, "  • %s\n", ing)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Instructions"))
	for i, step := range r.Instructions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}

	if len(r.NutritionInfo) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Nutrition"))
		for _, name := range r.NutritionInfo.Names() {
			fmt.Fprintf(w, "  %s: %s\n", name, r.NutritionInfo[name])
		}
	}

	if images := r.Images(); len(images) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Images"))
		for i, img := range images {
			label := ""
			if i == 0 {
				label = mutedStyle.Render(" (cover)")
			}
			fmt.Fprintf(w, "  %s%s\n", img, label)
		}
	}
}

// printDraft shows a draft before it is saved. Local images are listed
// with their path.
func printDraft(w io.Writer, st draft.State) {
	d := st.Draft()
	r := models.Recipe{
		ID:            st.RecipeID,
		Title:         d.Title,
		Highlight:     d.Highlight,
		Tag:           d.Tag,
		Ingredients:   d.Ingredients,
		Instructions:  d.Instructions,
		NutritionInfo: d.NutritionInfo,
	}
	printRecipe(w, r)
	refs := st.Images.Refs()
	if len(refs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Images"))
	for i, ref := range refs {
		label := ""
		if i == 0 {
			label = " (cover)"
		}
		fmt.Fprintf(w, "  %s %s%s\n", mutedStyle.Render("["+ref.Kind.String()+"]"), ref.Value, mutedStyle.Render(label))
	}
}

// renderMarkdown pretty-prints a chef answer. Rendering failures fall back
// to the raw text.
func renderMarkdown(w io.Writer, md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		if out, rerr := renderer.Render(md); rerr == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	fmt.Fprintln(w, md)
}
