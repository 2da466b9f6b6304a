package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/larder-app/larder/internal/domain"
	"github.com/larder-app/larder/internal/draft"
	"github.com/larder-app/larder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParseMove(t *testing.T) {
	from, to, err := parseMove("3:1")
	require.NoError(t, err)
	assert.Equal(t, 2, from)
	assert.Equal(t, 0, to)

	for _, bad := range []string{"3", "a:1", "1:b", ":2"} {
		_, _, err := parseMove(bad)
		assert.Error(t, err, bad)
	}
}

func TestDescending(t *testing.T) {
	assert.Equal(t, []int{5, 3, 1}, descending([]int{3, 1, 5, 3}))
	assert.Empty(t, descending(nil))
}

func TestDraftFlagsCreate(t *testing.T) {
	f := draftFlags{
		title:       "Tacos",
		tags:        []string{"Dinner"},
		ingredients: []string{"tortillas", "beef"},
		steps:       []string{"Brown the beef", "Fill"},
		images:      []string{"./tacos.jpg", "https://cdn.example.com/b.jpg"},
		nutrition:   []string{"calories=450", " protein = 30g "},
	}
	actions, err := f.actions(changedSet("title", "tag"))
	require.NoError(t, err)

	st, err := draft.ReduceAll(draft.New(), actions...)
	require.NoError(t, err)

	d := st.Draft()
	assert.Equal(t, "Tacos", d.Title)
	assert.Empty(t, d.Highlight)
	assert.Equal(t, []string{"Dinner"}, d.Tag)
	assert.Equal(t, []string{"tortillas", "beef"}, d.Ingredients)
	assert.Equal(t, []string{"Brown the beef", "Fill"}, d.Instructions)
	assert.Equal(t, models.NutritionInfo{"calories": "450", "protein": "30g"}, d.NutritionInfo)

	refs := st.Images.Refs()
	require.Len(t, refs, 2)
	assert.Equal(t, draft.LocalImage("./tacos.jpg"), refs[0])
	assert.Equal(t, draft.RemoteImage("https://cdn.example.com/b.jpg"), refs[1])
}

func TestDraftFlagsEdit(t *testing.T) {
	base := draft.FromRecipe(models.Recipe{
		ID:           "42",
		Title:        "Tacos",
		Ingredients:  []string{"a", "b", "c", "d"},
		Instructions: []string{"one", "two", "three"},
		NutritionInfo: models.NutritionInfo{
			"calories": "450",
			"sodium":   "1g",
		},
		Image:            "https://cdn.example.com/1.jpg",
		SupportingImages: []string{"https://cdn.example.com/2.jpg", "https://cdn.example.com/3.jpg"},
	})

	f := draftFlags{
		removeIngredients: []int{1, 3},
		moveSteps:         []string{"3:1"},
		removeNutrients:   []string{"sodium"},
		renameNutrients:   []string{"calories=kcal"},
		cover:             3,
		ingredients:       []string{"e"},
	}
	actions, err := f.actions(changedSet())
	require.NoError(t, err)

	st, err := draft.ReduceAll(base, actions...)
	require.NoError(t, err)

	d := st.Draft()
	assert.Equal(t, "Tacos", d.Title)
	assert.Equal(t, []string{"b", "d", "e"}, d.Ingredients)
	assert.Equal(t, []string{"three", "one", "two"}, d.Instructions)
	assert.Equal(t, models.NutritionInfo{"kcal": "450"}, d.NutritionInfo)
	require.NotNil(t, d.PrimaryImage)
	assert.Equal(t, "https://cdn.example.com/3.jpg", d.PrimaryImage.Value)
}

func TestDraftFlagsOutOfRangeLeavesDraft(t *testing.T) {
	base := draft.FromRecipe(models.Recipe{ID: "1", Title: "Soup", Instructions: []string{"boil"}})
	f := draftFlags{title: "Stew", removeSteps: []int{4}}

	actions, err := f.actions(changedSet("title"))
	require.NoError(t, err)

	st, err := draft.ReduceAll(base, actions...)
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	assert.Equal(t, "Soup", st.Title)
}

func TestDraftFlagsBadPairs(t *testing.T) {
	_, err := (&draftFlags{nutrition: []string{"calories"}}).actions(changedSet())
	assert.Error(t, err)

	_, err = (&draftFlags{renameNutrients: []string{"=kcal"}}).actions(changedSet())
	assert.Error(t, err)
}

func TestDraftFlagsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pancakes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`title: Pancakes
tag: Breakfast
ingredients:
  - flour
  - milk
instructions:
  - Whisk
  - Fry
nutrition_info:
  calories: "300"
image: ./stack.jpg
supporting_images:
  - https://cdn.example.com/syrup.jpg
`), 0o644))

	f := draftFlags{file: path, highlight: "Fluffy"}
	actions, err := f.actions(changedSet("highlight"))
	require.NoError(t, err)

	st, err := draft.ReduceAll(draft.New(), actions...)
	require.NoError(t, err)

	d := st.Draft()
	assert.Equal(t, "Pancakes", d.Title)
	assert.Equal(t, "Fluffy", d.Highlight)
	assert.Equal(t, []string{"Breakfast"}, d.Tag)
	assert.Equal(t, []string{"flour", "milk"}, d.Ingredients)
	assert.Equal(t, []string{"Whisk", "Fry"}, d.Instructions)
	assert.Equal(t, models.NutritionInfo{"calories": "300"}, d.NutritionInfo)
	assert.Equal(t, []draft.ImageRef{
		draft.LocalImage("./stack.jpg"),
		draft.RemoteImage("https://cdn.example.com/syrup.jpg"),
	}, st.Images.Refs())
}

func TestDraftFlagsMissingFile(t *testing.T) {
	_, err := (&draftFlags{file: filepath.Join(t.TempDir(), "nope.yaml")}).actions(changedSet())
	assert.Error(t, err)
}

func TestUserError(t *testing.T) {
	assert.NoError(t, userError(nil))

	err := userError(domain.ErrUnauthenticated)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "Please sign in first.")

	plain := errors.New("boom")
	assert.Same(t, plain, userError(plain))
}
