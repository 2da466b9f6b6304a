package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recipe is the persisted recipe shape exchanged with the recipe API
type Recipe struct {
	ID               ID            `json:"id,omitempty" yaml:"id,omitempty"`
	UserID           string        `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Title            string        `json:"title" yaml:"title"`
	Highlight        string        `json:"highlight,omitempty" yaml:"highlight,omitempty"`
	Tag              Tags          `json:"tag,omitempty" yaml:"tag,omitempty"`
	Ingredients      []string      `json:"ingredients" yaml:"ingredients"`
	Instructions     []string      `json:"instructions" yaml:"instructions"`
	NutritionInfo    NutritionInfo `json:"nutrition_info,omitempty" yaml:"nutrition_info,omitempty"`
	Image            string        `json:"image,omitempty" yaml:"image,omitempty"`
	SupportingImages []string      `json:"supporting_images" yaml:"supporting_images,omitempty"`
	CreatedAt        *time.Time    `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Clone returns a deep copy so edits never leak into the source record
func (r Recipe) Clone() Recipe {
	out := r
	out.Tag = slices.Clone(r.Tag)
	out.Ingredients = slices.Clone(r.Ingredients)
	out.Instructions = slices.Clone(r.Instructions)
	out.NutritionInfo = maps.Clone(r.NutritionInfo)
	out.SupportingImages = slices.Clone(r.SupportingImages)
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		out.CreatedAt = &t
	}
	return out
}

// Images returns the cover image followed by the supporting images
func (r Recipe) Images() []string {
	images := make([]string, 0, len(r.SupportingImages)+1)
	if r.Image != "" {
		images = append(images, r.Image)
	}
	return append(images, r.SupportingImages...)
}

// User is the signed-in account as reported by the identity provider
type User struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
}

// ID is a recipe identifier. The backend hands out numeric ids, AI
// suggestions and older rows carry strings, so both decode.
type ID string

func (id ID) String() string { return string(id) }

// IsNumeric reports whether the id is sent to the backend as a JSON number
func (id ID) IsNumeric() bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid recipe id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Tags accepts either a single tag string or a list of tags
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = singleTag(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("invalid tag value: %w", err)
	}
	*t = list
	return nil
}

func (t *Tags) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*t = singleTag(value.Value)
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return fmt.Errorf("invalid tag value: %w", err)
	}
	*t = list
	return nil
}

func singleTag(s string) Tags {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return Tags{s}
}

// First returns the first tag or the fallback when there is none
func (t Tags) First(fallback string) string {
	if len(t) == 0 {
		return fallback
	}
	return t[0]
}

// NutritionInfo maps a nutrient name to its amount, e.g. "Calories": "320".
//
// Some backend responses wrap the object in a one-element array; the decoder
// unwraps that form so the rest of the code only sees a flat mapping.
type NutritionInfo map[string]string

func (n *NutritionInfo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []map[string]any
	if data[0] == '[' {
		if err := dec.Decode(&objects); err != nil {
			return fmt.Errorf("invalid nutrition_info array: %w", err)
		}
	} else {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return fmt.Errorf("invalid nutrition_info: %w", err)
		}
		objects = []map[string]any{obj}
	}

	out := NutritionInfo{}
	for _, obj := range objects {
		for k, v := range obj {
			out[k] = nutrientAmount(v)
		}
	}
	*n = out
	return nil
}

func nutrientAmount(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// Normalize trims nutrient names and drops rows whose name is blank. The
// editor allows a blank row while the user is still typing; it is never
// persisted.
func (n NutritionInfo) Normalize() NutritionInfo {
	out := make(NutritionInfo, len(n))
	for k, v := range n {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// Names returns nutrient names in a stable order for display
func (n NutritionInfo) Names() []string {
	return slices.Sorted(maps.Keys(n))
}
