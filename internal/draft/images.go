package draft

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"

	"github.com/larder-app/larder/internal/domain"
)

// ImageKind tells a device file apart from an already hosted image
type ImageKind int

const (
	// Local is a file on this machine that still has to be uploaded.
	Local ImageKind = iota
	// Remote is an image already addressable by URL.
	Remote
)

func (k ImageKind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// ImageRef points at one recipe image, either on disk or hosted
type ImageRef struct {
	Kind  ImageKind
	Value string
}

func LocalImage(path string) ImageRef { return ImageRef{Kind: Local, Value: path} }

func RemoteImage(u string) ImageRef { return ImageRef{Kind: Remote, Value: u} }

// ParseImageRef classifies a stored value: anything that looks like a fully
// qualified URL is remote, everything else is a local path.
func ParseImageRef(s string) ImageRef {
	if LooksRemote(s) {
		return RemoteImage(s)
	}
	return LocalImage(s)
}

// LooksRemote reports whether s is an absolute http(s) URL with a host
func LooksRemote(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r ImageRef) IsRemote() bool { return r.Kind == Remote }

func (r ImageRef) String() string { return r.Kind.String() + ":" + r.Value }

func (r ImageRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}{r.Kind.String(), r.Value})
}

func (r *ImageRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "remote":
		*r = RemoteImage(raw.Value)
	case "local":
		*r = LocalImage(raw.Value)
	default:
		*r = ParseImageRef(raw.Value)
	}
	return nil
}

// ImageSet is the ordered image list of a draft. Position 0 is the default
// (cover) image. Entries are never deduplicated and are always addressed by
// position.
type ImageSet struct {
	refs []ImageRef
}

func NewImageSet(refs ...ImageRef) ImageSet {
	return ImageSet{refs: slices.Clone(refs)}
}

// Append adds local files to the end of the set
func (s ImageSet) Append(paths ...string) ImageSet {
	refs := slices.Clone(s.refs)
	for _, p := range paths {
		refs = append(refs, LocalImage(p))
	}
	return ImageSet{refs: refs}
}

// Add appends references as they are. Remote references are not uploaded
// again on save.
func (s ImageSet) Add(refs ...ImageRef) ImageSet {
	return ImageSet{refs: append(slices.Clone(s.refs), refs...)}
}

// Remove deletes the image at index. Removing position 0 promotes the next
// image to default.
func (s ImageSet) Remove(index int) (ImageSet, error) {
	if index < 0 || index >= len(s.refs) {
		return s, fmt.Errorf("remove image %d of %d: %w", index, len(s.refs), domain.ErrIndexOutOfRange)
	}
	refs := slices.Clone(s.refs)
	return ImageSet{refs: slices.Delete(refs, index, index+1)}, nil
}

// Reorder rearranges the set so that position i holds the image previously
// at order[i]. order must be a permutation of the current positions.
func (s ImageSet) Reorder(order []int) (ImageSet, error) {
	if !isPermutation(order, len(s.refs)) {
		return s, fmt.Errorf("reorder images %v: %w", order, domain.ErrInvalidPermutation)
	}
	refs := make([]ImageRef, len(order))
	for i, from := range order {
		refs[i] = s.refs[from]
	}
	return ImageSet{refs: refs}, nil
}

// Move drags the image at from to position to
func (s ImageSet) Move(from, to int) (ImageSet, error) {
	order, err := moveOrder(len(s.refs), from, to)
	if err != nil {
		return s, fmt.Errorf("move image: %w", err)
	}
	return s.Reorder(order)
}

func (s ImageSet) Len() int { return len(s.refs) }

// Refs returns a copy of the ordered references
func (s ImageSet) Refs() []ImageRef { return slices.Clone(s.refs) }

// Default is the cover image shown with the "Default" badge
func (s ImageSet) Default() (ImageRef, bool) { return DefaultImage(s.refs) }

// DefaultImage is the single rule for picking the cover: position 0.
func DefaultImage(refs []ImageRef) (ImageRef, bool) {
	if len(refs) == 0 {
		return ImageRef{}, false
	}
	return refs[0], true
}

// SplitImages separates the cover from the supporting images
func SplitImages[T any](seq []T) (primary T, supporting []T, ok bool) {
	supporting = []T{}
	if len(seq) == 0 {
		return primary, supporting, false
	}
	return seq[0], append(supporting, seq[1:]...), true
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

func moveOrder(n, from, to int) ([]int, error) {
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, fmt.Errorf("move %d -> %d of %d: %w", from, to, n, domain.ErrIndexOutOfRange)
	}
	order := make([]int, 0, n)
	for i := range n {
		if i != from {
			order = append(order, i)
		}
	}
	order = slices.Insert(order, to, from)
	return order, nil
}
