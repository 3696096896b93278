package fragments

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mvsync/internal/services"
)

// Set is an immutable snapshot of the fragments found under a root. It holds
// at most one fragment per (base identity, stream kind).
type Set struct {
	Root  string
	video keyed
	audio keyed
	// Replaced lists fragments that lost a last-writer-wins collision.
	Replaced []Fragment
}

// keyed preserves first-seen order of base identities.
type keyed struct {
	order []string
	byKey map[string]Fragment
}

func newKeyed() keyed {
	return keyed{byKey: make(map[string]Fragment)}
}

// put stores f, returning the fragment it replaced. A replaced key keeps its
// original position.
func (k *keyed) put(f Fragment) (Fragment, bool) {
	prev, exists := k.byKey[f.Base]
	if !exists {
		k.order = append(k.order, f.Base)
	}
	k.byKey[f.Base] = f
	return prev, exists
}

// Video returns the video fragment for base, if any.
func (s *Set) Video(base string) (Fragment, bool) {
	f, ok := s.video.byKey[base]
	return f, ok
}

// Audio returns the audio fragment for base, if any.
func (s *Set) Audio(base string) (Fragment, bool) {
	f, ok := s.audio.byKey[base]
	return f, ok
}

// VideoFragments returns video fragments in first-seen order.
func (s *Set) VideoFragments() []Fragment {
	return s.video.list()
}

// AudioFragments returns audio fragments in first-seen order.
func (s *Set) AudioFragments() []Fragment {
	return s.audio.list()
}

// Len reports the number of distinct base identities in the set.
func (s *Set) Len() int {
	n := len(s.video.order)
	for _, base := range s.audio.order {
		if _, ok := s.video.byKey[base]; !ok {
			n++
		}
	}
	return n
}

func (k keyed) list() []Fragment {
	out := make([]Fragment, 0, len(k.order))
	for _, base := range k.order {
		out = append(out, k.byKey[base])
	}
	return out
}

// NewSet builds a snapshot from already-classified fragments, applying the
// same ordering and last-writer-wins rules as Scan.
func NewSet(root string, found ...Fragment) *Set {
	set := &Set{Root: root, video: newKeyed(), audio: newKeyed()}
	for _, f := range found {
		set.add(f)
	}
	return set
}

func (s *Set) add(f Fragment) {
	target := &s.video
	if f.Kind == KindAudio {
		target = &s.audio
	}
	if prev, replaced := target.put(f); replaced {
		s.Replaced = append(s.Replaced, prev)
	}
}

// CheckRoot verifies that root exists and is a directory. Failures are
// configuration errors.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrConfiguration, "scan", "stat root",
				fmt.Sprintf("video root %s does not exist", root), err)
		}
		return services.Wrap(services.ErrConfiguration, "scan", "stat root",
			fmt.Sprintf("video root %s is not accessible", root), err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "scan", "stat root",
			fmt.Sprintf("video root %s is not a directory", root), nil)
	}
	return nil
}

// Scan walks root and classifies every regular file whose final extension
// matches one of the suffixes. Symlinks count when their target is a regular
// file; the walk does not descend into symlinked directories. Directories and
// unrelated files are skipped.
// A missing or unreadable root, or a non-directory root, is a configuration
// error and no partial set is returned.
func Scan(root string, suffixes Suffixes) (*Set, error) {
	suffixes = suffixes.normalized()
	if err := suffixes.validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "suffixes", "", err)
	}

	if err := CheckRoot(root); err != nil {
		return nil, err
	}

	set := NewSet(root)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRegularTarget(path, d) {
			return nil
		}
		if f, ok := suffixes.Classify(path); ok {
			set.add(f)
		}
		return nil
	})
	if walkErr != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "walk",
			fmt.Sprintf("video root %s could not be read", root), walkErr)
	}
	return set, nil
}

// isRegularTarget reports whether d is a regular file or a symlink that
// resolves to one. Dangling links are skipped.
func isRegularTarget(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
