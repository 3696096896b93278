package fragments

import (
	"fmt"
	"strings"
)

// StreamKind identifies which elementary stream a fragment carries.
type StreamKind string

const (
	KindVideo StreamKind = "video"
	KindAudio StreamKind = "audio"
)

// Fragment is a single-stream partial download found on disk.
type Fragment struct {
	Path string
	Base string
	Kind StreamKind
}

// Suffixes names the final file extension of each stream kind, without the
// leading dot. Matching is case-insensitive.
type Suffixes struct {
	Video string
	Audio string
}

// DefaultSuffixes are the format ids the downloader appends for the 1080p
// video stream and the opus audio stream.
var DefaultSuffixes = Suffixes{Video: "f137", Audio: "f251"}

func (s Suffixes) normalized() Suffixes {
	return Suffixes{
		Video: strings.ToLower(strings.TrimLeft(strings.TrimSpace(s.Video), ".")),
		Audio: strings.ToLower(strings.TrimLeft(strings.TrimSpace(s.Audio), ".")),
	}
}

func (s Suffixes) validate() error {
	if s.Video == "" || s.Audio == "" {
		return fmt.Errorf("fragment suffixes must both be set (video=%q audio=%q)", s.Video, s.Audio)
	}
	if s.Video == s.Audio {
		return fmt.Errorf("fragment suffixes must differ (both %q)", s.Video)
	}
	return nil
}

// Classify reports the stream kind and base identity of path. ok is false when
// the final extension matches neither suffix.
func (s Suffixes) Classify(path string) (Fragment, bool) {
	s = s.normalized()
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || strings.ContainsAny(path[dot:], `/\`) {
		return Fragment{}, false
	}
	ext := strings.ToLower(path[dot+1:])
	var kind StreamKind
	switch ext {
	case s.Video:
		kind = KindVideo
	case s.Audio:
		kind = KindAudio
	default:
		return Fragment{}, false
	}
	return Fragment{Path: path, Base: path[:dot], Kind: kind}, true
}

// OutputPath returns the merged container path for a base identity.
func OutputPath(base, containerExt string) string {
	return base + "." + strings.TrimLeft(containerExt, ".")
}
