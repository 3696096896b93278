package fragments

// OutcomeKind tags a pairing result.
type OutcomeKind int

const (
	Matched OutcomeKind = iota
	VideoOnly
	AudioOnly
)

func (k OutcomeKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case VideoOnly:
		return "video_only"
	case AudioOnly:
		return "audio_only"
	default:
		return "unknown"
	}
}

// Outcome is the pairing result for one base identity. Video is set for
// Matched and VideoOnly, Audio for Matched and AudioOnly.
type Outcome struct {
	Kind  OutcomeKind
	Base  string
	Video *Fragment
	Audio *Fragment
}

// Orphan returns the unmatched fragment of a VideoOnly or AudioOnly outcome.
func (o Outcome) Orphan() (Fragment, bool) {
	switch o.Kind {
	case VideoOnly:
		return *o.Video, true
	case AudioOnly:
		return *o.Audio, true
	default:
		return Fragment{}, false
	}
}

// Pair joins video and audio fragments on base identity. Outcomes follow the
// video order of the set, then any audio-only identities in audio order.
// Pair never touches the filesystem.
func Pair(set *Set) []Outcome {
	if set == nil {
		return nil
	}
	outcomes := make([]Outcome, 0, set.Len())
	for _, video := range set.VideoFragments() {
		v := video
		if audio, ok := set.Audio(v.Base); ok {
			a := audio
			outcomes = append(outcomes, Outcome{Kind: Matched, Base: v.Base, Video: &v, Audio: &a})
			continue
		}
		outcomes = append(outcomes, Outcome{Kind: VideoOnly, Base: v.Base, Video: &v})
	}
	for _, audio := range set.AudioFragments() {
		if _, ok := set.Video(audio.Base); ok {
			continue
		}
		a := audio
		outcomes = append(outcomes, Outcome{Kind: AudioOnly, Base: a.Base, Audio: &a})
	}
	return outcomes
}
