package coach

// HintID identifies a hint; display text is looked up by id.
type HintID string

const (
	HintTooLoud       HintID = "tooLoud"
	HintTooQuiet      HintID = "tooQuiet"
	HintJitter        HintID = "jitter"
	HintTargetMiss    HintID = "targetMiss"
	HintLowConfidence HintID = "lowConfidence"
	HintSteady        HintID = "steady"

	// post-phrase
	HintPraise HintID = "praise"
	HintRise   HintID = "rise"
	HintNudge  HintID = "nudge"
	HintRetry  HintID = "retry"
)

// Bucket groups candidates. Real-time buckets are listed in priority order.
type Bucket string

const (
	BucketSafety              Bucket = "safety"
	BucketEnvironment         Bucket = "environment"
	BucketTechniqueTarget     Bucket = "technique-target"
	BucketTechniqueConfidence Bucket = "technique-confidence"
	BucketPraise              Bucket = "praise"
	BucketPhrase              Bucket = "phrase"
)

var bucketOrder = []Bucket{
	BucketSafety,
	BucketEnvironment,
	BucketTechniqueTarget,
	BucketTechniqueConfidence,
	BucketPraise,
	BucketPhrase,
}

// priority is the rank of b, 0 being the most urgent.
func (b Bucket) priority() int {
	for i, o := range bucketOrder {
		if o == b {
			return i
		}
	}
	return len(bucketOrder)
}

// Severity is a display hint for the consumer.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Hint is one coaching message.
type Hint struct {
	ID       HintID   `json:"id"`
	Text     string   `json:"text"`
	Aria     string   `json:"aria,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Priority int      `json:"priority"`
	Bucket   Bucket   `json:"bucket"`
}

// CopyEntry is the localized text of a hint.
type CopyEntry struct {
	Text string `yaml:"text" json:"text"`
	Aria string `yaml:"aria,omitempty" json:"aria,omitempty"`
}

// Copy maps hint ids to their text. Ids missing from a Copy fall back to
// the id itself.
type Copy map[HintID]CopyEntry

// DefaultCopy returns English hint text.
func DefaultCopy() Copy {
	return Copy{
		HintTooLoud:       {Text: "That's quite loud. Ease off and protect your voice.", Aria: "Warning: volume too high"},
		HintTooQuiet:      {Text: "I can barely hear you. Move closer to the microphone."},
		HintJitter:        {Text: "Try to hold the pitch steadier."},
		HintTargetMiss:    {Text: "Aim for the target band. Slide gently toward it."},
		HintLowConfidence: {Text: "Your voice isn't coming through clearly. Try a clearer, sustained tone."},
		HintSteady:        {Text: "Nice and steady. Keep it there."},
		HintPraise:        {Text: "Great match! That phrase was spot on."},
		HintRise:          {Text: "Let the pitch rise at the end of the phrase."},
		HintNudge:         {Text: "Close. Follow the contour a little more closely."},
		HintRetry:         {Text: "Let's try that phrase again."},
	}
}

func (c Copy) lookup(id HintID) CopyEntry {
	if e, ok := c[id]; ok {
		return e
	}
	return CopyEntry{Text: string(id)}
}
