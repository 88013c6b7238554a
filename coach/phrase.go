package coach

// praiseTier is the lowest DTW tier that earns praise.
const praiseTier = 4

// PhraseSummary describes a finished phrase. Tier is the 1..5 DTW match
// rating against the reference, 0 when unknown.
type PhraseSummary struct {
	Tier    int  `json:"tier"`
	EndRise bool `json:"end_rise"`
}

// PostPhrase resolves the end-of-phrase hint. It always returns exactly one
// hint and does not touch the real-time rate limit or cooldowns.
func (p *Policy) PostPhrase(s PhraseSummary) Hint {
	var id HintID
	switch {
	case s.Tier >= praiseTier:
		id = HintPraise
	case !s.EndRise:
		id = HintRise
	case s.Tier == 3:
		id = HintNudge
	default:
		id = HintRetry
	}

	c := candidate{id: id, bucket: BucketPhrase}
	h := p.hint(c)
	if id == HintPraise {
		h.Severity = SeveritySuccess
	}
	p.record(h, p.clock.Now())
	return h
}
