package domain

// AudioClip references a source audio asset and its placement on the
// track timeline. Clips are read as a snapshot once rendering begins.
type AudioClip struct {
	ID            string  `json:"id"`
	FileReference string  `json:"fileReference"`
	StartTime     float64 `json:"startTime"` // seconds, timeline position, >= 0
	Duration      float64 `json:"duration"`  // seconds
	Gain          float64 `json:"gain"`      // linear multiplier, 1.0 = unity
}

// Track is an ordered set of clips plus mix settings. A track with zero
// clips still renders (as a short silence placeholder).
type Track struct {
	ID           string      `json:"id"`
	ProjectID    string      `json:"projectId"`
	Name         string      `json:"name"`
	Clips        []AudioClip `json:"clips"`
	Volume       float64     `json:"volume"` // linear, 0..~2
	Pan          float64     `json:"pan"`    // -1 (left) .. 1 (right)
	Mute         bool        `json:"mute"`
	EffectsChain string      `json:"effectsChain,omitempty"` // opaque, bypassed when IncludeEffects is false
}
