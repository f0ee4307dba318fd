package types

// Rect is the bounding box of an element in viewport CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ActionTimestamp marks when a step started and ended, in milliseconds
// relative to the start of the recording.
type ActionTimestamp struct {
	StepIndex  int        `json:"stepIndex"`
	StartMs    int64      `json:"startMs"`
	EndMs      int64      `json:"endMs"`
	Caption    *Caption   `json:"caption,omitempty"`
	TargetRect *Rect      `json:"targetRect,omitempty"`
	ActionType ActionType `json:"actionType,omitempty"`
}

// RecordingResult is the outcome of recording one browser scene for one
// output variant. It is not modified after it has been produced.
type RecordingResult struct {
	SceneID    string            `json:"sceneId"`
	VariantID  string            `json:"variantId"`
	VideoPath  string            `json:"videoPath"`
	DurationMs int64             `json:"durationMs"`
	Timestamps []ActionTimestamp `json:"timestamps"`
}
