package domain

// AspectRatio is the coarse wide/tall bucket sent to the video model.
type AspectRatio string

const (
	AspectWide AspectRatio = "16:9"
	AspectTall AspectRatio = "9:16"
)

// ClassifyAspect buckets raw pixel dimensions; square frames count as wide.
func ClassifyAspect(width, height int) AspectRatio {
	if height > width {
		return AspectTall
	}
	return AspectWide
}

// ExtractedFrame is a single still sampled from an uploaded video, downscaled
// and encoded for transmission. Immutable once produced; at most one exists
// per session.
type ExtractedFrame struct {
	Payload  string // base64 JPEG, no data-URI prefix
	MimeType string
	Width    int
	Height   int
}

// AspectRatio classifies the frame's pixel dimensions.
func (f ExtractedFrame) AspectRatio() AspectRatio {
	return ClassifyAspect(f.Width, f.Height)
}
