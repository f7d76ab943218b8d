package command

// Operation is one declared transformation step. The concrete types below
// are the complete set; Builder.Build type-switches over them.
type Operation interface {
	operation()
}

// Trim seeks to Start and keeps Duration seconds of every input.
type Trim struct {
	Start    float64
	Duration float64
}

// ScaleMode selects how Scale fits the frame into Width x Height.
type ScaleMode int

const (
	ScaleExact ScaleMode = iota // Stretch to exactly Width x Height; 0 on one side keeps aspect
	ScaleFit                    // Fit inside and pad with black bars
	ScaleFill                   // Cover and crop the overflow around the center
	ScaleEven                   // Keep size, round both dimensions down to even
)

// Scale resizes the video stream.
type Scale struct {
	Width  int
	Height int
	Mode   ScaleMode
}

// Volume multiplies audio gain. Level is clamped to 0.0-1.0.
type Volume struct {
	Level float64
}

// Mute silences audio while keeping the audio track.
type Mute struct{}

// StreamCopy asks for streams to be copied without re-encoding where no
// filter applies to them.
type StreamCopy struct{}

// Encode re-encodes with the configured codecs at the given preset and CRF.
type Encode struct {
	Preset string
	CRF    int
}

// FilterGraph is a complete -filter_complex expression whose final video
// pad is OutputLabel (without brackets).
type FilterGraph struct {
	Expression  string
	OutputLabel string
}

// Thumbnail extracts a single frame at Timestamp seconds.
type Thumbnail struct {
	Timestamp float64
}

// Concat marks the single input as a concat demuxer list file.
type Concat struct{}

// PixelFormat sets the output pixel format.
type PixelFormat struct {
	Format string
}

// Progress enables machine-readable progress on stderr.
type Progress struct{}

func (Trim) operation()        {}
func (Scale) operation()       {}
func (Volume) operation()      {}
func (Mute) operation()        {}
func (StreamCopy) operation()  {}
func (Encode) operation()      {}
func (FilterGraph) operation() {}
func (Thumbnail) operation()   {}
func (Concat) operation()      {}
func (PixelFormat) operation() {}
func (Progress) operation()    {}
