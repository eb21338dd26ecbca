package model

// Options tunes how the Builder turns schema properties into fields. The
// zero value is not usable directly; defaultOptions fills in the
// instrument-aware labeler before the Builder runs.
type Options struct {
	// Labeler maps a property name like "nircam_filters" to its display
	// label. Replace it to customise labels for a whole document.
	Labeler func(string) string
}

func defaultOptions() Options {
	return Options{
		Labeler: DefaultLabeler,
	}
}
