package imaging

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"

	mp4 "github.com/abema/go-mp4"
)

// Video limits checked before anything is sent to the verification oracle.
const (
	MaxVideoSize     = 100 << 20
	MaxVideoDuration = 30 * time.Second
)

// ValidationError is a pre-flight rejection with a reason meant for the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// VideoInfo describes an uploaded verification video.
type VideoInfo struct {
	MIME     string
	Size     int64
	Duration time.Duration
}

// NormalizeMIME strips parameters from a Content-Type value and lowercases it.
func NormalizeMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// CheckVideo rejects videos of the wrong type, size or length.
func CheckVideo(info VideoInfo) error {
	if !strings.HasPrefix(NormalizeMIME(info.MIME), "video/") {
		return &ValidationError{Reason: "Please upload a video file (MP4, MOV, etc.), not an image or other file type."}
	}
	if info.Size > MaxVideoSize {
		return &ValidationError{Reason: "Video file is too large. Please upload a video smaller than 100MB."}
	}
	if info.Duration > MaxVideoDuration {
		return &ValidationError{Reason: fmt.Sprintf("Video is too long. Please upload a video shorter than %d seconds.", int(MaxVideoDuration.Seconds()))}
	}
	return nil
}

// probeable lists the container types whose duration can be read from the header.
var probeable = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-m4v":     true,
}

// VideoDuration reads the duration from the container header. For containers
// that cannot be probed, or when probing fails, the client-declared duration is used.
func VideoDuration(data []byte, contentType string, declared time.Duration) (time.Duration, error) {
	if probeable[NormalizeMIME(contentType)] {
		d, err := ProbeVideoDuration(data)
		if err == nil {
			return d, nil
		}
		if declared <= 0 {
			return 0, &ValidationError{Reason: "Could not read the video duration. Please upload a different video."}
		}
	}
	if declared <= 0 {
		return 0, &ValidationError{Reason: "Video duration is required for this file type."}
	}
	return declared, nil
}

// ProbeVideoDuration returns the movie duration stored in an MP4/QuickTime header.
func ProbeVideoDuration(data []byte) (time.Duration, error) {
	info, err := mp4.Probe(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: probing video: %v", ErrMediaDecode, err)
	}
	if info.Timescale == 0 {
		return 0, fmt.Errorf("%w: video has no timescale", ErrMediaDecode)
	}
	secs := float64(info.Duration) / float64(info.Timescale)
	return time.Duration(secs * float64(time.Second)), nil
}

// SecondsToDuration converts a client-reported length in seconds.
func SecondsToDuration(secs float64) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
