// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Capture constants
const (
	// FrameWidth is the width every captured frame is rasterized to
	FrameWidth = 640

	// FrameHeight is the height every captured frame is rasterized to
	FrameHeight = 480

	// DefaultJPEGQuality matches the quality browsers use for canvas JPEG export
	DefaultJPEGQuality = 92

	// FrameContentType is the MIME type of captured frames
	FrameContentType = "image/jpeg"
)

// User-facing messages shown by the gallery views
const (
	MsgConnectFailed   = "Failed to connect to the server."
	MsgInvalidResponse = "Invalid server response."
	MsgFetchFailed     = "Failed to fetch photos"
	MsgNoFile          = "No file selected for upload."
	MsgSelectSelfie    = "Please select a selfie first!"
	MsgNoMatches       = "No matches found. Try retaking the photo."
	MsgCaptureFailed   = "Could not take a photo. Please try again."
	MsgCameraDenied    = "Camera access denied. Please allow permissions."
	MsgCameraMissing   = "No camera available. Connect a camera and try again."
	MsgTooManyFiles    = "The search service accepts a single photo per search."
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum selfie upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxErrorBodySize caps how much of a failed response body is read
	MaxErrorBodySize = 64 << 10
)
