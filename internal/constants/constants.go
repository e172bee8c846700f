// Package constants provides shared constants used across the codebase.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted multipart body for verify and register
	MaxUploadSize = 32 << 20
)

// Recognition constants
const (
	// DefaultMatchThreshold is the similarity a search score must exceed to count as a match
	DefaultMatchThreshold = 0.5
)

// Attendance constants
const (
	// DefaultRecentLimit is the number of attendance records returned when no limit is given
	DefaultRecentLimit = 50

	// MaxRecentLimit caps the limit query parameter of the attendance endpoint
	MaxRecentLimit = 1000
)

// Response messages
const (
	MsgSuccess       = "Success"
	MsgNoMatch       = "not enrolled or not matched (score: %.2f)"
	MsgTooLarge      = "upload too large"
	MsgRegistered    = "Registered successfully"
	MsgInvalidImage  = "Invalid Image"
	MsgNoFace        = "No face detected"
	MsgServiceStatus = "Face Recognition Backend is Running"
)
