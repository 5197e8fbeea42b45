package httpserver

import "time"

var (
	// ShutdownTimeout controls how long to wait for graceful shutdowns.
	ShutdownTimeout = 10 * time.Second
	// UploadTimeout bounds reading a request and writing its response, which covers
	// streaming a video upload or download.
	UploadTimeout = 5 * time.Minute
)
