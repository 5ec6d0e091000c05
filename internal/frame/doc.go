// Package frame obtains raw pixel frames from an external video surface.
//
// The Surface interface is the boundary to whatever renders the stream. The
// Adapter picks a capture strategy from the device profile and the surface's
// fullscreen state, retries known compositor failures, and rejects frames that
// are empty or effectively black. A nil frame with a nil error is the normal
// "not ready, try next tick" outcome.
package frame
