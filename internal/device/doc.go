// Package device describes the capture hardware classes slidekeeper tunes
// itself for.
//
// A Profile bundles the defaults that differ between desktop browsers, mobile
// browsers and the constrained iOS embedded browser: tick interval, preview
// cache capacity, thumbnail size, and the retry strategy used when the video
// surface is in fullscreen presentation. The package also reports system
// memory pressure so the preview cache can be purged before the host starts
// swapping.
package device
