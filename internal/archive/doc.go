// Package archive packages a stream's slides for download.
//
// File names use the capture time shifted into the configured zone and
// rendered to the second, e.g. slide_2026-03-02T17-05-09_CST.png, so a
// directory listing sorts chronologically. Slides captured within the same
// second get a numeric suffix before the zone.
package archive
