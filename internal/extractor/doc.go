// Package extractor runs the slide extraction loop for one stream.
//
// Each tick captures a frame from the bound Surface, feeds it through the
// verification machine, and hands committed frames to a background
// persistence step. Ticks are serialized; persistence is not, so a slow
// write from one tick may finish during the next. Stop halts the ticker,
// resets verification, and guarantees no frame observed after the stop is
// committed. When the store rejects a write the extractor keeps slides in
// memory for the rest of the run and reports itself degraded.
package extractor
