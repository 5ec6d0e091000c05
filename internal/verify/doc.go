// Package verify debounces raw change verdicts before a slide is committed.
//
// The Machine holds the last committed frame as its baseline. When a capture
// differs from the baseline and double verification is enabled, the capture
// becomes a candidate that must stay stable across further ticks before it is
// committed. Any instability, missing frame or capture error discards the
// candidate and returns the machine to Idle.
package verify
