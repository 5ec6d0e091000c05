// Package session owns per-stream recovery state and the in-memory preview
// cache.
//
// On load the controller reads the stored session, hands back the saved
// extraction settings, and either restores previews directly or returns a
// RestoreOffer when extraction was active last time. Offers are never
// persisted: every load asks again until a new capture rewrites the state.
package session
