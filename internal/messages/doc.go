// Package messages resolves user-facing status strings by key.
//
// Catalogs are embedded JSON tables, one per language. Callers pick a
// Localizer from language preferences (BCP 47 tags or POSIX locale names);
// lookups fall back to English and then to the key itself so a missing
// translation never blanks the UI.
package messages
