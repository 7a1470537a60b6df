// Package language provides unified language code normalization.
//
// All language-related conversions (BCP 47 tags, ISO codes, English names)
// are consolidated here so the config layer and the transcription stage
// agree on one canonical form.
package language
