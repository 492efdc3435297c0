// Package display decides what the video area shows for a given
// settings document. The decision is a pure function of the document;
// no state survives a settings change.
package display

import "eslive/internal/models"

// State is the display selection outcome.
type State string

// States in priority order. An active ad pre-empts everything; an
// inactive stream beats a custom link; the default embed is the
// fallback when nothing else claims the slot.
const (
	AdActive      State = "AD_ACTIVE"
	StreamOffline State = "STREAM_OFFLINE"
	CustomLink    State = "CUSTOM_LINK"
	DefaultEmbed  State = "DEFAULT_EMBED"
)

// Select evaluates the priority ladder against the settings document.
// The case order carries the priority; keep it a single ladder rather
// than nested conditionals.
func Select(s models.Settings) State {
	switch {
	case s.IsAdActive && s.AdLink != "":
		return AdActive
	case !s.IsStreamActive:
		return StreamOffline
	case s.StreamLink != "":
		return CustomLink
	default:
		return DefaultEmbed
	}
}
