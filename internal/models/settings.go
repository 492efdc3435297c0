// Package models contains data structures for the application's domain documents.
package models

// Settings is the shared site configuration document. A single instance
// lives at the adminSettings path and is replaced wholesale on every
// admin save; there is no per-field merge.
type Settings struct {
	StreamTitle       string `json:"streamTitle"`
	StreamDescription string `json:"streamDescription"`
	StreamLink        string `json:"streamLink"`
	IsStreamActive    bool   `json:"isStreamActive"`
	IsAdActive        bool   `json:"isAdActive"`
	AdLink            string `json:"adLink"`
	AdTitle           string `json:"adTitle"`
	AdDescription     string `json:"adDescription"`
	AdWebsiteLink     string `json:"adWebsiteLink"`
	SiteName          string `json:"siteName"`
	LogoURL           string `json:"logoUrl"` // inline-encoded image payload, not an object-store URL
	GameTitle         string `json:"gameTitle"`
	Category          string `json:"category"`
	NextMatch         string `json:"nextMatch"`
	Sponsors          string `json:"sponsors"`
}

// DefaultSettings returns the document every consumer sees before the
// first admin write lands.
func DefaultSettings() Settings {
	return Settings{
		IsStreamActive: true,
		IsAdActive:     false,
	}
}

// SettingsFromMap coerces a raw store payload into a fully-populated
// Settings document. Missing or mistyped fields fall back to their
// defaults here, at the mirror boundary, so consumers never observe an
// absent field.
func SettingsFromMap(raw map[string]any) Settings {
	s := DefaultSettings()
	s.StreamTitle = stringField(raw, "streamTitle", s.StreamTitle)
	s.StreamDescription = stringField(raw, "streamDescription", s.StreamDescription)
	s.StreamLink = stringField(raw, "streamLink", s.StreamLink)
	s.IsStreamActive = boolField(raw, "isStreamActive", s.IsStreamActive)
	s.IsAdActive = boolField(raw, "isAdActive", s.IsAdActive)
	s.AdLink = stringField(raw, "adLink", s.AdLink)
	s.AdTitle = stringField(raw, "adTitle", s.AdTitle)
	s.AdDescription = stringField(raw, "adDescription", s.AdDescription)
	s.AdWebsiteLink = stringField(raw, "adWebsiteLink", s.AdWebsiteLink)
	s.SiteName = stringField(raw, "siteName", s.SiteName)
	s.LogoURL = stringField(raw, "logoUrl", s.LogoURL)
	s.GameTitle = stringField(raw, "gameTitle", s.GameTitle)
	s.Category = stringField(raw, "category", s.Category)
	s.NextMatch = stringField(raw, "nextMatch", s.NextMatch)
	s.Sponsors = stringField(raw, "sponsors", s.Sponsors)
	return s
}

// ToMap renders the document in the wire shape the store holds.
func (s Settings) ToMap() map[string]any {
	return map[string]any{
		"streamTitle":       s.StreamTitle,
		"streamDescription": s.StreamDescription,
		"streamLink":        s.StreamLink,
		"isStreamActive":    s.IsStreamActive,
		"isAdActive":        s.IsAdActive,
		"adLink":            s.AdLink,
		"adTitle":           s.AdTitle,
		"adDescription":     s.AdDescription,
		"adWebsiteLink":     s.AdWebsiteLink,
		"siteName":          s.SiteName,
		"logoUrl":           s.LogoURL,
		"gameTitle":         s.GameTitle,
		"category":          s.Category,
		"nextMatch":         s.NextMatch,
		"sponsors":          s.Sponsors,
	}
}

func stringField(raw map[string]any, key, fallback string) string {
	if raw == nil {
		return fallback
	}
	if v, ok := raw[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolField(raw map[string]any, key string, fallback bool) bool {
	if raw == nil {
		return fallback
	}
	if v, ok := raw[key].(bool); ok {
		return v
	}
	return fallback
}
