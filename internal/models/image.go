package models

// ImageRecord is an inline-encoded image document at siteImages/<name>.
// The bytes live in Data as a base64 data URL; there is no external
// object storage.
type ImageRecord struct {
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// MaxInlineImageBytes caps the decoded size of an inline-encoded image.
// The source never chose a limit; 2 MiB keeps documents well under the
// store's practical payload ceiling.
const MaxInlineImageBytes = 2 << 20

// ImageRecordFromMap coerces a raw store payload into an ImageRecord.
func ImageRecordFromMap(raw map[string]any) ImageRecord {
	var img ImageRecord
	if raw == nil {
		return img
	}
	img.Data, _ = raw["data"].(string)
	img.Timestamp = int64Field(raw, "timestamp")
	img.Type, _ = raw["type"].(string)
	return img
}

// ToMap renders the record in the wire shape the store holds.
func (img ImageRecord) ToMap() map[string]any {
	return map[string]any{
		"data":      img.Data,
		"timestamp": img.Timestamp,
		"type":      img.Type,
	}
}
