package preset

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultCount is the number of presets the camera stores (0..9).
const DefaultCount = 10

// MaxLabelLength bounds a preset label in characters.
const MaxLabelLength = 128

// Preset is a stored camera position and its label.
type Preset struct {
	Number int    `json:"number"`
	Text   string `json:"text"`

	// StoredAt is the last time the position was saved on the camera, if ever.
	StoredAt  *time.Time `json:"stored_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DefaultLabel is the label a preset gets when first seeded.
func DefaultLabel(number int) string {
	return fmt.Sprintf("Preset %d", number)
}

// legacyPreset is one entry of the presets.json format the browser client
// consumes as PRESET_DATA.
type legacyPreset struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// LegacyJSON renders presets in the presets.json shape:
// [{"number":0,"text":"Front door"}, ...].
func LegacyJSON(presets []Preset) (string, error) {
	out := make([]legacyPreset, len(presets))
	for i, p := range presets {
		out[i] = legacyPreset{Number: p.Number, Text: p.Text}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding presets: %w", err)
	}
	return string(b), nil
}
