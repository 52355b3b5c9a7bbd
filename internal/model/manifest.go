package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Manifest is the model's top-level metadata record, persisted at
// manifest.json in the model root.
type Manifest struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	SpecVersion string    `json:"specVersion"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// Validate validates the manifest's required fields.
func (m *Manifest) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Version, validation.Required),
		validation.Field(&m.SpecVersion, validation.Required),
	)
}

// Touch updates the modified timestamp. Called on every manifest save.
func (m *Manifest) Touch(now time.Time) {
	m.Modified = now.UTC()
}
