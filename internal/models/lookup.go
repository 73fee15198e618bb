package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/desertthunder/spotlake/internal/shared"
)

// FormatRule maps a landing endpoint to the key template its normalized snapshots are written under.
type FormatRule struct {
	Endpoint  string `json:"endpoint"`
	Category  string `json:"category"`
	KeyFormat string `json:"key_format"`
}

// UnmarshalJSON accepts s3_key_format as an alias for key_format.
func (r *FormatRule) UnmarshalJSON(data []byte) error {
	var aux struct {
		Endpoint    string `json:"endpoint"`
		Category    string `json:"category"`
		KeyFormat   string `json:"key_format"`
		S3KeyFormat string `json:"s3_key_format"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Endpoint, r.Category, r.KeyFormat = aux.Endpoint, aux.Category, aux.KeyFormat
	if r.KeyFormat == "" {
		r.KeyFormat = aux.S3KeyFormat
	}
	return nil
}

// Validate checks that the rule can be used to route a normalized snapshot.
func (r FormatRule) Validate() error {
	if strings.Count(r.Endpoint, "/") != 1 || strings.HasPrefix(r.Endpoint, "/") || strings.HasSuffix(r.Endpoint, "/") {
		return fmt.Errorf("%w: endpoint %q must look like <category>/<time_window>", shared.ErrInvalidInput, r.Endpoint)
	}
	if r.KeyFormat == "" {
		return fmt.Errorf("%w: endpoint %q has no key_format", shared.ErrInvalidInput, r.Endpoint)
	}
	if _, err := ParseCategory(r.Category); err != nil || r.Category == "" {
		return fmt.Errorf("%w: endpoint %q has unknown category %q", shared.ErrInvalidInput, r.Endpoint, r.Category)
	}
	if !strings.HasPrefix(r.Endpoint, r.Category+"/") {
		return fmt.Errorf("%w: endpoint %q does not belong to category %q", shared.ErrInvalidInput, r.Endpoint, r.Category)
	}
	return nil
}

// DataContract allows objects under KeyName in the raw area to be promoted to staging.
//
// Body keeps the full contract document as loaded.
type DataContract struct {
	KeyName     string          `json:"key_name"`
	Description string          `json:"description,omitempty"`
	Body        json.RawMessage `json:"-"`
}

// ParseDataContract decodes a contract document, keeping the original bytes as Body.
func ParseDataContract(data []byte) (DataContract, error) {
	var dc DataContract
	if err := json.Unmarshal(data, &dc); err != nil {
		return DataContract{}, fmt.Errorf("%w: data contract: %v", shared.ErrMalformedPayload, err)
	}
	if strings.TrimSpace(dc.KeyName) == "" || strings.Contains(dc.KeyName, "/") {
		return DataContract{}, fmt.Errorf("%w: data contract key_name %q", shared.ErrInvalidInput, dc.KeyName)
	}
	dc.Body = append(json.RawMessage(nil), data...)
	return dc, nil
}
