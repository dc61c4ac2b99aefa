package reference

import (
	"encoding/json"
	"fmt"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// Token content type discriminators, carried in the "@type" field of a
// token's decrypted content.
const (
	TokenContentDeviceSharedSecret   = "TokenContentDeviceSharedSecret"
	TokenContentRelationshipTemplate = "TokenContentRelationshipTemplate"
)

// TokenContent is the parsed nested content of a token. At most one variant
// field is set; a recognized Type with a nil variant does not occur. Content
// with an unrecognized Type parses successfully with both variants nil, so
// the dispatcher can surface it as an unsupported token instead of dropping
// it.
type TokenContent struct {
	Type string

	DeviceSharedSecret   *interfaces.DeviceOnboardingInfo
	RelationshipTemplate *interfaces.RelationshipTemplateReference
}

// ParseTokenContent decodes the nested content of a fetched token. Returns an
// error only for structurally invalid content; unknown content types are not
// an error here.
func ParseTokenContent(raw json.RawMessage) (*TokenContent, error) {
	var probe struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("token content is not a JSON object: %w", err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("token content carries no @type")
	}

	content := &TokenContent{Type: probe.Type}

	switch probe.Type {
	case TokenContentDeviceSharedSecret:
		var payload struct {
			SharedSecret interfaces.DeviceOnboardingInfo `json:"sharedSecret"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid device shared secret content: %w", err)
		}
		content.DeviceSharedSecret = &payload.SharedSecret

	case TokenContentRelationshipTemplate:
		var payload interfaces.RelationshipTemplateReference
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid relationship template content: %w", err)
		}
		if payload.TemplateID == "" {
			return nil, fmt.Errorf("relationship template content without template id")
		}
		content.RelationshipTemplate = &payload
	}

	return content, nil
}
