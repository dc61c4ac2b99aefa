package cryptotier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	tier      SecurityTier
	available bool
}

func (p fakeProvider) Tier() SecurityTier               { return p.tier }
func (p fakeProvider) Name() string                     { return "fake" }
func (p fakeProvider) Available(_ context.Context) bool { return p.available }

func TestRegistryHasProviderForTier(t *testing.T) {
	tests := []struct {
		name      string
		providers []Provider
		tier      SecurityTier
		expected  bool
	}{
		{
			name:      "software always available",
			providers: []Provider{SoftwareProvider{}},
			tier:      TierSoftware,
			expected:  true,
		},
		{
			name:      "no provider for tier",
			providers: []Provider{SoftwareProvider{}},
			tier:      TierHardware,
			expected:  false,
		},
		{
			name:      "unavailable provider does not count",
			providers: []Provider{fakeProvider{tier: TierHardware, available: false}},
			tier:      TierHardware,
			expected:  false,
		},
		{
			name: "any available provider suffices",
			providers: []Provider{
				fakeProvider{tier: TierNetwork, available: false},
				fakeProvider{tier: TierNetwork, available: true},
			},
			tier:     TierNetwork,
			expected: true,
		},
		{
			name:      "empty registry",
			providers: nil,
			tier:      TierSoftware,
			expected:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			registry := NewRegistry(tc.providers, nil)
			assert.Equal(t, tc.expected, registry.HasProviderForTier(tc.tier))
		})
	}
}
