// Package cryptotier implements the security-tier policy for cryptographic
// key handling. Given the object class a key belongs to, the operation it is
// used for and an optional purpose, the selector returns the tier (software,
// hardware or network backed) the key material should live in.
//
// The policy is pure table data over closed enumerations, so the resolution
// order stays auditable and unit-testable. The selector never performs a
// cryptographic operation itself.
package cryptotier

import (
	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// SecurityTier is an assurance level for cryptographic key handling.
type SecurityTier int

const (
	// TierSoftware keeps key material in process memory.
	TierSoftware SecurityTier = iota
	// TierHardware uses a hardware-backed provider (TPM, secure enclave, TEE).
	TierHardware
	// TierNetwork delegates key handling to a remote service.
	TierNetwork
)

// String returns the tier name.
func (t SecurityTier) String() string {
	switch t {
	case TierSoftware:
		return "Software"
	case TierHardware:
		return "Hardware"
	case TierNetwork:
		return "Network"
	default:
		return "Invalid"
	}
}

// ObjectKind is the class of object a key belongs to. Compared by value,
// no runtime identity.
type ObjectKind string

const (
	ObjectAccountController              ObjectKind = "AccountController"
	ObjectAnonymousTokenController       ObjectKind = "AnonymousTokenController"
	ObjectCertificate                    ObjectKind = "Certificate"
	ObjectDeviceController               ObjectKind = "DeviceController"
	ObjectDeviceSecretController         ObjectKind = "DeviceSecretController"
	ObjectFileController                 ObjectKind = "FileController"
	ObjectIdentityController             ObjectKind = "IdentityController"
	ObjectMessageController              ObjectKind = "MessageController"
	ObjectRelationshipTemplateController ObjectKind = "RelationshipTemplateController"
	ObjectRelationshipsController        ObjectKind = "RelationshipsController"
	ObjectRelationshipSecretController   ObjectKind = "RelationshipSecretController"
	ObjectSecretController               ObjectKind = "SecretController"
	ObjectTokenController                ObjectKind = "TokenController"
)

// OperationKind is the cryptographic operation a key is used for.
type OperationKind string

const (
	OpSignature  OperationKind = "signature"
	OpEncryption OperationKind = "encryption"
	OpDerivation OperationKind = "derivation"
	OpExchange   OperationKind = "exchange"
)

// Purpose narrows a tier preference beyond object and operation.
type Purpose string

const (
	// PurposeDefault is the generic use of a key. An absent purpose is
	// treated as PurposeDefault.
	PurposeDefault Purpose = "default"
	// PurposeDeviceKeyPair is a device's own long-term key pair.
	PurposeDeviceKeyPair Purpose = "deviceKeyPair"
	// PurposeDeviceSecretBaseKey is the base key device secrets derive from.
	PurposeDeviceSecretBaseKey Purpose = "deviceSecretBaseKey"
)

// legalOperations validates which operations each object kind may request.
// A lookup miss means the object kind itself is unknown and nothing is legal.
var legalOperations = map[ObjectKind][]OperationKind{
	ObjectAccountController:              {OpEncryption, OpSignature},
	ObjectAnonymousTokenController:       {OpDerivation},
	ObjectCertificate:                    {OpEncryption},
	ObjectDeviceController:               {OpSignature, OpEncryption},
	ObjectDeviceSecretController:         {OpDerivation, OpEncryption},
	ObjectFileController:                 {OpEncryption},
	ObjectIdentityController:             {OpEncryption},
	ObjectMessageController:              {OpEncryption},
	ObjectRelationshipTemplateController: {OpDerivation, OpEncryption},
	ObjectRelationshipsController:        {OpEncryption},
	ObjectRelationshipSecretController:   {OpEncryption},
	ObjectSecretController:               {OpEncryption, OpExchange},
	ObjectTokenController:                {OpEncryption},
}

// tierPreference is either a flat tier for an (object, operation) pair or a
// map of purposes to tiers.
type tierPreference struct {
	flat      SecurityTier
	hasFlat   bool
	byPurpose map[Purpose]SecurityTier
}

func flatTier(t SecurityTier) tierPreference {
	return tierPreference{flat: t, hasFlat: true}
}

func purposeTiers(m map[Purpose]SecurityTier) tierPreference {
	return tierPreference{byPurpose: m}
}

// objectOperationPreferences holds per-object, per-operation preferences.
// A device's long-term keys warrant hardware assurance even though general
// purpose message encryption does not.
var objectOperationPreferences = map[ObjectKind]map[OperationKind]tierPreference{
	ObjectAccountController: {
		OpSignature: purposeTiers(map[Purpose]SecurityTier{
			PurposeDeviceKeyPair: TierHardware,
			PurposeDefault:       TierSoftware,
		}),
		OpEncryption: purposeTiers(map[Purpose]SecurityTier{
			PurposeDefault:             TierSoftware,
			PurposeDeviceSecretBaseKey: TierHardware,
		}),
	},
	ObjectAnonymousTokenController: {
		OpDerivation: flatTier(TierSoftware),
	},
	ObjectDeviceSecretController: {
		OpEncryption: flatTier(TierHardware),
	},
	ObjectFileController: {
		OpEncryption: flatTier(TierSoftware),
	},
	ObjectMessageController: {
		OpEncryption: flatTier(TierSoftware),
	},
	ObjectRelationshipTemplateController: {
		OpEncryption: flatTier(TierSoftware),
	},
	ObjectSecretController: {
		OpExchange: flatTier(TierSoftware),
	},
	ObjectTokenController: {
		OpEncryption: flatTier(TierSoftware),
	},
}

// defaultOperationPreferences applies when no object-specific preference
// matches, regardless of the object kind.
var defaultOperationPreferences = map[OperationKind]SecurityTier{
	OpDerivation: TierSoftware,
	OpSignature:  TierHardware,
	OpEncryption: TierSoftware,
	OpExchange:   TierSoftware,
}

// fallbackTier is the absolute fallback when no preference matches, and the
// substitute when the resolved tier has no available provider.
const fallbackTier = TierSoftware

// ProviderRegistry reports whether any crypto provider exists for a tier.
type ProviderRegistry interface {
	HasProviderForTier(tier SecurityTier) bool
}

// Selector resolves security tiers against the static policy tables and the
// live provider set.
type Selector struct {
	providers ProviderRegistry
}

// NewSelector creates a selector over the given provider registry.
func NewSelector(providers ProviderRegistry) *Selector {
	return &Selector{providers: providers}
}

// SelectTier returns the security tier for a key used by the given object
// kind and operation. An empty purpose is treated as PurposeDefault.
//
// Resolution order, first match wins:
//  1. purpose-specific preference for (object, operation)
//  2. flat preference for (object, operation)
//  3. default preference for the operation
//  4. the Software fallback
//
// After resolution the tier is checked for provider availability exactly
// once: an unavailable tier is substituted by the fallback, and an
// unavailable fallback fails with ErrNoProviderAvailable. All other paths
// degrade gracefully.
func (s *Selector) SelectTier(object ObjectKind, operation OperationKind, purpose Purpose) (SecurityTier, error) {
	allowed, ok := legalOperations[object]
	if !ok || !containsOperation(allowed, operation) {
		return 0, interfaces.ErrUnsupportedOperation
	}

	if purpose == "" {
		purpose = PurposeDefault
	}

	tier, resolved := resolvePreference(object, operation, purpose)
	if !resolved {
		if opDefault, ok := defaultOperationPreferences[operation]; ok {
			tier = opDefault
		} else {
			tier = fallbackTier
		}
	}

	if s.providers.HasProviderForTier(tier) {
		return tier, nil
	}
	if !s.providers.HasProviderForTier(fallbackTier) {
		return 0, interfaces.ErrNoProviderAvailable
	}
	return fallbackTier, nil
}

// resolvePreference checks the object+operation preference table, purpose
// entries first.
func resolvePreference(object ObjectKind, operation OperationKind, purpose Purpose) (SecurityTier, bool) {
	operationPrefs, ok := objectOperationPreferences[object]
	if !ok {
		return 0, false
	}
	pref, ok := operationPrefs[operation]
	if !ok {
		return 0, false
	}
	if pref.byPurpose != nil {
		if tier, ok := pref.byPurpose[purpose]; ok {
			return tier, true
		}
		return 0, false
	}
	if pref.hasFlat {
		return pref.flat, true
	}
	return 0, false
}

func containsOperation(ops []OperationKind, op OperationKind) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}
