package cryptotier

import (
	"context"
	"log/slog"
	"time"

	tdxclient "github.com/google/go-tdx-guest/client"
	vaultapi "github.com/hashicorp/vault/api"
)

// Provider exposes availability for one security tier. Providers only report
// availability here; performing key operations is the crypto layer's job.
type Provider interface {
	// Tier returns the security tier this provider backs.
	Tier() SecurityTier

	// Name returns a short provider identifier for logging.
	Name() string

	// Available checks whether the provider can currently serve operations.
	Available(ctx context.Context) bool
}

// availabilityTimeout bounds live provider probes so tier selection cannot
// hang on a slow network provider.
const availabilityTimeout = 3 * time.Second

// Registry holds the configured providers and answers tier availability for
// the selector.
type Registry struct {
	providers []Provider
	log       *slog.Logger
}

// NewRegistry creates a provider registry.
func NewRegistry(providers []Provider, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{providers: providers, log: log}
}

// HasProviderForTier reports whether any available provider backs the tier.
func (r *Registry) HasProviderForTier(tier SecurityTier) bool {
	for _, provider := range r.providers {
		if provider.Tier() != tier {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), availabilityTimeout)
		available := provider.Available(ctx)
		cancel()

		if available {
			return true
		}
		r.log.Debug("Provider unavailable",
			slog.String("provider", provider.Name()),
			slog.String("tier", tier.String()))
	}
	return false
}

// SoftwareProvider is the in-process provider. It is always available.
type SoftwareProvider struct{}

func (SoftwareProvider) Tier() SecurityTier               { return TierSoftware }
func (SoftwareProvider) Name() string                     { return "software" }
func (SoftwareProvider) Available(_ context.Context) bool { return true }

// TDXHardwareProvider backs the hardware tier with an Intel TDX quote
// provider. Availability means the platform exposes a usable TDX interface.
type TDXHardwareProvider struct {
	log *slog.Logger
}

// NewTDXHardwareProvider creates a hardware provider probing for TDX support.
func NewTDXHardwareProvider(log *slog.Logger) *TDXHardwareProvider {
	if log == nil {
		log = slog.Default()
	}
	return &TDXHardwareProvider{log: log}
}

func (p *TDXHardwareProvider) Tier() SecurityTier { return TierHardware }
func (p *TDXHardwareProvider) Name() string       { return "tdx" }

// Available probes the platform for a TDX quote provider.
func (p *TDXHardwareProvider) Available(_ context.Context) bool {
	quoteProvider, err := tdxclient.GetQuoteProvider()
	if err != nil {
		p.log.Debug("No TDX quote provider", "err", err)
		return false
	}
	if err := quoteProvider.IsSupported(); err != nil {
		p.log.Debug("TDX quote provider not supported on this platform", "err", err)
		return false
	}
	return true
}

// VaultNetworkProvider backs the network tier with a HashiCorp Vault server.
// Availability means the server answers its health endpoint, is initialized
// and unsealed.
type VaultNetworkProvider struct {
	client *vaultapi.Client
	log    *slog.Logger
}

// NewVaultNetworkProvider creates a network provider for the given Vault
// address. The token may be empty; the health endpoint is unauthenticated.
func NewVaultNetworkProvider(address, token string, log *slog.Logger) (*VaultNetworkProvider, error) {
	if log == nil {
		log = slog.Default()
	}

	config := vaultapi.DefaultConfig()
	config.Address = address

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, err
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultNetworkProvider{client: client, log: log}, nil
}

func (p *VaultNetworkProvider) Tier() SecurityTier { return TierNetwork }
func (p *VaultNetworkProvider) Name() string       { return "vault" }

// Available checks the Vault health endpoint.
func (p *VaultNetworkProvider) Available(ctx context.Context) bool {
	health, err := p.client.Sys().HealthWithContext(ctx)
	if err != nil {
		p.log.Debug("Vault health check failed", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}
