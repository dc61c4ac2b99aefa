package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/idmesh/reference-resolution-backend/accounts"
	"github.com/idmesh/reference-resolution-backend/backbone"
	"github.com/idmesh/reference-resolution-backend/common"
	"github.com/idmesh/reference-resolution-backend/cryptotier"
	"github.com/idmesh/reference-resolution-backend/interfaces"
	"github.com/idmesh/reference-resolution-backend/reference"
	"github.com/idmesh/reference-resolution-backend/resolver"
	"github.com/idmesh/reference-resolution-backend/uibridge"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "backbone-addr",
		Value: "http://127.0.0.1:8080",
		Usage: "backbone endpoint to resolve references against",
	},
	&cli.StringFlag{
		Name:  "discover-domain",
		Value: "",
		Usage: "discover the backbone endpoint via DNS SRV under this domain instead of backbone-addr",
	},
	&cli.StringFlag{
		Name:  "dns-resolver",
		Value: "",
		Usage: "DNS resolver address for SRV discovery (host:port)",
	},
	&cli.StringFlag{
		Name:  "accounts-dir",
		Value: ".",
		Usage: "directory holding the local accounts file",
	},
	&cli.StringFlag{
		Name:  "vault-accounts-addr",
		Value: "",
		Usage: "store accounts in Vault at this address instead of the local file",
	},
	&cli.StringFlag{
		Name:  "vault-token",
		Value: "",
		Usage: "Vault token for account storage and the network crypto tier",
	},
	&cli.StringFlag{
		Name:  "vault-crypto-addr",
		Value: "",
		Usage: "Vault address backing the network crypto tier (empty disables it)",
	},
	&cli.StringFlag{
		Name:  "download-dir",
		Value: ".",
		Usage: "directory resolved files are saved to",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
}

func main() {
	app := &cli.App{
		Name:  "resolver",
		Usage: "Resolve content reference codes against an identity backbone",
		Flags: flags,
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "resolve a reference code or URL",
				ArgsUsage: "<code-or-url>",
				Action: func(cCtx *cli.Context) error {
					app, err := newResolverApp(cCtx)
					if err != nil {
						return err
					}
					return app.Resolve(cCtx.Args().First())
				},
			},
			{
				Name:      "onboard",
				Usage:     "resolve a device onboarding code",
				ArgsUsage: "<code>",
				Action: func(cCtx *cli.Context) error {
					app, err := newResolverApp(cCtx)
					if err != nil {
						return err
					}
					return app.Onboard(cCtx.Args().First())
				},
			},
			{
				Name:      "account-add",
				Usage:     "register a local account",
				ArgsUsage: "<address>",
				Action: func(cCtx *cli.Context) error {
					app, err := newResolverApp(cCtx)
					if err != nil {
						return err
					}
					return app.AccountAdd(cCtx.Args().First())
				},
			},
			{
				Name:  "account-list",
				Usage: "list local accounts not in deletion",
				Action: func(cCtx *cli.Context) error {
					app, err := newResolverApp(cCtx)
					if err != nil {
						return err
					}
					return app.AccountList()
				},
			},
			{
				Name:  "crypto-tiers",
				Usage: "show the effective security tier per key class",
				Action: func(cCtx *cli.Context) error {
					app, err := newResolverApp(cCtx)
					if err != nil {
						return err
					}
					return app.CryptoTiers()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type resolverApp struct {
	dispatcher *resolver.Dispatcher
	store      interfaces.AccountStore
	selector   *cryptotier.Selector
	out        *uibridge.TerminalBridge
}

func newResolverApp(cCtx *cli.Context) (*resolverApp, error) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool("log-debug"),
		JSON:    cCtx.Bool("log-json"),
		Service: common.PackageName,
		Version: common.Version,
		UID:     cCtx.Bool("log-uid"),
	})

	serverAddr := cCtx.String("backbone-addr")
	if domain := cCtx.String("discover-domain"); domain != "" {
		endpoints, err := backbone.DiscoverEndpoints(cCtx.String("dns-resolver"), domain)
		if err != nil {
			logger.Error("Backbone discovery failed", "domain", domain, "err", err)
			return nil, err
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("domain %s publishes no backbone endpoints", domain)
		}
		serverAddr = "https://" + endpoints[0]
		logger.Info("Discovered backbone endpoint", "addr", serverAddr)
	}
	client := backbone.NewClient(serverAddr, logger)

	var store interfaces.AccountStore
	if vaultAddr := cCtx.String("vault-accounts-addr"); vaultAddr != "" {
		vaultStore, err := accounts.NewVaultStore(vaultAddr, cCtx.String("vault-token"), "secret", "idmesh", logger)
		if err != nil {
			logger.Error("Failed to connect account store", "err", err)
			return nil, err
		}
		store = vaultStore
	} else {
		fileStore, err := accounts.NewFileStore(cCtx.String("accounts-dir"), logger)
		if err != nil {
			logger.Error("Failed to open account store", "err", err)
			return nil, err
		}
		store = fileStore
	}

	bridge := uibridge.NewTerminalBridge(cCtx.String("download-dir"), logger)
	accountResolver := accounts.NewResolver(store, bridge, logger)

	providers := []cryptotier.Provider{
		cryptotier.SoftwareProvider{},
		cryptotier.NewTDXHardwareProvider(logger),
	}
	if vaultAddr := cCtx.String("vault-crypto-addr"); vaultAddr != "" {
		networkProvider, err := cryptotier.NewVaultNetworkProvider(vaultAddr, cCtx.String("vault-token"), logger)
		if err != nil {
			logger.Error("Failed to configure network crypto tier", "err", err)
			return nil, err
		}
		providers = append(providers, networkProvider)
	}
	registry := cryptotier.NewRegistry(providers, logger)
	selector := cryptotier.NewSelector(registry)

	dispatcher := resolver.New(reference.Codec{}, client, client, accountResolver, bridge, logger)

	return &resolverApp{
		dispatcher: dispatcher,
		store:      store,
		selector:   selector,
		out:        bridge,
	}, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (a *resolverApp) Resolve(code string) error {
	if code == "" {
		return fmt.Errorf("a reference code or URL is required")
	}

	ctx, cancel := commandContext()
	defer cancel()

	var resolved *interfaces.ResolvedObject
	var err error
	if looksLikeURL(code) {
		resolved, err = a.dispatcher.ProcessURL(ctx, code, nil)
	} else {
		resolved, err = a.dispatcher.ProcessReference(ctx, code, nil)
	}
	if err != nil {
		return err
	}
	if resolved == nil {
		fmt.Fprintln(a.out.Out, "Cancelled.")
		return nil
	}

	switch resolved.Kind {
	case interfaces.ResolvedFile:
		// The bridge already saved the file.
	case interfaces.ResolvedRelationshipTemplate:
		fmt.Fprintf(a.out.Out, "Relationship template %s loaded for %s.\n",
			resolved.RelationshipTemplate.ID, resolved.Account.Address)
	case interfaces.ResolvedUnsupportedToken:
		fmt.Fprintln(a.out.Out, "The token content is not supported by this client.")
	default:
		fmt.Fprintf(a.out.Out, "Resolved: %s\n", resolved.Kind)
	}
	return nil
}

func (a *resolverApp) Onboard(code string) error {
	if code == "" {
		return fmt.Errorf("an onboarding code is required")
	}

	ctx, cancel := commandContext()
	defer cancel()

	resolved, err := a.dispatcher.ProcessDeviceOnboardingReference(ctx, code)
	if err != nil {
		return err
	}
	if resolved == nil {
		fmt.Fprintln(a.out.Out, "Cancelled.")
	}
	return nil
}

func (a *resolverApp) AccountAdd(address string) error {
	if address == "" {
		return fmt.Errorf("an account address is required")
	}

	adder, ok := a.store.(interface {
		Add(ctx context.Context, address string) (interfaces.AccountContext, error)
	})
	if !ok {
		return fmt.Errorf("the configured account store does not support adding accounts")
	}

	ctx, cancel := commandContext()
	defer cancel()

	account, err := adder.Add(ctx, address)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out.Out, "Added account %s (%s)\n", account.Address, account.ID)
	return nil
}

func (a *resolverApp) AccountList() error {
	ctx, cancel := commandContext()
	defer cancel()

	list, err := a.store.AccountsNotInDeletion(ctx)
	if err != nil {
		return err
	}
	for _, account := range list {
		fmt.Fprintf(a.out.Out, "%s\t%s\n", account.ID, account.Address)
	}
	return nil
}

// CryptoTiers prints the resolved tier for every legal object/operation
// pair against the currently available providers.
func (a *resolverApp) CryptoTiers() error {
	objects := []cryptotier.ObjectKind{
		cryptotier.ObjectAccountController,
		cryptotier.ObjectAnonymousTokenController,
		cryptotier.ObjectCertificate,
		cryptotier.ObjectDeviceController,
		cryptotier.ObjectDeviceSecretController,
		cryptotier.ObjectFileController,
		cryptotier.ObjectIdentityController,
		cryptotier.ObjectMessageController,
		cryptotier.ObjectRelationshipTemplateController,
		cryptotier.ObjectRelationshipsController,
		cryptotier.ObjectRelationshipSecretController,
		cryptotier.ObjectSecretController,
		cryptotier.ObjectTokenController,
	}
	operations := []cryptotier.OperationKind{
		cryptotier.OpSignature,
		cryptotier.OpEncryption,
		cryptotier.OpDerivation,
		cryptotier.OpExchange,
	}

	for _, object := range objects {
		for _, operation := range operations {
			tier, err := a.selector.SelectTier(object, operation, "")
			if err != nil {
				continue
			}
			fmt.Fprintf(a.out.Out, "%s\t%s\t%s\n", object, operation, tier)
		}
	}
	return nil
}

func looksLikeURL(code string) bool {
	for _, prefix := range []string{"http://", "https://", "idmesh:"} {
		if len(code) >= len(prefix) && code[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
