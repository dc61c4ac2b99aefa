package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idmesh/reference-resolution-backend/interfaces"
	"github.com/idmesh/reference-resolution-backend/reference"
)

var testAccount = interfaces.AccountContext{
	ID:      "acc-1",
	Address: "did:e:example:dids:0a1b2c3d4e5f6a7b8c9df3b4",
}

var testSecretKey = []byte("0123456789abcdef0123456789abcdef")

// fakeAccounts is a canned account resolver recording the suffix hints it saw.
type fakeAccounts struct {
	account  *interfaces.AccountContext
	err      error
	suffixes []string
}

func (f *fakeAccounts) Resolve(_ context.Context, identitySuffix string) (*interfaces.AccountContext, error) {
	f.suffixes = append(f.suffixes, identitySuffix)
	return f.account, f.err
}

// fakeBridge scripts password prompts and records handoffs. Prompts past the
// end of the script cancel.
type fakeBridge struct {
	passwords       []string
	prompts         int
	shownFiles      []*interfaces.FileRecord
	shownOnboarding []*interfaces.DeviceOnboardingInfo
}

func (f *fakeBridge) EnterPassword(_ context.Context, _ interfaces.PasswordRequest) (string, bool, error) {
	if f.prompts >= len(f.passwords) {
		return "", false, nil
	}
	password := f.passwords[f.prompts]
	f.prompts++
	return password, true, nil
}

func (f *fakeBridge) RequestAccountSelection(_ context.Context, candidates []interfaces.AccountContext, _, _ string) (*interfaces.AccountContext, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (f *fakeBridge) ShowFile(_ context.Context, _ interfaces.AccountContext, file *interfaces.FileRecord) error {
	f.shownFiles = append(f.shownFiles, file)
	return nil
}

func (f *fakeBridge) ShowDeviceOnboarding(_ context.Context, info *interfaces.DeviceOnboardingInfo) error {
	f.shownOnboarding = append(f.shownOnboarding, info)
	return nil
}

type fakeTokens struct {
	fn func(ctx context.Context, ref interfaces.ContentReference, password string) (*interfaces.TokenPayload, error)
}

func (f *fakeTokens) LoadPeerToken(ctx context.Context, ref interfaces.ContentReference, password string) (*interfaces.TokenPayload, error) {
	return f.fn(ctx, ref, password)
}

type fakeTransport struct {
	fn func(ctx context.Context, ref interfaces.ContentReference, password string) (*interfaces.AccountItem, error)
}

func (f *fakeTransport) LoadItemFromReference(ctx context.Context, ref interfaces.ContentReference, password string) (*interfaces.AccountItem, error) {
	return f.fn(ctx, ref, password)
}

type fakeSessions struct {
	transport interfaces.AccountTransport
	err       error
}

func (f *fakeSessions) ServicesFor(_ context.Context, _ string) (interfaces.AccountTransport, error) {
	return f.transport, f.err
}

func encode(ref interfaces.ContentReference) string {
	return reference.Codec{}.Truncate(ref)
}

func tokenWithContent(content string) *interfaces.TokenPayload {
	return &interfaces.TokenPayload{ID: "TOKabcdef123", Content: json.RawMessage(content)}
}

func templateContent(forIdentity string, protection string) string {
	payload := `{"@type":"TokenContentRelationshipTemplate","templateId":"RLTtpl456789","secretKey":"c2VjcmV0"`
	if forIdentity != "" {
		payload += fmt.Sprintf(`,"forIdentity":%q`, forIdentity)
	}
	if protection != "" {
		payload += fmt.Sprintf(`,"passwordProtection":%s`, protection)
	}
	return payload + "}"
}

func newTestDispatcher(tokens *fakeTokens, sessions *fakeSessions, accounts *fakeAccounts, bridge *fakeBridge) *Dispatcher {
	return New(reference.Codec{}, tokens, sessions, accounts, bridge, nil)
}

func TestProcessURL(t *testing.T) {
	ref := interfaces.ContentReference{ID: "FILabcdef123", SecretKey: testSecretKey}
	code := encode(ref)

	item := &interfaces.AccountItem{Kind: interfaces.ItemKindFile, File: &interfaces.FileRecord{ID: "FILabcdef123"}}
	urls := []struct {
		name string
		url  string
	}{
		{name: "fragment", url: "https://app.example.com/r#" + code},
		{name: "path segment", url: "https://app.example.com/open/" + code},
		{name: "custom scheme", url: "idmesh:" + code},
		{name: "surrounding whitespace", url: "  https://app.example.com/r#" + code + "\n"},
	}

	for _, tc := range urls {
		t.Run(tc.name, func(t *testing.T) {
			bridge := &fakeBridge{}
			dispatcher := newTestDispatcher(
				&fakeTokens{},
				&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.AccountItem, error) {
					return item, nil
				}}},
				&fakeAccounts{account: &testAccount},
				bridge,
			)

			resolved, err := dispatcher.ProcessURL(context.Background(), tc.url, nil)
			require.NoError(t, err)
			require.NotNil(t, resolved)
			assert.Equal(t, interfaces.ResolvedFile, resolved.Kind)
		})
	}
}

func TestProcessURLRejectsWrongSchemes(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeTokens{}, &fakeSessions{}, &fakeAccounts{}, &fakeBridge{})

	for _, url := range []string{"ftp://example.com/#x", "mailto:x@example.com", "not a url", ""} {
		_, err := dispatcher.ProcessURL(context.Background(), url, nil)
		assert.ErrorIs(t, err, interfaces.ErrWrongURL, "url %q", url)
	}
}

func TestProcessReferenceInvalidCode(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeTokens{}, &fakeSessions{}, &fakeAccounts{}, &fakeBridge{})

	_, err := dispatcher.ProcessReference(context.Background(), "definitely-not-a-reference", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidReference)
}

func TestProcessReferenceUnknownNamespace(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeTokens{}, &fakeSessions{}, &fakeAccounts{}, &fakeBridge{})

	code := encode(interfaces.ContentReference{ID: "XYZabcdef123", SecretKey: testSecretKey})
	_, err := dispatcher.ProcessReference(context.Background(), code, nil)
	assert.ErrorIs(t, err, interfaces.ErrWrongCode)
}

func TestFileReferenceResolvesThroughAccount(t *testing.T) {
	file := &interfaces.FileRecord{ID: "FILabcdef123", Filename: "invoice.pdf"}
	accounts := &fakeAccounts{account: &testAccount}
	bridge := &fakeBridge{}

	dispatcher := newTestDispatcher(
		&fakeTokens{},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, ref interfaces.ContentReference, password string) (*interfaces.AccountItem, error) {
			assert.Equal(t, "FILabcdef123", ref.ID)
			assert.Empty(t, password)
			return &interfaces.AccountItem{Kind: interfaces.ItemKindFile, File: file}, nil
		}}},
		accounts,
		bridge,
	)

	code := encode(interfaces.ContentReference{ID: "FILabcdef123", SecretKey: testSecretKey, IdentitySuffix: "f3b4"})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, interfaces.ResolvedFile, resolved.Kind)
	assert.Equal(t, file, resolved.File)
	assert.Equal(t, testAccount.ID, resolved.Account.ID)
	assert.Equal(t, []string{"f3b4"}, accounts.suffixes)
	assert.Equal(t, []*interfaces.FileRecord{file}, bridge.shownFiles)
}

func TestFileReferenceAccountSelectionCancelled(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeTokens{}, &fakeSessions{}, &fakeAccounts{account: nil}, &fakeBridge{})

	code := encode(interfaces.ContentReference{ID: "FILabcdef123", SecretKey: testSecretKey})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestExplicitAccountSkipsSelection(t *testing.T) {
	accounts := &fakeAccounts{}
	dispatcher := newTestDispatcher(
		&fakeTokens{},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.AccountItem, error) {
			return &interfaces.AccountItem{Kind: interfaces.ItemKindFile, File: &interfaces.FileRecord{}}, nil
		}}},
		accounts,
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{ID: "FILabcdef123", SecretKey: testSecretKey})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, &testAccount)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Empty(t, accounts.suffixes, "explicit account must bypass account resolution")
}

func TestProtectedFileReferenceRetriesUntilCorrectPassword(t *testing.T) {
	bridge := &fakeBridge{passwords: []string{"wrong1", "wrong2", "opensesame"}}

	dispatcher := newTestDispatcher(
		&fakeTokens{},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, password string) (*interfaces.AccountItem, error) {
			if password != "opensesame" {
				return nil, interfaces.ErrRecordNotFound
			}
			return &interfaces.AccountItem{Kind: interfaces.ItemKindFile, File: &interfaces.FileRecord{}}, nil
		}}},
		&fakeAccounts{account: &testAccount},
		bridge,
	)

	code := encode(interfaces.ContentReference{
		ID:         "FILabcdef123",
		SecretKey:  testSecretKey,
		Protection: &interfaces.PasswordProtection{Kind: interfaces.PasswordKindFreeForm},
	})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, 3, bridge.prompts)
}

func TestProtectedFileReferencePromptCancelled(t *testing.T) {
	dispatcher := newTestDispatcher(
		&fakeTokens{},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.AccountItem, error) {
			return nil, interfaces.ErrRecordNotFound
		}}},
		&fakeAccounts{account: &testAccount},
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{
		ID:         "FILabcdef123",
		SecretKey:  testSecretKey,
		Protection: &interfaces.PasswordProtection{Kind: interfaces.PasswordKindFreeForm},
	})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestTokenWithRelationshipTemplate(t *testing.T) {
	accounts := &fakeAccounts{account: &testAccount}
	template := &interfaces.RelationshipTemplate{ID: "RLTtpl456789"}

	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, ref interfaces.ContentReference, password string) (*interfaces.TokenPayload, error) {
			assert.Equal(t, "TOKabcdef123", ref.ID)
			assert.Empty(t, password)
			return tokenWithContent(templateContent("did:e:example:dids:f3b4", "")), nil
		}},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, ref interfaces.ContentReference, _ string) (*interfaces.AccountItem, error) {
			assert.Equal(t, "RLTtpl456789", ref.ID, "the follow-up fetch targets the wrapped template")
			return &interfaces.AccountItem{Kind: interfaces.ItemKindRelationshipTemplate, RelationshipTemplate: template}, nil
		}}},
		accounts,
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, interfaces.ResolvedRelationshipTemplate, resolved.Kind)
	assert.Equal(t, template, resolved.RelationshipTemplate)
	assert.Equal(t, []string{"did:e:example:dids:f3b4"}, accounts.suffixes,
		"account binding uses the identity hint from the token content")
}

func TestTokenPasswordReusedForUnprotectedTemplate(t *testing.T) {
	bridge := &fakeBridge{passwords: []string{"tokensecret"}}

	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, password string) (*interfaces.TokenPayload, error) {
			if password != "tokensecret" {
				return nil, interfaces.ErrRecordNotFound
			}
			return tokenWithContent(templateContent("", "")), nil
		}},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, password string) (*interfaces.AccountItem, error) {
			assert.Equal(t, "tokensecret", password, "the token password is reused for the unprotected template")
			return &interfaces.AccountItem{Kind: interfaces.ItemKindRelationshipTemplate, RelationshipTemplate: &interfaces.RelationshipTemplate{}}, nil
		}}},
		&fakeAccounts{account: &testAccount},
		bridge,
	)

	code := encode(interfaces.ContentReference{
		ID:         "TOKabcdef123",
		SecretKey:  testSecretKey,
		Protection: &interfaces.PasswordProtection{Kind: interfaces.PasswordKindFreeForm},
	})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, 1, bridge.prompts, "no second prompt for an unprotected template")
}

func TestProtectedTemplatePromptsSeparately(t *testing.T) {
	bridge := &fakeBridge{passwords: []string{"tokensecret", "templatesecret"}}

	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, password string) (*interfaces.TokenPayload, error) {
			if password != "tokensecret" {
				return nil, interfaces.ErrRecordNotFound
			}
			return tokenWithContent(templateContent("", `{"kind":"pw"}`)), nil
		}},
		&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, password string) (*interfaces.AccountItem, error) {
			if password != "templatesecret" {
				return nil, interfaces.ErrRecordNotFound
			}
			return &interfaces.AccountItem{Kind: interfaces.ItemKindRelationshipTemplate, RelationshipTemplate: &interfaces.RelationshipTemplate{}}, nil
		}}},
		&fakeAccounts{account: &testAccount},
		bridge,
	)

	code := encode(interfaces.ContentReference{
		ID:         "TOKabcdef123",
		SecretKey:  testSecretKey,
		Protection: &interfaces.PasswordProtection{Kind: interfaces.PasswordKindFreeForm},
	})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, 2, bridge.prompts, "a protected template is an independent password context")
}

func TestTokenWithDeviceSecretRejectedByGeneralEntry(t *testing.T) {
	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
			return tokenWithContent(`{"@type":"TokenContentDeviceSharedSecret","sharedSecret":{"deviceId":"DVC1","address":"did:e:example:dids:f3b4","sharedSecret":"c2VjcmV0"}}`), nil
		}},
		&fakeSessions{},
		&fakeAccounts{account: &testAccount},
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
	_, err := dispatcher.ProcessReference(context.Background(), code, nil)

	assert.ErrorIs(t, err, interfaces.ErrDeviceOnboardingNotAllowed)
}

func TestTokenWithUnknownContentSurfacesAsUnsupported(t *testing.T) {
	token := tokenWithContent(`{"@type":"TokenContentSomethingNew","payload":{}}`)
	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
			return token, nil
		}},
		&fakeSessions{},
		&fakeAccounts{account: &testAccount},
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, interfaces.ResolvedUnsupportedToken, resolved.Kind)
	assert.Equal(t, token, resolved.Token)
}

func TestTokenWithGarbageContent(t *testing.T) {
	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
			return tokenWithContent(`this is not json`), nil
		}},
		&fakeSessions{},
		&fakeAccounts{account: &testAccount},
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
	_, err := dispatcher.ProcessReference(context.Background(), code, nil)

	assert.ErrorIs(t, err, interfaces.ErrWrongCode)
}

func TestAccountScopedItemKinds(t *testing.T) {
	tests := []struct {
		name     string
		item     *interfaces.AccountItem
		expected error
	}{
		{
			name:     "nested token is not supported",
			item:     &interfaces.AccountItem{Kind: interfaces.ItemKindToken, Token: &interfaces.TokenPayload{}},
			expected: interfaces.ErrNotSupportedTokenContent,
		},
		{
			name:     "onboarding info is not allowed here",
			item:     &interfaces.AccountItem{Kind: interfaces.ItemKindDeviceOnboardingInfo, DeviceOnboarding: &interfaces.DeviceOnboardingInfo{}},
			expected: interfaces.ErrDeviceOnboardingNotAllowed,
		},
		{
			name:     "unknown item kind",
			item:     &interfaces.AccountItem{Kind: interfaces.ItemKind("Widget")},
			expected: interfaces.ErrWrongCode,
		},
		{
			name:     "declared file without a file value",
			item:     &interfaces.AccountItem{Kind: interfaces.ItemKindFile},
			expected: interfaces.ErrWrongCode,
		},
		{
			name:     "declared template without a template value",
			item:     &interfaces.AccountItem{Kind: interfaces.ItemKindRelationshipTemplate},
			expected: interfaces.ErrWrongCode,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := newTestDispatcher(
				&fakeTokens{},
				&fakeSessions{transport: &fakeTransport{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.AccountItem, error) {
					return tc.item, nil
				}}},
				&fakeAccounts{account: &testAccount},
				&fakeBridge{},
			)

			code := encode(interfaces.ContentReference{ID: "FILabcdef123", SecretKey: testSecretKey})
			_, err := dispatcher.ProcessReference(context.Background(), code, nil)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestProcessDeviceOnboardingReference(t *testing.T) {
	bridge := &fakeBridge{}
	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
			return tokenWithContent(`{"@type":"TokenContentDeviceSharedSecret","sharedSecret":{"deviceId":"DVC1","address":"did:e:example:dids:f3b4","sharedSecret":"c2VjcmV0"}}`), nil
		}},
		&fakeSessions{},
		&fakeAccounts{},
		bridge,
	)

	code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
	resolved, err := dispatcher.ProcessDeviceOnboardingReference(context.Background(), code)

	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, interfaces.ResolvedDeviceOnboarding, resolved.Kind)
	require.NotNil(t, resolved.DeviceOnboarding)
	assert.Equal(t, "DVC1", resolved.DeviceOnboarding.DeviceID)
	require.Len(t, bridge.shownOnboarding, 1)
}

func TestProcessDeviceOnboardingReferenceRejectsOtherContent(t *testing.T) {
	t.Run("non-token reference", func(t *testing.T) {
		dispatcher := newTestDispatcher(&fakeTokens{}, &fakeSessions{}, &fakeAccounts{}, &fakeBridge{})
		code := encode(interfaces.ContentReference{ID: "FILabcdef123", SecretKey: testSecretKey})
		_, err := dispatcher.ProcessDeviceOnboardingReference(context.Background(), code)
		assert.ErrorIs(t, err, interfaces.ErrNoDeviceOnboardingCode)
	})

	t.Run("token with template content", func(t *testing.T) {
		dispatcher := newTestDispatcher(
			&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
				return tokenWithContent(templateContent("", "")), nil
			}},
			&fakeSessions{}, &fakeAccounts{}, &fakeBridge{},
		)
		code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
		_, err := dispatcher.ProcessDeviceOnboardingReference(context.Background(), code)
		assert.ErrorIs(t, err, interfaces.ErrNoDeviceOnboardingCode)
	})

	t.Run("invalid code", func(t *testing.T) {
		dispatcher := newTestDispatcher(&fakeTokens{}, &fakeSessions{}, &fakeAccounts{}, &fakeBridge{})
		_, err := dispatcher.ProcessDeviceOnboardingReference(context.Background(), "garbage")
		assert.ErrorIs(t, err, interfaces.ErrInvalidReference)
	})

	t.Run("protected token cancelled", func(t *testing.T) {
		dispatcher := newTestDispatcher(
			&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
				return nil, interfaces.ErrRecordNotFound
			}},
			&fakeSessions{}, &fakeAccounts{}, &fakeBridge{},
		)
		code := encode(interfaces.ContentReference{
			ID:         "TOKabcdef123",
			SecretKey:  testSecretKey,
			Protection: &interfaces.PasswordProtection{Kind: interfaces.PasswordKindFreeForm},
		})
		resolved, err := dispatcher.ProcessDeviceOnboardingReference(context.Background(), code)
		require.NoError(t, err)
		assert.Nil(t, resolved)
	})
}

func TestTokenAccountSelectionCancelled(t *testing.T) {
	dispatcher := newTestDispatcher(
		&fakeTokens{fn: func(_ context.Context, _ interfaces.ContentReference, _ string) (*interfaces.TokenPayload, error) {
			return tokenWithContent(templateContent("", "")), nil
		}},
		&fakeSessions{},
		&fakeAccounts{account: nil},
		&fakeBridge{},
	)

	code := encode(interfaces.ContentReference{ID: "TOKabcdef123", SecretKey: testSecretKey})
	resolved, err := dispatcher.ProcessReference(context.Background(), code, nil)

	require.NoError(t, err)
	assert.Nil(t, resolved)
}
