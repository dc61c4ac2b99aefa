package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// MockAccountStore implements interfaces.AccountStore for testing
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) AccountsNotInDeletion(ctx context.Context) ([]interfaces.AccountContext, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.AccountContext), args.Error(1)
}

func (m *MockAccountStore) SetActiveAccount(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// MockAccountSelector implements interfaces.AccountSelector for testing
type MockAccountSelector struct {
	mock.Mock
}

func (m *MockAccountSelector) RequestAccountSelection(ctx context.Context, candidates []interfaces.AccountContext, title, description string) (*interfaces.AccountContext, error) {
	args := m.Called(ctx, candidates, title, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.AccountContext), args.Error(1)
}

var (
	accountAlice = interfaces.AccountContext{ID: "acc-1", Address: "did:e:example:dids:0a1b2c3d4e5f6a7b8c9df3b4"}
	accountBob   = interfaces.AccountContext{ID: "acc-2", Address: "did:e:example:dids:1b2c3d4e5f6a7b8c9d0e1a2b"}
	accountCarol = interfaces.AccountContext{ID: "acc-3", Address: "did:e:example:dids:9f8e7d6c5b4a3f2e1d0cf3b4"}
)

func TestResolveAutoSelectsSingleSuffixMatch(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)
	store.On("AccountsNotInDeletion", mock.Anything).Return(
		[]interfaces.AccountContext{accountAlice, accountBob}, nil)

	resolver := NewResolver(store, selector, nil)
	account, err := resolver.Resolve(context.Background(), "f3b4")

	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, accountAlice.ID, account.ID)
	selector.AssertNotCalled(t, "RequestAccountSelection", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveNoSuffixMatch(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)
	store.On("AccountsNotInDeletion", mock.Anything).Return(
		[]interfaces.AccountContext{accountAlice, accountBob}, nil)

	resolver := NewResolver(store, selector, nil)
	_, err := resolver.Resolve(context.Background(), "0000")

	assert.ErrorIs(t, err, interfaces.ErrNoAccountForIdentity)
}

func TestResolveSuffixCollisionDefersToManualSelection(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)

	// Alice and Carol share the trailing four characters.
	store.On("AccountsNotInDeletion", mock.Anything).Return(
		[]interfaces.AccountContext{accountAlice, accountBob, accountCarol}, nil)
	selector.On("RequestAccountSelection", mock.Anything,
		[]interfaces.AccountContext{accountAlice, accountCarol},
		mock.Anything, mock.Anything).Return(&accountCarol, nil)
	store.On("SetActiveAccount", mock.Anything, accountCarol.ID).Return(nil)

	resolver := NewResolver(store, selector, nil)
	account, err := resolver.Resolve(context.Background(), "f3b4")

	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, accountCarol.ID, account.ID)
	store.AssertCalled(t, "SetActiveAccount", mock.Anything, accountCarol.ID)
}

func TestResolveWithoutSuffixAlwaysAsks(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)

	candidates := []interfaces.AccountContext{accountAlice}
	store.On("AccountsNotInDeletion", mock.Anything).Return(candidates, nil)
	selector.On("RequestAccountSelection", mock.Anything, candidates,
		"i18n://uibridge.accountSelection.title",
		"i18n://uibridge.accountSelection.description").Return(&accountAlice, nil)
	store.On("SetActiveAccount", mock.Anything, accountAlice.ID).Return(nil)

	resolver := NewResolver(store, selector, nil)
	account, err := resolver.Resolve(context.Background(), "")

	require.NoError(t, err)
	require.NotNil(t, account)
	selector.AssertExpectations(t)
}

func TestResolveUserCancellation(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)
	store.On("AccountsNotInDeletion", mock.Anything).Return(
		[]interfaces.AccountContext{accountAlice}, nil)
	selector.On("RequestAccountSelection", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	resolver := NewResolver(store, selector, nil)
	account, err := resolver.Resolve(context.Background(), "")

	require.NoError(t, err)
	assert.Nil(t, account)
	store.AssertNotCalled(t, "SetActiveAccount", mock.Anything, mock.Anything)
}

func TestResolveStoreFailure(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)
	store.On("AccountsNotInDeletion", mock.Anything).Return(nil, errors.New("disk gone"))

	resolver := NewResolver(store, selector, nil)
	_, err := resolver.Resolve(context.Background(), "f3b4")

	assert.ErrorIs(t, err, interfaces.ErrNoAccountAvailable)
}

func TestResolveSelectorFailure(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)
	store.On("AccountsNotInDeletion", mock.Anything).Return(
		[]interfaces.AccountContext{accountAlice}, nil)
	selector.On("RequestAccountSelection", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("ui went away"))

	resolver := NewResolver(store, selector, nil)
	_, err := resolver.Resolve(context.Background(), "")

	assert.ErrorIs(t, err, interfaces.ErrNoAccountAvailable)
}

func TestResolveIsRepeatable(t *testing.T) {
	store := new(MockAccountStore)
	selector := new(MockAccountSelector)
	store.On("AccountsNotInDeletion", mock.Anything).Return(
		[]interfaces.AccountContext{accountAlice, accountBob}, nil)

	resolver := NewResolver(store, selector, nil)
	for i := 0; i < 3; i++ {
		account, err := resolver.Resolve(context.Background(), "f3b4")
		require.NoError(t, err)
		assert.Equal(t, accountAlice.ID, account.ID)
	}
}
