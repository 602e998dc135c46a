package federation

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-relay/internal/errors"
	"github.com/jrsteele09/go-auth-relay/oauthmodel"
)

// Bridge signs the provider credential into Firebase and mints a custom token for
// the resolved account. Callers treat any error as non-fatal.
type Bridge struct {
	toolkit *IdentityToolkit
	minter  *CustomTokenMinter
}

func NewBridge(toolkit *IdentityToolkit, minter *CustomTokenMinter) (*Bridge, error) {
	if toolkit == nil {
		return nil, fmt.Errorf("[NewBridge] identity toolkit is required")
	}
	if minter == nil {
		return nil, fmt.Errorf("[NewBridge] custom token minter is required")
	}
	return &Bridge{toolkit: toolkit, minter: minter}, nil
}

func (b *Bridge) Federate(ctx context.Context, provider oauthmodel.ProviderType, idToken, accessToken string) (string, error) {
	uid, err := b.toolkit.SignInWithIdp(ctx, provider, idToken, accessToken)
	if err != nil {
		return "", err
	}
	customToken, err := b.minter.Mint(uid)
	if err != nil {
		return "", apperrors.Wrapf(err, "[Bridge.Federate] %w", apperrors.ErrFederationFailed)
	}
	return customToken, nil
}
