package core

import (
	"context"
	"testing"

	"review-gateway/core/security"
	"review-gateway/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecryptKeys(t *testing.T) {
	sp, err := security.NewAESSecretProvider("a passphrase of any length")
	require.NoError(t, err)

	enc, err := EncryptKey(sp, "sk-live")
	require.NoError(t, err)
	assert.True(t, len(enc) > len(EncryptedPrefix))

	keys, err := DecryptKeys(sp, []string{"sk-plain", enc})
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-plain", "sk-live"}, keys)

	keys, err = DecryptKeys(sp, []string{enc, "enc:%%%", "sk-plain"})
	assert.Error(t, err)
	assert.Equal(t, []string{"sk-live", "sk-plain"}, keys)
}

func TestNoOpSecretProvider(t *testing.T) {
	sp := NewNoOpSecretProvider()
	enc, err := EncryptKey(sp, "sk-x")
	require.NoError(t, err)
	assert.Equal(t, "enc:sk-x", enc)

	keys, err := DecryptKeys(sp, []string{enc})
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-x"}, keys)
}

func TestGatewayAuthorizer(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := models.InitializeDefaultData(db)
	require.NoError(t, err)

	auth, err := NewGatewayAuthorizer(ctx, db)
	require.NoError(t, err)
	assert.False(t, auth.Enabled())
	assert.True(t, auth.Authorize(ctx, ""))

	require.NoError(t, db.Model(&models.GatewaySettings{}).Where("1 = 1").Update("gateway_token", "gw-secret").Error)
	require.NoError(t, auth.Refresh(ctx))

	assert.True(t, auth.Enabled())
	assert.True(t, auth.Authorize(ctx, "gw-secret"))
	assert.False(t, auth.Authorize(ctx, "gw-secre"))
	assert.False(t, auth.Authorize(ctx, ""))
	assert.Equal(t, "gw-***cret", auth.TokenPreview())
}

func TestGatewayAuthorizer_SetToken(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := models.InitializeDefaultData(db)
	require.NoError(t, err)

	auth, err := NewGatewayAuthorizer(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "", auth.TokenPreview())

	require.NoError(t, auth.SetToken(ctx, "  gw-new-token  "))
	assert.True(t, auth.Enabled())
	assert.True(t, auth.Authorize(ctx, "gw-new-token"))

	var settings models.GatewaySettings
	require.NoError(t, db.First(&settings).Error)
	assert.Equal(t, "gw-new-token", settings.GatewayToken)

	// 另一个实例从数据库读到同一个 token
	other, err := NewGatewayAuthorizer(ctx, db)
	require.NoError(t, err)
	assert.True(t, other.Authorize(ctx, "gw-new-token"))

	require.NoError(t, auth.SetToken(ctx, ""))
	assert.False(t, auth.Enabled())
	assert.True(t, auth.Authorize(ctx, "anything"))
}
