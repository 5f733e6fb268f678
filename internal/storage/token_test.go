package storage

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "ORDERS#S1"},
		"SK": &types.AttributeValueMemberS{Value: "2025-01-02"},
	}

	token, err := encodeToken(key)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	decoded, err := decodeToken(token)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	pk, ok := decoded["PK"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "ORDERS#S1", pk.Value)
	sk, ok := decoded["SK"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "2025-01-02", sk.Value)
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	_, err := decodeToken("not base64!!!")
	assert.Error(t, err)
}
