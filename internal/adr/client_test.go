package adr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusBody_EmptyBodyIsSuccessNoStatus(t *testing.T) {
	resp, err := parseStatusBody([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, &StatusResponse{}, resp)
}

func TestParseStatusBody_Object(t *testing.T) {
	resp, err := parseStatusBody([]byte(`{"statusId":11,"statusDescription":"Document Retrieval Complete","indexId":4921,"isError":false,"isFinal":true}`))
	require.NoError(t, err)
	assert.Equal(t, 11, resp.StatusID)
	assert.Equal(t, "Document Retrieval Complete", resp.StatusDescription)
	assert.Equal(t, 4921, resp.IndexID)
	assert.False(t, resp.IsError)
	assert.True(t, resp.IsFinal)
}

func TestParseStatusBody_ObjectStatusFieldSubstitutesForDescription(t *testing.T) {
	resp, err := parseStatusBody([]byte(`{"statusId":12,"Status":"Login Succeeded"}`))
	require.NoError(t, err)
	assert.Equal(t, "Login Succeeded", resp.StatusDescription)
}

func TestParseStatusBody_ObjectDerivesIsFinalWhenAbsent(t *testing.T) {
	resp, err := parseStatusBody([]byte(`{"statusId":9}`))
	require.NoError(t, err)
	assert.True(t, resp.IsFinal)

	resp, err = parseStatusBody([]byte(`{"statusId":1}`))
	require.NoError(t, err)
	assert.False(t, resp.IsFinal)
}

func TestParseStatusBody_ArrayUsesFirstElement(t *testing.T) {
	resp, err := parseStatusBody([]byte(`[{"statusId":11},{"statusId":3}]`))
	require.NoError(t, err)
	assert.Equal(t, 11, resp.StatusID)
}

func TestParseStatusBody_EmptyArray(t *testing.T) {
	resp, err := parseStatusBody([]byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, &StatusResponse{}, resp)
}

func TestParseStatusBody_BareIntegerIsIndexIDOnly(t *testing.T) {
	resp, err := parseStatusBody([]byte("4921"))
	require.NoError(t, err)
	assert.Equal(t, 4921, resp.IndexID)
	assert.Equal(t, 0, resp.StatusID)
}

func TestParseStatusBody_MalformedBodyIsParseError(t *testing.T) {
	_, err := parseStatusBody([]byte("not json at all"))
	require.Error(t, err)
}

func TestIsFinal_MatchesStatusMappingTable(t *testing.T) {
	assert.True(t, IsFinal(11))
	assert.True(t, IsFinal(9))
	assert.True(t, IsFinal(12))
	assert.True(t, IsFinal(3))
	assert.False(t, IsFinal(1))
	assert.False(t, IsFinal(13))
}

func TestIsErrorStatus(t *testing.T) {
	assert.True(t, IsErrorStatus(4))
	assert.False(t, IsErrorStatus(11))
	assert.False(t, IsErrorStatus(1))
}
