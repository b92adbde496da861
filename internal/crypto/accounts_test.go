package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAccounts = `# main accounts
alpha,user1,pass1,10.0.0.1:8080:pu:pp
beta,user2,pass2

gamma,user3,pass3,10.0.0.2:8080
`

func TestParseAccounts(t *testing.T) {
	accounts, err := ParseAccounts([]byte(sampleAccounts))
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, "alpha", accounts[0].Name)
	assert.Equal(t, "user1", accounts[0].Username)
	require.NotNil(t, accounts[0].Proxy)
	assert.Equal(t, "10.0.0.1", accounts[0].Proxy.Host)
	assert.Equal(t, "pu", accounts[0].Proxy.Username)

	assert.Nil(t, accounts[1].Proxy)

	require.NotNil(t, accounts[2].Proxy)
	assert.Empty(t, accounts[2].Proxy.Username)
}

func TestParseAccountsRejectsBadLines(t *testing.T) {
	_, err := ParseAccounts([]byte("alpha,user1"))
	assert.Error(t, err)

	_, err = ParseAccounts([]byte("alpha,,pass"))
	assert.Error(t, err)

	_, err = ParseAccounts([]byte("alpha,user,pass,badproxy"))
	assert.Error(t, err)

	_, err = ParseAccounts([]byte("# only comments\n"))
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptBlob([]byte(sampleAccounts), "hunter2")
	require.NoError(t, err)

	plain, err := DecryptBlob(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, sampleAccounts, string(plain))

	_, err = DecryptBlob(blob, "wrong")
	assert.Error(t, err)
}

func TestLoadAccountsEncrypted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.enc")

	blob, err := EncryptBlob([]byte(sampleAccounts), "hunter2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	accounts, err := LoadAccounts(path, "hunter2")
	require.NoError(t, err)
	assert.Len(t, accounts, 3)

	plainPath := filepath.Join(dir, "accounts.txt")
	require.NoError(t, os.WriteFile(plainPath, []byte(sampleAccounts), 0o600))
	accounts, err = LoadAccounts(plainPath, "")
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}
