package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known hardhat account #0.
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testIters   = 1000
)

func TestEncryptDecrypt(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2", testIters)
	require.NoError(t, err)

	var kf keyFile
	require.NoError(t, json.Unmarshal(blob, &kf))
	assert.Equal(t, testAddress, kf.Address)
	assert.Equal(t, testIters, kf.Iterations)

	key, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testAddress, ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "right", testIters)
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestDecryptKey_TamperedAddress(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "pw", testIters)
	require.NoError(t, err)

	var kf keyFile
	require.NoError(t, json.Unmarshal(blob, &kf))
	kf.Address = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	tampered, err := json.Marshal(kf)
	require.NoError(t, err)

	_, err = DecryptKey(tampered, "pw")
	assert.Error(t, err)
}

func TestEncryptKey_Rejects(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "", testIters)
	assert.Error(t, err)

	_, err = EncryptKey("not-hex", "pw", testIters)
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	t.Run("raw key wins", func(t *testing.T) {
		key, err := LoadKey(KeySource{PrivateKey: "0x" + testKeyHex, KeyFile: "/does/not/exist"})
		require.NoError(t, err)
		assert.Equal(t, testAddress, ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	})

	t.Run("key file", func(t *testing.T) {
		blob, err := EncryptKey(testKeyHex, "pw", testIters)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "wallet.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		key, err := LoadKey(KeySource{KeyFile: path, Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, testAddress, ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := LoadKey(KeySource{})
		assert.ErrorIs(t, err, ErrNoKeySource)
	})
}
