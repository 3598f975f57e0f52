package hash_ring_test

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	hash_ring "github.com/pule1234/hash_ring"
)

func TestMD5EncryptorIsBigEndianDigest(t *testing.T) {
	pos := hash_ring.NewMD5Encryptor().Encrypt("User1")

	require.Equal(t, hash_ring.Position{Hi: 0x6b908b785fdba05a, Lo: 0x6446347dae08d8c5}, pos)
	require.Equal(t, "6b908b785fdba05a6446347dae08d8c5", pos.String())
	require.Equal(t, "7e26c07a4f18dd84b24b22d3a8e46e58", hash_ring.NewMD5Encryptor().Encrypt("Server-A:0").String())
}

func TestMurmur3EncryptorIsDeterministic(t *testing.T) {
	encryptor := hash_ring.NewMurmur3Encryptor()

	require.Equal(t, encryptor.Encrypt("node:1"), encryptor.Encrypt("node:1"))
	require.NotEqual(t, encryptor.Encrypt("node:1"), encryptor.Encrypt("node:2"))
}

func TestXXHashEncryptorUsesUpperHalf(t *testing.T) {
	pos := hash_ring.NewXXHashEncryptor().Encrypt("node:1")

	require.Equal(t, xxhash.Sum64String("node:1"), pos.Hi)
	require.Zero(t, pos.Lo)
}

func TestEncryptorByName(t *testing.T) {
	for name, want := range map[string]hash_ring.Encryptor{
		"":        hash_ring.NewMD5Encryptor(),
		"md5":     hash_ring.NewMD5Encryptor(),
		"MD5":     hash_ring.NewMD5Encryptor(),
		"murmur3": hash_ring.NewMurmur3Encryptor(),
		"xxhash":  hash_ring.NewXXHashEncryptor(),
	} {
		got, err := hash_ring.EncryptorByName(name)
		require.NoError(t, err, name)
		require.IsType(t, want, got, name)
	}

	_, err := hash_ring.EncryptorByName("sha1")
	require.ErrorIs(t, err, hash_ring.ErrUnknownEncryptor)
}

func TestPositionCompare(t *testing.T) {
	low := hash_ring.Position{Hi: 1, Lo: 9}
	high := hash_ring.Position{Hi: 2, Lo: 0}

	require.Equal(t, -1, low.Compare(high))
	require.Equal(t, 1, high.Compare(low))
	require.Zero(t, low.Compare(low))
	require.True(t, hash_ring.Position{Hi: 1, Lo: 1}.Less(low))
	require.False(t, high.Less(low))
}

func TestRingWithAlternativeEncryptors(t *testing.T) {
	keys := sampleKeys(2000)
	for _, encryptor := range []hash_ring.Encryptor{hash_ring.NewMurmur3Encryptor(), hash_ring.NewXXHashEncryptor()} {
		ring, err := hash_ring.NewRing(32, hash_ring.WithEncryptor(encryptor), hash_ring.WithNodes("A", "B", "C"))
		require.NoError(t, err)
		before := assignments(ring, keys)

		require.NoError(t, ring.RemoveNode("B"))
		for key, owner := range assignments(ring, keys) {
			if before[key] != "B" {
				require.Equal(t, before[key], owner)
			}
		}
	}
}
