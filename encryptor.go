package hash_ring

import (
	"crypto/md5"
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

// Encryptor maps an arbitrary string onto a ring position. Node replica keys
// and lookup keys go through the same Encryptor. Any uniformly distributing
// hash works; none of them is relied upon for security.
type Encryptor interface {
	Encrypt(origin string) Position
}

const (
	EncryptorMD5     = "md5"
	EncryptorMurmur3 = "murmur3"
	EncryptorXXHash  = "xxhash"
)

// EncryptorByName resolves the encryptor names accepted in configuration.
func EncryptorByName(name string) (Encryptor, error) {
	switch strings.ToLower(name) {
	case "", EncryptorMD5:
		return NewMD5Encryptor(), nil
	case EncryptorMurmur3:
		return NewMurmur3Encryptor(), nil
	case EncryptorXXHash:
		return NewXXHashEncryptor(), nil
	}
	return nil, errors.Wrapf(ErrUnknownEncryptor, "name %q", name)
}

// MD5Encryptor interprets the MD5 digest of the UTF-8 input as a big-endian
// 128-bit integer. It is the reference hasher and the ring default.
type MD5Encryptor struct{}

func NewMD5Encryptor() *MD5Encryptor {
	return &MD5Encryptor{}
}

func (m *MD5Encryptor) Encrypt(origin string) Position {
	sum := md5.Sum([]byte(origin))
	return Position{
		Hi: binary.BigEndian.Uint64(sum[:8]),
		Lo: binary.BigEndian.Uint64(sum[8:]),
	}
}

// Murmur3Encryptor uses the 128-bit x64 variant of MurmurHash3.
type Murmur3Encryptor struct{}

func NewMurmur3Encryptor() *Murmur3Encryptor {
	return &Murmur3Encryptor{}
}

func (m *Murmur3Encryptor) Encrypt(origin string) Position {
	h1, h2 := murmur3.Sum128([]byte(origin))
	return Position{Hi: h1, Lo: h2}
}

// XXHashEncryptor places keys in the upper 64 bits of the ring.
type XXHashEncryptor struct{}

func NewXXHashEncryptor() *XXHashEncryptor {
	return &XXHashEncryptor{}
}

func (x *XXHashEncryptor) Encrypt(origin string) Position {
	return Position{Hi: xxhash.Sum64String(origin)}
}
