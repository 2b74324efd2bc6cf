package crypto

import (
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// HuntingSeed derives the seed tried at one hunting-and-pecking counter.
//
//	base = Hash(secret || local || peer || counter)
//	seed = PBKDF2-HMAC-Hash(base, salt = "", c = 1, dkLen = length)
func HuntingSeed(hashFunc func() hash.Hash, secret, local, peer []byte, counter byte, length int) []byte {
	h := hashFunc()
	h.Write(secret)
	h.Write(local)
	h.Write(peer)
	h.Write([]byte{counter})
	base := h.Sum(nil)

	return pbkdf2.Key(base, nil, 1, length, hashFunc)
}
