// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// backingDomainKey is the BLAKE3 key for backing-buffer fingerprints:
// the ASCII domain name zero-padded to 32 bytes.
var backingDomainKey = [32]byte{
	'f', 's', 'e', 'n', 's', 'e', '.', 'b', 'a', 'c', 'k', 'i', 'n', 'g',
}

// Fingerprint returns the hex-encoded BLAKE3 keyed digest of data.
func Fingerprint(data []byte) string {
	hasher, err := blake3.NewKeyed(backingDomainKey[:])
	if err != nil {
		// Only a wrong key length fails, and the key is a fixed array.
		panic("mapping: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}
