// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verdict

import "github.com/luxfi/crypto/bls"

// BLSVerifier adapts github.com/luxfi/crypto/bls to the SignatureVerifier
// interface: validators sign verdicts with their registered BLS key, and
// the collector verifies against the compressed public key recorded in
// the registry snapshot.
type BLSVerifier struct{}

// Verify reports whether signature authenticates message under pubKey,
// where both are the compressed wire encodings bls.PublicKeyToCompressedBytes
// and bls.SignatureToBytes produce.
func (BLSVerifier) Verify(pubKey, message, signature []byte) bool {
	pk, err := bls.PublicKeyFromCompressedBytes(pubKey)
	if err != nil {
		return false
	}
	sig, err := bls.SignatureFromBytes(signature)
	if err != nil {
		return false
	}
	return bls.Verify(pk, sig, message)
}
