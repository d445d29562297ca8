// Copyright 2025 Certen Protocol

package bls

import "testing"

const testDomain = "bls-test-v1"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	msg := []byte("genesis validator list")
	sig := sk.Sign(testDomain, msg)
	if !pk.Verify(sig, testDomain, msg) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	sk, pk, _ := GenerateKeyPair()
	sig := sk.Sign(testDomain, []byte("validator list A"))
	if pk.Verify(sig, testDomain, []byte("validator list B")) {
		t.Fatalf("expected verification to fail against a different message")
	}
}

func TestVerifyRejectsWrongDomain(t *testing.T) {
	sk, pk, _ := GenerateKeyPair()
	msg := []byte("validator list")
	sig := sk.Sign(testDomain, msg)
	if pk.Verify(sig, "a-different-domain", msg) {
		t.Fatalf("expected verification to fail under a different domain separator")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sk, _, _ := GenerateKeyPair()
	_, otherPk, _ := GenerateKeyPair()
	msg := []byte("validator list")
	sig := sk.Sign(testDomain, msg)
	if otherPk.Verify(sig, testDomain, msg) {
		t.Fatalf("expected verification to fail against an unrelated public key")
	}
}

func TestGenerateKeyPairFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	sk1, pk1, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("generate from seed: %v", err)
	}
	sk2, pk2, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("generate from seed: %v", err)
	}
	if sk1.Hex() != sk2.Hex() || !pk1.Equal(pk2) {
		t.Fatalf("expected the same seed to derive the same key pair")
	}
}

func TestGenerateKeyPairFromSeedRejectsShortSeed(t *testing.T) {
	if _, _, err := GenerateKeyPairFromSeed(make([]byte, 16)); err == nil {
		t.Fatalf("expected an error for a seed shorter than 32 bytes")
	}
}

func TestHexRoundTrip(t *testing.T) {
	_, pk, _ := GenerateKeyPair()
	decoded, err := PublicKeyFromHex(pk.Hex())
	if err != nil {
		t.Fatalf("decode public key hex: %v", err)
	}
	if !pk.Equal(decoded) {
		t.Fatalf("public key did not round-trip through hex")
	}

	sk, _, _ := GenerateKeyPair()
	sig := sk.Sign(testDomain, []byte("m"))
	decodedSig, err := SignatureFromHex(sig.Hex())
	if err != nil {
		t.Fatalf("decode signature hex: %v", err)
	}
	if decodedSig.Hex() != sig.Hex() {
		t.Fatalf("signature did not round-trip through hex")
	}
}

func TestPublicKeyFromBytesRejectsIdentity(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	var infinity PublicKey
	if _, err := PublicKeyFromBytes(infinity.Bytes()); err == nil {
		t.Fatalf("expected the identity point to be rejected as a public key")
	}
}

func TestAggregateSignaturesVerifiesAgainstAggregatePublicKeys(t *testing.T) {
	msg := []byte("genesis quorum over validators a,b,c")
	var sigs []*Signature
	var pks []*PublicKey
	for i := 0; i < 3; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate key pair %d: %v", i, err)
		}
		sigs = append(sigs, sk.Sign(testDomain, msg))
		pks = append(pks, pk)
	}

	aggSig, err := AggregateSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregate signatures: %v", err)
	}
	if !VerifyAggregateSignatureWithDomain(aggSig, pks, msg, testDomain) {
		t.Fatalf("expected the aggregate signature to verify against all three signers")
	}
}

func TestAggregateSignatureFailsIfOneSignerMissing(t *testing.T) {
	msg := []byte("genesis quorum")
	sk1, pk1, _ := GenerateKeyPair()
	sk2, pk2, _ := GenerateKeyPair()
	_, pk3, _ := GenerateKeyPair() // never signs

	aggSig, err := AggregateSignatures([]*Signature{sk1.Sign(testDomain, msg), sk2.Sign(testDomain, msg)})
	if err != nil {
		t.Fatalf("aggregate signatures: %v", err)
	}
	if VerifyAggregateSignatureWithDomain(aggSig, []*PublicKey{pk1, pk2, pk3}, msg, testDomain) {
		t.Fatalf("expected verification to fail when a listed public key never signed")
	}
}

func TestAggregateSignaturesRejectsEmpty(t *testing.T) {
	if _, err := AggregateSignatures(nil); err == nil {
		t.Fatalf("expected an error aggregating zero signatures")
	}
	if _, err := AggregatePublicKeys(nil); err == nil {
		t.Fatalf("expected an error aggregating zero public keys")
	}
}

func TestVerifyAggregateSignatureWithDomainRejectsNoSigners(t *testing.T) {
	sk, _, _ := GenerateKeyPair()
	sig := sk.Sign(testDomain, []byte("m"))
	if VerifyAggregateSignatureWithDomain(sig, nil, []byte("m"), testDomain) {
		t.Fatalf("expected verification to fail with no public keys")
	}
}

func TestKeyManagerGenerateFromValidatorIDIsDeterministic(t *testing.T) {
	km1 := NewKeyManager("")
	if err := km1.GenerateFromValidatorID("validator-1", "chain-a"); err != nil {
		t.Fatalf("generate from validator id: %v", err)
	}
	km2 := NewKeyManager("")
	if err := km2.GenerateFromValidatorID("validator-1", "chain-a"); err != nil {
		t.Fatalf("generate from validator id: %v", err)
	}
	if km1.PublicKeyHex() != km2.PublicKeyHex() {
		t.Fatalf("expected the same (validator, chain) pair to derive the same key")
	}

	km3 := NewKeyManager("")
	if err := km3.GenerateFromValidatorID("validator-2", "chain-a"); err != nil {
		t.Fatalf("generate from validator id: %v", err)
	}
	if km1.PublicKeyHex() == km3.PublicKeyHex() {
		t.Fatalf("expected a different validator id to derive a different key")
	}
}

func TestKeyManagerSignUsesLoadedKey(t *testing.T) {
	km := NewKeyManager("")
	if err := km.GenerateNewKey(); err != nil {
		t.Fatalf("generate new key: %v", err)
	}
	msg := []byte("m")
	sig, err := km.Sign(testDomain, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !km.PublicKey().Verify(sig, testDomain, msg) {
		t.Fatalf("expected signature from the key manager's key to verify")
	}
}

func TestKeyManagerSignWithNoKeyLoaded(t *testing.T) {
	km := NewKeyManager("")
	if _, err := km.Sign(testDomain, []byte("m")); err == nil {
		t.Fatalf("expected an error signing with no key loaded")
	}
}
