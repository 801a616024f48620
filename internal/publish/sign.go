package publish

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// KeyAPI is the subset of the KMS API needed to sign a digest and fetch
// the matching public key.
type KeyAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// Signer signs archive digests with an ECDSA P-256 KMS key and checks each
// signature locally before it is uploaded.
type Signer struct {
	client KeyAPI
	keyARN string

	mu     sync.RWMutex
	pubKey *ecdsa.PublicKey
}

func NewSigner(client KeyAPI, keyARN string) *Signer {
	return &Signer{client: client, keyARN: keyARN}
}

// SignDigest signs the hex-encoded SHA-256 digest and returns the ASN.1
// signature.
func (s *Signer) SignDigest(ctx context.Context, hexDigest string) ([]byte, error) {
	digest, err := hex.DecodeString(hexDigest)
	if err != nil || len(digest) != crypto.SHA256.Size() {
		return nil, xerrors.Newf("invalid sha256 digest %q", hexDigest)
	}

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyARN),
		Message:          digest,
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "kms sign with %s", s.keyARN)
	}
	if len(out.Signature) == 0 {
		return nil, xerrors.Newf("kms sign with %s returned no signature", s.keyARN)
	}

	if err := s.VerifyDigest(ctx, digest, out.Signature); err != nil {
		return nil, err
	}
	return out.Signature, nil
}

// VerifyDigest checks sig over a raw SHA-256 digest with the cached key.
func (s *Signer) VerifyDigest(ctx context.Context, digest, sig []byte) error {
	pub, err := s.PublicKey(ctx)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(pub, digest, sig) {
		return xerrors.Newf("ECDSA signature from %s does not verify", s.keyARN)
	}
	return nil
}

// PublicKey fetches and caches the KMS public key.
// First call hits KMS API, subsequent calls return cached key.
func (s *Signer) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	s.mu.RLock()
	if s.pubKey != nil {
		defer s.mu.RUnlock()
		return s.pubKey, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// double-check after acquiring write lock
	if s.pubKey != nil {
		return s.pubKey, nil
	}

	out, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(s.keyARN),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "kms get public key")
	}
	if out.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return nil, xerrors.Newf("kms key %s has KeyUsage=%s, expected SIGN_VERIFY", s.keyARN, out.KeyUsage)
	}

	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse kms public key DER")
	}
	key, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, xerrors.Newf("kms key %s is %T, want ECDSA", s.keyARN, pub)
	}
	if key.Curve != elliptic.P256() {
		return nil, xerrors.Newf("kms key %s uses curve %s, want P-256", s.keyARN, key.Curve.Params().Name)
	}

	s.pubKey = key
	return s.pubKey, nil
}
