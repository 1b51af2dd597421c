package distribution

import (
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Authorizer validates claim vouchers against the single trusted off-chain
// signer configured at construction. Verification is a pure cryptographic
// check with no side effects; replay marking belongs to the ledger.
type Authorizer struct {
	signer  [20]byte
	chainID uint64
}

// NewAuthorizer constructs an authorizer bound to the verifier identity and
// deployment chain.
func NewAuthorizer(signer [20]byte, chainID uint64) (*Authorizer, error) {
	if signer == ([20]byte{}) {
		return nil, fmt.Errorf("authorizer: signer address required")
	}
	return &Authorizer{signer: signer, chainID: chainID}, nil
}

// Signer returns the configured verifier address.
func (a *Authorizer) Signer() [20]byte {
	if a == nil {
		return [20]byte{}
	}
	return a.signer
}

// Verify recomputes the voucher digest and recovers the signing identity from
// the supplied signature. It succeeds iff the domain and chain bind to this
// deployment and the recovered address equals the configured signer.
func (a *Authorizer) Verify(voucher *ClaimVoucher, signature []byte) error {
	if a == nil {
		return fmt.Errorf("authorizer not configured")
	}
	if voucher == nil {
		return ErrBadSignature
	}
	if !strings.EqualFold(strings.TrimSpace(voucher.Domain), VoucherDomainV1) {
		return ErrVoucherDomain
	}
	if voucher.ChainID != a.chainID {
		return ErrVoucherDomain
	}
	if len(signature) != 65 {
		return ErrBadSignature
	}
	pubKey, err := ethcrypto.SigToPub(voucher.Hash(), signature)
	if err != nil {
		return ErrBadSignature
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	if recovered != ethcommon.BytesToAddress(a.signer[:]) {
		return ErrUnauthorized
	}
	return nil
}
