package distribution

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	repoCrypto "tokendrop/crypto"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// VoucherDomainV1 defines the domain string bound into every signed claim
// voucher, separating tokendrop signatures from any other keccak-signed
// payload produced by the same authority key.
const VoucherDomainV1 = "TOKENDROP_CLAIM_V1"

// ClaimVoucher captures the structured payload authorised by the off-chain
// verifier. The receiver is part of the signed payload, so a claim may be
// relayed by a third party on the receiver's behalf.
type ClaimVoucher struct {
	Domain     string
	ChainID    uint64
	Pool       PoolKind
	Receiver   [20]byte
	Amount     *big.Int
	ValidUntil int64
}

type voucherJSON struct {
	Domain     string `json:"domain"`
	ChainID    uint64 `json:"chainId"`
	Pool       string `json:"pool"`
	Receiver   string `json:"receiver"`
	Amount     string `json:"amount"`
	ValidUntil int64  `json:"validUntil"`
}

// MarshalJSON encodes the voucher into the JSON representation consumed by RPC clients.
func (v ClaimVoucher) MarshalJSON() ([]byte, error) {
	amountStr := "0"
	if v.Amount != nil {
		amountStr = strings.TrimSpace(v.Amount.String())
	}
	receiver := ""
	if v.Receiver != ([20]byte{}) {
		receiver = repoCrypto.NewAddress(repoCrypto.TDPPrefix, v.Receiver[:]).String()
	}
	payload := voucherJSON{
		Domain:     strings.TrimSpace(v.Domain),
		ChainID:    v.ChainID,
		Pool:       v.Pool.String(),
		Receiver:   receiver,
		Amount:     amountStr,
		ValidUntil: v.ValidUntil,
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the on-wire representation into the canonical struct.
func (v *ClaimVoucher) UnmarshalJSON(data []byte) error {
	if v == nil {
		return fmt.Errorf("voucher: nil receiver")
	}
	var payload voucherJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	domain := strings.TrimSpace(payload.Domain)
	if domain == "" {
		return fmt.Errorf("voucher: domain required")
	}
	pool, ok := ParsePoolKind(strings.ToLower(strings.TrimSpace(payload.Pool)))
	if !ok {
		return fmt.Errorf("voucher: invalid pool %q", payload.Pool)
	}
	receiverStr := strings.TrimSpace(payload.Receiver)
	if receiverStr == "" {
		return fmt.Errorf("voucher: receiver required")
	}
	receiverAddr, err := repoCrypto.DecodeAddress(receiverStr)
	if err != nil {
		return fmt.Errorf("voucher: receiver: %w", err)
	}
	var receiver [20]byte
	copy(receiver[:], receiverAddr.Bytes())
	amountStr := strings.TrimSpace(payload.Amount)
	if amountStr == "" {
		return fmt.Errorf("voucher: amount required")
	}
	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return fmt.Errorf("voucher: invalid amount %q", payload.Amount)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("voucher: amount must be positive")
	}
	*v = ClaimVoucher{
		Domain:     domain,
		ChainID:    payload.ChainID,
		Pool:       pool,
		Receiver:   receiver,
		Amount:     amount,
		ValidUntil: payload.ValidUntil,
	}
	return nil
}

// Hash reconstructs the canonical message digest signed by the claim authority.
func (v ClaimVoucher) Hash() []byte {
	amountStr := "0"
	if v.Amount != nil {
		amountStr = v.Amount.String()
	}
	payload := fmt.Sprintf("%s|chain=%d|pool=%s|to=%s|amount=%s|validUntil=%d",
		strings.TrimSpace(v.Domain),
		v.ChainID,
		v.Pool.String(),
		hex.EncodeToString(v.Receiver[:]),
		amountStr,
		v.ValidUntil,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// ClaimID derives the replay-protection key for a voucher submission from the
// signature bytes. Signatures are high-entropy, so the digest is collision
// free for distinct vouchers; two identical vouchers signed deterministically
// would collide, which is exactly the once-only semantics the ledger wants.
func ClaimID(signature []byte) [32]byte {
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(signature))
	return id
}
