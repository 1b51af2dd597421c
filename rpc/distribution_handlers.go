package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"tokendrop/crypto"
	"tokendrop/native/common"
	"tokendrop/native/distribution"
)

const (
	codeDistributionInvalidParams = -32061
	codeDistributionRejected      = -32062
	codeDistributionForbidden     = -32063
	codeDistributionPaused        = -32064
	codeDistributionInternal      = -32065
)

type claimParams struct {
	Caller     string `json:"caller"`
	Pool       string `json:"pool"`
	Amount     string `json:"amount"`
	ValidUntil int64  `json:"validUntil"`
	Receiver   string `json:"receiver"`
	ChainID    uint64 `json:"chainId"`
	Signature  string `json:"signature"`
}

type claimResult struct {
	ClaimID   string `json:"claimId"`
	Pool      string `json:"pool"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
	ClaimedAt int64  `json:"claimedAt"`
}

type unlockedResult struct {
	Mining   string `json:"mining"`
	Referral string `json:"referral"`
}

type migrationJSON struct {
	Active        bool  `json:"active"`
	LockTime      int64 `json:"lockTime"`
	MigrationTime int64 `json:"migrationTime"`
	Swept         bool  `json:"swept"`
}

type stateResult struct {
	LaunchTime          int64          `json:"launchTime"`
	MiningCap           string         `json:"miningCap"`
	MiningDistributed   string         `json:"miningDistributed"`
	ReferralCap         string         `json:"referralCap"`
	ReferralDistributed string         `json:"referralDistributed"`
	VestingDuration     uint64         `json:"vestingDuration"`
	Migration           *migrationJSON `json:"migration,omitempty"`
}

type listClaimsParams struct {
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Cursor    string `json:"cursor"`
	Limit     int    `json:"limit"`
}

type listClaimsResult struct {
	Claims     []claimJSON `json:"claims"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

type claimJSON struct {
	ClaimID    string `json:"claimId"`
	Pool       string `json:"pool"`
	Receiver   string `json:"receiver"`
	Claimant   string `json:"claimant"`
	Amount     string `json:"amount"`
	ValidUntil int64  `json:"validUntil"`
	ClaimedAt  int64  `json:"claimedAt"`
}

type startMigrationParams struct {
	Caller     string `json:"caller"`
	TargetTime int64  `json:"targetTime"`
}

type sweepParams struct {
	Caller      string `json:"caller"`
	Destination string `json:"destination"`
}

type sweepResult struct {
	Amount string `json:"amount"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, ok := distribution.ParsePoolKind(strings.ToLower(strings.TrimSpace(params.Pool)))
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", "unknown pool")
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", err.Error())
		return
	}
	receiver, err := parseBech32Address(params.Receiver)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(params.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", "amount must be a positive decimal string")
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(params.Signature), "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", "signature must be hex")
		return
	}
	voucher := &distribution.ClaimVoucher{
		Domain:     distribution.VoucherDomainV1,
		ChainID:    params.ChainID,
		Pool:       pool,
		Receiver:   receiver,
		Amount:     amount,
		ValidUntil: params.ValidUntil,
	}
	record, err := s.engine.Claim(caller, voucher, signature)
	if err != nil {
		s.metrics.ObserveClaim(pool.String(), "rejected")
		s.writeEngineError(w, req, err)
		return
	}
	s.metrics.ObserveClaim(pool.String(), "honored")
	s.metrics.ObservePayout(pool.String(), record.Amount)
	s.log.Info("claim honored",
		"pool", pool.String(),
		"receiver", bech32String(record.Receiver),
		"amount", record.Amount.String(),
	)
	writeResult(w, req.ID, claimResult{
		ClaimID:   hex.EncodeToString(record.ID[:]),
		Pool:      record.Pool.String(),
		Receiver:  bech32String(record.Receiver),
		Amount:    record.Amount.String(),
		ClaimedAt: record.ClaimedAt,
	})
}

func (s *Server) handleUnlocked(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	mining, err := s.engine.UnlockedMining()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	referral, err := s.engine.UnlockedReferral()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, unlockedResult{Mining: mining.String(), Referral: referral.String()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := s.engine.Params()
	miningDistributed, err := s.engine.Distributed(distribution.PoolMining)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	referralDistributed, err := s.engine.Distributed(distribution.PoolReferral)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	result := stateResult{
		LaunchTime:          params.LaunchTime,
		MiningCap:           params.MiningCap.String(),
		MiningDistributed:   miningDistributed.String(),
		ReferralCap:         params.Vesting.Cap.String(),
		ReferralDistributed: referralDistributed.String(),
		VestingDuration:     params.Vesting.Duration,
	}
	lock, exists, err := s.engine.MigrationState()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	if exists {
		result.Migration = &migrationJSON{
			Active:        lock.Active(),
			LockTime:      lock.LockTime,
			MigrationTime: lock.MigrationTime,
			Swept:         lock.Swept,
		}
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleListClaims(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listClaimsParams
	if len(req.Params) > 0 && !decodeParams(w, req, &params) {
		return
	}
	records, nextCursor, err := s.engine.ListClaims(params.StartTime, params.EndTime, params.Cursor, params.Limit)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	claims := make([]claimJSON, 0, len(records))
	for _, record := range records {
		claims = append(claims, claimJSON{
			ClaimID:    hex.EncodeToString(record.ID[:]),
			Pool:       record.Pool.String(),
			Receiver:   bech32String(record.Receiver),
			Claimant:   bech32String(record.Claimant),
			Amount:     record.Amount.String(),
			ValidUntil: record.ValidUntil,
			ClaimedAt:  record.ClaimedAt,
		})
	}
	writeResult(w, req.ID, listClaimsResult{Claims: claims, NextCursor: nextCursor})
}

func (s *Server) handleStartMigration(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params startMigrationParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.StartMigration(caller, params.TargetTime); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.log.Info("migration started", "targetTime", params.TargetTime)
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleSweepRemaining(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params sweepParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", err.Error())
		return
	}
	destination, err := parseBech32Address(params.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.engine.SweepRemaining(caller, destination)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.metrics.ObserveSweep()
	s.log.Info("remaining balance swept", "amount", amount.String(), "destination", bech32String(destination))
	writeResult(w, req.ID, sweepResult{Amount: amount.String()})
}

func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	switch {
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, req.ID, codeDistributionPaused, "module_paused", err.Error())
	case errors.Is(err, distribution.ErrOwnerOnly):
		writeError(w, http.StatusForbidden, req.ID, codeDistributionForbidden, "forbidden", err.Error())
	case errors.Is(err, distribution.ErrClaimAlreadyExists),
		errors.Is(err, distribution.ErrClaimExpired),
		errors.Is(err, distribution.ErrInsufficientBalance),
		errors.Is(err, distribution.ErrBadSignature),
		errors.Is(err, distribution.ErrUnauthorized),
		errors.Is(err, distribution.ErrVoucherDomain),
		errors.Is(err, distribution.ErrNotStarted),
		errors.Is(err, distribution.ErrNoRewardsAvailable),
		errors.Is(err, distribution.ErrExceedsClaimable),
		errors.Is(err, distribution.ErrExceedsPoolCap),
		errors.Is(err, distribution.ErrInvalidPool),
		errors.Is(err, distribution.ErrInvalidAmount),
		errors.Is(err, distribution.ErrMigrationStarted),
		errors.Is(err, distribution.ErrMigrationNotStarted),
		errors.Is(err, distribution.ErrMigrationGrace),
		errors.Is(err, distribution.ErrMigrationPending),
		errors.Is(err, distribution.ErrNothingToSweep):
		writeError(w, http.StatusConflict, req.ID, codeDistributionRejected, "rejected", err.Error())
	default:
		s.log.Error("rpc internal error", "err", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeDistributionInternal, "internal_error", err.Error())
	}
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDistributionInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func parseBech32Address(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func bech32String(addr [20]byte) string {
	return crypto.NewAddress(crypto.TDPPrefix, addr[:]).String()
}
