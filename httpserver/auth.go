package httpserver

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// OperatorSignatureHeader carries a hex secp256k1 signature over
	// keccak256(path || timestamp || body), made with an operator account's key.
	OperatorSignatureHeader = "X-Operator-Signature"

	// OperatorTimestampHeader carries the signing time in unix seconds, as signed.
	OperatorTimestampHeader = "X-Operator-Timestamp"

	// SignatureValidity bounds how far the signing time may be from the
	// server clock, in either direction.
	SignatureValidity = 5 * time.Minute
)

// OperatorAuth admits requests signed by one of the configured operator accounts.
// A signed request is admitted once. With no operators configured every request
// is admitted.
type OperatorAuth struct {
	operators map[common.Address]struct{}
	log       *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	seen map[common.Hash]time.Time // request hash -> expiry
}

// NewOperatorAuth creates the authenticator.
func NewOperatorAuth(operators []common.Address, log *slog.Logger) *OperatorAuth {
	set := make(map[common.Address]struct{}, len(operators))
	for _, op := range operators {
		set[op] = struct{}{}
	}
	return &OperatorAuth{
		operators: set,
		log:       log,
		now:       time.Now,
		seen:      make(map[common.Hash]time.Time),
	}
}

// Enabled reports whether any operator is configured.
func (a *OperatorAuth) Enabled() bool {
	return len(a.operators) > 0
}

// Middleware rejects requests without a valid operator signature with 401.
func (a *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		operator, ok := a.verify(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		a.log.Debug("Operator authentication successful", slog.String("operator", operator.Hex()))
		next.ServeHTTP(w, r)
	})
}

// verify recovers the signer and checks it against the operator set, the
// validity window and the requests already admitted.
// The body is restored for later handlers.
func (a *OperatorAuth) verify(r *http.Request) (common.Address, bool) {
	sigHex := r.Header.Get(OperatorSignatureHeader)
	if sigHex == "" {
		return common.Address{}, false
	}

	timestamp, err := strconv.ParseInt(r.Header.Get(OperatorTimestampHeader), 10, 64)
	if err != nil {
		a.log.Warn("Authentication failed: invalid timestamp", "err", err)
		return common.Address{}, false
	}
	signedAt := time.Unix(timestamp, 0)
	now := a.now()
	if signedAt.Before(now.Add(-SignatureValidity)) || signedAt.After(now.Add(SignatureValidity)) {
		a.log.Warn("Authentication failed: signature outside validity window", slog.Time("signedAt", signedAt))
		return common.Address{}, false
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		a.log.Warn("Authentication failed: invalid signature encoding", "err", err)
		return common.Address{}, false
	}
	// Accept the 27/28 recovery id produced by wallets.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			a.log.Error("Failed to read request body", "err", err)
			return common.Address{}, false
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	hash := requestHash(r.URL.Path, timestamp, body)
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		a.log.Warn("Authentication failed: cannot recover signer", "err", err)
		return common.Address{}, false
	}
	signer := crypto.PubkeyToAddress(*pub)

	if _, ok := a.operators[signer]; !ok {
		a.log.Warn("Authentication failed: unknown operator", slog.String("signer", signer.Hex()))
		return signer, false
	}

	if !a.admitOnce(common.BytesToHash(hash), signedAt.Add(SignatureValidity), now) {
		a.log.Warn("Authentication failed: request already admitted", slog.String("signer", signer.Hex()))
		return signer, false
	}
	return signer, true
}

// admitOnce records a request hash until expiry and reports whether it was new.
// Keyed by the signed hash, so re-encoding the signature does not help.
func (a *OperatorAuth) admitOnce(hash common.Hash, expiry, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for h, exp := range a.seen {
		if now.After(exp) {
			delete(a.seen, h)
		}
	}
	if _, ok := a.seen[hash]; ok {
		return false
	}
	a.seen[hash] = expiry
	return true
}

func requestHash(path string, timestamp int64, body []byte) []byte {
	return crypto.Keccak256([]byte(path), []byte(strconv.FormatInt(timestamp, 10)), body)
}

// SignRequest produces the OperatorSignatureHeader and OperatorTimestampHeader
// values for a request signed at the given time.
func SignRequest(key *ecdsa.PrivateKey, path string, body []byte, at time.Time) (map[string]string, error) {
	timestamp := at.Unix()
	sig, err := crypto.Sign(requestHash(path, timestamp, body), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	return map[string]string{
		OperatorSignatureHeader: hexutil.Encode(sig),
		OperatorTimestampHeader: strconv.FormatInt(timestamp, 10),
	}, nil
}
