package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	// SignatureHeader carries the 65 byte secp256k1 signature of a request.
	SignatureHeader = "X-Governor-Signature"
	// ExpiresHeader is the unix time after which the signature is refused.
	ExpiresHeader = "X-Governor-Expires"

	maxSignatureLifetime = 5 * time.Minute
)

var errUnauthenticated = errors.New("request is not signed by the sender")

type signerKey struct{}

// SigningPayload is the message a caller signs, as an EIP-191 personal
// message, to authenticate a mutating request.
func SigningPayload(method, path string, expires int64, body []byte) []byte {
	return []byte(fmt.Sprintf("%s %s\n%d\n%s", method, path, expires, body))
}

// RecoverSigner returns the address that signed payload.
func RecoverSigner(payload, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	sig = bytes.Clone(sig)
	// wallets use 27/28 as recovery id
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(payload), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

type authenticator struct {
	now func() time.Time

	mu        sync.Mutex
	seen      map[common.Hash]time.Time
	nextSweep time.Time
}

func newAuthenticator(now func() time.Time) *authenticator {
	if now == nil {
		now = time.Now
	}
	return &authenticator{
		now:  now,
		seen: make(map[common.Hash]time.Time),
	}
}

func unauthenticated(format string, args ...any) error {
	return errors.Wrapf(errUnauthenticated, format, args...)
}

// verify checks the signature headers of r and returns the signer. The
// body is read and put back for the handler.
func (a *authenticator) verify(w http.ResponseWriter, r *http.Request) (common.Address, error) {
	sig, err := hexutil.Decode(r.Header.Get(SignatureHeader))
	if err != nil {
		return common.Address{}, unauthenticated("%s: %v", SignatureHeader, err)
	}
	expires, err := strconv.ParseInt(r.Header.Get(ExpiresHeader), 10, 64)
	if err != nil {
		return common.Address{}, unauthenticated("%s: %v", ExpiresHeader, err)
	}
	now := a.now()
	deadline := time.Unix(expires, 0)
	if !deadline.After(now) || deadline.Sub(now) > maxSignatureLifetime {
		return common.Address{}, unauthenticated("signature expiry must lie within %s from now", maxSignatureLifetime)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return common.Address{}, badRequest(errors.Wrap(err, "read body"))
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	payload := SigningPayload(r.Method, r.URL.Path, expires, body)
	signer, err := RecoverSigner(payload, sig)
	if err != nil {
		return common.Address{}, unauthenticated("%v", err)
	}

	// a malleated signature recovers the same signer
	id := crypto.Keccak256Hash(signer.Bytes(), accounts.TextHash(payload))
	a.mu.Lock()
	defer a.mu.Unlock()
	if now.After(a.nextSweep) {
		for k, d := range a.seen {
			if !d.After(now) {
				delete(a.seen, k)
			}
		}
		a.nextSweep = now.Add(time.Minute)
	}
	if _, ok := a.seen[id]; ok {
		return common.Address{}, unauthenticated("signature already used")
	}
	a.seen[id] = deadline
	return signer, nil
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signer, err := s.auth.verify(w, r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), signerKey{}, signer)))
	}
}

// requireSender checks the sender named in a request body against the
// account that signed the request.
func requireSender(r *http.Request, sender common.Address) error {
	if sender == (common.Address{}) {
		return badRequest(errors.New("sender is required"))
	}
	signer, ok := r.Context().Value(signerKey{}).(common.Address)
	if !ok || signer != sender {
		return unauthenticated("signed by %s, sender is %s", signer, sender)
	}
	return nil
}
