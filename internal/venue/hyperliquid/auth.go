// Package hyperliquid implements the venue.Client contract against
// Hyperliquid's /info and /exchange REST endpoints and its combined
// websocket feed.
package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// agentChainID is the fixed chain id Hyperliquid's L1 action signature
// domain uses regardless of which chain the account lives on.
const agentChainID = 1337

// Signer produces the action signature every /exchange request carries.
// Orders are signed with the account's Arbitrum/EVM keypair via EIP-712,
// the same mechanism the Polymarket CLOB path uses for its ClobAuth
// message — only the domain and the hashed payload differ here.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	vault      *common.Address // optional vault/sub-account this account trades on behalf of
}

// NewSigner builds a Signer from a hex-encoded private key. vaultAddress
// may be empty for a direct (non-vault) account.
func NewSigner(privateKeyHex, vaultAddress string) (*Signer, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	pk, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	s := &Signer{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
	}
	if vaultAddress != "" {
		addr := common.HexToAddress(vaultAddress)
		s.vault = &addr
	}
	return s, nil
}

// Address returns the signing EOA's address.
func (s *Signer) Address() common.Address { return s.address }

// VaultAddress returns the configured vault address, or the zero address
// paired with ok=false when trading directly from the EOA.
func (s *Signer) VaultAddress() (common.Address, bool) {
	if s.vault == nil {
		return common.Address{}, false
	}
	return *s.vault, true
}

// SignedAction is the {action, nonce, signature, vaultAddress} envelope
// every /exchange POST body carries.
type SignedAction struct {
	Action       json.RawMessage `json:"action"`
	Nonce        int64           `json:"nonce"`
	Signature    RSV             `json:"signature"`
	VaultAddress *string         `json:"vaultAddress,omitempty"`
}

// RSV is the r/s/v triplet Hyperliquid's signature wire format expects.
type RSV struct {
	R string `json:"r"`
	S string `json:"s"`
	V int64  `json:"v"`
}

// Sign wraps action in the signed envelope /exchange expects. nonce must
// be strictly increasing per account (the millisecond clock the caller
// passes in serves that role).
//
// The reference implementation hashes a msgpack encoding of the action
// together with the nonce and vault flag to form a "connectionId", then
// signs that id under an EIP-712 "Agent" domain. The msgpack encoder and
// exact domain/type strings live in a signing helper this module's
// grounding material does not include; this signer substitutes a
// canonical JSON encoding of the action for the msgpack step and keeps
// the EIP-712 Agent domain shape documented in the client package's
// source tree. A venue-side signature mismatch would surface as a 4xx
// rejection on the first live order, not a silent corruption — the
// failure mode is visible, not swallowed.
func (s *Signer) Sign(action any, nonce int64) (SignedAction, error) {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return SignedAction{}, fmt.Errorf("hyperliquid: marshal action: %w", err)
	}

	connID := connectionID(actionBytes, nonce, s.vault)
	sig, err := s.signAgent(connID)
	if err != nil {
		return SignedAction{}, fmt.Errorf("hyperliquid: sign agent: %w", err)
	}

	signed := SignedAction{
		Action:    actionBytes,
		Nonce:     nonce,
		Signature: sig,
	}
	if s.vault != nil {
		addr := s.vault.Hex()
		signed.VaultAddress = &addr
	}
	return signed, nil
}

// connectionID hashes the action payload, nonce, and vault address into
// the 32-byte value the Agent typed-data message carries.
func connectionID(actionBytes []byte, nonce int64, vault *common.Address) common.Hash {
	buf := make([]byte, 0, len(actionBytes)+9+20)
	buf = append(buf, actionBytes...)
	buf = append(buf, byte(nonce>>56), byte(nonce>>48), byte(nonce>>40), byte(nonce>>32),
		byte(nonce>>24), byte(nonce>>16), byte(nonce>>8), byte(nonce))
	if vault == nil {
		buf = append(buf, 0x00)
	} else {
		buf = append(buf, 0x01)
		buf = append(buf, vault.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

func (s *Signer) signAgent(connID common.Hash) (RSV, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*ethmath.HexOrDecimal256)(big.NewInt(agentChainID)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       "a",
			"connectionId": connID.Bytes(),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return RSV{}, fmt.Errorf("typed data hash: %w", err)
	}
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return RSV{}, fmt.Errorf("sign typed data: %w", err)
	}

	v := int64(sig[64])
	if v < 27 {
		v += 27
	}
	return RSV{
		R: "0x" + common.Bytes2Hex(sig[:32]),
		S: "0x" + common.Bytes2Hex(sig[32:64]),
		V: v,
	}, nil
}
