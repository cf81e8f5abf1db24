package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"defi-quest-system/utils"
)

// MirrorTransaction is the indexed transaction record returned by the mirror
// node. Field coverage follows what verification actually inspects; the raw
// body is snapshotted separately for the submission ledger.
type MirrorTransaction struct {
	TransactionID       string             `json:"transaction_id"`
	Status              string             `json:"status,omitempty"`
	Result              string             `json:"result,omitempty"`
	Name                string             `json:"name,omitempty"`
	EntityID            string             `json:"entity_id,omitempty"`
	TransactionHash     string             `json:"transaction_hash,omitempty"`
	ChargedTxFee        int64              `json:"charged_tx_fee,omitempty"`
	ValidStartTimestamp string             `json:"valid_start_timestamp,omitempty"`
	Transfers           []MirrorTransfer   `json:"transfers,omitempty"`
	TokenTransfers      []TokenTransfer    `json:"token_transfers,omitempty"`
	NftTransfers        []NftTransfer      `json:"nft_transfers,omitempty"`
}

type MirrorTransfer struct {
	Account    string `json:"account"`
	Amount     int64  `json:"amount"`
	IsApproval bool   `json:"is_approval,omitempty"`
}

type TokenTransfer struct {
	TokenID  string `json:"token_id"`
	Account  string `json:"account"`
	Amount   int64  `json:"amount"`
	Decimals int    `json:"decimals"`
}

type NftTransfer struct {
	TokenID           string `json:"token_id"`
	SenderAccountID   string `json:"sender_account_id,omitempty"`
	ReceiverAccountID string `json:"receiver_account_id,omitempty"`
	SerialNumber      int64  `json:"serial_number"`
}

type contractResult struct {
	ContractID   string `json:"contract_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	GasUsed      int64  `json:"gas_used,omitempty"`
}

// VerificationResult is what the verifier hands back across its boundary. A
// failed lookup or mismatch yields Valid=false with an error string; it never
// panics across the boundary. Transport-level failures return a Go error so
// the orchestrator can surface VerifierUnavailable.
type VerificationResult struct {
	Valid       bool               `json:"valid"`
	Transaction *MirrorTransaction `json:"transaction,omitempty"`
	Error       string             `json:"error,omitempty"`
	RawPayload  json.RawMessage    `json:"-"`
}

// MirrorNodeVerifier confirms submitted transaction hashes against a
// block-explorer-style indexing service. Calls are read-only and idempotent.
type MirrorNodeVerifier struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewMirrorNodeVerifier(baseURL string) *MirrorNodeVerifier {
	return &MirrorNodeVerifier{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: utils.HTTPClient,
	}
}

// Verify checks that txHashOrID exists in the index, succeeded, and involves
// the expected sender/recipient. It accepts a native transaction ID
// (0.0.x-x-x) or an EVM-style 0x hash.
func (v *MirrorNodeVerifier) Verify(ctx context.Context, txHashOrID, expectedFrom, expectedTo string) (*VerificationResult, error) {
	resolvedFrom, err := v.resolveAccountID(ctx, expectedFrom)
	if err != nil {
		return nil, err
	}
	resolvedTo, err := v.resolveAccountID(ctx, expectedTo)
	if err != nil {
		return nil, err
	}

	body, status, err := v.get(ctx, "/transactions/"+txHashOrID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		if strings.HasPrefix(txHashOrID, "0x") {
			// EVM transactions may only be indexed under contract results.
			return v.verifyContractResult(ctx, txHashOrID)
		}
		return &VerificationResult{
			Valid: false,
			Error: fmt.Sprintf("transaction not found in mirror node (status %d)", status),
		}, nil
	}

	var payload struct {
		Transactions []MirrorTransaction `json:"transactions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode mirror node response: %w", err)
	}
	if len(payload.Transactions) == 0 {
		return &VerificationResult{Valid: false, Error: "transaction not found in mirror node", RawPayload: body}, nil
	}

	tx := payload.Transactions[0]
	if !isSuccessStatus(&tx) {
		return &VerificationResult{
			Valid:       false,
			Transaction: &tx,
			Error:       fmt.Sprintf("transaction failed with status: %s", txStatus(&tx)),
			RawPayload:  body,
		}, nil
	}

	if resolvedFrom != "" && !matchesSender(&tx, resolvedFrom) {
		return &VerificationResult{
			Valid:       false,
			Transaction: &tx,
			Error:       fmt.Sprintf("transaction from address mismatch, expected %s", expectedFrom),
			RawPayload:  body,
		}, nil
	}
	if resolvedTo != "" && !matchesRecipient(&tx, resolvedTo) {
		return &VerificationResult{
			Valid:       false,
			Transaction: &tx,
			Error:       fmt.Sprintf("transaction to address mismatch, expected %s", expectedTo),
			RawPayload:  body,
		}, nil
	}

	return &VerificationResult{Valid: true, Transaction: &tx, RawPayload: body}, nil
}

// verifyContractResult handles EVM hashes that the transactions endpoint does
// not know. Transfer matching is unavailable on this path; the contract-call
// error message decides validity.
func (v *MirrorNodeVerifier) verifyContractResult(ctx context.Context, txHash string) (*VerificationResult, error) {
	body, status, err := v.get(ctx, "/contracts/results/"+txHash)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return &VerificationResult{
			Valid: false,
			Error: fmt.Sprintf("transaction not found in mirror node (status %d)", status),
		}, nil
	}

	var result contractResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode contract result: %w", err)
	}
	tx := &MirrorTransaction{
		TransactionID:   txHash,
		TransactionHash: txHash,
		Name:            "CONTRACTCALL",
		Status:          "SUCCESS",
	}
	if result.ErrorMessage != "" {
		tx.Status = "FAILED"
		return &VerificationResult{
			Valid:       false,
			Transaction: tx,
			Error:       fmt.Sprintf("contract call failed: %s", result.ErrorMessage),
			RawPayload:  body,
		}, nil
	}
	return &VerificationResult{Valid: true, Transaction: tx, RawPayload: body}, nil
}

// resolveAccountID maps a hex EVM address to the chain's native account id via
// the accounts endpoint. Native ids pass through lowercased. A lookup miss
// resolves to "" so address matching is skipped rather than failing the whole
// verification.
func (v *MirrorNodeVerifier) resolveAccountID(ctx context.Context, address string) (string, error) {
	if address == "" {
		return "", nil
	}
	if !strings.HasPrefix(address, "0x") {
		return strings.ToLower(address), nil
	}

	body, status, err := v.get(ctx, "/accounts/"+address)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		log.Printf("[VERIFIER] failed to resolve account id for %s (status %d)", address, status)
		return "", nil
	}

	var payload struct {
		Account  string `json:"account"`
		Accounts []struct {
			Account string `json:"account"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[VERIFIER] failed to decode account lookup for %s: %v", address, err)
		return "", nil
	}
	if payload.Account != "" {
		return strings.ToLower(payload.Account), nil
	}
	if len(payload.Accounts) > 0 && payload.Accounts[0].Account != "" {
		return strings.ToLower(payload.Accounts[0].Account), nil
	}
	return "", nil
}

func (v *MirrorNodeVerifier) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create mirror node request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("mirror node request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read mirror node response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// isSuccessStatus treats a missing status field as success. The index
// sometimes omits the field for successful records, and a false negative here
// would permanently burn the submitted hash. Tightening the default only
// requires changing this predicate.
func isSuccessStatus(tx *MirrorTransaction) bool {
	normalized := strings.ToUpper(txStatus(tx))
	return normalized == "" || normalized == "SUCCESS"
}

func txStatus(tx *MirrorTransaction) string {
	if tx.Status != "" {
		return tx.Status
	}
	return tx.Result
}

// matchesSender requires a transfer record debiting the resolved sender.
func matchesSender(tx *MirrorTransaction, resolvedFrom string) bool {
	for _, t := range tx.Transfers {
		if strings.ToLower(t.Account) == resolvedFrom && t.Amount < 0 {
			return true
		}
	}
	return false
}

// matchesRecipient accepts either the invoked contract entity or a transfer
// record crediting the resolved recipient.
func matchesRecipient(tx *MirrorTransaction, resolvedTo string) bool {
	if tx.EntityID != "" && strings.ToLower(tx.EntityID) == resolvedTo {
		return true
	}
	for _, t := range tx.Transfers {
		if strings.ToLower(t.Account) == resolvedTo && t.Amount > 0 {
			return true
		}
	}
	return false
}
