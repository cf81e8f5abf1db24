package services

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// questManagerABI covers the entry points the backend drives. Role checks for
// each call are enforced on-chain; the gateway only picks the right signer.
const questManagerABI = `[
  {"type":"function","name":"createQuest","stateMutability":"nonpayable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"category","type":"uint8"},
    {"name":"protocol","type":"address"},
    {"name":"parametersHash","type":"bytes32"},
    {"name":"metadataURI","type":"string"},
    {"name":"rewardPerParticipant","type":"uint256"},
    {"name":"expiry","type":"uint64"},
    {"name":"badgeLevel","type":"uint256"},
    {"name":"participant","type":"address"}
  ]}],"outputs":[{"name":"questId","type":"uint256"}]},
  {"type":"function","name":"getQuest","stateMutability":"view","inputs":[{"name":"questId","type":"uint256"}],"outputs":[{"name":"quest","type":"tuple","components":[
    {"name":"agentId","type":"uint256"},
    {"name":"agentController","type":"address"},
    {"name":"category","type":"uint8"},
    {"name":"protocol","type":"address"},
    {"name":"parametersHash","type":"bytes32"},
    {"name":"metadataURI","type":"string"},
    {"name":"rewardToken","type":"address"},
    {"name":"rewardPerParticipant","type":"uint256"},
    {"name":"badgeLevel","type":"uint256"},
    {"name":"assignedParticipant","type":"address"},
    {"name":"acceptedCount","type":"uint256"},
    {"name":"completedCount","type":"uint256"},
    {"name":"expiry","type":"uint64"},
    {"name":"status","type":"uint8"},
    {"name":"createdAt","type":"uint64"}
  ]}]},
  {"type":"function","name":"participantProgress","stateMutability":"view","inputs":[{"name":"questId","type":"uint256"},{"name":"participant","type":"address"}],"outputs":[{"name":"accepted","type":"bool"},{"name":"completed","type":"bool"}]},
  {"type":"function","name":"recordCompletion","stateMutability":"nonpayable","inputs":[{"name":"questId","type":"uint256"},{"name":"participant","type":"address"},{"name":"evidenceURI","type":"string"}],"outputs":[]},
  {"type":"function","name":"completionOracle","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// OnChainQuest is the raw quest state as returned by the contract.
type OnChainQuest struct {
	AgentId              *big.Int
	AgentController      common.Address
	Category             uint8
	Protocol             common.Address
	ParametersHash       [32]byte
	MetadataURI          string
	RewardToken          common.Address
	RewardPerParticipant *big.Int
	BadgeLevel           *big.Int
	AssignedParticipant  common.Address
	AcceptedCount        *big.Int
	CompletedCount       *big.Int
	Expiry               uint64
	Status               uint8
	CreatedAt            uint64
}

// On-chain status enum values.
const (
	QuestStateInactive  uint8 = 0
	QuestStateActive    uint8 = 1
	QuestStateCompleted uint8 = 2
	QuestStateCancelled uint8 = 3
)

// ParticipantProgress is the authoritative accepted/completed pair per
// (quest, participant).
type ParticipantProgress struct {
	Accepted  bool `json:"accepted"`
	Completed bool `json:"completed"`
}

// CreateQuestParams mirrors the createQuest tuple argument.
type CreateQuestParams struct {
	Category             uint8
	Protocol             common.Address
	ParametersHash       [32]byte
	MetadataURI          string
	RewardPerParticipant *big.Int
	Expiry               uint64
	BadgeLevel           *big.Int
	Participant          common.Address
}

// Signer is a process-wide capability object for one signing identity. It is
// read-only after construction and safe for concurrent use.
type Signer struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewSignerFromHex builds a signer from a hex private key, with or without the
// 0x prefix.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	trimmed := strings.TrimSpace(hexKey)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if len(trimmed) != 64 {
		return nil, fmt.Errorf("invalid private key: expected 64 hex characters, got %d", len(trimmed))
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Signer{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// QuestGateway wraps the QuestManager contract. It carries two independent
// signer identities: the agent controller may only create quests, the
// completion oracle may only record completions. Write calls simulate before
// sending and wait a bounded time for the receipt; they never retry on their
// own since a broadcast is irreversible.
type QuestGateway struct {
	client          *ethclient.Client
	chainID         *big.Int
	contract        common.Address
	abi             abi.ABI
	agentController *Signer
	oracle          *Signer
	expectedOracle  common.Address // zero value: ask the contract instead
	receiptTimeout  time.Duration
}

func NewQuestGateway(rpcURL string, chainID int64, contract common.Address, agentController, oracle *Signer, expectedOracle common.Address) (*QuestGateway, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC %s: %w", rpcURL, err)
	}
	parsed, err := abi.JSON(strings.NewReader(questManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse QuestManager ABI: %w", err)
	}
	return &QuestGateway{
		client:          client,
		chainID:         big.NewInt(chainID),
		contract:        contract,
		abi:             parsed,
		agentController: agentController,
		oracle:          oracle,
		expectedOracle:  expectedOracle,
		receiptTimeout:  45 * time.Second,
	}, nil
}

// OracleAddress returns the completion-oracle signer identity.
func (g *QuestGateway) OracleAddress() common.Address { return g.oracle.Address }

// AgentControllerAddress returns the quest-creation signer identity.
func (g *QuestGateway) AgentControllerAddress() common.Address { return g.agentController.Address }

func (g *QuestGateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	res, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.contract, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	out, err := g.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

// ReadQuest returns the on-chain quest or ErrQuestNotFound.
func (g *QuestGateway) ReadQuest(ctx context.Context, questID uint64) (*OnChainQuest, error) {
	out, err := g.call(ctx, "getQuest", new(big.Int).SetUint64(questID))
	if err != nil {
		if isRevert(err) {
			return nil, wrapProofError(ErrQuestNotFound, fmt.Sprintf("quest %d not found on-chain", questID), err)
		}
		return nil, fmt.Errorf("getQuest(%d) call failed: %w", questID, err)
	}
	quest := *abi.ConvertType(out[0], new(OnChainQuest)).(*OnChainQuest)
	if quest.CreatedAt == 0 && quest.AgentController == (common.Address{}) {
		return nil, newProofError(ErrQuestNotFound, fmt.Sprintf("quest %d not found on-chain", questID))
	}
	return &quest, nil
}

// ReadParticipantProgress reads the authoritative accepted/completed flags.
func (g *QuestGateway) ReadParticipantProgress(ctx context.Context, questID uint64, participant common.Address) (*ParticipantProgress, error) {
	out, err := g.call(ctx, "participantProgress", new(big.Int).SetUint64(questID), participant)
	if err != nil {
		return nil, fmt.Errorf("participantProgress(%d, %s) call failed: %w", questID, participant.Hex(), err)
	}
	return &ParticipantProgress{
		Accepted:  *abi.ConvertType(out[0], new(bool)).(*bool),
		Completed: *abi.ConvertType(out[1], new(bool)).(*bool),
	}, nil
}

// SubmitCreateQuest simulates createQuest with the agent-controller identity,
// captures the assigned quest id from the simulation, then broadcasts and
// waits for the receipt.
func (g *QuestGateway) SubmitCreateQuest(ctx context.Context, params CreateQuestParams) (uint64, string, error) {
	input, err := g.abi.Pack("createQuest", params)
	if err != nil {
		return 0, "", fmt.Errorf("failed to pack createQuest: %w", err)
	}

	msg := ethereum.CallMsg{From: g.agentController.Address, To: &g.contract, Data: input}
	res, err := g.client.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, "", &ProofError{Kind: ErrSimulation, Message: "createQuest simulation reverted", Detail: err.Error(), cause: err}
	}
	out, err := g.abi.Unpack("createQuest", res)
	if err != nil {
		return 0, "", fmt.Errorf("failed to unpack createQuest result: %w", err)
	}
	questID := abi.ConvertType(out[0], new(big.Int)).(*big.Int)

	txHash, err := g.transact(ctx, g.agentController, input)
	if err != nil {
		return 0, "", err
	}
	return questID.Uint64(), txHash.Hex(), nil
}

// SubmitCompletion records a completion using the completion-oracle identity.
// Before signing it verifies the oracle key matches the identity the contract
// expects and fails closed on mismatch.
func (g *QuestGateway) SubmitCompletion(ctx context.Context, questID uint64, participant common.Address, evidenceURI string) (string, error) {
	expected := g.expectedOracle
	if expected == (common.Address{}) {
		out, err := g.call(ctx, "completionOracle")
		if err != nil {
			return "", fmt.Errorf("failed to read completion oracle from contract: %w", err)
		}
		expected = *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	}
	if expected != (common.Address{}) && expected != g.oracle.Address {
		return "", newProofError(ErrWrongOracleIdentity,
			fmt.Sprintf("signer is not the registered completion oracle (expected %s, got %s)", expected.Hex(), g.oracle.Address.Hex()))
	}

	input, err := g.abi.Pack("recordCompletion", new(big.Int).SetUint64(questID), participant, evidenceURI)
	if err != nil {
		return "", fmt.Errorf("failed to pack recordCompletion: %w", err)
	}
	txHash, err := g.transact(ctx, g.oracle, input)
	if err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

// transact simulates, signs, broadcasts and waits for the receipt. Retries are
// the caller's responsibility; the contract rejects double-completion so a
// chain-level retry is idempotent.
func (g *QuestGateway) transact(ctx context.Context, signer *Signer, input []byte) (common.Hash, error) {
	msg := ethereum.CallMsg{From: signer.Address, To: &g.contract, Data: input}
	if _, err := g.client.CallContract(ctx, msg, nil); err != nil {
		return common.Hash{}, &ProofError{Kind: ErrSimulation, Message: "transaction simulation reverted", Detail: err.Error(), cause: err}
	}

	nonce, err := g.client.PendingNonceAt(ctx, signer.Address)
	if err != nil {
		return common.Hash{}, &ProofError{Kind: ErrSubmission, Message: "failed to fetch nonce", cause: err}
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, &ProofError{Kind: ErrSubmission, Message: "failed to fetch gas price", cause: err}
	}
	gasLimit, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, &ProofError{Kind: ErrSubmission, Message: "failed to estimate gas", cause: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.contract,
		Gas:      gasLimit + gasLimit/5,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), signer.Key)
	if err != nil {
		return common.Hash{}, &ProofError{Kind: ErrSubmission, Message: "failed to sign transaction", cause: err}
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, &ProofError{Kind: ErrSubmission, Message: "failed to broadcast transaction", Detail: err.Error(), cause: err}
	}

	receipt, err := g.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return common.Hash{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, newProofError(ErrSubmission, fmt.Sprintf("transaction %s reverted on-chain", signed.Hash().Hex()))
	}
	return signed.Hash(), nil
}

func (g *QuestGateway) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(g.receiptTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			log.Printf("[GATEWAY] receipt lookup for %s failed: %v", txHash.Hex(), err)
		}
		if time.Now().After(deadline) {
			return nil, newProofError(ErrReceiptTimeout, fmt.Sprintf("no confirmation for %s within %s", txHash.Hex(), g.receiptTimeout))
		}
		select {
		case <-ctx.Done():
			return nil, wrapProofError(ErrReceiptTimeout, "context cancelled while waiting for receipt", ctx.Err())
		case <-ticker.C:
		}
	}
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
