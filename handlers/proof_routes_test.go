package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"defi-quest-system/models"
	"defi-quest-system/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

var routeParticipant = common.HexToAddress("0xabcd000000000000000000000000000000000001")

type routeGateway struct{}

func (routeGateway) ReadQuest(ctx context.Context, questID uint64) (*services.OnChainQuest, error) {
	return &services.OnChainQuest{
		Status:              services.QuestStateActive,
		AssignedParticipant: routeParticipant,
		Expiry:              uint64(time.Now().Add(time.Hour).Unix()),
	}, nil
}

func (routeGateway) ReadParticipantProgress(ctx context.Context, questID uint64, participant common.Address) (*services.ParticipantProgress, error) {
	return &services.ParticipantProgress{Accepted: true}, nil
}

func (routeGateway) SubmitCompletion(ctx context.Context, questID uint64, participant common.Address, evidenceURI string) (string, error) {
	return "0xcompletion", nil
}

type routeVerifier struct{}

func (routeVerifier) Verify(ctx context.Context, txHashOrID, expectedFrom, expectedTo string) (*services.VerificationResult, error) {
	return &services.VerificationResult{
		Valid: true,
		Transaction: &services.MirrorTransaction{
			TransactionID: "0.0.5555-1700000000-000000001",
			Result:        "SUCCESS",
			EntityID:      "0.0.19264",
		},
		RawPayload: []byte(`{"transactions":[{}]}`),
	}, nil
}

type routeSubmissions struct{}

func (routeSubmissions) HasSubmission(questID uint64, txHash string) (bool, error) { return false, nil }

func (routeSubmissions) Record(questID uint64, participant, txHash, payload string, status models.VerificationStatus) (*models.Submission, bool, error) {
	return &models.Submission{QuestIDOnChain: questID, TransactionHash: txHash}, true, nil
}

func (routeSubmissions) MarkCompleted(questID uint64, txHash, completionTxHash string) error {
	return nil
}

type routeRewards struct{}

func (routeRewards) RecordReward(walletAddress string, questID uint64, xpAmount int64, rewardAmount string, badgeTokenID *int64, completionTxHash string) (*models.XPLedgerEntry, error) {
	return &models.XPLedgerEntry{XPAmount: xpAmount}, nil
}

type routeQuests struct{}

func (routeQuests) GetByOnChainID(ctx context.Context, questID uint64) (*models.Quest, error) {
	return &models.Quest{QuestType: models.QuestTypeDaily, BadgeLevel: 1, RewardPerParticipant: "50"}, nil
}

func newProofApp() *fiber.App {
	app := fiber.New()
	completion := services.NewCompletionService(routeGateway{}, routeVerifier{}, routeSubmissions{}, routeRewards{}, routeQuests{})
	SetupProofRoutes(app, completion)
	return app
}

func TestSubmitProofResponseCarriesMirrorNodeRecord(t *testing.T) {
	app := newProofApp()

	req := httptest.NewRequest("POST", "/quests/7/submit-proof",
		strings.NewReader(`{"transactionHash":"0xabc111"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed struct {
		Message         string `json:"message"`
		QuestID         string `json:"questId"`
		TransactionHash string `json:"transactionHash"`
		XPAwarded       int64  `json:"xpAwarded"`
		Verification    struct {
			TransactionHash string                      `json:"transactionHash"`
			Valid           bool                        `json:"valid"`
			MirrorNodeTx    *services.MirrorTransaction `json:"mirrorNodeTx"`
		} `json:"verification"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))

	require.Equal(t, "7", parsed.QuestID)
	require.Equal(t, "0xcompletion", parsed.TransactionHash)
	require.Equal(t, int64(50), parsed.XPAwarded)
	require.True(t, parsed.Verification.Valid)
	require.Equal(t, "0xabc111", parsed.Verification.TransactionHash)

	// The indexer record comes back with the success body, not a stub.
	require.NotNil(t, parsed.Verification.MirrorNodeTx)
	require.Equal(t, "0.0.5555-1700000000-000000001", parsed.Verification.MirrorNodeTx.TransactionID)
	require.Equal(t, "0.0.19264", parsed.Verification.MirrorNodeTx.EntityID)
}

func TestSubmitProofInvalidQuestIDParam(t *testing.T) {
	app := newProofApp()

	req := httptest.NewRequest("POST", "/quests/not-a-number/submit-proof",
		strings.NewReader(`{"transactionHash":"0xabc111"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
