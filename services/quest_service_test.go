package services

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseTokenAmount(t *testing.T) {
	amount, err := ParseTokenAmount("50", 18)
	require.NoError(t, err)
	require.Equal(t, "50000000000000000000", amount.String())

	amount, err = ParseTokenAmount("0.5", 18)
	require.NoError(t, err)
	require.Equal(t, "500000000000000000", amount.String())

	amount, err = ParseTokenAmount("1.25", 8)
	require.NoError(t, err)
	require.Equal(t, "125000000", amount.String())

	amount, err = ParseTokenAmount("0", 18)
	require.NoError(t, err)
	require.Equal(t, "0", amount.String())
}

func TestParseTokenAmountRejectsBadInput(t *testing.T) {
	for _, bad := range []string{"", "  ", "-5", "abc", "1.2.3"} {
		_, err := ParseTokenAmount(bad, 18)
		require.Error(t, err, "amount %q", bad)
	}

	// More fractional digits than the token supports.
	_, err := ParseTokenAmount("0.123", 2)
	require.Error(t, err)
}

func TestSerializeQuest(t *testing.T) {
	quest := &OnChainQuest{
		AgentId:              big.NewInt(3),
		AgentController:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Category:             0,
		Protocol:             testProtocol,
		MetadataURI:          "ipfs://quests/daily-swap",
		RewardPerParticipant: big.NewInt(50),
		BadgeLevel:           big.NewInt(1),
		AssignedParticipant:  testParticipant,
		AcceptedCount:        big.NewInt(1),
		Expiry:               1700003600,
		Status:               QuestStateActive,
		CreatedAt:            1700000000,
	}

	view := SerializeQuest(42, quest)
	require.Equal(t, "42", view.ID)
	require.Equal(t, "Swap", view.Category)
	require.Equal(t, uint8(0), view.CategoryValue)
	require.Equal(t, "Active", view.Status)
	require.Equal(t, "50", view.RewardPerParticipant)
	require.Equal(t, "1", view.BadgeLevel)
	require.Equal(t, "0", view.CompletedCount) // nil big.Int renders as zero
	require.Equal(t, "1700003600", view.Expiry)
}

func TestSerializeQuestUnknownEnums(t *testing.T) {
	quest := &OnChainQuest{Category: 9, Status: 9}
	view := SerializeQuest(1, quest)
	require.Equal(t, "Unknown", view.Category)
	require.Equal(t, "Unknown", view.Status)
}

func TestCategoryAndStatusSlugs(t *testing.T) {
	require.Equal(t, "lend", CategorySlug(3))
	require.Equal(t, "unknown", CategorySlug(7))
	require.Equal(t, "active", string(StatusSlug(QuestStateActive)))
	require.Equal(t, "cancelled", string(StatusSlug(QuestStateCancelled)))
}

func TestProtocolRegistryLookups(t *testing.T) {
	p := ProtocolByAddress("0x0000000000000000000000000000000000004B40")
	require.NotNil(t, p)
	require.Equal(t, "swap", p.Category)

	require.Nil(t, ProtocolByAddress("0x000000000000000000000000000000000000dead"))

	require.NotNil(t, ProtocolByNativeID("0.0.7154915"))
	require.Len(t, ProtocolsByCategory("lend"), 1)
}

func TestEvidenceURI(t *testing.T) {
	require.Equal(t, "ipfs://proof_7_0xabcdef12", EvidenceURI(7, "0xabcdef1234567890"))
	require.Equal(t, "ipfs://proof_7_0xab", EvidenceURI(7, "0xab"))
}
