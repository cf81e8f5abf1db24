package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"defi-quest-system/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var categoryLabels = [...]string{"Swap", "Liquidity", "Stake", "Lend"}
var statusLabels = [...]string{"Inactive", "Active", "Completed", "Cancelled"}

// QuestCategoryToValue maps category slugs to the on-chain enum.
var QuestCategoryToValue = map[string]uint8{
	"swap":      0,
	"liquidity": 1,
	"stake":     2,
	"lend":      3,
}

// CategorySlug converts the on-chain category enum to its slug form.
func CategorySlug(category uint8) string {
	if int(category) < len(categoryLabels) {
		return strings.ToLower(categoryLabels[category])
	}
	return "unknown"
}

// StatusSlug converts the on-chain status enum to its slug form.
func StatusSlug(status uint8) models.QuestStatus {
	if int(status) < len(statusLabels) {
		return models.QuestStatus(strings.ToLower(statusLabels[status]))
	}
	return "unknown"
}

// QuestView is the serialized on-chain quest returned by the read endpoints.
type QuestView struct {
	ID                   string `json:"id"`
	AgentID              string `json:"agentId,omitempty"`
	AgentController      string `json:"agentController"`
	CategoryValue        uint8  `json:"categoryValue"`
	Category             string `json:"category"`
	Protocol             string `json:"protocol"`
	ParametersHash       string `json:"parametersHash"`
	MetadataURI          string `json:"metadataURI"`
	RewardToken          string `json:"rewardToken"`
	RewardPerParticipant string `json:"rewardPerParticipant"`
	BadgeLevel           string `json:"badgeLevel"`
	AssignedParticipant  string `json:"assignedParticipant"`
	AcceptedCount        string `json:"acceptedCount"`
	CompletedCount       string `json:"completedCount"`
	Expiry               string `json:"expiry"`
	StatusValue          uint8  `json:"statusValue"`
	Status               string `json:"status"`
	CreatedAt            string `json:"createdAt"`
}

// SerializeQuest flattens an on-chain quest into its JSON view with label
// lookups, matching the shape the frontend consumes.
func SerializeQuest(questID uint64, quest *OnChainQuest) *QuestView {
	category := "Unknown"
	if int(quest.Category) < len(categoryLabels) {
		category = categoryLabels[quest.Category]
	}
	status := "Unknown"
	if int(quest.Status) < len(statusLabels) {
		status = statusLabels[quest.Status]
	}
	return &QuestView{
		ID:                   fmt.Sprintf("%d", questID),
		AgentID:              bigString(quest.AgentId),
		AgentController:      quest.AgentController.Hex(),
		CategoryValue:        quest.Category,
		Category:             category,
		Protocol:             quest.Protocol.Hex(),
		ParametersHash:       fmt.Sprintf("0x%x", quest.ParametersHash),
		MetadataURI:          quest.MetadataURI,
		RewardToken:          quest.RewardToken.Hex(),
		RewardPerParticipant: bigString(quest.RewardPerParticipant),
		BadgeLevel:           bigString(quest.BadgeLevel),
		AssignedParticipant:  quest.AssignedParticipant.Hex(),
		AcceptedCount:        bigString(quest.AcceptedCount),
		CompletedCount:       bigString(quest.CompletedCount),
		Expiry:               fmt.Sprintf("%d", quest.Expiry),
		StatusValue:          quest.Status,
		Status:               status,
		CreatedAt:            fmt.Sprintf("%d", quest.CreatedAt),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// CreateQuestInput is the validated request payload for quest creation.
type CreateQuestInput struct {
	Category       string `json:"category"`
	Protocol       string `json:"protocol"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	ProjectName    string `json:"project_name"`
	MetadataURI    string `json:"metadataURI"`
	RewardAmount   string `json:"rewardAmount"`
	BadgeLevel     int    `json:"badgeLevel"`
	Participant    string `json:"participant"`
	Expiry         int64  `json:"expiry"`
	ParametersHash string `json:"parametersHash"`
	Parameters     string `json:"parameters"`
	QuestType      string `json:"questType"`
}

// CreateQuestResult reports the chain-assigned id and creation transaction.
type CreateQuestResult struct {
	QuestID         uint64 `json:"questId"`
	TransactionHash string `json:"transactionHash"`
}

// QuestService drives quest creation with the agent-controller identity and
// serves chain reads, keeping the mirror cache in step.
type QuestService struct {
	Gateway *QuestGateway
	Cache   *QuestCache
}

func NewQuestService(gateway *QuestGateway, cache *QuestCache) *QuestService {
	return &QuestService{Gateway: gateway, Cache: cache}
}

// CreateQuest validates input, submits createQuest with the agent-controller
// signer, then mirrors the new quest into the cache.
func (s *QuestService) CreateQuest(ctx context.Context, input CreateQuestInput) (*CreateQuestResult, error) {
	categoryValue, ok := QuestCategoryToValue[strings.ToLower(input.Category)]
	if !ok {
		return nil, newProofError(ErrInvalidInput, fmt.Sprintf("unknown quest category %q", input.Category))
	}
	if !common.IsHexAddress(input.Protocol) {
		return nil, newProofError(ErrInvalidInput, "protocol must be a hex address")
	}
	if !common.IsHexAddress(input.Participant) {
		return nil, newProofError(ErrInvalidInput, "participant must be a hex address")
	}
	if input.MetadataURI == "" || len(input.MetadataURI) > 200 {
		return nil, newProofError(ErrInvalidInput, "metadataURI must be 1-200 characters")
	}
	if input.BadgeLevel < 1 || input.BadgeLevel > 10 {
		return nil, newProofError(ErrInvalidInput, "badgeLevel must be between 1 and 10")
	}
	if input.Expiry < 0 {
		return nil, newProofError(ErrInvalidInput, "expiry must be non-negative")
	}

	reward, err := ParseTokenAmount(input.RewardAmount, 18)
	if err != nil {
		return nil, newProofError(ErrInvalidInput, fmt.Sprintf("invalid reward amount: %v", err))
	}

	var parametersHash [32]byte
	if input.ParametersHash != "" {
		decoded := common.HexToHash(input.ParametersHash)
		parametersHash = decoded
	} else {
		source := input.Parameters
		if source == "" {
			source = input.MetadataURI
		}
		parametersHash = crypto.Keccak256Hash([]byte(source))
	}

	params := CreateQuestParams{
		Category:             categoryValue,
		Protocol:             common.HexToAddress(input.Protocol),
		ParametersHash:       parametersHash,
		MetadataURI:          input.MetadataURI,
		RewardPerParticipant: reward,
		Expiry:               uint64(input.Expiry),
		BadgeLevel:           big.NewInt(int64(input.BadgeLevel)),
		Participant:          common.HexToAddress(input.Participant),
	}

	questID, txHash, err := s.Gateway.SubmitCreateQuest(ctx, params)
	if err != nil {
		return nil, err
	}

	questType := models.QuestType(input.QuestType)
	switch questType {
	case models.QuestTypeDaily, models.QuestTypeWeekly:
	default:
		questType = models.QuestTypeCustom
	}
	title := input.Title
	if title == "" {
		title = fmt.Sprintf("Quest #%d", questID)
	}

	cacheRow := &models.Quest{
		QuestIDOnChain:       questID,
		AgentController:      strings.ToLower(s.Gateway.AgentControllerAddress().Hex()),
		Title:                title,
		Description:          input.Description,
		ProjectName:          input.ProjectName,
		Category:             strings.ToLower(input.Category),
		ProtocolAddress:      input.Protocol,
		MetadataURI:          input.MetadataURI,
		ParametersHash:       fmt.Sprintf("0x%x", parametersHash),
		RewardPerParticipant: input.RewardAmount,
		BadgeLevel:           input.BadgeLevel,
		AssignedParticipant:  input.Participant,
		ExpiryTimestamp:      input.Expiry,
		Status:               models.QuestStatusActive,
		QuestType:            questType,
	}
	if err := s.Cache.Upsert(cacheRow); err != nil {
		// The quest exists on-chain regardless; the cache fills on next read.
		return &CreateQuestResult{QuestID: questID, TransactionHash: txHash}, nil
	}
	return &CreateQuestResult{QuestID: questID, TransactionHash: txHash}, nil
}

// GetQuest reads the quest from the chain and serializes it.
func (s *QuestService) GetQuest(ctx context.Context, questID uint64) (*QuestView, error) {
	quest, err := s.Gateway.ReadQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	return SerializeQuest(questID, quest), nil
}

// GetParticipantProgress reads the accepted/completed flags from the chain.
func (s *QuestService) GetParticipantProgress(ctx context.Context, questID uint64, participant string) (*ParticipantProgress, error) {
	if !common.IsHexAddress(participant) {
		return nil, newProofError(ErrInvalidInput, "participant must be a hex address")
	}
	return s.Gateway.ReadParticipantProgress(ctx, questID, common.HexToAddress(participant))
}

// ParseTokenAmount converts a decimal string to a fixed-point integer amount
// with the given number of decimals.
func ParseTokenAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount has more than %d decimal places", decimals)
	}

	wholePart, ok := new(big.Int).SetString(whole, 10)
	if !ok || wholePart.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result := new(big.Int).Mul(wholePart, scale)

	if frac != "" {
		fracPart, ok := new(big.Int).SetString(frac, 10)
		if !ok || fracPart.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q", amount)
		}
		fracScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-len(frac))), nil)
		result.Add(result, new(big.Int).Mul(fracPart, fracScale))
	}
	return result, nil
}
