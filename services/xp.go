package services

import (
	"math"
	"strconv"

	"defi-quest-system/models"
)

// Fixed XP grants per quest tier.
const (
	weeklyXP  int64 = 100
	dailyXP   int64 = 50
	minimumXP int64 = 25
	defaultXP int64 = 75
)

// XPReward is the deterministic XP rule: weekly quests (badge level >= 2) earn
// the high fixed amount, daily quests (badge level 1) the medium one, anything
// else derives from half the reward amount floored at the minimum, with a flat
// fallback when the amount does not parse. Pure function of its inputs.
func XPReward(questType models.QuestType, badgeLevel int, rewardAmount string) int64 {
	if questType == models.QuestTypeWeekly || badgeLevel >= 2 {
		return weeklyXP
	}
	if questType == models.QuestTypeDaily || badgeLevel == 1 {
		return dailyXP
	}
	if rewardAmount != "" {
		if reward, err := strconv.ParseFloat(rewardAmount, 64); err == nil {
			half := int64(math.Round(reward / 2))
			if half < minimumXP {
				return minimumXP
			}
			return half
		}
	}
	return defaultXP
}
