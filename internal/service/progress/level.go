package progress

import (
	"math"

	"github.com/lawnpro/crew-ops/internal/models"
)

// Tier is a named XP level.
type Tier struct {
	Name  string `json:"name"`
	MinXP int    `json:"min_xp"`
}

// Tiers is the ascending level table.
var Tiers = []Tier{
	{Name: "Rookie", MinXP: 0},
	{Name: "Crew", MinXP: 500},
	{Name: "Pro", MinXP: 2000},
	{Name: "Elite", MinXP: 5000},
	{Name: "Legend", MinXP: 10000},
}

// LevelInfo describes where a total XP falls on the tier table.
type LevelInfo struct {
	Name        string  `json:"name"`
	MinXP       int     `json:"min_xp"`
	NextName    string  `json:"next_name,omitempty"`
	XPIntoLevel int     `json:"xp_into_level"`
	XPForNext   int     `json:"xp_for_next"`
	Progress    float64 `json:"progress"`
	IsMax       bool    `json:"is_max"`
}

// CalculateLevel maps total XP to the highest tier whose minimum it meets.
func CalculateLevel(totalXP int) LevelInfo {
	idx := 0
	for i, t := range Tiers {
		if t.MinXP <= totalXP {
			idx = i
		}
	}
	tier := Tiers[idx]

	info := LevelInfo{
		Name:        tier.Name,
		MinXP:       tier.MinXP,
		XPIntoLevel: totalXP - tier.MinXP,
	}
	if info.XPIntoLevel < 0 {
		info.XPIntoLevel = 0
	}

	if idx == len(Tiers)-1 {
		info.Progress = 100
		info.IsMax = true
		return info
	}

	next := Tiers[idx+1]
	info.NextName = next.Name
	info.XPForNext = next.MinXP - tier.MinXP
	info.Progress = math.Min(float64(info.XPIntoLevel)/float64(info.XPForNext)*100, 100)
	return info
}

// RecomputeXP returns a copy of the record with level, streak and last
// completion date rederived from TotalXP and the completion log. TotalXP is
// left untouched.
func RecomputeXP(record models.UserXP, completions []models.QuestCompletion, today string) models.UserXP {
	record.Level = CalculateLevel(record.TotalXP).Name
	record.Streak = Streak(completions, record.UserEmail, today)
	record.LastCompletionDate = LastCompletionDate(completions, record.UserEmail)
	return record
}
