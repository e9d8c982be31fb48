// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormQuestion 题目模型
type GormQuestion struct {
	gorm.Model
	QuestionID   string `gorm:"uniqueIndex;not null"`
	Kind         string `gorm:"index;not null"`
	Prompt       string `gorm:"not null"`
	Option0      string `gorm:"not null"`
	Option1      string `gorm:"not null"`
	Option2      string `gorm:"not null"`
	Option3      string `gorm:"not null"`
	CorrectIndex int    `gorm:"not null"`
	Explanation  string
	Category     string `gorm:"index"`
	Active       bool   `gorm:"default:true;index"`
	TimesUsed    int    `gorm:"default:0"`
	LastUsedAt   *time.Time
}

func (GormQuestion) TableName() string { return "questions" }

// GormGame 对局模型
type GormGame struct {
	gorm.Model
	PlayerCount int `gorm:"not null"`
	MaxRounds   int `gorm:"not null"`
	WinnerName  string
	WinnerScore int
	Duration    int `gorm:"default:0"` // 游戏时长(秒)
	CompletedAt *time.Time
}

func (GormGame) TableName() string { return "games" }

// GormRound 回合模型
type GormRound struct {
	gorm.Model
	GameID          uint   `gorm:"index;not null"`
	QuestionID      string `gorm:"index;not null"`
	RoundNumber     int    `gorm:"not null"`
	AnsweredCount   int
	CorrectCount    int
	AvgAnswerTimeMs int64
	FunnyVoteCount  int
}

func (GormRound) TableName() string { return "rounds" }

// GormPlayerAnswer 玩家作答模型
type GormPlayerAnswer struct {
	gorm.Model
	GameID       uint   `gorm:"index;not null"`
	QuestionID   string `gorm:"index;not null"`
	PlayerName   string `gorm:"not null"`
	ChoiceIndex  int
	IsCorrect    bool
	AnswerTimeMs int64
	VotedFunny   bool
}

func (GormPlayerAnswer) TableName() string { return "player_answers" }
