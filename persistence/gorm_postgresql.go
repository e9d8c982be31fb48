// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/question"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// DSN builds a lib/pq style connection string.
func DSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // 慢SQL阈值
			LogLevel:                  logger.Warn, // 日志级别
			IgnoreRecordNotFoundError: true,
			Colorful:                  false, // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(DSN(host, port, user, password, dbname)), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormQuestion{},
		&models.GormGame{},
		&models.GormRound{},
		&models.GormPlayerAnswer{},
	)
}

// FetchPack 按题型配比抽题, 优先使用次数少的题目
func (p *GormPostgreSQL) FetchPack(ctx context.Context, count int, mix question.TypeMix) ([]question.Question, error) {
	db := p.db.WithContext(ctx)
	quotas := question.Quotas(count, mix)

	var rows []models.GormQuestion
	taken := make([]string, 0, count)
	for _, kind := range question.Kinds {
		want := quotas[kind]
		if want == 0 {
			continue
		}
		var batch []models.GormQuestion
		err := db.Where("active = ? AND kind = ?", true, string(kind)).
			Order("times_used ASC").
			Order("RANDOM()").
			Limit(want).
			Find(&batch).Error
		if err != nil {
			return nil, err
		}
		for _, row := range batch {
			taken = append(taken, row.QuestionID)
		}
		rows = append(rows, batch...)
	}

	// 数量不足时从其他题型补齐
	if short := count - len(rows); short > 0 {
		query := db.Where("active = ?", true)
		if len(taken) > 0 {
			query = query.Where("question_id NOT IN ?", taken)
		}
		var batch []models.GormQuestion
		if err := query.Order("times_used ASC").Order("RANDOM()").Limit(short).Find(&batch).Error; err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}

	if len(rows) == 0 {
		return nil, question.ErrNotEnough
	}
	pack := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		pack = append(pack, toQuestion(row))
	}
	rand.Shuffle(len(pack), func(i, j int) { pack[i], pack[j] = pack[j], pack[i] })
	return pack, nil
}

// MarkUsed 增加题目使用次数
func (p *GormPostgreSQL) MarkUsed(ctx context.Context, questionID string) error {
	result := p.db.WithContext(ctx).Model(&models.GormQuestion{}).
		Where("question_id = ?", questionID).
		Updates(map[string]interface{}{
			"times_used":   gorm.Expr("times_used + 1"),
			"last_used_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CreateGame 创建对局记录
func (p *GormPostgreSQL) CreateGame(ctx context.Context, playerCount, maxRounds int) (string, error) {
	game := models.GormGame{PlayerCount: playerCount, MaxRounds: maxRounds}
	if err := p.db.WithContext(ctx).Create(&game).Error; err != nil {
		return "", err
	}
	return formatGameID(game.ID), nil
}

// RecordRound 保存回合结果
func (p *GormPostgreSQL) RecordRound(ctx context.Context, round models.RoundResult) error {
	gameID, err := parseGameID(round.GameID)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Create(&models.GormRound{
		GameID:          gameID,
		QuestionID:      round.QuestionID,
		RoundNumber:     round.RoundNumber,
		AnsweredCount:   round.AnsweredCount,
		CorrectCount:    round.CorrectCount,
		AvgAnswerTimeMs: round.AvgAnswerTimeMs,
		FunnyVoteCount:  round.FunnyVoteCount,
	}).Error
}

// RecordPlayerAnswer 保存玩家作答
func (p *GormPostgreSQL) RecordPlayerAnswer(ctx context.Context, answer models.PlayerAnswer) error {
	gameID, err := parseGameID(answer.GameID)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Create(&models.GormPlayerAnswer{
		GameID:       gameID,
		QuestionID:   answer.QuestionID,
		PlayerName:   answer.PlayerName,
		ChoiceIndex:  answer.ChoiceIndex,
		IsCorrect:    answer.IsCorrect,
		AnswerTimeMs: answer.AnswerTimeMs,
		VotedFunny:   answer.VotedFunny,
	}).Error
}

// CompleteGame 更新对局结果
func (p *GormPostgreSQL) CompleteGame(ctx context.Context, summary models.GameSummary) error {
	gameID, err := parseGameID(summary.GameID)
	if err != nil {
		return err
	}
	now := time.Now()
	result := p.db.WithContext(ctx).Model(&models.GormGame{}).
		Where("id = ?", gameID).
		Updates(map[string]interface{}{
			"winner_name":  summary.WinnerName,
			"winner_score": summary.WinnerScore,
			"duration":     summary.DurationSeconds,
			"completed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SeedQuestions 导入题库, 已存在的题目跳过
func (p *GormPostgreSQL) SeedQuestions(ctx context.Context, questions []question.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]models.GormQuestion, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, err
		}
		rows = append(rows, fromQuestion(q))
	}
	result := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "question_id"}}, DoNothing: true}).
		Create(&rows)
	return int(result.RowsAffected), result.Error
}

type questionStatsRow struct {
	QuestionID  string
	Kind        string
	Rounds      int
	Answered    int
	Correct     int
	FunnyVotes  int
	AvgAnswerMs float64
	LastUsedAt  *time.Time
}

// QuestionStats 统计每道题的作答情况
func (p *GormPostgreSQL) QuestionStats(ctx context.Context) ([]models.QuestionStats, error) {
	var rows []questionStatsRow
	err := p.db.WithContext(ctx).Raw(`
        SELECT
            q.question_id,
            q.kind,
            COUNT(r.id) AS rounds,
            COALESCE(SUM(r.answered_count), 0) AS answered,
            COALESCE(SUM(r.correct_count), 0) AS correct,
            COALESCE(SUM(r.funny_vote_count), 0) AS funny_votes,
            COALESCE(AVG(r.avg_answer_time_ms), 0) AS avg_answer_ms,
            q.last_used_at
        FROM questions q
        LEFT JOIN rounds r ON r.question_id = q.question_id AND r.deleted_at IS NULL
        WHERE q.active AND q.deleted_at IS NULL
        GROUP BY q.question_id, q.kind, q.last_used_at
        ORDER BY q.question_id`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return statsFromRows(rows), nil
}

// DeactivateQuestions 在事务中下架题目
func (p *GormPostgreSQL) DeactivateQuestions(ctx context.Context, questionIDs []string) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	var affected int64
	err := p.Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Model(&models.GormQuestion{}).
			Where("question_id IN ? AND active = ?", questionIDs, true).
			Update("active", false)
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	return affected, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

func toQuestion(row models.GormQuestion) question.Question {
	return question.Question{
		ID:           row.QuestionID,
		Kind:         question.Kind(row.Kind),
		Prompt:       row.Prompt,
		Options:      [question.OptionCount]string{row.Option0, row.Option1, row.Option2, row.Option3},
		CorrectIndex: row.CorrectIndex,
		Explanation:  row.Explanation,
		Category:     row.Category,
	}
}

func fromQuestion(q question.Question) models.GormQuestion {
	return models.GormQuestion{
		QuestionID:   q.ID,
		Kind:         string(q.Kind),
		Prompt:       q.Prompt,
		Option0:      q.Options[0],
		Option1:      q.Options[1],
		Option2:      q.Options[2],
		Option3:      q.Options[3],
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Category:     q.Category,
		Active:       true,
	}
}

func statsFromRows(rows []questionStatsRow) []models.QuestionStats {
	stats := make([]models.QuestionStats, 0, len(rows))
	for _, row := range rows {
		s := models.QuestionStats{
			QuestionID:  row.QuestionID,
			Kind:        row.Kind,
			Rounds:      row.Rounds,
			Answered:    row.Answered,
			Correct:     row.Correct,
			FunnyVotes:  row.FunnyVotes,
			AvgAnswerMs: row.AvgAnswerMs,
		}
		if row.LastUsedAt != nil {
			s.LastUsedAt = *row.LastUsedAt
		}
		stats = append(stats, s)
	}
	return stats
}
