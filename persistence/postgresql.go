// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	// PostgreSQL 驱动
	"github.com/lib/pq"
	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/question"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", DSN(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	// 创建题目表, 选项以 JSONB 数组保存
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS questions (
            id SERIAL PRIMARY KEY,
            question_id VARCHAR(255) UNIQUE NOT NULL,
            kind VARCHAR(50) NOT NULL,
            prompt TEXT NOT NULL,
            options JSONB NOT NULL,
            correct_index INT NOT NULL,
            explanation TEXT NOT NULL DEFAULT '',
            category VARCHAR(100) NOT NULL DEFAULT '',
            active BOOLEAN NOT NULL DEFAULT TRUE,
            times_used INT NOT NULL DEFAULT 0,
            last_used_at TIMESTAMP,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建对局表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS games (
            id SERIAL PRIMARY KEY,
            player_count INT NOT NULL,
            max_rounds INT NOT NULL,
            winner_name VARCHAR(255) NOT NULL DEFAULT '',
            winner_score INT NOT NULL DEFAULT 0,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            completed_at TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建回合表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS rounds (
            id SERIAL PRIMARY KEY,
            game_id INT NOT NULL REFERENCES games(id),
            question_id VARCHAR(255) NOT NULL,
            round_number INT NOT NULL,
            answered_count INT NOT NULL,
            correct_count INT NOT NULL,
            avg_answer_time_ms BIGINT NOT NULL,
            funny_vote_count INT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建作答表
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_answers (
            id SERIAL PRIMARY KEY,
            game_id INT NOT NULL REFERENCES games(id),
            question_id VARCHAR(255) NOT NULL,
            player_name VARCHAR(255) NOT NULL,
            choice_index INT NOT NULL,
            is_correct BOOLEAN NOT NULL,
            answer_time_ms BIGINT NOT NULL,
            voted_funny BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_questions_kind_active ON questions(kind, active);
        CREATE INDEX IF NOT EXISTS idx_rounds_question_id ON rounds(question_id);
        CREATE INDEX IF NOT EXISTS idx_rounds_game_id ON rounds(game_id);
        CREATE INDEX IF NOT EXISTS idx_player_answers_game_id ON player_answers(game_id);
    `)

	return err
}

const questionColumns = `question_id, kind, prompt, options, correct_index, explanation, category`

// FetchPack 按题型配比抽题
func (p *PostgreSQL) FetchPack(ctx context.Context, count int, mix question.TypeMix) ([]question.Question, error) {
	quotas := question.Quotas(count, mix)

	var pack []question.Question
	for _, kind := range question.Kinds {
		want := quotas[kind]
		if want == 0 {
			continue
		}
		batch, err := p.queryQuestions(ctx, `
            SELECT `+questionColumns+` FROM questions
            WHERE active AND kind = $1
            ORDER BY times_used ASC, random()
            LIMIT $2`, string(kind), want)
		if err != nil {
			return nil, err
		}
		pack = append(pack, batch...)
	}

	// 数量不足时从其他题型补齐
	if short := count - len(pack); short > 0 {
		taken := make([]string, 0, len(pack))
		for _, q := range pack {
			taken = append(taken, q.ID)
		}
		batch, err := p.queryQuestions(ctx, `
            SELECT `+questionColumns+` FROM questions
            WHERE active AND NOT (question_id = ANY($1))
            ORDER BY times_used ASC, random()
            LIMIT $2`, pq.Array(taken), short)
		if err != nil {
			return nil, err
		}
		pack = append(pack, batch...)
	}

	if len(pack) == 0 {
		return nil, question.ErrNotEnough
	}
	rand.Shuffle(len(pack), func(i, j int) { pack[i], pack[j] = pack[j], pack[i] })
	return pack, nil
}

func (p *PostgreSQL) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]question.Question, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []question.Question
	for rows.Next() {
		var (
			q       question.Question
			kind    string
			options []byte
		)
		if err := rows.Scan(&q.ID, &kind, &q.Prompt, &options, &q.CorrectIndex, &q.Explanation, &q.Category); err != nil {
			return nil, err
		}
		q.Kind = question.Kind(kind)
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// MarkUsed 增加题目使用次数
func (p *PostgreSQL) MarkUsed(ctx context.Context, questionID string) error {
	res, err := p.db.ExecContext(ctx, `
        UPDATE questions SET times_used = times_used + 1, last_used_at = CURRENT_TIMESTAMP
        WHERE question_id = $1`, questionID)
	if err != nil {
		return err
	}
	return expectRows(res)
}

// CreateGame 创建对局记录
func (p *PostgreSQL) CreateGame(ctx context.Context, playerCount, maxRounds int) (string, error) {
	var id uint
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO games (player_count, max_rounds) VALUES ($1, $2) RETURNING id`,
		playerCount, maxRounds).Scan(&id)
	if err != nil {
		return "", err
	}
	return formatGameID(id), nil
}

// RecordRound 保存回合结果
func (p *PostgreSQL) RecordRound(ctx context.Context, round models.RoundResult) error {
	gameID, err := parseGameID(round.GameID)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO rounds (game_id, question_id, round_number, answered_count, correct_count, avg_answer_time_ms, funny_vote_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		gameID, round.QuestionID, round.RoundNumber, round.AnsweredCount,
		round.CorrectCount, round.AvgAnswerTimeMs, round.FunnyVoteCount)
	return err
}

// RecordPlayerAnswer 保存玩家作答
func (p *PostgreSQL) RecordPlayerAnswer(ctx context.Context, answer models.PlayerAnswer) error {
	gameID, err := parseGameID(answer.GameID)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO player_answers (game_id, question_id, player_name, choice_index, is_correct, answer_time_ms, voted_funny)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		gameID, answer.QuestionID, answer.PlayerName, answer.ChoiceIndex,
		answer.IsCorrect, answer.AnswerTimeMs, answer.VotedFunny)
	return err
}

// CompleteGame 更新对局结果
func (p *PostgreSQL) CompleteGame(ctx context.Context, summary models.GameSummary) error {
	gameID, err := parseGameID(summary.GameID)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
        UPDATE games SET winner_name = $2, winner_score = $3, duration = $4, completed_at = CURRENT_TIMESTAMP
        WHERE id = $1`,
		gameID, summary.WinnerName, summary.WinnerScore, summary.DurationSeconds)
	if err != nil {
		return err
	}
	return expectRows(res)
}

// SeedQuestions 导入题库, 已存在的题目跳过
func (p *PostgreSQL) SeedQuestions(ctx context.Context, questions []question.Question) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, err
		}
		options, err := json.Marshal(q.Options)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, `
            INSERT INTO questions (`+questionColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            ON CONFLICT (question_id) DO NOTHING`,
			q.ID, string(q.Kind), q.Prompt, options, q.CorrectIndex, q.Explanation, q.Category)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		added += int(n)
	}
	return added, tx.Commit()
}

// QuestionStats 统计每道题的作答情况
func (p *PostgreSQL) QuestionStats(ctx context.Context) ([]models.QuestionStats, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT
            q.question_id,
            q.kind,
            COUNT(r.id),
            COALESCE(SUM(r.answered_count), 0),
            COALESCE(SUM(r.correct_count), 0),
            COALESCE(SUM(r.funny_vote_count), 0),
            COALESCE(AVG(r.avg_answer_time_ms), 0),
            q.last_used_at
        FROM questions q
        LEFT JOIN rounds r ON r.question_id = q.question_id
        WHERE q.active
        GROUP BY q.question_id, q.kind, q.last_used_at
        ORDER BY q.question_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []questionStatsRow
	for rows.Next() {
		var (
			row      questionStatsRow
			lastUsed pq.NullTime
		)
		if err := rows.Scan(&row.QuestionID, &row.Kind, &row.Rounds, &row.Answered,
			&row.Correct, &row.FunnyVotes, &row.AvgAnswerMs, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			row.LastUsedAt = &t
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return statsFromRows(out), nil
}

// DeactivateQuestions 在事务中下架题目
func (p *PostgreSQL) DeactivateQuestions(ctx context.Context, questionIDs []string) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE questions SET active = FALSE WHERE active AND question_id = ANY($1)`,
		pq.Array(questionIDs))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
