package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rankpulse/monitor/internal/models"
)

// sqlStore database/sql 实现
//
// 三种方言共用同一套查询：查询统一用 ? 占位符书写，postgres
// 在执行前重绑定为 $n；DDL 按方言生成。时间统一存为 UTC RFC3339
// 文本，字典序即时间序，跨方言可比较。
type sqlStore struct {
	db      *sql.DB
	dialect string // sqlite, postgres, mysql
}

func openSQL(cfg Config) (Store, error) {
	var (
		db      *sql.DB
		dialect string
		err     error
	)

	switch cfg.Driver {
	case "", "sqlite":
		dialect = "sqlite"
		path := cfg.Path
		if path == "" {
			path = "data/rankpulse.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
		db, err = sql.Open("sqlite", path)
		if err == nil {
			// SQLite 单写者，限制连接数避免 database is locked
			db.SetMaxOpenConns(1)
			_, _ = db.Exec("PRAGMA journal_mode = WAL")
			_, _ = db.Exec("PRAGMA busy_timeout = 5000")
		}
	case "postgres", "postgresql":
		dialect = "postgres"
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
		db, err = sql.Open("postgres", dsn)
	case "mysql":
		dialect = "mysql"
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=false",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		db, err = sql.Open("mysql", dsn)
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	s := &sqlStore{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return s, nil
}

// migrate 创建表结构（幂等）
func (s *sqlStore) migrate() error {
	idCol := map[string]string{
		"sqlite":   "INTEGER PRIMARY KEY AUTOINCREMENT",
		"postgres": "BIGSERIAL PRIMARY KEY",
		"mysql":    "BIGINT PRIMARY KEY AUTO_INCREMENT",
	}[s.dialect]
	keyCol := "TEXT PRIMARY KEY"
	if s.dialect == "mysql" {
		keyCol = "VARCHAR(191) PRIMARY KEY"
	}
	realCol := "REAL"
	if s.dialect != "sqlite" {
		realCol = "DOUBLE PRECISION"
	}
	if s.dialect == "mysql" {
		realCol = "DOUBLE"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS settings (
			name %s,
			value TEXT
		)`, keyCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id %s,
			name TEXT NOT NULL,
			asin TEXT NOT NULL,
			country TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS monitoring_targets (
			id %s,
			product_id BIGINT NOT NULL,
			keyword TEXT NOT NULL,
			asin TEXT NOT NULL,
			country TEXT NOT NULL,
			organic_rank BIGINT,
			organic_page BIGINT,
			sponsored_rank BIGINT,
			sponsored_page BIGINT,
			image_url TEXT,
			price TEXT,
			reviews_count BIGINT,
			rating %s,
			last_checked_at TEXT,
			created_at TEXT NOT NULL
		)`, idCol, realCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS task_logs (
			id %s,
			kind TEXT NOT NULL,
			total BIGINT NOT NULL,
			completed BIGINT NOT NULL DEFAULT 0,
			success BIGINT NOT NULL DEFAULT 0,
			failed BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS research_tasks (
			id %s,
			name TEXT NOT NULL,
			marketplace TEXT NOT NULL,
			category_id TEXT NOT NULL,
			category_name TEXT,
			ai_provider TEXT NOT NULL,
			ai_model TEXT NOT NULL,
			schedule_type TEXT NOT NULL,
			schedule_days TEXT,
			schedule_time TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run_at TEXT,
			last_run_status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS research_runs (
			id %s,
			task_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			summary TEXT,
			report TEXT,
			snapshot_id BIGINT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snapshots (
			id %s,
			marketplace TEXT NOT NULL,
			category_id TEXT NOT NULL,
			category_name TEXT,
			products_json TEXT NOT NULL,
			product_count BIGINT NOT NULL,
			created_at TEXT NOT NULL
		)`, idCol),
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind 将 ? 占位符重写为 postgres 的 $n
func (s *sqlStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insert 执行插入并返回自增 id
func (s *sqlStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect == "postgres" {
		var id int64
		err := s.db.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullStrPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullIntPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---------- 设置 KV ----------

func (s *sqlStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM settings WHERE name = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

func (s *sqlStore) SetSetting(ctx context.Context, key, value string) error {
	var query string
	if s.dialect == "mysql" {
		query = `INSERT INTO settings(name, value) VALUES(?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)`
	} else {
		query = `INSERT INTO settings(name, value) VALUES(?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value`
	}
	_, err := s.exec(ctx, query, key, value)
	return err
}

// ---------- 产品与监控项 ----------

func (s *sqlStore) CreateProduct(ctx context.Context, p models.Product) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return s.insert(ctx,
		`INSERT INTO products(name, asin, country, created_at) VALUES(?, ?, ?, ?)`,
		p.Name, p.ASIN, p.Country, fmtTime(p.CreatedAt))
}

func (s *sqlStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, asin, country, created_at FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var (
			p       models.Product
			created string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.ASIN, &p.Country, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(created)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *sqlStore) CreateTarget(ctx context.Context, t models.MonitoringTarget) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return s.insert(ctx,
		`INSERT INTO monitoring_targets(product_id, keyword, asin, country, created_at) VALUES(?, ?, ?, ?, ?)`,
		t.ProductID, t.Keyword, t.ASIN, t.Country, fmtTime(t.CreatedAt))
}

const targetColumns = `id, product_id, keyword, asin, country,
	organic_rank, organic_page, sponsored_rank, sponsored_page,
	image_url, price, reviews_count, rating, last_checked_at, created_at`

func scanTarget(rows interface{ Scan(...any) error }) (models.MonitoringTarget, error) {
	var (
		t                                 models.MonitoringTarget
		oRank, oPage, sRank, sPage, nRevs sql.NullInt64
		img, price, lastChecked           sql.NullString
		rating                            sql.NullFloat64
		created                           string
	)
	err := rows.Scan(&t.ID, &t.ProductID, &t.Keyword, &t.ASIN, &t.Country,
		&oRank, &oPage, &sRank, &sPage,
		&img, &price, &nRevs, &rating, &lastChecked, &created)
	if err != nil {
		return t, err
	}
	t.OrganicRank = nullIntPtr(oRank)
	t.OrganicPage = nullIntPtr(oPage)
	t.SponsoredRank = nullIntPtr(sRank)
	t.SponsoredPage = nullIntPtr(sPage)
	t.ImageURL = nullStrPtr(img)
	t.Price = nullStrPtr(price)
	t.ReviewsCount = nullIntPtr(nRevs)
	t.Rating = nullFloatPtr(rating)
	t.LastCheckedAt = parseTimePtr(lastChecked)
	t.CreatedAt = parseTime(created)
	return t, nil
}

func (s *sqlStore) queryTargets(ctx context.Context, query string, args ...any) ([]models.MonitoringTarget, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []models.MonitoringTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *sqlStore) ListTargets(ctx context.Context) ([]models.MonitoringTarget, error) {
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM monitoring_targets ORDER BY id`)
}

func (s *sqlStore) GetTarget(ctx context.Context, id int64) (*models.MonitoringTarget, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+targetColumns+` FROM monitoring_targets WHERE id = ?`), id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) ListPendingTargets(ctx context.Context, productID int64, horizon time.Duration) ([]models.MonitoringTarget, error) {
	cutoff := fmtTime(time.Now().Add(-horizon))
	return s.queryTargets(ctx,
		`SELECT `+targetColumns+` FROM monitoring_targets
		 WHERE product_id = ? AND (last_checked_at IS NULL OR last_checked_at < ?)
		 ORDER BY id`,
		productID, cutoff)
}

func (s *sqlStore) UpdateTargetRanking(ctx context.Context, id int64, upd models.RankingUpdate) error {
	_, err := s.exec(ctx,
		`UPDATE monitoring_targets SET
			organic_rank = ?, organic_page = ?, sponsored_rank = ?, sponsored_page = ?,
			image_url = ?, price = ?, reviews_count = ?, rating = ?, last_checked_at = ?
		 WHERE id = ?`,
		ptrArg(upd.OrganicRank), ptrArg(upd.OrganicPage), ptrArg(upd.SponsoredRank), ptrArg(upd.SponsoredPage),
		ptrArg(upd.ImageURL), ptrArg(upd.Price), ptrArg(upd.ReviewsCount), ptrArg(upd.Rating),
		fmtTime(time.Now()), id)
	return err
}

// ptrArg 将可空指针转换为驱动参数
func ptrArg[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// ---------- 任务日志 ----------

func (s *sqlStore) CreateTaskLog(ctx context.Context, kind string, total int64) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO task_logs(kind, total, completed, success, failed, status, started_at)
		 VALUES(?, ?, 0, 0, 0, 'running', ?)`,
		kind, total, fmtTime(time.Now()))
}

func (s *sqlStore) UpdateTaskProgress(ctx context.Context, id int64, completed int64) error {
	_, err := s.exec(ctx, `UPDATE task_logs SET completed = ? WHERE id = ?`, completed, id)
	return err
}

func (s *sqlStore) CompleteTaskLog(ctx context.Context, id int64, success, failed int64) error {
	_, err := s.exec(ctx,
		`UPDATE task_logs SET success = ?, failed = ?, completed = ?, status = 'completed', completed_at = ? WHERE id = ?`,
		success, failed, success+failed, fmtTime(time.Now()), id)
	return err
}

func scanTaskLog(row interface{ Scan(...any) error }) (models.TaskLog, error) {
	var (
		l           models.TaskLog
		started     string
		completedAt sql.NullString
	)
	err := row.Scan(&l.ID, &l.Kind, &l.Total, &l.Completed, &l.Success, &l.Failed, &l.Status, &started, &completedAt)
	if err != nil {
		return l, err
	}
	l.StartedAt = parseTime(started)
	l.CompletedAt = parseTimePtr(completedAt)
	return l, nil
}

func (s *sqlStore) GetTaskLog(ctx context.Context, id int64) (*models.TaskLog, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, kind, total, completed, success, failed, status, started_at, completed_at
		 FROM task_logs WHERE id = ?`), id)
	l, err := scanTaskLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *sqlStore) ListTaskLogs(ctx context.Context, limit int) ([]models.TaskLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, kind, total, completed, success, failed, status, started_at, completed_at
		 FROM task_logs ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.TaskLog
	for rows.Next() {
		l, err := scanTaskLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ---------- 市场调研 ----------

func (s *sqlStore) CreateResearchTask(ctx context.Context, t models.ResearchTask) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	days, err := json.Marshal(t.ScheduleDays)
	if err != nil {
		return 0, err
	}
	return s.insert(ctx,
		`INSERT INTO research_tasks(name, marketplace, category_id, category_name, ai_provider, ai_model,
			schedule_type, schedule_days, schedule_time, enabled, last_run_status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		t.Name, t.Marketplace, t.CategoryID, ptrArg(t.CategoryName), t.AIProvider, t.AIModel,
		t.ScheduleType, string(days), t.ScheduleTime, boolToInt(t.Enabled), fmtTime(t.CreatedAt))
}

const researchTaskColumns = `id, name, marketplace, category_id, category_name, ai_provider, ai_model,
	schedule_type, schedule_days, schedule_time, enabled, last_run_at, last_run_status, created_at`

func scanResearchTask(rows interface{ Scan(...any) error }) (models.ResearchTask, error) {
	var (
		t            models.ResearchTask
		categoryName sql.NullString
		days         sql.NullString
		enabled      int
		lastRun      sql.NullString
		created      string
	)
	err := rows.Scan(&t.ID, &t.Name, &t.Marketplace, &t.CategoryID, &categoryName, &t.AIProvider, &t.AIModel,
		&t.ScheduleType, &days, &t.ScheduleTime, &enabled, &lastRun, &t.LastRunStatus, &created)
	if err != nil {
		return t, err
	}
	t.CategoryName = nullStrPtr(categoryName)
	if days.Valid && days.String != "" {
		_ = json.Unmarshal([]byte(days.String), &t.ScheduleDays)
	}
	t.Enabled = enabled != 0
	t.LastRunAt = parseTimePtr(lastRun)
	t.CreatedAt = parseTime(created)
	return t, nil
}

func (s *sqlStore) queryResearchTasks(ctx context.Context, query string, args ...any) ([]models.ResearchTask, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.ResearchTask
	for rows.Next() {
		t, err := scanResearchTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *sqlStore) ListResearchTasks(ctx context.Context) ([]models.ResearchTask, error) {
	return s.queryResearchTasks(ctx, `SELECT `+researchTaskColumns+` FROM research_tasks ORDER BY id`)
}

func (s *sqlStore) ListEnabledResearchTasks(ctx context.Context) ([]models.ResearchTask, error) {
	return s.queryResearchTasks(ctx, `SELECT `+researchTaskColumns+` FROM research_tasks WHERE enabled = 1 ORDER BY id`)
}

func (s *sqlStore) UpdateTaskLastRun(ctx context.Context, id int64, status string, at time.Time) error {
	_, err := s.exec(ctx,
		`UPDATE research_tasks SET last_run_at = ?, last_run_status = ? WHERE id = ?`,
		fmtTime(at), status, id)
	return err
}

func (s *sqlStore) CreateResearchRun(ctx context.Context, taskID int64) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO research_runs(task_id, status, started_at) VALUES(?, 'running', ?)`,
		taskID, fmtTime(time.Now()))
}

func (s *sqlStore) FailResearchRun(ctx context.Context, id int64, errMsg string) error {
	_, err := s.exec(ctx,
		`UPDATE research_runs SET status = 'failed', error = ?, finished_at = ? WHERE id = ?`,
		errMsg, fmtTime(time.Now()), id)
	return err
}

func (s *sqlStore) CompleteResearchRun(ctx context.Context, id int64, summary string, report *string, snapshotID *int64) error {
	_, err := s.exec(ctx,
		`UPDATE research_runs SET status = 'completed', summary = ?, report = ?, snapshot_id = ?, finished_at = ? WHERE id = ?`,
		summary, ptrArg(report), ptrArg(snapshotID), fmtTime(time.Now()), id)
	return err
}

func scanResearchRun(row interface{ Scan(...any) error }) (models.ResearchRun, error) {
	var (
		r                       models.ResearchRun
		summary, report, errMsg sql.NullString
		snapshotID              sql.NullInt64
		started                 string
		finished                sql.NullString
	)
	err := row.Scan(&r.ID, &r.TaskID, &r.Status, &summary, &report, &snapshotID, &errMsg, &started, &finished)
	if err != nil {
		return r, err
	}
	r.Summary = nullStrPtr(summary)
	r.Report = nullStrPtr(report)
	r.SnapshotID = nullIntPtr(snapshotID)
	r.Error = nullStrPtr(errMsg)
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTimePtr(finished)
	return r, nil
}

func (s *sqlStore) GetResearchRun(ctx context.Context, id int64) (*models.ResearchRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, task_id, status, summary, report, snapshot_id, error, started_at, finished_at
		 FROM research_runs WHERE id = ?`), id)
	r, err := scanResearchRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlStore) ListResearchRuns(ctx context.Context, limit int) ([]models.ResearchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, task_id, status, summary, report, snapshot_id, error, started_at, finished_at
		 FROM research_runs ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ResearchRun
	for rows.Next() {
		r, err := scanResearchRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ---------- 快照 ----------

func (s *sqlStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) (int64, error) {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	return s.insert(ctx,
		`INSERT INTO snapshots(marketplace, category_id, category_name, products_json, product_count, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		snap.Marketplace, snap.CategoryID, ptrArg(snap.CategoryName), snap.ProductsJSON, snap.ProductCount, fmtTime(snap.CreatedAt))
}

// ---------- 保留期清理 ----------

func (s *sqlStore) pruneBefore(ctx context.Context, table, column string, before time.Time, extra string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < ?%s`, table, column, extra)
	res, err := s.exec(ctx, query, fmtTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlStore) PruneTaskLogs(ctx context.Context, before time.Time) (int64, error) {
	// 只清理已完成的记录，进行中的日志不动
	return s.pruneBefore(ctx, "task_logs", "started_at", before, ` AND status = 'completed'`)
}

func (s *sqlStore) PruneResearchRuns(ctx context.Context, before time.Time) (int64, error) {
	return s.pruneBefore(ctx, "research_runs", "started_at", before, ` AND status <> 'running'`)
}

func (s *sqlStore) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	return s.pruneBefore(ctx, "snapshots", "created_at", before, "")
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
