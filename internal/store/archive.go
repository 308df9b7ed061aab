package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rankpulse/monitor/internal/models"
)

// ArchiveConfig BSR 快照归档配置
//
// 归档是可选能力：不配置 URI 则不启用，快照只落本地库。
type ArchiveConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

func (c *ArchiveConfig) withDefaults() ArchiveConfig {
	out := *c
	if out.Database == "" {
		out.Database = "rankpulse"
	}
	if out.Collection == "" {
		out.Collection = "bsr_snapshots"
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	return out
}

// Archive 将 BSR 快照副本写入 MongoDB，用于长期保留和离线分析。
// 本地库的快照受保留期清理约束，归档不受影响。
type Archive struct {
	client  *mongo.Client
	config  ArchiveConfig
	enabled bool
}

// OpenArchive 按配置连接归档库；URI 为空返回禁用的归档（写入为空操作）
func OpenArchive(cfg ArchiveConfig) (*Archive, error) {
	if cfg.URI == "" {
		return &Archive{enabled: false}, nil
	}
	cfg = cfg.withDefaults()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("连接归档库失败: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("归档库连接测试失败: %w", err)
	}

	return &Archive{client: client, config: cfg, enabled: true}, nil
}

// Enabled 是否启用了归档
func (a *Archive) Enabled() bool {
	return a.enabled
}

// SaveSnapshot 写入一条快照归档记录
func (a *Archive) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	if !a.enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	coll := a.client.Database(a.config.Database).Collection(a.config.Collection)
	doc := bson.M{
		"snapshot_id":   snap.ID,
		"marketplace":   snap.Marketplace,
		"category_id":   snap.CategoryID,
		"category_name": snap.CategoryName,
		"products_json": snap.ProductsJSON,
		"product_count": snap.ProductCount,
		"created_at":    snap.CreatedAt,
		"_archived_at":  time.Now(),
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("写入快照归档失败: %w", err)
	}
	return nil
}

// ListSnapshots 按市场与类目查询归档快照，按创建时间倒序
func (a *Archive) ListSnapshots(ctx context.Context, marketplace, categoryID string, limit int) ([]bson.M, error) {
	if !a.enabled {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	filter := bson.M{}
	if marketplace != "" {
		filter["marketplace"] = marketplace
	}
	if categoryID != "" {
		filter["category_id"] = categoryID
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	coll := a.client.Database(a.config.Database).Collection(a.config.Collection)
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("查询快照归档失败: %w", err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("解析归档结果失败: %w", err)
	}
	return results, nil
}

// Close 断开归档库连接
func (a *Archive) Close(ctx context.Context) error {
	if !a.enabled {
		return nil
	}
	return a.client.Disconnect(ctx)
}
