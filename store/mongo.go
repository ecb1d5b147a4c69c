package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/flockwise/agrirag/retrieval"
)

// MongoConfig MongoDB 关键词存储配置
type MongoConfig struct {
	URI        string        `json:"uri" yaml:"uri"`
	Database   string        `json:"database" yaml:"database"`
	Collection string        `json:"collection" yaml:"collection"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultMongoConfig 返回默认配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "agrirag",
		Collection: "documents",
		Timeout:    10 * time.Second,
	}
}

// mongoDocument 集合内的文档形态
type mongoDocument struct {
	ID       string         `bson:"_id"`
	Content  string         `bson:"content"`
	Metadata map[string]any `bson:"metadata,omitempty"`
}

// MongoStore 基于 MongoDB $text 全文索引的关键词存储
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    MongoConfig
	logger *zap.Logger
}

// NewMongoStore 连接 MongoDB 并确保全文索引存在
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultMongoConfig()
	if cfg.URI == "" {
		cfg.URI = def.URI
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "mongo_store")),
	}

	if err := s.ensureTextIndex(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("mongo keyword store initialized",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)
	return s, nil
}

// ensureTextIndex 在 content 字段上建全文索引，幂等
func (s *MongoStore) ensureTextIndex(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "content", Value: "text"}},
		Options: options.Index().SetName("content_text"),
	})
	if err != nil {
		return fmt.Errorf("mongodb text index creation failed: %w", err)
	}
	return nil
}

// AddDocuments 批量入库（upsert 语义）
func (s *MongoStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document[%d] has empty id", i)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc.ID}}).
			SetReplacement(mongoDocument{
				ID:       doc.ID,
				Content:  doc.Content,
				Metadata: doc.Metadata,
			}).
			SetUpsert(true))
	}

	if _, err := s.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongodb bulk write failed: %w", err)
	}
	s.logger.Debug("mongo upsert completed", zap.Int("count", len(docs)))
	return nil
}

// mongoFilter 过滤条件转查询文档
func mongoFilter(query string, filter retrieval.Filter) bson.D {
	out := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: query}}}}

	add := func(field, value string) {
		if value == "" {
			return
		}
		out = append(out, bson.E{Key: "metadata." + field, Value: value})
	}
	add("breed", filter.Breed)
	add("age_band", string(filter.AgeBand))
	add("phase", filter.Phase)
	add("sex", string(filter.Sex))
	add("metric", string(filter.Metric))

	return out
}

// SearchKeyword $text 检索，按 textScore 降序
func (s *MongoStore) SearchKeyword(ctx context.Context, query string, topK int, filter retrieval.Filter) ([]retrieval.Candidate, error) {
	if topK <= 0 {
		return []retrieval.Candidate{}, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	scoreMeta := bson.D{{Key: "$meta", Value: "textScore"}}
	cursor, err := s.coll.Find(queryCtx, mongoFilter(query, filter),
		options.Find().
			SetProjection(bson.D{
				{Key: "content", Value: 1},
				{Key: "metadata", Value: 1},
				{Key: "score", Value: scoreMeta},
			}).
			SetSort(bson.D{{Key: "score", Value: scoreMeta}}).
			SetLimit(int64(topK)))
	if err != nil {
		return nil, fmt.Errorf("mongodb text search failed: %w", err)
	}
	defer cursor.Close(queryCtx)

	var rows []struct {
		ID       string         `bson:"_id"`
		Content  string         `bson:"content"`
		Metadata map[string]any `bson:"metadata"`
		Score    float64        `bson:"score"`
	}
	if err := cursor.All(queryCtx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb cursor read failed: %w", err)
	}

	out := make([]retrieval.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, retrieval.Candidate{
			ID:       row.ID,
			Content:  row.Content,
			Metadata: row.Metadata,
			Score:    row.Score,
			Source:   "mongo",
		})
	}
	return out, nil
}

// DeleteDocuments 按文档 ID 删除
func (s *MongoStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return fmt.Errorf("mongodb delete failed: %w", err)
	}
	return nil
}

// Close 断开 MongoDB 连接
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ retrieval.KeywordStore = (*MongoStore)(nil)
