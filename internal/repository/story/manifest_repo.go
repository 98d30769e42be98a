package story

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fable/internal/model/story"
)

// ErrManifestNotFound 清单不存在
var ErrManifestNotFound = errors.New("manifest not found")

// ManifestRepository 作品清单仓库接口（供 service 层依赖）
type ManifestRepository interface {
	Upsert(ctx context.Context, m *story.Manifest) error
	FindByID(ctx context.Context, id string) (*story.Manifest, error)
	List(ctx context.Context, status story.Status, limit int64) ([]*story.Manifest, error)
}

// ManifestRepo 作品清单仓库
type ManifestRepo struct {
	coll *mongo.Collection
}

// NewManifestRepo 创建作品清单仓库
func NewManifestRepo(db *mongo.Database) *ManifestRepo {
	var m story.Manifest
	return &ManifestRepo{coll: db.Collection(m.Collection())}
}

// Upsert 按 ID 覆盖写入清单（流水线各阶段的检查点都走这里）
func (r *ManifestRepo) Upsert(ctx context.Context, m *story.Manifest) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"id": m.ID}, m, opts)
	return err
}

// FindByID 根据ID查询
func (r *ManifestRepo) FindByID(ctx context.Context, id string) (*story.Manifest, error) {
	var m story.Manifest
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrManifestNotFound
		}
		return nil, err
	}
	return &m, nil
}

// List 按状态查询清单（按创建时间倒序），status 为空时查询全部
func (r *ManifestRepo) List(ctx context.Context, status story.Status, limit int64) ([]*story.Manifest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var manifests []*story.Manifest
	if err := cur.All(ctx, &manifests); err != nil {
		return nil, err
	}
	return manifests, nil
}
