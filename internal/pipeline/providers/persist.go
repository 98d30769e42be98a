package providers

import (
	"context"

	"fable/internal/model/story"
	storyrepo "fable/internal/repository/story"
)

// RepoManifestPersister 清单落库钩子的仓库实现
// 实现了 pipeline.ManifestPersister 接口
type RepoManifestPersister struct {
	repo storyrepo.ManifestRepository
}

// NewRepoManifestPersister 创建清单落库钩子
func NewRepoManifestPersister(repo storyrepo.ManifestRepository) *RepoManifestPersister {
	return &RepoManifestPersister{repo: repo}
}

// PersistManifest 把清单检查点写入仓库
func (p *RepoManifestPersister) PersistManifest(ctx context.Context, m *story.Manifest) error {
	return p.repo.Upsert(ctx, m)
}
