package providers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"fable/internal/pipeline"
	"fable/internal/pkg/ark"
	"fable/internal/pkg/storage"
	"fable/internal/pkg/t2p"
)

// ArkImageProvider Ark（Seedream）图片生成提供者
// 符号化宽高比后端：画幅以 "宽x高" 尺寸字符串传给 Ark，种子由服务端管理
type ArkImageProvider struct {
	client     *ark.ImageClient
	store      storage.Storage
	manifestID string
}

// NewArkImageProvider 创建 Ark 图片生成提供者
// 生成的图片以 stories/<manifestID>/<filename> 为键写入存储
func NewArkImageProvider(client *ark.ImageClient, store storage.Storage, manifestID string) *ArkImageProvider {
	return &ArkImageProvider{
		client:     client,
		store:      store,
		manifestID: manifestID,
	}
}

// RequiresDimensions Ark 按宽高比换算的尺寸字符串传参，不需要编排层填显式宽高
func (p *ArkImageProvider) RequiresDimensions() bool { return false }

// GenerateImage 生成图片并写入存储，返回图片 URL
func (p *ArkImageProvider) GenerateImage(ctx context.Context, req pipeline.ImageRequest) (string, error) {
	imageData, err := p.client.GenerateImage(ctx, req.Prompt, req.AspectRatio.Resolution())
	if err != nil {
		return "", pipeline.ClassifyProviderError("generate_image", err)
	}

	url, err := p.uploadImage(ctx, req.Filename, imageData)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("manifest_id", p.manifestID).
		Str("filename", req.Filename).
		Int("size", len(imageData)).
		Msg("Ark 图片生成成功")

	return url, nil
}

// uploadImage 把图片字节写入存储
func (p *ArkImageProvider) uploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	key := storage.AssetKey(p.manifestID, filename)
	url, err := p.store.Upload(ctx, key, bytes.NewReader(data), storage.ContentTypeFor(filename))
	if err != nil {
		return "", fmt.Errorf("upload image %s: %w", key, err)
	}
	return url, nil
}

// T2PImageProvider T2P（火山引擎视觉 API）图片生成提供者
// 显式宽高后端：编排层按宽高比查表填入像素尺寸，场景种子透传给服务端
type T2PImageProvider struct {
	client     *t2p.Client
	store      storage.Storage
	manifestID string
}

// NewT2PImageProvider 创建 T2P 图片生成提供者
func NewT2PImageProvider(client *t2p.Client, store storage.Storage, manifestID string) *T2PImageProvider {
	return &T2PImageProvider{
		client:     client,
		store:      store,
		manifestID: manifestID,
	}
}

// RequiresDimensions T2P 接口要求显式像素宽高
func (p *T2PImageProvider) RequiresDimensions() bool { return true }

// GenerateImage 生成图片并写入存储，返回图片 URL
func (p *T2PImageProvider) GenerateImage(ctx context.Context, req pipeline.ImageRequest) (string, error) {
	imageData, err := p.client.GenerateImage(ctx, &t2p.GenerateImageRequest{
		Prompt: req.Prompt,
		Seed:   req.Seed,
		Width:  req.Width,
		Height: req.Height,
	})
	if err != nil {
		return "", pipeline.ClassifyProviderError("generate_image", err)
	}

	key := storage.AssetKey(p.manifestID, req.Filename)
	url, err := p.store.Upload(ctx, key, bytes.NewReader(imageData), storage.ContentTypeFor(req.Filename))
	if err != nil {
		return "", fmt.Errorf("upload image %s: %w", key, err)
	}

	log.Info().
		Str("manifest_id", p.manifestID).
		Str("filename", req.Filename).
		Int64("seed", req.Seed).
		Int("size", len(imageData)).
		Msg("T2P 图片生成成功")

	return url, nil
}
