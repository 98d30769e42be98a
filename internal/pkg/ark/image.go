package ark

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

// ImageConfig Ark 图片生成配置
type ImageConfig struct {
	APIKey  string // API Key（必需）
	BaseURL string // API 基础 URL（可选，默认: https://ark.cn-beijing.volces.com/api/v3）
	Model   string // 模型名称（可选，默认: doubao-seedream-3-0-t2i-250415）
}

// ImageConfigFromEnv 从环境变量创建 Ark 图片生成配置
// 支持的环境变量：
//   - ARK_API_KEY: API Key（必需）
//   - ARK_IMAGE_MODEL: 图片生成模型名称（可选，默认: doubao-seedream-3-0-t2i-250415）
//   - ARK_BASE_URL: API 基础 URL（可选，默认: https://ark.cn-beijing.volces.com/api/v3）
func ImageConfigFromEnv() *ImageConfig {
	cfg := &ImageConfig{
		APIKey:  os.Getenv("ARK_API_KEY"),
		Model:   os.Getenv("ARK_IMAGE_MODEL"),
		BaseURL: os.Getenv("ARK_BASE_URL"),
	}

	if cfg.Model == "" {
		cfg.Model = "doubao-seedream-3-0-t2i-250415"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}

	return cfg
}

// ImageClient Ark 图片生成客户端
// 调用火山引擎 Ark API（Seedream 文生图模型）
// Size 使用 "宽x高" 字符串，由调用方根据画幅比例换算
type ImageClient struct {
	client *arkruntime.Client
	model  string
}

// NewImageClient 创建 Ark 图片生成客户端
func NewImageClient(cfg *ImageConfig) (*ImageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ARK_API_KEY is required")
	}

	var opts []arkruntime.ConfigOption
	if cfg.BaseURL != "" {
		opts = append(opts, arkruntime.WithBaseUrl(cfg.BaseURL))
	}

	return &ImageClient{
		client: arkruntime.NewClientWithApiKey(cfg.APIKey, opts...),
		model:  cfg.Model,
	}, nil
}

// GenerateImage 生成图片（同步接口），返回解码后的图片字节
func (c *ImageClient) GenerateImage(ctx context.Context, prompt, size string) ([]byte, error) {
	if size == "" {
		size = "720x1280"
	}

	responseFormat := "b64_json"
	watermark := false

	input := model.GenerateImagesRequest{
		Model:          c.model,
		Prompt:         prompt,
		Size:           &size,
		ResponseFormat: &responseFormat,
		Watermark:      &watermark,
	}

	output, err := c.client.GenerateImages(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("Ark GenerateImages API call failed: %w", err)
	}

	if len(output.Data) == 0 {
		return nil, fmt.Errorf("no image data in response")
	}

	first := output.Data[0]
	if first.B64Json == nil {
		return nil, fmt.Errorf("no b64_json in response data")
	}

	imageData, err := base64.StdEncoding.DecodeString(*first.B64Json)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image data: %w", err)
	}

	return imageData, nil
}
