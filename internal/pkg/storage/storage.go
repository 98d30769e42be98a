package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// Storage 产物存储接口
// 流水线各阶段的产物（图片、音频、视频、manifest 快照）统一经由该接口落盘
type Storage interface {
	// Upload 上传文件（服务端上传），返回可访问 URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 下载文件
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetPresignedDownloadURL 获取预签名下载URL
	GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete 删除文件
	Delete(ctx context.Context, key string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// AssetKey 生成指定作品下某个产物的对象键
// 形如 stories/<manifestID>/<filename>
func AssetKey(manifestID, filename string) string {
	return path.Join("stories", manifestID, filename)
}

// ContentTypeFor 根据文件扩展名推断 Content-Type
func ContentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
