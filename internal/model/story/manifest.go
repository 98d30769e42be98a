package story

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Manifest 一次生成任务的结构化描述（工作单元 + 最终产物描述）
type Manifest struct {
	ID string `bson:"id" json:"id"` // 任务ID（UUID）

	// 输入参数（用于复现同一次生成）
	Idea        string       `bson:"idea" json:"idea"`                                 // 用户的一句话创意
	Mode        Mode         `bson:"mode" json:"mode"`                                 // 作品形态
	Tier        DurationTier `bson:"tier" json:"tier"`                                 // 时长档位
	AspectRatio AspectRatio  `bson:"aspect_ratio" json:"aspect_ratio"`                 // 画面宽高比
	Seed        int64        `bson:"seed" json:"seed"`                                 // 全局随机种子
	StyleHint   string       `bson:"style_hint,omitempty" json:"style_hint,omitempty"` // 画面风格提示

	// 剧本生成结果
	Title        string            `bson:"title" json:"title"`                 // 标题（模型生成，长度仅靠提示词约束）
	FinalCaption string            `bson:"final_caption" json:"final_caption"` // 结尾文案
	Voice        *VoiceInstruction `bson:"voice,omitempty" json:"voice,omitempty"`
	Output       *OutputSettings   `bson:"output,omitempty" json:"output,omitempty"`
	Scenes       []*Scene          `bson:"scenes" json:"scenes"` // 场景列表，顺序即叙事/播放顺序

	// 后续阶段产物（阶段完成前为空）
	GeneratedAudioURL string `bson:"generated_audio_url,omitempty" json:"generated_audio_url,omitempty"`
	GeneratedVideoURL string `bson:"generated_video_url,omitempty" json:"generated_video_url,omitempty"`

	// Status 为落库前写入的状态镜像，权威状态见 pipeline.JobState
	Status Status `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// VoiceInstruction 语音合成的建议性元数据
type VoiceInstruction struct {
	VoiceID  string `bson:"voice_id" json:"voice_id"` // 音色ID
	Language string `bson:"language" json:"language"` // 语言
	Tone     string `bson:"tone" json:"tone"`         // 语气（如：温柔、激昂）
}

// OutputSettings 输出参数
// Resolution 由宽高比解析而来，下游各阶段只读，不受模型返回值影响
type OutputSettings struct {
	Resolution       string        `bson:"resolution" json:"resolution"`                 // 分辨率（如 "720x1280"）
	FrameRate        int           `bson:"frame_rate" json:"frame_rate"`                 // 帧率
	SceneDurationSec float64       `bson:"scene_duration_sec" json:"scene_duration_sec"` // 默认单场景时长（秒）
	Captions         *CaptionStyle `bson:"captions,omitempty" json:"captions,omitempty"` // 字幕样式
}

// CaptionStyle 字幕渲染设置
type CaptionStyle struct {
	Enabled bool   `bson:"enabled" json:"enabled"` // 是否渲染字幕
	Style   string `bson:"style" json:"style"`     // 样式：boxed（底部色块）/ plain
}

// Scene 一个叙事节拍
type Scene struct {
	// SceneNumber 从1开始且连续；批次合并后由编排层按位置重新编号，
	// 模型返回的编号仅供参考，不作为最终编号
	SceneNumber int `bson:"scene_number" json:"scene_number"`

	NarrationText     string `bson:"narration_text" json:"narration_text"`         // 旁白文本
	VisualDescription string `bson:"visual_description" json:"visual_description"` // 画面描述
	ImagePrompt       string `bson:"image_prompt" json:"image_prompt"`             // 图片提示词

	// 跨场景视觉一致性锚点，生成每张图片时注入提示词
	CharacterTokens   []string `bson:"character_tokens,omitempty" json:"character_tokens,omitempty"`
	EnvironmentTokens []string `bson:"environment_tokens,omitempty" json:"environment_tokens,omitempty"`

	// Timecodes 为建议值，不根据实际音频时长重算
	Timecodes *Timecodes `bson:"timecodes,omitempty" json:"timecodes,omitempty"`

	GeneratedImageURL string `bson:"generated_image_url,omitempty" json:"generated_image_url,omitempty"` // 图片阶段完成前为空
}

// Timecodes 场景时间码（秒）
type Timecodes struct {
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
}

// Collection 返回集合名称
func (m *Manifest) Collection() string { return "manifests" }

// EnsureIndexes 创建和维护索引
func (m *Manifest) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(m.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
