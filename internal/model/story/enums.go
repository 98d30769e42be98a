package story

// Status 任务状态快照
// 注意：流水线运行期间的权威状态是 pipeline.JobState，Manifest 上的 Status
// 仅在落库前由 service 层写入的只读镜像，流水线本身不会读取它
type Status string

const (
	StatusCreated          Status = "created"           // 已创建
	StatusStoryReady       Status = "story_ready"       // 剧本已生成
	StatusImagesProcessing Status = "images_processing" // 图片生成中
	StatusAudioProcessing  Status = "audio_processing"  // 音频生成中
	StatusAssembling       Status = "assembling"        // 视频合成中
	StatusCompleted        Status = "completed"         // 已完成
	StatusFailed           Status = "failed"            // 失败
)

// String 返回状态的字符串表示
func (s Status) String() string {
	return string(s)
}

// Terminal 判断是否为终态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mode 作品形态
type Mode string

const (
	ModeShortVideo Mode = "short_video" // 短视频解说
	ModeStorybook  Mode = "storybook"   // 绘本（插画+旁白）
)

// String 返回形态的字符串表示
func (m Mode) String() string {
	return string(m)
}

// AspectRatio 画面宽高比
type AspectRatio string

const (
	AspectPortrait  AspectRatio = "9:16" // 竖屏
	AspectLandscape AspectRatio = "16:9" // 横屏
	AspectSquare    AspectRatio = "1:1"  // 方形
)

// aspectResolutions 宽高比 → 输出分辨率映射表
// 剧本生成阶段一次性解析，后续所有阶段复用解析结果，不再二次推导
var aspectResolutions = map[AspectRatio]string{
	AspectPortrait:  "720x1280",
	AspectLandscape: "1280x720",
	AspectSquare:    "1024x1024",
}

// Resolution 返回宽高比对应的输出分辨率（如 "720x1280"）
// 未知宽高比回退到竖屏分辨率
func (a AspectRatio) Resolution() string {
	if r, ok := aspectResolutions[a]; ok {
		return r
	}
	return aspectResolutions[AspectPortrait]
}

// Valid 判断宽高比是否受支持
func (a AspectRatio) Valid() bool {
	_, ok := aspectResolutions[a]
	return ok
}
