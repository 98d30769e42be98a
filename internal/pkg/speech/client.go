package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"fable/internal/pkg/id"
)

// Config 语音合成配置
type Config struct {
	APIURL      string  // API 地址，默认: https://openspeech.bytedance.com/api/v1/tts
	AccessToken string  // 访问令牌（必需）
	AppID       string  // 应用ID（可选）
	Cluster     string  // 集群名称，默认: volcano_tts
	VoiceType   string  // 默认音色
	SampleRate  int     // 采样率，默认: 24000
	SpeedRatio  float64 // 语速比例，默认: 1.0
}

// ConfigFromEnv 从环境变量创建语音合成配置
// 支持的环境变量：
//   - TTS_ACCESS_TOKEN: 访问令牌（必需）
//   - TTS_APP_ID: 应用ID（可选）
//   - TTS_VOICE_TYPE: 默认音色（可选，默认: BV115_streaming）
//   - TTS_CLUSTER: 集群名称（可选，默认: volcano_tts）
//   - TTS_SAMPLE_RATE: 采样率（可选，默认: 24000）
//   - TTS_SPEED_RATIO: 语速比例（可选，默认: 1.0）
//   - TTS_API_URL: API 地址（可选，默认: https://openspeech.bytedance.com/api/v1/tts）
func ConfigFromEnv() Config {
	cfg := Config{
		APIURL:      os.Getenv("TTS_API_URL"),
		AccessToken: os.Getenv("TTS_ACCESS_TOKEN"),
		AppID:       os.Getenv("TTS_APP_ID"),
		Cluster:     os.Getenv("TTS_CLUSTER"),
		VoiceType:   os.Getenv("TTS_VOICE_TYPE"),
		SampleRate:  24000,
		SpeedRatio:  1.0,
	}

	if cfg.APIURL == "" {
		cfg.APIURL = "https://openspeech.bytedance.com/api/v1/tts"
	}
	if cfg.Cluster == "" {
		cfg.Cluster = "volcano_tts"
	}
	if cfg.VoiceType == "" {
		cfg.VoiceType = "BV115_streaming"
	}
	if s := os.Getenv("TTS_SAMPLE_RATE"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			cfg.SampleRate = parsed
		}
	}
	if s := os.Getenv("TTS_SPEED_RATIO"); s != "" {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil && parsed > 0 {
			cfg.SpeedRatio = parsed
		}
	}

	return cfg
}

// Client 语音合成客户端
// 调用火山引擎 openspeech TTS API，编码为 wav
// 参考: https://openspeech.bytedance.com/api/v1/tts
type Client struct {
	apiURL      string
	accessToken string
	appID       string
	cluster     string
	voiceType   string
	sampleRate  int
	speedRatio  float64
	httpClient  *http.Client
}

// NewClient 创建语音合成客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("TTS access token is required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://openspeech.bytedance.com/api/v1/tts"
	}

	cluster := cfg.Cluster
	if cluster == "" {
		cluster = "volcano_tts"
	}

	voiceType := cfg.VoiceType
	if voiceType == "" {
		voiceType = "BV115_streaming"
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}

	speedRatio := cfg.SpeedRatio
	if speedRatio <= 0 {
		speedRatio = 1.0
	}

	return &Client{
		apiURL:      apiURL,
		accessToken: cfg.AccessToken,
		appID:       cfg.AppID,
		cluster:     cluster,
		voiceType:   voiceType,
		sampleRate:  sampleRate,
		speedRatio:  speedRatio,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Synthesize 合成语音，返回 WAV 字节
// voiceType 为空时使用客户端默认音色
func (c *Client) Synthesize(ctx context.Context, text, voiceType string) ([]byte, error) {
	if voiceType == "" {
		voiceType = c.voiceType
	}

	requestID := id.New()
	reqBody, err := json.Marshal(c.buildRequestConfig(text, voiceType, requestID))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer; %s", c.accessToken))
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Str("voice_type", voiceType).
		Int("text_len", len(text)).
		Msg("发送 TTS 请求")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed, status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	// openspeech 成功码为 3000
	if apiResp.Code != 3000 {
		message := apiResp.Message
		if message == "" {
			message = "unknown error"
		}
		return nil, fmt.Errorf("API response error: %s (code: %d)", message, apiResp.Code)
	}

	if apiResp.Data == "" {
		return nil, fmt.Errorf("audio data not found in response")
	}

	audioData, err := base64.StdEncoding.DecodeString(apiResp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio data: %w", err)
	}

	return audioData, nil
}

// buildRequestConfig 构建请求配置
func (c *Client) buildRequestConfig(text, voiceType, requestID string) map[string]interface{} {
	appConfig := map[string]interface{}{
		"token":   c.accessToken,
		"cluster": c.cluster,
	}
	if c.appID != "" {
		appConfig["appid"] = c.appID
	}

	return map[string]interface{}{
		"app": appConfig,
		"user": map[string]interface{}{
			"uid": requestID,
		},
		"audio": map[string]interface{}{
			"voice_type":  voiceType,
			"encoding":    "wav",
			"sample_rate": c.sampleRate,
			"speed_ratio": c.speedRatio,
		},
		"request": map[string]interface{}{
			"reqid":     requestID,
			"text":      text,
			"text_type": "plain",
			"operation": "query",
		},
	}
}
