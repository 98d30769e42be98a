package t2p

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/volcengine/volcengine-go-sdk/volcengine"
	"github.com/volcengine/volcengine-go-sdk/volcengine/credentials"
	"github.com/volcengine/volcengine-go-sdk/volcengine/session"
)

// Config T2P（火山引擎 Text-to-Picture）配置
type Config struct {
	AccessKey      string
	SecretKey      string
	ReqKey         string
	Scale          float64
	DDIMSteps      int
	UsePreLLM      bool
	UseSR          bool
	NegativePrompt string
	APIURL         string // API 端点，默认: https://visual.volcengineapi.com
	Region         string // 区域，默认: cn-north-1
}

// ConfigFromEnv 从环境变量创建 T2P 配置
// 支持的环境变量：
//   - VOLCENGINE_ACCESS_KEY: 访问密钥（必需）
//   - VOLCENGINE_SECRET_KEY: 密钥（必需）
//   - T2P_REQ_KEY: 请求密钥（可选，默认: high_aes_general_v21_L）
//   - T2P_SCALE: 引导尺度（可选，默认: 3.5）
//   - T2P_DDIM_STEPS: 推理步数（可选，默认: 25）
//   - T2P_USE_PRE_LLM: 是否使用预训练LLM优化prompt（可选，默认: false）
//   - T2P_USE_SR: 是否使用超分辨率增强（可选，默认: true）
//   - T2P_NEGATIVE_PROMPT: 负面提示词（可选）
//   - T2P_API_URL: API 端点（可选，默认: https://visual.volcengineapi.com）
//   - T2P_REGION: 区域（可选，默认: cn-north-1）
func ConfigFromEnv() *Config {
	cfg := &Config{
		AccessKey:      os.Getenv("VOLCENGINE_ACCESS_KEY"),
		SecretKey:      os.Getenv("VOLCENGINE_SECRET_KEY"),
		ReqKey:         os.Getenv("T2P_REQ_KEY"),
		NegativePrompt: os.Getenv("T2P_NEGATIVE_PROMPT"),
		APIURL:         os.Getenv("T2P_API_URL"),
		Region:         os.Getenv("T2P_REGION"),
		Scale:          3.5,
		DDIMSteps:      25,
		UsePreLLM:      os.Getenv("T2P_USE_PRE_LLM") == "true",
		UseSR:          os.Getenv("T2P_USE_SR") != "false", // 默认 true
	}

	if cfg.ReqKey == "" {
		cfg.ReqKey = "high_aes_general_v21_L"
	}
	if s := os.Getenv("T2P_SCALE"); s != "" {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.Scale = parsed
		}
	}
	if d := os.Getenv("T2P_DDIM_STEPS"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil {
			cfg.DDIMSteps = parsed
		}
	}
	if cfg.NegativePrompt == "" {
		cfg.NegativePrompt = "watermark, (water-marked:1.4), (text:1.5), Signature sketch, (inscription:1.3), letters, logo, dialog box, subtitle, seal, nsfw, low resolution, blurry, worst quality, mutated hands and fingers, poorly drawn face, bad anatomy, distorted hands"
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://visual.volcengineapi.com"
	}
	if cfg.Region == "" {
		// visual 服务默认使用 cn-north-1
		cfg.Region = "cn-north-1"
	}

	return cfg
}

// Client T2P（火山引擎 Text-to-Picture）客户端
// 调用火山引擎 visual 服务的 CVProcess 接口生成图片
type Client struct {
	config     *Config
	session    *session.Session
	httpClient *http.Client
	apiURL     string
	accessKey  string
	secretKey  string
}

// NewClient 创建 T2P 客户端
// 使用 volcengine-go-sdk 的 session 和 credentials
func NewClient(cfg *Config) (*Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("VOLCENGINE_ACCESS_KEY and VOLCENGINE_SECRET_KEY are required")
	}

	creds := credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")

	volcengineConfig := volcengine.NewConfig().
		WithCredentials(creds).
		WithRegion(cfg.Region)

	sess, err := session.NewSession(volcengineConfig)
	if err != nil {
		return nil, fmt.Errorf("create volcengine session: %w", err)
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://visual.volcengineapi.com"
	}

	return &Client{
		config:     cfg,
		session:    sess,
		httpClient: &http.Client{Timeout: 300 * time.Second},
		apiURL:     apiURL,
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
	}, nil
}

// GenerateImageRequest 图片生成请求
// Seed 为 -1 时由服务端随机；显式传入可复现同一画面
type GenerateImageRequest struct {
	Prompt string
	Seed   int64
	Width  int
	Height int
}

// generateImageResponse 图片生成响应
type generateImageResponse struct {
	ResponseMetadata *responseMetadata `json:"ResponseMetadata,omitempty"`
	Data             *imageData        `json:"data,omitempty"`
}

// responseMetadata 响应元数据
type responseMetadata struct {
	Error *errorInfo `json:"Error,omitempty"`
}

// errorInfo 错误信息
type errorInfo struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// imageData 图片数据
type imageData struct {
	BinaryDataBase64 []string `json:"binary_data_base64,omitempty"`
	ImageURL         []string `json:"image_url,omitempty"`
}

// GenerateImage 生成图片（同步接口），返回解码后的图片字节
func (c *Client) GenerateImage(ctx context.Context, req *GenerateImageRequest) ([]byte, error) {
	seed := req.Seed
	if seed == 0 {
		seed = -1
	}

	form := map[string]interface{}{
		"req_key":         c.config.ReqKey,
		"prompt":          req.Prompt,
		"llm_seed":        -1,
		"seed":            seed,
		"scale":           c.config.Scale,
		"ddim_steps":      c.config.DDIMSteps,
		"width":           req.Width,
		"height":          req.Height,
		"use_pre_llm":     c.config.UsePreLLM,
		"use_sr":          c.config.UseSR,
		"return_url":      false,
		"negative_prompt": c.config.NegativePrompt,
		"logo_info": map[string]interface{}{
			"add_logo": false,
			"position": 0,
			"language": 0,
			"opacity":  0.3,
		},
	}

	requestBody, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	apiURL := fmt.Sprintf("%s/?Action=CVProcess&Version=2020-08-26", c.apiURL)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	// 火山引擎 HMAC-SHA256 签名
	// 参考: https://www.volcengine.com/docs/6460/6490
	if err := c.signRequest(httpReq, requestBody); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp generateImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if apiResp.ResponseMetadata != nil && apiResp.ResponseMetadata.Error != nil {
		return nil, fmt.Errorf("API error: %s - %s",
			apiResp.ResponseMetadata.Error.Code,
			apiResp.ResponseMetadata.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed, status: %d", resp.StatusCode)
	}

	if apiResp.Data == nil || len(apiResp.Data.BinaryDataBase64) == 0 {
		return nil, fmt.Errorf("no binary_data_base64 in response")
	}

	imageBytes, err := base64.StdEncoding.DecodeString(apiResp.Data.BinaryDataBase64[0])
	if err != nil {
		return nil, fmt.Errorf("decode base64 image data: %w", err)
	}

	return imageBytes, nil
}

// signRequest 为请求添加火山引擎签名
func (c *Client) signRequest(req *http.Request, body []byte) error {
	u, err := url.Parse(req.URL.String())
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	date := timestamp[:8]

	method := req.Method
	uri := u.Path
	if uri == "" {
		uri = "/"
	}

	// 查询字符串按字典序排序
	queryParams := u.Query()
	var queryKeys []string
	for k := range queryParams {
		queryKeys = append(queryKeys, k)
	}
	sort.Strings(queryKeys)
	var queryParts []string
	for _, k := range queryKeys {
		for _, v := range queryParams[k] {
			queryParts = append(queryParts, fmt.Sprintf("%s=%s", k, url.QueryEscape(v)))
		}
	}
	queryString := strings.Join(queryParts, "&")

	// Headers 按字典序排序
	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		headerKeys = append(headerKeys, strings.ToLower(k))
	}
	sort.Strings(headerKeys)
	var headerParts []string
	for _, k := range headerKeys {
		if k == "host" || k == "content-type" {
			continue
		}
		for _, v := range req.Header[strings.Title(k)] {
			headerParts = append(headerParts, fmt.Sprintf("%s:%s", k, strings.TrimSpace(v)))
		}
	}
	headersString := strings.Join(headerParts, "\n")

	stringToSign := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		method,
		uri,
		queryString,
		headersString,
		string(body))

	// 派生签名密钥链: date -> region -> service -> request
	kDate := hmacSHA256([]byte(c.secretKey), date)
	kRegion := hmacSHA256(kDate, c.config.Region)
	kService := hmacSHA256(kRegion, "visual")
	kSigning := hmacSHA256(kService, "request")
	signature := hmacSHA256(kSigning, stringToSign)
	signatureHex := fmt.Sprintf("%x", signature)

	signedHeaders := strings.Join(headerKeys, ";")
	if signedHeaders != "" {
		signedHeaders = ";" + signedHeaders
	}
	authorization := fmt.Sprintf("HMAC-SHA256 Credential=%s/%s/%s/visual/request, SignedHeaders=%s, Signature=%s",
		c.accessKey,
		date,
		c.config.Region,
		signedHeaders,
		signatureHex)

	req.Header.Set("Authorization", authorization)
	req.Header.Set("X-Date", timestamp)

	return nil
}

// hmacSHA256 计算 HMAC-SHA256
func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
