package wav

import (
	"encoding/binary"
	"fmt"
)

// 固定使用 44 字节标准 PCM WAV 头（RIFF + fmt + data 三个块，无扩展块）
// 语音合成服务返回的就是这种最简容器，拼接时先剥掉各段的头，
// 再用合并后的采样数重新合成一个头
const (
	HeaderSize = 44

	DefaultSampleRate    = 24000 // 语音合成固定采样率
	DefaultChannels      = 1     // 单声道
	DefaultBitsPerSample = 16
)

// Header 解析后的 WAV 头信息
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int // data 块字节数（原始 PCM 长度）
}

// SampleCount 返回头中声明的采样点数（每声道）
func (h Header) SampleCount() int {
	bytesPerSample := h.BitsPerSample / 8 * h.Channels
	if bytesPerSample == 0 {
		return 0
	}
	return h.DataSize / bytesPerSample
}

// ParseHeader 解析 44 字节 WAV 头
func ParseHeader(blob []byte) (Header, error) {
	var h Header
	if len(blob) < HeaderSize {
		return h, fmt.Errorf("wav blob too short: %d bytes", len(blob))
	}
	if string(blob[0:4]) != "RIFF" || string(blob[8:12]) != "WAVE" {
		return h, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(blob[12:16]) != "fmt " || string(blob[36:40]) != "data" {
		return h, fmt.Errorf("unexpected chunk layout, want canonical fmt/data header")
	}

	h.Channels = int(binary.LittleEndian.Uint16(blob[22:24]))
	h.SampleRate = int(binary.LittleEndian.Uint32(blob[24:28]))
	h.BitsPerSample = int(binary.LittleEndian.Uint16(blob[34:36]))
	h.DataSize = int(binary.LittleEndian.Uint32(blob[40:44]))
	return h, nil
}

// Strip 剥离 WAV 头，返回原始 PCM 采样数据
// data 块声明长度与实际剩余长度不一致时，以实际长度为准（部分服务会少写声明长度）
func Strip(blob []byte) ([]byte, error) {
	if _, err := ParseHeader(blob); err != nil {
		return nil, err
	}
	return blob[HeaderSize:], nil
}

// Wrap 为原始 PCM 采样数据合成 44 字节头，返回完整可播放的 WAV
func Wrap(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, HeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt 块固定16字节
	binary.LittleEndian.PutUint16(out[20:22], 1)  // audio format = PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)
	return out
}

// Merge 把多段 WAV 按顺序合并为一个 WAV
// 每段剥头取 PCM，按顺序拼接，再按默认采样参数重新包头
func Merge(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to merge")
	}

	var total int
	pcms := make([][]byte, 0, len(segments))
	for i, seg := range segments {
		pcm, err := Strip(seg)
		if err != nil {
			return nil, fmt.Errorf("strip segment %d: %w", i+1, err)
		}
		pcms = append(pcms, pcm)
		total += len(pcm)
	}

	merged := make([]byte, 0, total)
	for _, pcm := range pcms {
		merged = append(merged, pcm...)
	}

	return Wrap(merged, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample), nil
}

// Duration 根据 PCM 字节数计算时长（秒）
func Duration(pcmBytes, sampleRate, channels, bitsPerSample int) float64 {
	byteRate := sampleRate * channels * bitsPerSample / 8
	if byteRate == 0 {
		return 0
	}
	return float64(pcmBytes) / float64(byteRate)
}
