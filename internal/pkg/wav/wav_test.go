package wav

import (
	"encoding/binary"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWrapAndParseHeader(t *testing.T) {
	Convey("Wrap 生成的 WAV 头能被 ParseHeader 正确解析", t, func() {
		pcm := make([]byte, 4800) // 0.1秒 @ 24kHz 单声道 16bit
		blob := Wrap(pcm, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample)

		So(len(blob), ShouldEqual, HeaderSize+len(pcm))
		So(string(blob[0:4]), ShouldEqual, "RIFF")
		So(string(blob[8:12]), ShouldEqual, "WAVE")

		h, err := ParseHeader(blob)
		So(err, ShouldBeNil)
		So(h.SampleRate, ShouldEqual, DefaultSampleRate)
		So(h.Channels, ShouldEqual, DefaultChannels)
		So(h.BitsPerSample, ShouldEqual, DefaultBitsPerSample)
		So(h.DataSize, ShouldEqual, len(pcm))

		Convey("SampleCount 按字节率换算采样点数", func() {
			So(h.SampleCount(), ShouldEqual, 2400)
		})

		Convey("RIFF 块大小字段为 36 + data 长度", func() {
			So(binary.LittleEndian.Uint32(blob[4:8]), ShouldEqual, uint32(36+len(pcm)))
		})
	})
}

func TestParseHeaderRejectsBadInput(t *testing.T) {
	Convey("ParseHeader 拒绝非法输入", t, func() {
		Convey("不足 44 字节", func() {
			_, err := ParseHeader([]byte("RIFF"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "too short")
		})

		Convey("非 RIFF/WAVE 容器", func() {
			blob := make([]byte, HeaderSize)
			copy(blob, "OggS")
			_, err := ParseHeader(blob)
			So(err, ShouldNotBeNil)
		})

		Convey("非标准块布局（fmt 块带扩展字段）", func() {
			blob := Wrap(nil, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample)
			copy(blob[12:16], "LIST")
			_, err := ParseHeader(blob)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStrip(t *testing.T) {
	Convey("Strip 剥离头后返回原始 PCM", t, func() {
		pcm := []byte{1, 2, 3, 4, 5, 6}
		blob := Wrap(pcm, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample)

		got, err := Strip(blob)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, pcm)

		Convey("非 WAV 输入报错", func() {
			_, err := Strip([]byte("not a wav"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Merge 按顺序拼接多段 WAV 的 PCM", t, func() {
		seg1 := Wrap([]byte{1, 1, 1, 1}, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample)
		seg2 := Wrap([]byte{2, 2}, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample)
		seg3 := Wrap([]byte{3, 3, 3, 3, 3, 3}, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample)

		merged, err := Merge([][]byte{seg1, seg2, seg3})
		So(err, ShouldBeNil)

		pcm, err := Strip(merged)
		So(err, ShouldBeNil)
		So(pcm, ShouldResemble, []byte{1, 1, 1, 1, 2, 2, 3, 3, 3, 3, 3, 3})

		Convey("合并后的头声明合计长度", func() {
			h, err := ParseHeader(merged)
			So(err, ShouldBeNil)
			So(h.DataSize, ShouldEqual, 12)
			So(h.SampleRate, ShouldEqual, DefaultSampleRate)
		})

		Convey("空输入报错", func() {
			_, err := Merge(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("任一段非法时报错并点名段号", func() {
			_, err := Merge([][]byte{seg1, []byte("garbage")})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "segment 2")
		})
	})
}

func TestDuration(t *testing.T) {
	Convey("Duration 按字节率计算时长", t, func() {
		// 24kHz 单声道 16bit = 48000 字节/秒
		So(Duration(48000, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample), ShouldEqual, 1.0)
		So(Duration(24000, DefaultSampleRate, DefaultChannels, DefaultBitsPerSample), ShouldEqual, 0.5)

		Convey("字节率为 0 时返回 0", func() {
			So(Duration(48000, 0, 0, 0), ShouldEqual, 0)
		})
	})
}
