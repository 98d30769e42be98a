package render

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEscapeDrawtext(t *testing.T) {
	Convey("escapeDrawtext 转义 drawtext 滤镜特殊字符", t, func() {
		cases := map[string]string{
			"plain caption": "plain caption",
			"it's 50% done": `it\'s 50\% done`,
			"time: 12:30":   `time\: 12\:30`,
			`back\slash`:    `back\\slash`,
			"清晨的山谷，雾气弥漫。":   "清晨的山谷，雾气弥漫。",
		}
		for in, want := range cases {
			So(escapeDrawtext(in), ShouldEqual, want)
		}
	})
}

func TestNewClientDefaults(t *testing.T) {
	Convey("NewClient 空路径回退到 PATH 中的命令名", t, func() {
		c := NewClient("", "")
		So(c.ffmpegPath, ShouldEqual, "ffmpeg")
		So(c.ffprobePath, ShouldEqual, "ffprobe")

		Convey("显式路径原样保留", func() {
			c := NewClient("/usr/local/bin/ffmpeg", "/usr/local/bin/ffprobe")
			So(c.ffmpegPath, ShouldEqual, "/usr/local/bin/ffmpeg")
		})
	})
}
