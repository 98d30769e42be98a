package storage

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAssetKey(t *testing.T) {
	Convey("AssetKey 生成作品产物的对象键", t, func() {
		So(AssetKey("abc-123", "scene_001.png"), ShouldEqual, "stories/abc-123/scene_001.png")
		So(AssetKey("abc-123", "narration.wav"), ShouldEqual, "stories/abc-123/narration.wav")
	})
}

func TestContentTypeFor(t *testing.T) {
	Convey("ContentTypeFor 按扩展名推断 Content-Type", t, func() {
		cases := map[string]string{
			"scene_001.png": "image/png",
			"cover.JPG":     "image/jpeg",
			"photo.jpeg":    "image/jpeg",
			"narration.wav": "audio/wav",
			"bgm.mp3":       "audio/mpeg",
			"final.mp4":     "video/mp4",
			"manifest.json": "application/json",
			"unknown.bin":   "application/octet-stream",
			"noext":         "application/octet-stream",
		}
		for filename, want := range cases {
			So(ContentTypeFor(filename), ShouldEqual, want)
		}
	})
}
