package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifyProviderError(t *testing.T) {
	Convey("ClassifyProviderError 按厂商错误文本分类", t, func() {
		Convey("nil 原样返回 nil", func() {
			So(ClassifyProviderError("op", nil), ShouldBeNil)
		})

		Convey("配额类文本归为 quota", func() {
			for _, msg := range []string{
				"quota exceeded for this project",
				"rate limit exceeded, retry later",
				"RESOURCE EXHAUSTED",
				"billing account disabled",
			} {
				err := ClassifyProviderError("generate_image", errors.New(msg))
				So(KindOf(err), ShouldEqual, KindQuota)
				So(IsFatal(err), ShouldBeTrue)
			}
		})

		Convey("凭证/权限类文本归为 configuration", func() {
			for _, msg := range []string{
				"API key not valid",
				"permission denied",
				"403 Forbidden",
				"requests from this referrer are blocked",
				"invalid credential",
			} {
				err := ClassifyProviderError("generate_image", errors.New(msg))
				So(KindOf(err), ShouldEqual, KindConfiguration)
				So(IsFatal(err), ShouldBeTrue)
			}
		})

		Convey("超时归为瞬态", func() {
			err := ClassifyProviderError("generate_text",
				fmt.Errorf("call failed: %w", context.DeadlineExceeded))
			So(KindOf(err), ShouldEqual, KindTransient)
			So(IsFatal(err), ShouldBeFalse)
		})

		Convey("其他文本默认瞬态", func() {
			err := ClassifyProviderError("synthesize_speech", errors.New("connection reset by peer"))
			So(KindOf(err), ShouldEqual, KindTransient)
			So(IsFatal(err), ShouldBeFalse)
		})

		Convey("原始错误保留在错误链中", func() {
			cause := errors.New("quota exceeded")
			err := ClassifyProviderError("op", cause)
			So(errors.Is(err, cause), ShouldBeTrue)
		})
	})
}

func TestErrorKindHelpers(t *testing.T) {
	Convey("错误类别辅助函数", t, func() {
		Convey("KindOf 对非流水线错误返回瞬态", func() {
			So(KindOf(errors.New("plain error")), ShouldEqual, KindTransient)
		})

		Convey("KindOf 能穿透包装提取类别", func() {
			inner := NewQuotaError("generate_image", errors.New("quota"))
			wrapped := fmt.Errorf("scene 3: %w", inner)
			So(KindOf(wrapped), ShouldEqual, KindQuota)
			So(IsFatal(wrapped), ShouldBeTrue)
		})

		Convey("Error 文本包含操作、描述与底层错误", func() {
			err := NewConfigurationError("generate_image", "check credentials", errors.New("401"))
			So(err.Error(), ShouldContainSubstring, "generate_image")
			So(err.Error(), ShouldContainSubstring, "check credentials")
			So(err.Error(), ShouldContainSubstring, "401")
		})

		Convey("OutputTooLong 错误携带字节数", func() {
			err := NewOutputTooLongError("generate script", 300000)
			So(KindOf(err), ShouldEqual, KindOutputTooLong)
			So(IsFatal(err), ShouldBeFalse)
			So(err.Error(), ShouldContainSubstring, "300000")
		})

		Convey("ErrorKind.String", func() {
			So(KindTransient.String(), ShouldEqual, "transient")
			So(KindConfiguration.String(), ShouldEqual, "configuration")
			So(KindQuota.String(), ShouldEqual, "quota")
			So(KindOutputTooLong.String(), ShouldEqual, "output_too_long")
		})
	})
}
