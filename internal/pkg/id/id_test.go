package id

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestID(t *testing.T) {
	Convey("ID 生成与校验", t, func() {
		Convey("New 生成合法且互不相同的 UUID", func() {
			a, b := New(), New()
			So(IsValid(a), ShouldBeTrue)
			So(IsValid(b), ShouldBeTrue)
			So(a, ShouldNotEqual, b)
		})

		Convey("Short 生成 8 位短ID", func() {
			So(len(Short()), ShouldEqual, 8)
		})

		Convey("IsValid 拒绝非 UUID 字符串", func() {
			So(IsValid("not-a-uuid"), ShouldBeFalse)
			So(IsValid(""), ShouldBeFalse)
		})
	})
}
