package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Image:  ImageConfig{Backend: "ark"},
	}
}

func TestConfigValidate(t *testing.T) {
	Convey("Config.Validate 校验配置", t, func() {
		Convey("合法配置通过", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("端口越界报错", func() {
			cfg := validConfig()
			cfg.Server.Port = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("非法运行模式报错", func() {
			cfg := validConfig()
			cfg.Server.Mode = "production"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("图片后端为封闭集合", func() {
			for _, backend := range []string{"", "ark", "t2p"} {
				cfg := validConfig()
				cfg.Image.Backend = backend
				So(cfg.Validate(), ShouldBeNil)
			}

			cfg := validConfig()
			cfg.Image.Backend = "dalle"
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
