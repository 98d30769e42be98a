package story

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"fable/internal/config"
	"fable/internal/pkg/ark"
	"fable/internal/pkg/chatmodel"
	"fable/internal/pkg/render"
	"fable/internal/pkg/speech"
	"fable/internal/pkg/t2p"
)

// BuildProviders 按配置与环境变量组装外部能力客户端
// 未配置的能力置空，对应阶段调用时报配置错误而不是启动失败
func BuildProviders(ctx context.Context, cfg *config.Config) Providers {
	prov := Providers{
		Render: render.NewClient(cfg.Render.FFmpegPath, cfg.Render.FFprobePath),
	}

	if cfg.AI.APIKey != "" {
		cm, err := chatmodel.New(ctx, &cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize chat model, script generation disabled")
		} else {
			prov.ChatModel = cm
			log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("initialized chat model")
		}
	}

	switch cfg.Image.Backend {
	case "t2p":
		client, err := t2p.NewClient(t2p.ConfigFromEnv())
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize T2P client, image generation disabled")
		} else {
			prov.T2P = client
			log.Info().Msg("initialized T2P image client")
		}
	default:
		if os.Getenv("ARK_API_KEY") != "" {
			client, err := ark.NewImageClient(ark.ImageConfigFromEnv())
			if err != nil {
				log.Warn().Err(err).Msg("failed to initialize Ark image client, image generation disabled")
			} else {
				prov.ArkImage = client
				log.Info().Msg("initialized Ark image client")
			}
		}
	}

	if os.Getenv("TTS_ACCESS_TOKEN") != "" {
		client, err := speech.NewClient(speech.ConfigFromEnv())
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize speech client, audio generation disabled")
		} else {
			prov.Speech = client
			log.Info().Msg("initialized speech client")
		}
	}

	return prov
}
