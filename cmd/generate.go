package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"fable/internal/model/story"
	"fable/internal/pkg/cache"
	"fable/internal/pkg/mongodb"
	"fable/internal/pkg/storagefactory"
	storyRepo "fable/internal/repository/story"
	storyService "fable/internal/service/story"
)

var (
	genIdea      string
	genMode      string
	genDuration  string
	genAspect    string
	genSeed      int64
	genStyleHint string
	genReference string
	genVoiceID   string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the full pipeline once",
	Long: `Run the full pipeline for a single idea: script, per-scene images,
narration audio and final video, then print the manifest ID and video URL.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.StringVarP(&genIdea, "idea", "i", "", "one-line story idea (required)")
	flags.StringVar(&genMode, "mode", "short_video", "output mode (short_video/storybook)")
	flags.StringVarP(&genDuration, "duration", "d", "1m", "duration tier (30s/1m/3m/5m/10m/20m/30m/60m)")
	flags.StringVar(&genAspect, "aspect", "9:16", "aspect ratio (9:16/16:9/1:1)")
	flags.Int64Var(&genSeed, "seed", 0, "global seed for reproducible images (0 = random)")
	flags.StringVar(&genStyleHint, "style", "", "visual style hint")
	flags.StringVar(&genReference, "reference", "", "reference material hint")
	flags.StringVar(&genVoiceID, "voice", "", "narration voice id")

	_ = generateCmd.MarkFlagRequired("idea")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if cfg.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required for generate")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal, cancelling")
		cancel()
	}()

	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer mongoClient.Close(context.Background())

	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		if rc, err := cache.NewRedisCache(&cfg.Redis); err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			defer redisCache.Close()
		}
	}

	store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}

	repo := storyRepo.NewManifestRepo(mongoClient.Database())
	var manifest story.Manifest
	if err := manifest.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	svc := storyService.NewStoryService(cfg, repo, store, redisCache,
		storyService.BuildProviders(ctx, cfg))

	result, err := svc.Generate(ctx, storyService.CreateStoryRequest{
		Idea:          genIdea,
		Mode:          story.Mode(genMode),
		Tier:          story.DurationTier(genDuration),
		AspectRatio:   story.AspectRatio(genAspect),
		Seed:          genSeed,
		StyleHint:     genStyleHint,
		ReferenceHint: genReference,
		VoiceID:       genVoiceID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("manifest: %s\n", result.ID)
	fmt.Printf("title:    %s\n", result.Title)
	fmt.Printf("scenes:   %d\n", len(result.Scenes))
	if result.GeneratedAudioURL != "" {
		fmt.Printf("audio:    %s\n", result.GeneratedAudioURL)
	}
	if result.GeneratedVideoURL != "" {
		fmt.Printf("video:    %s\n", result.GeneratedVideoURL)
	}

	return nil
}
