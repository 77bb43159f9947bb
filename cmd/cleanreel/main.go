package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cleanreel/internal/frame"
	"cleanreel/internal/infra"
	"cleanreel/internal/providers/genai"
	"cleanreel/internal/providers/video"
)

// Offline pipeline: extract the representative frame from a local MP4
// and regenerate a clean clip from it, without running the API server.
func main() {
	var (
		inputFlag       string
		descriptionFlag string
		outputFlag      string
		frameOnlyFlag   bool
		frameOutFlag    string
	)
	flag.StringVar(&inputFlag, "input", "", "path to the source MP4 video")
	flag.StringVar(&descriptionFlag, "description", "", "description of the clean video to generate")
	flag.StringVar(&outputFlag, "output", "clean-video.mp4", "path for the generated video")
	flag.BoolVar(&frameOnlyFlag, "frame-only", false, "stop after frame extraction")
	flag.StringVar(&frameOutFlag, "frame-out", "", "write the extracted frame JPEG to this path")
	flag.Parse()

	if strings.TrimSpace(inputFlag) == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor := frame.NewExtractor(frame.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     cfg.ExtractTimeout,
	})
	extracted, err := extractor.Extract(ctx, inputFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract frame: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("frame: %dx%d, aspect %s\n", extracted.Width, extracted.Height, extracted.AspectRatio())

	if frameOutFlag != "" {
		data, err := base64.StdEncoding.DecodeString(extracted.Payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode frame payload: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(frameOutFlag, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write frame: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d bytes)\n", frameOutFlag, len(data))
	}
	if frameOnlyFlag {
		return
	}

	if strings.TrimSpace(descriptionFlag) == "" {
		fmt.Fprintln(os.Stderr, "-description is required unless -frame-only is set")
		os.Exit(1)
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.VideoModel,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure gemini client: %v\n", err)
		os.Exit(1)
	}
	generator := video.NewGeminiGenerator(video.Options{
		Client:       client,
		PollInterval: cfg.PollInterval,
	})

	fmt.Printf("generating with %s, this can take a few minutes...\n", client.Model())
	asset, err := generator.Generate(ctx, video.GenerateRequest{
		Frame:       *extracted,
		Description: descriptionFlag,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, video.UserMessage(err))
		os.Exit(1)
	}

	if err := os.WriteFile(outputFlag, asset.Data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write video: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", outputFlag, len(asset.Data))
}
