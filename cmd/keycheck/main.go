package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cleanreel/internal/providers/genai"
)

// Verifies that a Gemini API key exists and can see the configured
// video generation model.
func main() {
	var (
		keyFlag   string
		modelFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (falls back to GEMINI_API_KEY)")
	flag.StringVar(&modelFlag, "model", "", "model to check (falls back to VEO_MODEL)")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Gemini API key is required via -key or GEMINI_API_KEY")
		os.Exit(1)
	}
	model := strings.TrimSpace(modelFlag)
	if model == "" {
		model = strings.TrimSpace(os.Getenv("VEO_MODEL"))
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:     key,
		BaseURL:    os.Getenv("GEMINI_BASE_URL"),
		Model:      model,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	info, err := client.GetModel(ctx)
	if err != nil {
		var apiErr *genai.APIError
		switch {
		case errors.As(err, &apiErr) && genai.IsNotFound(err):
			fmt.Fprintf(os.Stderr, "key is valid but cannot see model %q\n", client.Model())
		case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
			fmt.Fprintln(os.Stderr, "key was rejected by the API")
		default:
			fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
		}
		os.Exit(1)
	}

	name := info.DisplayName
	if name == "" {
		name = info.Name
	}
	fmt.Printf("ok: %s is reachable with this key\n", name)
	if !info.SupportsVideoGeneration() {
		fmt.Fprintf(os.Stderr, "model %s does not support long-running video generation\n", name)
		os.Exit(1)
	}
	fmt.Println("ok: model supports long-running video generation")
}
