package app

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/mrady9280/asfoor/internal/config"
	"github.com/mrady9280/asfoor/internal/testutil"
)

func TestSetup_NilConfig(t *testing.T) {
	if _, err := Setup(context.Background(), nil, testutil.DiscardLogger()); err == nil {
		t.Error("Setup(nil config) succeeded, want error")
	}
}

func TestProvideEmbedder_MockProvider(t *testing.T) {
	g := genkit.Init(context.Background())
	testutil.NewMockEmbedder(768).RegisterEmbedder(g)

	cfg := &config.Config{
		Provider:      "mock",
		EmbedderModel: "mock/test-embedder",
	}
	if provideEmbedder(g, cfg) == nil {
		t.Error("provideEmbedder() = nil for a registered mock embedder")
	}
}

func TestClose_PartialApp(t *testing.T) {
	// Close must tolerate an app that never finished Setup.
	a := &App{Logger: testutil.DiscardLogger()}
	if err := a.Close(context.Background()); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
