package llm_test

import (
	"context"
	"testing"

	"github.com/Rrens/reframe-journal/internal/llm"
	"github.com/Rrens/reframe-journal/internal/llm/mock"
	"github.com/Rrens/reframe-journal/internal/llm/ollama"
)

func TestRouter_CompleteWithMockProvider(t *testing.T) {
	router := llm.NewRouter("mock")
	router.RegisterProvider(mock.NewProvider())

	c, err := router.Complete(context.Background(), llm.Request{UserText: "Reframed: I am doing my best."})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !c.IsComplete {
		t.Error("expected completion to be marked complete")
	}
	if c.FinalReframedThought != "I am doing my best." {
		t.Errorf("FinalReframedThought = %q", c.FinalReframedThought)
	}

	c, err = router.Complete(context.Background(), llm.Request{UserText: "I feel stuck"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if c.IsComplete || c.Message == "" {
		t.Errorf("unexpected completion: %+v", c)
	}
}

func TestRouter_UnknownDefaultProvider(t *testing.T) {
	router := llm.NewRouter("gemini")
	router.RegisterProvider(mock.NewProvider())

	if _, err := router.Complete(context.Background(), llm.Request{UserText: "hi"}); err == nil {
		t.Error("expected error for unregistered default provider")
	}
}

func TestRouter_ProvidersInfo(t *testing.T) {
	router := llm.NewRouter("mock")
	router.RegisterProvider(mock.NewProvider())
	router.RegisterProvider(ollama.NewProvider("", ""))

	if got := router.ListProviders(); len(got) != 1 || got[0] != "mock" {
		t.Errorf("ListProviders() = %v, want [mock]", got)
	}

	infos := router.GetProvidersInfo()
	if len(infos) != 2 {
		t.Fatalf("GetProvidersInfo() len = %d, want 2", len(infos))
	}
	if infos[0].Name != "mock" || !infos[0].Default || !infos[0].Configured {
		t.Errorf("unexpected mock info: %+v", infos[0])
	}
	if infos[1].Name != "ollama" || infos[1].Configured {
		t.Errorf("unexpected ollama info: %+v", infos[1])
	}
}
