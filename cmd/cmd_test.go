package cmd

import (
	"context"
	"strings"
	"testing"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "ingest": false, "migrate": false, "version": false}
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestIngestRejectsBadFlags(t *testing.T) {
	defer func(topic, vis string) {
		ingestTopic, ingestVisibility = topic, vis
	}(ingestTopic, ingestVisibility)

	ingestTopic = "gossip"
	ingestVisibility = "restricted"
	if err := runIngest(context.Background(), "unused.txt"); err == nil {
		t.Error("expected error for unknown topic")
	}

	ingestTopic = "other"
	if err := runIngest(context.Background(), "unused.txt"); err == nil {
		t.Error("expected error for the fallback topic")
	}

	ingestTopic = "support"
	ingestVisibility = "internal"
	if err := runIngest(context.Background(), "unused.txt"); err == nil {
		t.Error("expected error for unknown visibility")
	}
}
