package queue

import (
	"testing"

	"github.com/teelab-next/internal/config"
)

func TestDisabledClientEnqueuesAreNoops(t *testing.T) {
	client, err := NewClient(nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client without config must be disabled")
	}

	if err := client.EnqueueDesignArchiveImage(DesignArchiveImagePayload{DesignID: 1, SourceURL: "x"}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.EnqueueFulfillmentSubmit(FulfillmentSubmitPayload{OrderID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on disabled client failed: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client must report disabled")
	}
}

func TestNewTasksCarryQueueTypeNames(t *testing.T) {
	task, err := NewFulfillmentSubmitTask(FulfillmentSubmitPayload{OrderID: 7})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskFulfillmentSubmit {
		t.Fatalf("task type want %s got %s", TaskFulfillmentSubmit, task.Type())
	}

	archive, err := NewDesignArchiveImageTask(DesignArchiveImagePayload{DesignID: 7, SourceURL: "https://x"})
	if err != nil {
		t.Fatalf("new archive task failed: %v", err)
	}
	if archive.Type() != TaskDesignArchiveImage {
		t.Fatalf("task type want %s got %s", TaskDesignArchiveImage, archive.Type())
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	_, serverCfg := BuildServerConfig(nil)
	if serverCfg.Concurrency != 10 {
		t.Fatalf("default concurrency want 10 got %d", serverCfg.Concurrency)
	}
	if serverCfg.Queues[DefaultQueue] != 1 {
		t.Fatalf("default queue weight want 1 got %d", serverCfg.Queues[DefaultQueue])
	}

	custom := &config.QueueConfig{Concurrency: 4, Queues: map[string]int{"critical": 3}}
	_, serverCfg = BuildServerConfig(custom)
	if serverCfg.Concurrency != 4 {
		t.Fatalf("custom concurrency want 4 got %d", serverCfg.Concurrency)
	}
	if serverCfg.Queues["critical"] != 3 {
		t.Fatalf("custom queue weight want 3 got %d", serverCfg.Queues["critical"])
	}
}
