package build

import (
	"strings"
	"testing"

	"github.com/tovalang/tova/internal/compiler/codegen/edge"
)

func TestBuildManifestMapsBindingsByKind(t *testing.T) {
	cfg := &edge.Config{
		Bindings: []edge.Binding{
			{Kind: "sql", Name: "DB"},
			{Kind: "kv", Name: "SESSIONS"},
			{Kind: "storage", Name: "ASSETS"},
			{Kind: "queue", Name: "JOBS"},
		},
		EnvVars: []edge.EnvVar{
			{Name: "API_URL", Default: "https://example.com"},
			{Name: "SECRET_TOKEN", Default: "x", IsSecret: true},
		},
		Crons: []edge.Cron{{Schedule: "0 * * * *"}},
		Queues: []edge.QueueConsumer{{Queue: "JOBS"}},
	}

	m := BuildManifest(cfg, "myapp", "myapp.edge.js")

	if m.Name != "myapp" || m.Main != "myapp.edge.js" {
		t.Fatalf("manifest identity = %+v", m)
	}
	if len(m.D1Databases) != 1 || m.D1Databases[0].Binding != "DB" {
		t.Errorf("D1Databases = %+v", m.D1Databases)
	}
	if len(m.KVNamespaces) != 1 || m.KVNamespaces[0].Binding != "SESSIONS" {
		t.Errorf("KVNamespaces = %+v", m.KVNamespaces)
	}
	if len(m.R2Buckets) != 1 || m.R2Buckets[0].Binding != "ASSETS" {
		t.Errorf("R2Buckets = %+v", m.R2Buckets)
	}
	if m.Queues == nil || len(m.Queues.Consumers) != 1 || m.Queues.Consumers[0].Queue != "JOBS" {
		t.Errorf("Queues.Consumers = %+v", m.Queues)
	}
	if m.Triggers == nil || len(m.Triggers.Crons) != 1 || m.Triggers.Crons[0] != "0 * * * *" {
		t.Errorf("Triggers = %+v", m.Triggers)
	}
	if m.Vars["API_URL"] != "https://example.com" {
		t.Errorf("Vars[API_URL] = %q", m.Vars["API_URL"])
	}
	if _, ok := m.Vars["SECRET_TOKEN"]; ok {
		t.Error("secret env var leaked into plaintext vars")
	}
}

func TestWranglerManifestEncodeProducesValidTOML(t *testing.T) {
	m := BuildManifest(&edge.Config{}, "myapp", "myapp.edge.js")
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `name = "myapp"`) {
		t.Errorf("encoded manifest missing name field: %s", out)
	}
	if !strings.Contains(out, `main = "myapp.edge.js"`) {
		t.Errorf("encoded manifest missing main field: %s", out)
	}
}
