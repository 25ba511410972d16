package build

import (
	"bytes"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/tovalang/tova/internal/compiler/codegen/edge"
)

// WranglerManifest is the Cloudflare Workers manifest the orchestrator
// writes next to a Cloudflare edge build (spec.md §4.4 "Wrangler
// manifest"). Uses github.com/BurntSushi/toml for encoding, same library
// the Creative-Workz-Studio-LLC pack entry pulls in for structured config
// emission.
type WranglerManifest struct {
	Name              string            `toml:"name"`
	Main              string            `toml:"main"`
	CompatibilityDate string            `toml:"compatibility_date"`
	KVNamespaces      []kvNamespace     `toml:"kv_namespaces,omitempty"`
	D1Databases       []d1Database      `toml:"d1_databases,omitempty"`
	R2Buckets         []r2Bucket        `toml:"r2_buckets,omitempty"`
	Queues            *queueConfig      `toml:"queues,omitempty"`
	Triggers          *triggerConfig    `toml:"triggers,omitempty"`
	Vars              map[string]string `toml:"vars,omitempty"`
}

type kvNamespace struct {
	Binding string `toml:"binding"`
}

type d1Database struct {
	Binding string `toml:"binding"`
}

type r2Bucket struct {
	Binding string `toml:"binding"`
}

type queueConfig struct {
	Producers []queueProducer `toml:"producers,omitempty"`
	Consumers []queueConsumer `toml:"consumers,omitempty"`
}

type queueProducer struct {
	Queue   string `toml:"queue"`
	Binding string `toml:"binding"`
}

type queueConsumer struct {
	Queue string `toml:"queue"`
}

type triggerConfig struct {
	Crons []string `toml:"crons,omitempty"`
}

// BuildManifest collects cfg's bindings, queue consumers, cron triggers,
// and declared env defaults into a WranglerManifest for the named worker.
func BuildManifest(cfg *edge.Config, name, mainFile string) *WranglerManifest {
	m := &WranglerManifest{
		Name:              name,
		Main:              mainFile,
		CompatibilityDate: "2024-01-01",
		Vars:              map[string]string{},
	}

	for _, b := range cfg.Bindings {
		switch b.Kind {
		case "kv":
			m.KVNamespaces = append(m.KVNamespaces, kvNamespace{Binding: b.Name})
		case "sql":
			m.D1Databases = append(m.D1Databases, d1Database{Binding: b.Name})
		case "storage":
			m.R2Buckets = append(m.R2Buckets, r2Bucket{Binding: b.Name})
		case "queue":
			if m.Queues == nil {
				m.Queues = &queueConfig{}
			}
			m.Queues.Producers = append(m.Queues.Producers, queueProducer{Queue: b.Name, Binding: b.Name})
		}
	}

	for _, q := range cfg.Queues {
		if m.Queues == nil {
			m.Queues = &queueConfig{}
		}
		m.Queues.Consumers = append(m.Queues.Consumers, queueConsumer{Queue: q.Queue})
	}

	for _, c := range cfg.Crons {
		if m.Triggers == nil {
			m.Triggers = &triggerConfig{}
		}
		m.Triggers.Crons = append(m.Triggers.Crons, c.Schedule)
	}

	for _, e := range cfg.EnvVars {
		if !e.IsSecret && e.Default != "" {
			m.Vars[e.Name] = e.Default
		}
	}

	sort.Slice(m.KVNamespaces, func(i, j int) bool { return m.KVNamespaces[i].Binding < m.KVNamespaces[j].Binding })
	sort.Slice(m.D1Databases, func(i, j int) bool { return m.D1Databases[i].Binding < m.D1Databases[j].Binding })
	sort.Slice(m.R2Buckets, func(i, j int) bool { return m.R2Buckets[i].Binding < m.R2Buckets[j].Binding })

	return m
}

// Encode renders m as TOML text.
func (m *WranglerManifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
