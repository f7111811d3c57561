package runtime

import (
	"testing"

	cfgpkg "github.com/rzbill/headcache/internal/config"
)

// Open dials Kafka eagerly (sarama.NewClient), so a unit test without a
// real broker can only exercise the failure path deterministically;
// TopicCache/HeadCache behavior against a live feed is covered in
// internal/headcache's own tests using fakes instead of a real broker.
func TestOpenFailsFastOnUnreachableBroker(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}

	_, err := Open(Options{Config: cfg})
	if err == nil {
		t.Fatal("expected an error dialing an unreachable broker, got nil")
	}
}
