//go:build integration

package memo

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/goforj/memo/memotest"
	"github.com/redis/go-redis/v9"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type integrationService struct {
	image string
	port  nat.Port
}

var integrationServices = map[string]integrationService{
	"redis":     {image: "redis:7-alpine", port: "6379/tcp"},
	"memcached": {image: "memcached:1.6-alpine", port: "11211/tcp"},
}

var (
	integrationContainers = map[string]testcontainers.Container{}
	integrationAddrs      = map[string]string{}
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	for name, svc := range integrationServices {
		if !integrationDriverEnabled(name) {
			continue
		}
		container, addr, err := startIntegrationContainer(ctx, svc)
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to start " + name + " integration container: " + err.Error() + "\n")
			terminateIntegrationContainers()
			os.Exit(1)
		}
		integrationContainers[name] = container
		integrationAddrs[name] = addr
	}

	exitCode := m.Run()
	terminateIntegrationContainers()
	os.Exit(exitCode)
}

func terminateIntegrationContainers() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, c := range integrationContainers {
		_ = c.Terminate(ctx)
	}
}

// integrationDriverEnabled reads INTEGRATION_DRIVER: "all" (default) or a
// comma-separated list such as "redis,memcached".
func integrationDriverEnabled(name string) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_DRIVER")))
	if value == "" || value == "all" {
		return true
	}
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == name {
			return true
		}
	}
	return false
}

func startIntegrationContainer(ctx context.Context, svc integrationService) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        svc.image,
			ExposedPorts: []string{string(svc.port)},
			WaitingFor:   wait.ForListeningPort(svc.port).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	port, err := container.MappedPort(ctx, svc.port)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, net.JoinHostPort(host, port.Port()), nil
}

func integrationStore(t *testing.T, name string) Store {
	t.Helper()
	addr, ok := integrationAddrs[name]
	if !ok {
		t.Skipf("%s integration disabled", name)
	}
	ctx := context.Background()
	var (
		store Store
		err   error
	)
	switch name {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		store, err = NewRedisStore(ctx, client, WithPrefix("it"))
	case "memcached":
		store, err = NewMemcachedStore(ctx, []string{addr}, WithPrefix("it"))
	default:
		t.Fatalf("unknown integration driver %q", name)
	}
	if err != nil {
		t.Fatalf("open %s store: %v", name, err)
	}
	return store
}

func TestIntegrationStoreContract(t *testing.T) {
	for name := range integrationServices {
		t.Run(name, func(t *testing.T) {
			store := integrationStore(t, name)
			// memcached expiry has one second granularity.
			memotest.RunStoreContract(t, store, memotest.Options{TTL: time.Second, TTLWait: 2500 * time.Millisecond})
		})
	}
}

func TestIntegrationMemoSharesThroughStore(t *testing.T) {
	for name := range integrationServices {
		t.Run(name, func(t *testing.T) {
			store := integrationStore(t, name)
			var calls int
			build := func() *Memo[string, int] {
				return NewPure(func(k string) int { calls++; return len(k) },
					WithStore[string, int](store), WithNamespace[string, int](t.Name()))
			}
			if got := build().MustGet("integration"); got != 11 {
				t.Fatalf("unexpected value %d", got)
			}
			if got := build().MustGet("integration"); got != 11 {
				t.Fatalf("unexpected shared value %d", got)
			}
			if calls != 1 {
				t.Fatalf("expected one computation across memos, got %d", calls)
			}
		})
	}
}
