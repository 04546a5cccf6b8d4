package memo

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultMemcachedAddr = "127.0.0.1:11211"
	memcachedMaxKeyLen   = 250
	memcachedPoolSize    = 16

	// memcachedRelativeLimit is the largest exptime read as relative seconds.
	memcachedRelativeLimit = 30 * 24 * 60 * 60
)

var dialMemcached = func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 3 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// memcachedStore speaks the memcached text protocol. Each key lives on the
// server chosen by hashing it, so every node sees a stable subset of keys.
type memcachedStore struct {
	addrs      []string
	defaultTTL time.Duration
	prefix     string
	pools      map[string]chan *memcachedConn
}

type memcachedConn struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader
}

func newMemcachedStore(cfg StoreConfig) *memcachedStore {
	addrs := cfg.MemcachedAddresses
	if len(addrs) == 0 {
		addrs = []string{defaultMemcachedAddr}
	}
	pools := make(map[string]chan *memcachedConn, len(addrs))
	for _, addr := range addrs {
		pools[addr] = make(chan *memcachedConn, memcachedPoolSize)
	}
	prefix := cfg.Prefix
	if strings.IndexFunc(prefix, func(r rune) bool { return r <= ' ' || r == 0x7f }) >= 0 {
		prefix = base64.RawURLEncoding.EncodeToString([]byte(prefix))
	}
	if prefix != "" {
		prefix += ":"
	}
	return &memcachedStore{addrs: addrs, defaultTTL: cfg.DefaultTTL, prefix: prefix, pools: pools}
}

func (s *memcachedStore) Driver() Driver { return DriverMemcached }

func (s *memcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	wire := s.wireKey(key)
	var (
		value []byte
		found bool
	)
	err := s.do(ctx, s.server(wire), func(mc *memcachedConn) error {
		if _, err := fmt.Fprintf(mc.conn, "get %s\r\n", wire); err != nil {
			return err
		}
		line, err := mc.readLine()
		if err != nil {
			return err
		}
		if line == "END" {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != "VALUE" {
			return fmt.Errorf("memcached get: unexpected response %q", line)
		}
		n, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("memcached get: parse length: %w", err)
		}
		// Payload, its \r\n terminator, then END.
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(mc.reader, buf); err != nil {
			return err
		}
		if end, err := mc.readLine(); err != nil {
			return err
		} else if end != "END" {
			return fmt.Errorf("memcached get: unexpected trailer %q", end)
		}
		value, found = buf[:n], true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *memcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	exptime := memcachedExptime(ttl, time.Now())
	wire := s.wireKey(key)
	return s.do(ctx, s.server(wire), func(mc *memcachedConn) error {
		w := bufio.NewWriter(mc.conn)
		fmt.Fprintf(w, "set %s 0 %d %d\r\n", wire, exptime, len(value))
		w.Write(value)
		w.WriteString("\r\n")
		if err := w.Flush(); err != nil {
			return err
		}
		line, err := mc.readLine()
		if err != nil {
			return err
		}
		if line != "STORED" {
			return fmt.Errorf("memcached set: %s", line)
		}
		return nil
	})
}

func (s *memcachedStore) Delete(ctx context.Context, key string) error {
	wire := s.wireKey(key)
	return s.do(ctx, s.server(wire), func(mc *memcachedConn) error {
		if _, err := fmt.Fprintf(mc.conn, "delete %s\r\n", wire); err != nil {
			return err
		}
		line, err := mc.readLine()
		if err != nil {
			return err
		}
		if line != "DELETED" && line != "NOT_FOUND" {
			return fmt.Errorf("memcached delete: %s", line)
		}
		return nil
	})
}

// wireKey maps a store key onto the memcached key alphabet: no whitespace
// or control characters and at most 250 bytes.
func (s *memcachedStore) wireKey(key string) string {
	return boundedKey(s.prefix+base64.RawURLEncoding.EncodeToString([]byte(key)), memcachedMaxKeyLen)
}

// memcachedExptime converts ttl to the protocol's exptime. Values above 30
// days are read by the server as a unix timestamp, so long TTLs are sent as
// one. Sub-second TTLs round up to one second.
func memcachedExptime(ttl time.Duration, now time.Time) int64 {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if seconds > memcachedRelativeLimit {
		return now.Add(ttl).Unix()
	}
	return seconds
}

func (s *memcachedStore) server(wire string) string {
	return s.addrs[xxhash.Sum64String(wire)%uint64(len(s.addrs))]
}

// do runs fn on a pooled connection to addr. A connection is only returned to
// the pool when fn succeeds, since a failed exchange may leave unread bytes.
func (s *memcachedStore) do(ctx context.Context, addr string, fn func(*memcachedConn) error) error {
	mc, err := s.acquire(ctx, addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = mc.conn.SetDeadline(deadline)
	} else {
		_ = mc.conn.SetDeadline(time.Time{})
	}
	err = fn(mc)
	s.release(mc, err != nil)
	return err
}

func (s *memcachedStore) acquire(ctx context.Context, addr string) (*memcachedConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case mc := <-s.pools[addr]:
		return mc, nil
	default:
	}
	conn, err := dialMemcached(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("memcached dial %s: %w", addr, err)
	}
	return &memcachedConn{addr: addr, conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (s *memcachedStore) release(mc *memcachedConn, bad bool) {
	if bad {
		_ = mc.conn.Close()
		return
	}
	select {
	case s.pools[mc.addr] <- mc:
	default:
		_ = mc.conn.Close()
	}
}

func (mc *memcachedConn) readLine() (string, error) {
	line, err := mc.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
