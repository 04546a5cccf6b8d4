package memo

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goforj/memo/memocore"
)

// CompressionCodec represents a value compression algorithm.
type CompressionCodec = memocore.CompressionCodec

const (
	CompressionNone = memocore.CompressionNone
	CompressionGzip = memocore.CompressionGzip
)

var (
	ErrValueTooLarge      = errors.New("memo: value exceeds max size")
	ErrUnsupportedCodec   = errors.New("memo: unsupported compression codec")
	ErrCorruptCompression = errors.New("memo: corrupt compressed payload")
	ErrEncryptionKey      = errors.New("memo: encryption key must be 16, 24, or 32 bytes")
	ErrDecryptFailed      = errors.New("memo: decrypt failed")
)

// Frame tags written in front of transformed records.
var (
	gzipTag = []byte("z1")
	sealTag = []byte("e1")
)

// layer transforms a record on its way to the backend (seal) and back
// (open). key is the backend key the record lives under.
type layer interface {
	seal(key string, in []byte) ([]byte, error)
	open(key string, in []byte) ([]byte, error)
}

// layeredStore runs writes through its layers in order and reads through
// them in reverse.
type layeredStore struct {
	Store
	layers []layer
}

func buildLayers(cfg StoreConfig) ([]layer, error) {
	var layers []layer
	switch cfg.Compression {
	case "", CompressionNone:
	case CompressionGzip:
		layers = append(layers, gzipLayer{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, cfg.Compression)
	}
	if cfg.MaxValueBytes > 0 {
		layers = append(layers, sizeLayer(cfg.MaxValueBytes))
	}
	if len(cfg.EncryptionKey) > 0 {
		sl, err := newSealLayer(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		layers = append(layers, sl)
	}
	return layers, nil
}

func withLayers(inner Store, layers []layer) Store {
	if len(layers) == 0 {
		return inner
	}
	return &layeredStore{Store: inner, layers: layers}
}

func (s *layeredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.Store.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		if body, err = s.layers[i].open(key, body); err != nil {
			return nil, false, err
		}
	}
	return body, true, nil
}

func (s *layeredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	body := value
	for _, l := range s.layers {
		var err error
		if body, err = l.seal(key, body); err != nil {
			return err
		}
	}
	return s.Store.Set(ctx, key, body, ttl)
}

// gzipLayer compresses records. Records without its tag were written
// uncompressed and pass through.
type gzipLayer struct{}

func (gzipLayer) seal(_ string, in []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(gzipTag)
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(in); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipLayer) open(_ string, in []byte) ([]byte, error) {
	if !bytes.HasPrefix(in, gzipTag) {
		return in, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(in[len(gzipTag):]))
	if err != nil {
		return nil, ErrCorruptCompression
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrCorruptCompression
	}
	return out, nil
}

// sizeLayer caps the size of what reaches the backend.
type sizeLayer int

func (limit sizeLayer) seal(_ string, in []byte) ([]byte, error) {
	if len(in) > int(limit) {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrValueTooLarge, len(in), int(limit))
	}
	return in, nil
}

func (sizeLayer) open(_ string, in []byte) ([]byte, error) { return in, nil }

// sealLayer encrypts records with AES-GCM as tag + nonce + ciphertext. The
// backend key is the additional data, so a record copied under another key
// fails to open.
type sealLayer struct {
	aead cipher.AEAD
}

func newSealLayer(key []byte) (*sealLayer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrEncryptionKey
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealLayer{aead: aead}, nil
}

func (l *sealLayer) seal(key string, in []byte) ([]byte, error) {
	out := make([]byte, len(sealTag)+l.aead.NonceSize(), len(sealTag)+l.aead.NonceSize()+len(in)+l.aead.Overhead())
	copy(out, sealTag)
	nonce := out[len(sealTag):]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return l.aead.Seal(out, nonce, in, []byte(key)), nil
}

// open rejects anything it did not seal, including records that are too
// short to hold a nonce and a tag.
func (l *sealLayer) open(key string, in []byte) ([]byte, error) {
	header := len(sealTag) + l.aead.NonceSize()
	if !bytes.HasPrefix(in, sealTag) || len(in) < header+l.aead.Overhead() {
		return nil, ErrDecryptFailed
	}
	plain, err := l.aead.Open(nil, in[len(sealTag):header], in[header:], []byte(key))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
