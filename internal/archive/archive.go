// Package archive keeps a compressed, optionally age-encrypted copy of every
// report that was sent.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"

	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/pkg/utils"
)

const timestampLayout = "20060102-150405"

var (
	archiveNameRe = regexp.MustCompile(`^report-(.+)-(\d{8}-\d{6})\.txt\.zst(\.age)?$`)
	unsafeHostRe  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Config selects where reports go and how many are kept.
type Config struct {
	Dir      string
	MaxFiles int
	// Recipients are age (age1...) or SSH public keys; empty means no encryption.
	Recipients    []string
	RecipientFile string
}

// Entry is one archived report on disk.
type Entry struct {
	Path      string
	Host      string
	Timestamp time.Time
	Encrypted bool
}

// Archiver writes and prunes archived reports.
type Archiver struct {
	dir        string
	maxFiles   int
	recipients []age.Recipient
	encoder    *zstd.Encoder
	logger     *logging.Logger
}

// New parses the recipients and prepares the compressor.
func New(cfg Config, logger *logging.Logger) (*Archiver, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("report archive directory is empty")
	}
	recipients, err := LoadRecipients(cfg.Recipients, cfg.RecipientFile)
	if err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Archiver{
		dir:        cfg.Dir,
		maxFiles:   cfg.MaxFiles,
		recipients: recipients,
		encoder:    encoder,
		logger:     logger,
	}, nil
}

// Encrypted reports whether stored reports are age-encrypted.
func (a *Archiver) Encrypted() bool {
	return len(a.recipients) > 0
}

// FileName returns the archive name for a host and time.
func FileName(host string, at time.Time, encrypted bool) string {
	host = unsafeHostRe.ReplaceAllString(host, "_")
	if host == "" {
		host = "unknown"
	}
	name := fmt.Sprintf("report-%s-%s.txt.zst", host, at.UTC().Format(timestampLayout))
	if encrypted {
		name += ".age"
	}
	return name
}

// Store compresses (and encrypts) text, writes it atomically and prunes
// the oldest reports beyond MaxFiles. It returns the written path.
func (a *Archiver) Store(ctx context.Context, host string, at time.Time, text []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return "", fmt.Errorf("create archive directory %s: %w", a.dir, err)
	}

	payload := a.encoder.EncodeAll(text, make([]byte, 0, len(text)/2))
	if a.Encrypted() {
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, a.recipients...)
		if err != nil {
			return "", fmt.Errorf("age encrypt: %w", err)
		}
		if _, err := w.Write(payload); err != nil {
			return "", fmt.Errorf("age encrypt: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("age encrypt: %w", err)
		}
		payload = buf.Bytes()
	}

	path := filepath.Join(a.dir, FileName(host, at, a.Encrypted()))
	if err := utils.WriteFileAtomic(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write archived report: %w", err)
	}
	a.logger.Debug("Archived report to %s (%d bytes)", path, len(payload))

	if _, err := a.Prune(ctx); err != nil {
		a.logger.Warning("Report archive retention failed: %v", err)
	}
	return path, nil
}

// List returns the archived reports, newest first.
func (a *Archiver) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		m := archiveNameRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		ts, err := time.Parse(timestampLayout, m[2])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Path:      filepath.Join(a.dir, de.Name()),
			Host:      m[1],
			Timestamp: ts,
			Encrypted: m[3] != "",
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Path > entries[j].Path
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// Prune deletes the oldest reports so that at most MaxFiles remain.
func (a *Archiver) Prune(ctx context.Context) (int, error) {
	if a.maxFiles <= 0 {
		return 0, nil
	}
	entries, err := a.List()
	if err != nil {
		return 0, err
	}
	if len(entries) <= a.maxFiles {
		return 0, nil
	}

	deleted := 0
	for _, e := range entries[a.maxFiles:] {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			a.logger.Warning("Failed to delete archived report %s: %v", e.Path, err)
			continue
		}
		deleted++
	}
	a.logger.Debug("Report archive retention: deleted %d, kept %d", deleted, a.maxFiles)
	return deleted, nil
}
