package store

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/eigentrust/internal/simulation"
)

// ArchiveVersion is the current archive format version.
const ArchiveVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed archive payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// ArchiveHeader is the plain-text first line of an archive file.
type ArchiveHeader struct {
	Version          int       `json:"version"`
	SimulationID     string    `json:"simulation_id"`
	CreatedAt        time.Time `json:"created_at"`
	SavedAt          time.Time `json:"saved_at"`
	State            string    `json:"state"`
	Checksum         string    `json:"checksum"`
	PeerCount        int       `json:"peer_count"`
	InteractionCount int       `json:"interaction_count"`
}

// WriteArchive writes rec as a header line followed by a gzip-compressed
// JSON payload. The header carries a SHA-256 checksum of the payload.
func WriteArchive(path string, rec simulation.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	hash := sha256.Sum256(compressed.Bytes())
	header := ArchiveHeader{
		Version:          ArchiveVersion,
		SimulationID:     rec.SimulationID,
		CreatedAt:        rec.CreatedAt,
		SavedAt:          time.Now().UTC(),
		State:            string(rec.State),
		Checksum:         "sha256:" + hex.EncodeToString(hash[:]),
		PeerCount:        len(rec.Peers),
		InteractionCount: len(rec.Interactions),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}
	return nil
}

// ReadArchive reads an archive, verifies the checksum and decodes the record.
func ReadArchive(path string) (simulation.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return simulation.Record{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return simulation.Record{}, err
	}

	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return simulation.Record{}, fmt.Errorf("reading compressed payload: %w", err)
	}
	if err := verify(header, compressedData); err != nil {
		return simulation.Record{}, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return simulation.Record{}, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return simulation.Record{}, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return simulation.Record{}, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var rec simulation.Record
	if err := json.Unmarshal(decompressed, &rec); err != nil {
		return simulation.Record{}, fmt.Errorf("parsing archive data: %w", err)
	}
	return rec, nil
}

// ReadArchiveHeader reads only the header line without decompressing.
func ReadArchiveHeader(path string) (ArchiveHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return ArchiveHeader{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// VerifyArchive checks the integrity of an archive without decompressing it.
func VerifyArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return err
	}
	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading compressed payload: %w", err)
	}
	return verify(header, compressedData)
}

func readHeader(reader *bufio.Reader) (ArchiveHeader, error) {
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return ArchiveHeader{}, fmt.Errorf("reading header line: %w", err)
	}
	var header ArchiveHeader
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return ArchiveHeader{}, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != ArchiveVersion {
		return ArchiveHeader{}, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return header, nil
}

func verify(header ArchiveHeader, compressedData []byte) error {
	hash := sha256.Sum256(compressedData)
	actual := "sha256:" + hex.EncodeToString(hash[:])
	if actual != header.Checksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return nil
}
