package vectorstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// On disk a store is a CURRENT file naming the live generation directory,
// which holds the index and metadata pair written by one Persist. Replacing
// CURRENT with a rename is the commit point.
const (
	CurrentFile  = "CURRENT"
	IndexFile    = "index.bin"
	MetadataFile = "metadata.json"

	generationPrefix = "gen-"
	indexMagic       = "GWVI"
	formatVersion    = 1
)

type snapshot struct {
	dim        int
	data       []float32
	chunks     []domain.Chunk
	generation string
}

type indexHeader struct {
	Magic      [4]byte
	Version    uint32
	Dim        uint32
	Count      uint64
	Generation [16]byte
}

var headerSize = int64(binary.Size(indexHeader{}))

type metadataFile struct {
	Version    int            `json:"version"`
	Generation string         `json:"generation"`
	Dim        int            `json:"dim"`
	Count      int            `json:"count"`
	Chunks     []domain.Chunk `json:"chunks"`
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrCorruptStore, fmt.Sprintf(format, args...))
}

func generationDir(gen string) string {
	return generationPrefix + gen
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// readFiles loads the committed generation. It returns nil when nothing was
// ever committed in dir.
func readFiles(dir string, dim int) (*snapshot, error) {
	pointer, err := os.ReadFile(filepath.Join(dir, CurrentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(string(pointer))
	if !strings.HasPrefix(name, generationPrefix) || filepath.Base(name) != name {
		return nil, corrupt("%s names %q, not a generation directory", CurrentFile, name)
	}
	genDir := filepath.Join(dir, name)
	indexPath := filepath.Join(genDir, IndexFile)
	metaPath := filepath.Join(genDir, MetadataFile)

	hasIndex, err := exists(indexPath)
	if err != nil {
		return nil, err
	}
	hasMeta, err := exists(metaPath)
	if err != nil {
		return nil, err
	}
	if !hasIndex || !hasMeta {
		return nil, corrupt("generation %s is missing %s or %s", name, IndexFile, MetadataFile)
	}

	hdr, data, err := readIndex(indexPath, dim)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var meta metadataFile
	if err := sonic.ConfigStd.Unmarshal(raw, &meta); err != nil {
		return nil, corrupt("undecodable metadata: %v", err)
	}

	gen, err := uuid.FromBytes(hdr.Generation[:])
	if err != nil {
		return nil, corrupt("bad generation in index: %v", err)
	}
	if meta.Generation != gen.String() || name != generationDir(meta.Generation) {
		return nil, corrupt("generation mismatch: directory %s, index %s, metadata %s", name, gen, meta.Generation)
	}
	if meta.Count != len(meta.Chunks) || uint64(meta.Count) != hdr.Count {
		return nil, corrupt("count mismatch: index %d, metadata %d (%d chunks)", hdr.Count, meta.Count, len(meta.Chunks))
	}
	if meta.Dim != 0 && meta.Dim != dim {
		return nil, corrupt("metadata dimension %d does not match configured %d", meta.Dim, dim)
	}

	return &snapshot{dim: dim, data: data, chunks: meta.Chunks, generation: meta.Generation}, nil
}

// readIndex validates the header against dim and the file size before
// allocating room for the vectors.
func readIndex(path string, dim int) (*indexHeader, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	var hdr indexHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, corrupt("truncated index header: %v", err)
	}
	if string(hdr.Magic[:]) != indexMagic {
		return nil, nil, corrupt("bad magic %q", hdr.Magic[:])
	}
	if hdr.Version != formatVersion {
		return nil, nil, corrupt("unsupported index version %d", hdr.Version)
	}
	if int64(hdr.Dim) != int64(dim) {
		return nil, nil, corrupt("index dimension %d does not match configured %d", hdr.Dim, dim)
	}

	rowBytes := uint64(dim) * 4
	payload := uint64(info.Size() - headerSize)
	if hdr.Count > payload/rowBytes || hdr.Count*rowBytes != payload {
		return nil, nil, corrupt("header claims %d vectors but the file holds %d bytes of vector data", hdr.Count, payload)
	}

	raw := make([]byte, payload)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, nil, corrupt("truncated index data: %v", err)
	}
	data := make([]float32, hdr.Count*uint64(dim))
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return &hdr, data, nil
}

// writeFiles persists snap as a new generation, commits it and returns its id.
func writeFiles(dir string, snap *snapshot) (string, error) {
	gen, err := writeGeneration(dir, snap)
	if err != nil {
		return "", err
	}
	if err := commitGeneration(dir, gen); err != nil {
		_ = os.RemoveAll(filepath.Join(dir, generationDir(gen)))
		return "", err
	}
	pruneGenerations(dir, gen)
	return gen, nil
}

// writeGeneration writes both files into a fresh generation directory. The
// generation is invisible to readers until commitGeneration.
func writeGeneration(dir string, snap *snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	gen := uuid.New()
	genDir := filepath.Join(dir, generationDir(gen.String()))
	if err := os.Mkdir(genDir, 0o755); err != nil {
		return "", err
	}

	meta, err := sonic.ConfigStd.Marshal(metadataFile{
		Version:    formatVersion,
		Generation: gen.String(),
		Dim:        snap.dim,
		Count:      len(snap.chunks),
		Chunks:     snap.chunks,
	})
	if err != nil {
		_ = os.RemoveAll(genDir)
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	hdr := indexHeader{
		Version: formatVersion,
		Dim:     uint32(snap.dim),
		Count:   uint64(len(snap.chunks)),
	}
	copy(hdr.Magic[:], indexMagic)
	copy(hdr.Generation[:], gen[:])

	err = writeFile(filepath.Join(genDir, IndexFile), func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
			return err
		}
		buf := make([]byte, 4)
		for _, v := range snap.data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		err = writeFile(filepath.Join(genDir, MetadataFile), func(w io.Writer) error {
			_, err := w.Write(meta)
			return err
		})
	}
	if err != nil {
		_ = os.RemoveAll(genDir)
		return "", err
	}

	syncDir(genDir)
	return gen.String(), nil
}

// commitGeneration atomically points CURRENT at gen.
func commitGeneration(dir, gen string) error {
	f, err := os.CreateTemp(dir, "."+CurrentFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	_, err = f.WriteString(generationDir(gen) + "\n")
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(dir, CurrentFile))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit generation %s: %w", gen, err)
	}

	syncDir(dir)
	return nil
}

// pruneGenerations removes every generation but keep, along with pointer
// files left by interrupted commits.
func pruneGenerations(dir, keep string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		stale := strings.HasPrefix(name, "."+CurrentFile+".") ||
			(e.IsDir() && strings.HasPrefix(name, generationPrefix) && name != generationDir(keep))
		if !stale {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			log.Warn().Err(err).Str("path", name).Msg("failed to remove stale vector store generation")
		}
	}
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	err = fill(w)
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
