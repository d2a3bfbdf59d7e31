package bow

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/roboswarm/loopclosure/blobstore"
)

// ErrVocabularyFormat indicates a malformed vocabulary file.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrVocabularyFormat struct {
	Line   int
	Reason string
	cause  error
}

func (e *ErrVocabularyFormat) Error() string {
	return fmt.Sprintf("vocabulary format error at line %d: %s", e.Line, e.Reason)
}

func (e *ErrVocabularyFormat) Unwrap() error { return e.cause }

// ErrWordOutOfRange indicates a vector referencing a word index beyond the
// vocabulary size.
type ErrWordOutOfRange struct {
	Word  uint32
	Words int
}

func (e *ErrWordOutOfRange) Error() string {
	return fmt.Sprintf("word %d out of range for vocabulary of %d words", e.Word, e.Words)
}

// Vocabulary describes the word space BoW vectors are expressed in: the
// word count plus an optional set of stop words that are ignored when
// scoring.
type Vocabulary struct {
	words int
	stop  map[uint32]struct{}
}

// NewVocabulary builds a Vocabulary directly from a word count and stop
// words.
func NewVocabulary(words int, stopWords []uint32) *Vocabulary {
	stop := make(map[uint32]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[w] = struct{}{}
	}
	return &Vocabulary{words: words, stop: stop}
}

// Words returns the vocabulary size.
func (voc *Vocabulary) Words() int { return voc.words }

// Validate checks that every word index in v lies within the vocabulary.
func (voc *Vocabulary) Validate(v Vector) error {
	for word := range v {
		if int(word) >= voc.words {
			return &ErrWordOutOfRange{Word: word, Words: voc.words}
		}
	}
	return nil
}

// Score computes the L1 similarity of a and b with stop words masked out.
func (voc *Vocabulary) Score(a, b Vector) float64 {
	if len(voc.stop) == 0 {
		return Score(a, b)
	}
	return Score(voc.mask(a), voc.mask(b))
}

func (voc *Vocabulary) mask(v Vector) Vector {
	masked := make(Vector, len(v))
	for word, w := range v {
		if _, ok := voc.stop[word]; !ok {
			masked[word] = w
		}
	}
	return masked
}

// Load reads a vocabulary blob. Gzip- and zstd-compressed blobs are
// decompressed transparently based on their magic bytes.
//
// The format is line-oriented: blank lines and lines starting with '#' are
// skipped; the first data line holds the word count; each following data
// line holds one stop-word index.
func Load(ctx context.Context, store blobstore.Store, name string) (*Vocabulary, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary %q: %w", name, err)
	}
	defer blob.Close()

	r, err := decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress vocabulary %q: %w", name, err)
	}
	defer r.Close()

	return parse(r)
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	switch {
	case len(magic) >= 2 && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1]:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case len(magic) >= 4 && string(magic) == string(zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(zr.IOReadCloser()), nil
	default:
		return io.NopCloser(br), nil
	}
}

func parse(r io.Reader) (*Vocabulary, error) {
	scanner := bufio.NewScanner(r)

	var (
		voc  *Vocabulary
		line int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if voc == nil {
			words, err := strconv.Atoi(text)
			if err != nil || words <= 0 {
				return nil, &ErrVocabularyFormat{Line: line, Reason: "word count must be a positive integer", cause: err}
			}
			voc = &Vocabulary{words: words, stop: make(map[uint32]struct{})}
			continue
		}

		stop, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, &ErrVocabularyFormat{Line: line, Reason: "stop word must be an unsigned integer", cause: err}
		}
		if int(stop) >= voc.words {
			return nil, &ErrVocabularyFormat{Line: line, Reason: fmt.Sprintf("stop word %d out of range", stop)}
		}
		voc.stop[uint32(stop)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if voc == nil {
		return nil, &ErrVocabularyFormat{Line: line, Reason: "missing word count"}
	}
	return voc, nil
}
