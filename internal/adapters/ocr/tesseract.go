package ocr

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/obs"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

const maxLines = 50

// Tesseract runs the tesseract CLI in TSV mode and folds word boxes into
// lines in reading order. With Preprocess set, the page is rotated upright
// and binarized before recognition.
type Tesseract struct {
	Bin         string
	Lang        string
	TessdataDir string
	Timeout     time.Duration
	Preprocess  bool
	Runner      Runner
}

func NewTesseract(bin, lang, tessdataDir string, timeout time.Duration) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{
		Bin:         bin,
		Lang:        lang,
		TessdataDir: tessdataDir,
		Timeout:     timeout,
		Preprocess:  true,
		Runner:      ExecRunner{},
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) ExtractSpans(ctx context.Context, image []byte) (_ []domain.TextSpan, err error) {
	defer obs.Time(ctx, "ocr.tesseract")(&err)

	if len(image) == 0 {
		return nil, &domain.ParseError{Source: t.Name(), Err: errors.New("empty image")}
	}

	src, err := writeTemp("addris-ocr-*", image)
	if err != nil {
		return nil, err
	}
	defer os.Remove(src)

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	input := src
	if t.Preprocess {
		if prepared, ok := t.prepare(ctx, src, image); ok {
			defer os.Remove(prepared)
			input = prepared
		}
	}

	args := []string{input, "stdout", "-l", t.Lang, "--oem", "3", "--psm", "6"}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	args = append(args, "tsv")

	out, err := t.Runner.Run(ctx, t.Bin, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.ProviderTimeoutError{Provider: t.Name(), Err: ctx.Err()}
		}
		return nil, &domain.ProviderError{Provider: t.Name(), Err: err}
	}

	return parseTSV(out)
}

// prepare rotates the page upright and binarizes it, returning the path of
// the processed PNG. Images that cannot be decoded are OCRed as uploaded.
func (t *Tesseract) prepare(ctx context.Context, src string, data []byte) (string, bool) {
	log := zerolog.Ctx(ctx)

	img, err := decodeImage(data)
	if err != nil {
		log.Debug().Err(err).Msg("ocr preprocessing skipped")
		return "", false
	}

	if deg := t.orientation(ctx, src); deg != 0 {
		log.Debug().Int("rotate", deg).Msg("ocr correcting orientation")
		img = rotateUpright(img, deg)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, binarize(img), imaging.PNG); err != nil {
		log.Warn().Err(err).Msg("ocr preprocessing encode failed")
		return "", false
	}
	path, err := writeTemp("addris-ocr-*.png", buf.Bytes())
	if err != nil {
		log.Warn().Err(err).Msg("ocr preprocessing write failed")
		return "", false
	}
	return path, true
}

// orientation asks tesseract OSD for the clockwise rotation that makes the
// page upright. Detection failures count as already upright.
func (t *Tesseract) orientation(ctx context.Context, src string) int {
	args := []string{src, "stdout", "--psm", "0"}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	out, err := t.Runner.Run(ctx, t.Bin, args...)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("ocr orientation detection skipped")
		return 0
	}
	return parseRotation(out)
}

func writeTemp(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("tesseract: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("tesseract: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("tesseract: close temp file: %w", err)
	}
	return f.Name(), nil
}

type lineKey struct{ page, block, par, line int }

type lineAcc struct {
	words []string
	conf  float64
}

// parseTSV groups word rows by page/block/paragraph/line. Rows without text
// or with a negative confidence (layout rows) are skipped. Line confidence
// is the mean word confidence scaled to [0,1].
func parseTSV(out []byte) ([]domain.TextSpan, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		cols   map[string]int
		order  []lineKey
		groups = map[lineKey]*lineAcc{}
	)

	for sc.Scan() {
		row := strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t")
		if cols == nil {
			cols = make(map[string]int, len(row))
			for i, name := range row {
				cols[name] = i
			}
			for _, need := range []string{"page_num", "block_num", "par_num", "line_num", "conf", "text"} {
				if _, ok := cols[need]; !ok {
					return nil, &domain.ParseError{Source: "tesseract", Err: fmt.Errorf("tsv header missing %q", need)}
				}
			}
			continue
		}

		get := func(name string) string {
			if i := cols[name]; i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		text := get("text")
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(get("conf"), 64)
		if err != nil || conf < 0 {
			continue
		}

		k := lineKey{atoi(get("page_num")), atoi(get("block_num")), atoi(get("par_num")), atoi(get("line_num"))}
		acc, ok := groups[k]
		if !ok {
			acc = &lineAcc{}
			groups[k] = acc
			order = append(order, k)
		}
		acc.words = append(acc.words, text)
		acc.conf += conf
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.ParseError{Source: "tesseract", Err: err}
	}

	spans := make([]domain.TextSpan, 0, len(order))
	for _, k := range order {
		acc := groups[k]
		spans = append(spans, domain.TextSpan{
			Text:       strings.Join(acc.words, " "),
			Confidence: clamp01(acc.conf / float64(len(acc.words)) / 100),
		})
		if len(spans) == maxLines {
			break
		}
	}
	return spans, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
