package scanner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func collect(t *testing.T, src Source) ([]string, []error) {
	t.Helper()
	var texts []string
	var errs []error
	for text, err := range All(context.Background(), src) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		texts = append(texts, text)
	}
	return texts, errs
}

func TestLineSourceSkipsBlankLines(t *testing.T) {
	input := "first\r\n\n   \nsecond\nthird"
	texts, errs := collect(t, NewLineSource(strings.NewReader(input)))

	assert.Empty(t, errs)
	assert.Equal(t, []string{"first", "second", "third"}, texts)
}

func TestLineSourceSkipsOversizedLine(t *testing.T) {
	input := strings.Repeat("x", 70*1024) + "\n" + `{"type":"attendance"}` + "\n"
	texts, errs := collect(t, NewLineSource(strings.NewReader(input)))

	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrUnreadable))
	assert.Equal(t, []string{`{"type":"attendance"}`}, texts)
}

func TestLineSourceKeepsLineAtLimit(t *testing.T) {
	atLimit := strings.Repeat("y", MaxLineBytes)
	texts, errs := collect(t, NewLineSource(strings.NewReader(atLimit+"\r\n"+strings.Repeat("z", MaxLineBytes+1))))

	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrUnreadable))
	require.Len(t, texts, 1)
	assert.Len(t, texts[0], MaxLineBytes)
}

func TestLineSourceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLineSource(strings.NewReader("code\n")).Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource("a", "b")
	ctx := context.Background()

	text, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", text)

	text, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", text)

	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestChannelSource(t *testing.T) {
	src := NewChannelSource(4)
	ctx := context.Background()

	// Simulates a camera callback delivering decodes on another goroutine
	go func() {
		for _, text := range []string{"one", "two", "three"} {
			src.Push(ctx, text)
		}
		src.Close()
	}()

	texts, errs := collect(t, src)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"one", "two", "three"}, texts)

	assert.False(t, src.Push(ctx, "late"))
}

func TestChannelSourceCancel(t *testing.T) {
	src := NewChannelSource(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// All yields the context error once and stops
	_, errs := collect(t, &ctxSource{ctx: ctx, inner: src})
	require.Len(t, errs, 1)
}

type ctxSource struct {
	ctx   context.Context
	inner Source
}

func (s *ctxSource) Next(context.Context) (string, error) {
	return s.inner.Next(s.ctx)
}

type flakySource struct {
	results []error
	pos     int
}

func (s *flakySource) Next(context.Context) (string, error) {
	if s.pos >= len(s.results) {
		return "", io.EOF
	}
	err := s.results[s.pos]
	s.pos++
	if err != nil {
		return "", err
	}
	return "ok", nil
}

func TestAllContinuesPastUnreadable(t *testing.T) {
	src := &flakySource{results: []error{nil, ErrUnreadable, nil}}
	texts, errs := collect(t, src)

	assert.Equal(t, []string{"ok", "ok"}, texts)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrUnreadable))
}

func TestAllStopsOnFatalError(t *testing.T) {
	fatal := errors.New("device unplugged")
	src := &flakySource{results: []error{nil, fatal, nil}}
	texts, errs := collect(t, src)

	assert.Equal(t, []string{"ok"}, texts)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], fatal))
}

func TestAllStopsWhenConsumerBreaks(t *testing.T) {
	src := NewSliceSource("a", "b", "c")
	for text := range All(context.Background(), src) {
		assert.Equal(t, "a", text)
		break
	}

	next, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", next)
}

func TestDecodeGeneratedCode(t *testing.T) {
	encoder := qrcode.NewEncoder(testLogger())
	code, err := encoder.Encode(qrcode.Descriptor{
		Kind:        domain.KindTraining,
		TargetID:    "mod-42",
		DisplayName: "Fire Safety",
	})
	require.NoError(t, err)

	text, err := DecodeImage(bytes.NewReader(code.PNG))
	require.NoError(t, err)
	assert.Equal(t, code.Text, text)

	payload, err := qrcode.NewValidator(testLogger()).Validate(text)
	require.NoError(t, err)
	assert.Equal(t, "mod-42", payload.TargetID)
}

func TestDecodeImageWithoutCode(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	draw.Draw(blank, blank.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, blank))

	_, err := DecodeImage(&buf)
	assert.True(t, errors.Is(err, ErrUnreadable))

	_, err = DecodeImage(strings.NewReader("not an image"))
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestImageSource(t *testing.T) {
	dir := t.TempDir()
	encoder := qrcode.NewEncoder(testLogger())

	code, err := encoder.Encode(qrcode.Descriptor{
		Kind:        domain.KindAttendance,
		TargetID:    "evt-1",
		DisplayName: "Orientation Day",
	})
	require.NoError(t, err)

	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, code.PNG, 0600))
	junk := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0600))
	missing := filepath.Join(dir, "missing.png")

	texts, errs := collect(t, NewImageSource(testLogger(), junk, good, missing))

	assert.Equal(t, []string{code.Text}, texts)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrUnreadable))
	}
}
