package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dmorgan81/unigen/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testImage() *stdimage.NRGBA {
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 80), B: 200, A: 255})
		}
	}
	return img
}

type generatorFunc func(context.Context, Params) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, p Params) ([]byte, error) {
	return f(ctx, p)
}

func TestSelectDevice(t *testing.T) {
	present := func(string) (os.FileInfo, error) { return nil, nil }
	absent := func(string) (os.FileInfo, error) { return nil, fs.ErrNotExist }

	assert.Equal(t, CUDA, selectDevice("auto", present))
	assert.Equal(t, CPU, selectDevice("auto", absent))
	assert.Equal(t, CPU, selectDevice("cpu", present))
	assert.Equal(t, CUDA, selectDevice("cuda", absent))
}

func TestEncodePNGLossless(t *testing.T) {
	img := testImage()
	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			assert.Equal(t, img.At(x, y), color.NRGBAModel.Convert(decoded.At(x, y)))
		}
	}
}

func TestToPNG(t *testing.T) {
	pngData, err := EncodePNG(testImage())
	require.NoError(t, err)

	out, err := ToPNG(pngData)
	require.NoError(t, err)
	assert.Equal(t, pngData, out)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(), nil))
	out, err = ToPNG(jpg.Bytes())
	require.NoError(t, err)
	_, format, err := stdimage.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	_, err = ToPNG([]byte("not an image"))
	assert.Error(t, err)
}

func TestBase64RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		encoded := ToBase64(data)

		decoded, err := FromBase64(encoded)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(data, decoded) {
			t.Fatalf("round trip mismatch")
		}
		if ToBase64(decoded) != encoded {
			t.Fatalf("re-encode mismatch")
		}
	})
}

func TestServiceNoBackend(t *testing.T) {
	called := false
	s := NewService(false, generatorFunc(func(context.Context, Params) ([]byte, error) {
		called = true
		return nil, nil
	}), Defaults{})

	for _, prefer := range []bool{true, false} {
		_, err := s.Generate(context.Background(), "a cat", prefer)
		assert.ErrorIs(t, err, ErrNoBackend)
	}
	assert.False(t, called)
}

func TestServiceUsesDefaults(t *testing.T) {
	pngData, err := EncodePNG(testImage())
	require.NoError(t, err)

	defaults := Defaults{Model: "sd", Height: 512, Width: 768, Steps: 20, Device: CPU}
	s := NewService(true, generatorFunc(func(_ context.Context, p Params) ([]byte, error) {
		assert.Equal(t, Params{
			Model: "sd", Prompt: "a cat", Height: 512, Width: 768, Steps: 20,
			Device: "cpu", DType: "float32",
		}, p)
		return pngData, nil
	}), defaults)

	for _, prefer := range []bool{true, false} {
		out, err := s.Generate(context.Background(), "a cat", prefer)
		require.NoError(t, err)
		assert.Equal(t, pngData, out)
	}
}

func TestServicePropagatesFailure(t *testing.T) {
	s := NewService(true, generatorFunc(func(context.Context, Params) ([]byte, error) {
		return nil, errors.New("boom")
	}), Defaults{})

	_, err := s.Generate(context.Background(), "a cat", false)
	assert.EqualError(t, err, "boom")
}

func TestLocalGenerator(t *testing.T) {
	pngData, err := EncodePNG(testImage())
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/txt2img", r.URL.Path)
		var p Params
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "a cat", p.Prompt)
		assert.Equal(t, 20, p.Steps)
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer srv.Close()

	g := &LocalGenerator{Client: &backend.Client{HTTP: srv.Client(), BaseURL: srv.URL}}
	out, err := g.Generate(context.Background(), Params{Prompt: "a cat", Steps: 20})
	require.NoError(t, err)
	assert.Equal(t, pngData, out)
}

func TestLocalGeneratorBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := &LocalGenerator{Client: &backend.Client{HTTP: srv.Client(), BaseURL: srv.URL}}
	_, err := g.Generate(context.Background(), Params{Prompt: "a cat"})
	assert.ErrorContains(t, err, "out of memory")
}
