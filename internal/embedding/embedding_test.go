package embedding_test

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tamperwatch/internal/config"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/tamper"
	"tamperwatch/internal/testsupport"
)

func gradient(w, h int, invert bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			if invert {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: uint8((y * 255) / h), B: 128, A: 255})
		}
	}
	return img
}

func TestHaarEmbedIsDeterministic(t *testing.T) {
	h := embedding.NewHaar(8)
	img := gradient(320, 240, false)

	first, err := h.Embed(context.Background(), img)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := h.Embed(context.Background(), img)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(first) != h.Dimension() || h.Dimension() != 3*(8*8-1)+4 {
		t.Fatalf("dimension = %d, want %d", len(first), h.Dimension())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("coefficient %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestHaarDistanceAgainstKeyFrame(t *testing.T) {
	const threshold = 0.4
	h := embedding.NewHaar(16)
	key, err := h.Embed(context.Background(), testsupport.Scene(0, false))
	if err != nil {
		t.Fatalf("Embed key: %v", err)
	}

	covered := testsupport.Scene(0, false)
	draw.Draw(covered, image.Rect(0, 0, 64, 128), image.NewUniform(color.Black), image.Point{}, draw.Src)

	cases := []struct {
		name     string
		img      image.Image
		tampered bool
	}{
		{name: "black frame", img: solid(color.Black), tampered: true},
		{name: "grey frame", img: solid(color.RGBA{R: 128, G: 128, B: 128, A: 255}), tampered: true},
		{name: "white frame", img: solid(color.White), tampered: true},
		{name: "half covered", img: covered, tampered: true},
		{name: "re-aimed", img: testsupport.Scene(0, true), tampered: true},
		{name: "brighter", img: testsupport.Scene(20, false)},
		{name: "darker", img: testsupport.Scene(-30, false)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vec, err := h.Embed(context.Background(), tc.img)
			if err != nil {
				t.Fatalf("Embed: %v", err)
			}
			distance, err := tamper.CosineDistance(key, vec)
			if err != nil {
				t.Fatalf("CosineDistance: %v", err)
			}
			if got := distance >= threshold; got != tc.tampered {
				t.Fatalf("distance %.4f: tampered = %v, want %v", distance, got, tc.tampered)
			}
		})
	}
}

func TestHaarFlatFramesAreNotDegenerate(t *testing.T) {
	h := embedding.NewHaar(16)
	black, err := h.Embed(context.Background(), solid(color.Black))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	same, err := h.Embed(context.Background(), solid(color.Black))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	d, err := tamper.CosineDistance(black, same)
	if err != nil {
		t.Fatalf("black frame embeds to an unusable vector: %v", err)
	}
	if d > 1e-9 {
		t.Fatalf("identical black frames at distance %v", d)
	}
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestHaarRejectsEmptyImage(t *testing.T) {
	h := embedding.NewHaar(4)
	if _, err := h.Embed(context.Background(), nil); !errors.Is(err, embedding.ErrInvalidImage) {
		t.Fatalf("nil image: got %v", err)
	}
	if _, err := h.Embed(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, embedding.ErrInvalidImage) {
		t.Fatalf("empty image: got %v", err)
	}
}

func TestNewHaarClampsBlock(t *testing.T) {
	if got := embedding.NewHaar(0).Dimension(); got != 3*3+4 {
		t.Fatalf("block 0 dimension = %d", got)
	}
	if got := embedding.NewHaar(1000).Dimension(); got != 3*(128*128-1)+4 {
		t.Fatalf("block 1000 dimension = %d", got)
	}
}

func TestHTTPEmbedder(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %q", ct)
		}
		if _, err := png.Decode(r.Body); err != nil {
			t.Errorf("request body is not png: %v", err)
		}
		payload := map[string][]float64{"embedding": {1, 2, 3}}
		if calls > 1 {
			payload["embedding"] = []float64{1, 2}
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	e := embedding.NewHTTP(srv.URL, embedding.WithHTTPClient(srv.Client()))
	vec, err := e.Embed(context.Background(), gradient(8, 8, false))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 3 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if _, err := e.Embed(context.Background(), gradient(8, 8, false)); !errors.Is(err, embedding.ErrDimensionChanged) {
		t.Fatalf("expected dimension change error, got %v", err)
	}
}

func TestHTTPEmbedderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := embedding.NewHTTP(srv.URL).Embed(context.Background(), gradient(8, 8, false))
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if want := "http 503"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q missing %q", err, want)
	}
}

func TestNewSelectsEmbedder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	e, err := embedding.New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := e.(*embedding.Haar); !ok {
		t.Fatalf("default embedder = %T", e)
	}

	cfg.Detector.Embedder = config.EmbedderHTTP
	cfg.Detector.EmbedderURL = "http://127.0.0.1:1/embed"
	if e, err = embedding.New(cfg, nil); err != nil {
		t.Fatalf("New http: %v", err)
	}
	if _, ok := e.(*embedding.HTTP); !ok {
		t.Fatalf("http embedder = %T", e)
	}

	cfg.Detector.Embedder = "resnet"
	if _, err := embedding.New(cfg, nil); err == nil {
		t.Fatal("expected unsupported embedder error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	v := embedding.Vector{1, 2, 3}
	c := v.Clone()
	c[0] = 9
	if v[0] != 1 {
		t.Fatal("clone shares backing array")
	}
	if embedding.Vector(nil).Clone() != nil {
		t.Fatal("nil clone should stay nil")
	}
}
