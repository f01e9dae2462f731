package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"tamperwatch/internal/logging"
	"tamperwatch/internal/tamper"
)

// Session is the per-pass view of one camera after setup.
type Session struct {
	CameraID       string
	WatchDir       string
	ReferenceDir   string
	ReferenceImage string
	Threshold      float64
	// ReferenceReused is true when the key frame was unchanged since the
	// previous pass and was not embedded again.
	ReferenceReused bool
}

// DecodeFunc loads an image from disk.
type DecodeFunc func(path string) (image.Image, error)

// Sessions prepares the detector of a camera before each evaluation.
type Sessions struct {
	referenceDirs []string
	picker        *Picker
	thresholds    Thresholds
	registry      *Registry
	decode        DecodeFunc
	logger        *slog.Logger

	refs map[string]referenceKey
}

// referenceKey identifies the key frame a detector currently holds.
type referenceKey struct {
	path    string
	size    int64
	modTime time.Time
}

// NewSessions wires session setup.
func NewSessions(referenceDirs []string, picker *Picker, thresholds Thresholds, registry *Registry, decode DecodeFunc, logger *slog.Logger) *Sessions {
	return &Sessions{
		referenceDirs: append([]string(nil), referenceDirs...),
		picker:        picker,
		thresholds:    thresholds,
		registry:      registry,
		decode:        decode,
		logger:        logging.NewComponentLogger(logger, "camera"),
		refs:          make(map[string]referenceKey),
	}
}

// Setup resolves the reference folder of watchDir, applies the effective
// threshold, and loads the newest reference image into the camera's
// detector. The threshold is applied on every call so an override can never
// carry over to another camera or outlive a config change.
//
// Errors: ErrNotFound when no reference folder matches, ErrNoImage (also
// matching tamper.ErrReferenceUnavailable) when the reference folder is empty,
// tamper.ErrReferenceUnavailable when the key frame cannot be decoded, and
// tamper.ErrDegenerateEmbedding when it embeds to a zero vector.
func (s *Sessions) Setup(ctx context.Context, watchDir string) (*Session, *tamper.Detector, error) {
	refDir, err := ResolveReferenceDir(watchDir, s.referenceDirs)
	if err != nil {
		return nil, nil, err
	}

	session := &Session{
		CameraID:     ID(watchDir),
		WatchDir:     watchDir,
		ReferenceDir: refDir,
		Threshold:    s.thresholds.For(ID(watchDir)),
	}

	refImage, err := s.picker.Newest(refDir)
	if err != nil {
		if errors.Is(err, ErrNoImage) {
			return session, nil, errors.Join(err, tamper.ErrReferenceUnavailable)
		}
		return session, nil, fmt.Errorf("%w: %v", tamper.ErrReferenceUnavailable, err)
	}
	session.ReferenceImage = refImage

	det := s.registry.Get(watchDir)
	if err := det.SetThreshold(session.Threshold); err != nil {
		return session, nil, err
	}

	key, err := statReference(refImage)
	if err != nil {
		return session, nil, fmt.Errorf("%w: %v", tamper.ErrReferenceUnavailable, err)
	}
	if prev, ok := s.refs[watchDir]; ok && prev == key && det.HasReference() {
		session.ReferenceReused = true
		return session, det, nil
	}

	img, err := s.decode(refImage)
	if err != nil {
		return session, nil, fmt.Errorf("%w: %v", tamper.ErrReferenceUnavailable, err)
	}
	if err := det.SetReference(ctx, img); err != nil {
		delete(s.refs, watchDir)
		return session, nil, err
	}
	s.refs[watchDir] = key
	s.logger.Info("reference frame loaded",
		logging.String(logging.FieldEventType, "reference_loaded"),
		logging.String(logging.FieldCameraID, session.CameraID),
		logging.String("reference_image", refImage),
		logging.Float64("threshold", session.Threshold),
	)
	return session, det, nil
}

// Thresholds returns the resolver used by Setup.
func (s *Sessions) Thresholds() Thresholds {
	return s.thresholds
}

// Registry returns the detector registry used by Setup.
func (s *Sessions) Registry() *Registry {
	return s.registry
}

func statReference(path string) (referenceKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return referenceKey{}, err
	}
	return referenceKey{path: path, size: info.Size(), modTime: info.ModTime()}, nil
}
