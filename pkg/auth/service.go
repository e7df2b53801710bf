// Package auth implements face enrollment and authentication on top of a
// detector, the geometric matcher and an identity store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/logging"
	"github.com/MrCodeEU/facelogin/pkg/recognition"
	"github.com/MrCodeEU/facelogin/pkg/storage"
)

// Mode identifies the authentication entry point. Both modes share one
// decision rule and differ only in reported metadata.
type Mode string

const (
	ModeUpload Mode = "upload"
	ModeLive   Mode = "live"
)

// DebugCaption is drawn above the face in enrollment debug images.
const DebugCaption = "FACE DETECTED"

// Options configures a Service.
type Options struct {
	// DebugDir receives one annotated JPEG per enrollment.
	DebugDir string
	// Threshold is the similarity a match must exceed; recognition.DefaultThreshold
	// is the standard policy. Zero is a valid threshold.
	Threshold float64
	// Now defaults to time.Now.
	Now func() time.Time
}

// EnrollResult describes a successful enrollment.
type EnrollResult struct {
	UserID        string           `json:"user_id"`
	EnrollmentID  string           `json:"enrollment_id"`
	FacesDetected int              `json:"faces_detected"`
	FaceImage     string           `json:"face_image"`
	Region        detection.Region `json:"region"`
	Message       string           `json:"message"`
}

// AuthResult is the outcome of one authentication attempt.
// A rejection is a valid result, not an error.
type AuthResult struct {
	Authenticated bool          `json:"authenticated"`
	UserID        string        `json:"user_id,omitempty"`
	Confidence    float64       `json:"confidence"`
	LoginCount    int           `json:"login_count,omitempty"`
	FacesDetected int           `json:"faces_detected"`
	Reason        ErrorCode     `json:"reason,omitempty"`
	Message       string        `json:"message"`
	Mode          Mode          `json:"mode"`
	Duration      time.Duration `json:"-"`
}

// UserList is a read-only snapshot of the enrolled users.
type UserList struct {
	TotalUsers int                           `json:"total_users"`
	Users      map[string]storage.UserRecord `json:"users"`
}

// Service runs enrollment and authentication.
type Service struct {
	store    storage.IdentityStore
	detector detection.Detector
	matcher  *recognition.Matcher
	debugDir string
	now      func() time.Time
	log      *logrus.Entry
}

// NewService creates a service.
func NewService(store storage.IdentityStore, detector detection.Detector, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		detector: detector,
		matcher:  recognition.NewMatcher(opts.Threshold),
		debugDir: opts.DebugDir,
		now:      now,
		log:      logging.Component("auth"),
	}
}

// Detector returns the face detector in use.
func (s *Service) Detector() detection.Detector {
	return s.detector
}

// Threshold returns the similarity threshold.
func (s *Service) Threshold() float64 {
	return s.matcher.Threshold
}

// Enroll detects exactly one face in img and stores its feature vector under
// userID, replacing any previous enrollment. No state changes on failure.
func (s *Service) Enroll(ctx context.Context, userID string, img image.Image) (*EnrollResult, error) {
	if userID == "" || img == nil {
		return nil, NewAuthError(ErrCodeInvalidInput, false)
	}
	if err := storage.ValidateUserID(userID); err != nil {
		return nil, invalidInput(fmt.Sprintf("invalid user_id %q", userID), err)
	}

	bounds := img.Bounds()
	res := s.detector.Detect(img)
	region, err := res.Single()
	if err != nil {
		s.log.WithFields(logging.Fields{
			"user_id":   userID,
			"num_faces": res.Count,
		}).Warn("Enrollment rejected")
		return nil, detectionError(err, res.Count)
	}

	features := recognition.Extract(region, bounds.Dx(), bounds.Dy())
	now := s.now()

	faceImage, err := s.saveDebugImage(img, region, userID, now)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("Failed to write debug image")
		return nil, storageError(err)
	}

	rec := storage.UserRecord{
		UserID:       userID,
		Features:     features,
		RegisteredAt: now,
		EnrollmentID: uuid.NewString(),
		Detection: storage.DetectionInfo{
			FaceImage:    faceImage,
			FaceDetected: true,
			NumFaces:     res.Count,
			ImageShape:   [3]int{bounds.Dy(), bounds.Dx(), imageutil.Channels(img)},
			Region:       region,
		},
	}
	if err := s.store.Put(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrInvalidUserID) {
			return nil, invalidInput(fmt.Sprintf("invalid user_id %q", userID), err)
		}
		s.log.WithError(err).WithField("user_id", userID).Error("Failed to store enrollment")
		return nil, storageError(err)
	}

	s.log.WithFields(logging.Fields{
		"user_id":       userID,
		"enrollment_id": rec.EnrollmentID,
		"features":      features,
	}).Info("User enrolled")

	return &EnrollResult{
		UserID:        userID,
		EnrollmentID:  rec.EnrollmentID,
		FacesDetected: res.Count,
		FaceImage:     faceImage,
		Region:        region,
		Message:       fmt.Sprintf("Face enrolled successfully. %d face(s) detected", res.Count),
	}, nil
}

func (s *Service) saveDebugImage(img image.Image, region detection.Region, userID string, at time.Time) (string, error) {
	name := fmt.Sprintf("%s_%s.jpg", url.PathEscape(userID), at.Format("20060102_150405"))
	if s.debugDir == "" {
		return name, nil
	}
	annotated := imageutil.Annotate(img, region.Rect(), DebugCaption, imageutil.Green)
	if err := imageutil.SaveJPEG(annotated, filepath.Join(s.debugDir, name)); err != nil {
		return "", err
	}
	return name, nil
}

// Authenticate matches the single face in img against every enrolled user.
// Detection failures, an empty store and no-match all yield a rejected
// result. Errors are returned only for invalid input and store failures.
// On accept the matched user's last login and login count are updated.
func (s *Service) Authenticate(ctx context.Context, img image.Image, mode Mode) (*AuthResult, error) {
	start := s.now()
	if img == nil {
		return nil, invalidInput("image is required", nil)
	}
	if mode == "" {
		mode = ModeUpload
	}

	result := &AuthResult{Mode: mode}
	defer func() {
		result.Duration = s.now().Sub(start)
	}()

	bounds := img.Bounds()
	res := s.detector.Detect(img)
	result.FacesDetected = res.Count

	region, err := res.Single()
	if err != nil {
		s.reject(result, detectionCode(err))
		return result, nil
	}

	records, err := s.store.List(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to list users")
		return nil, storageError(err)
	}
	if len(records) == 0 {
		s.reject(result, ErrCodeNoUsers)
		return result, nil
	}

	query := recognition.Extract(region, bounds.Dx(), bounds.Dy())
	decision := s.matcher.Decide(query, storage.Gallery(records))
	result.Confidence = decision.Score

	s.log.WithFields(logging.Fields{
		"mode":       mode,
		"best_match": decision.UserID,
		"similarity": decision.Score,
		"threshold":  s.matcher.Threshold,
	}).Debug("Match computed")

	if !decision.Accepted {
		s.reject(result, ErrCodeNotRecognized)
		return result, nil
	}

	updated, err := s.store.Update(ctx, decision.UserID, func(rec *storage.UserRecord) error {
		rec.RecordLogin(s.now())
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Removed between the snapshot and the update.
			s.reject(result, ErrCodeNotEnrolled)
			return result, nil
		}
		s.log.WithError(err).WithField("user_id", decision.UserID).Error("Failed to record login")
		return nil, storageError(err)
	}

	result.Authenticated = true
	result.UserID = updated.UserID
	result.LoginCount = updated.LoginCount
	result.Message = successMessage(mode)

	s.log.WithFields(logging.Fields{
		"mode":        mode,
		"user_id":     updated.UserID,
		"confidence":  decision.Score,
		"login_count": updated.LoginCount,
	}).Info("Authentication accepted")
	return result, nil
}

func (s *Service) reject(result *AuthResult, code ErrorCode) {
	result.Authenticated = false
	result.Reason = code
	result.Message = GetErrorMessage(code)
	if code == ErrCodeMultipleFaces {
		result.Message = fmt.Sprintf("%s (%d detected)", result.Message, result.FacesDetected)
	}

	s.log.WithFields(logging.Fields{
		"mode":       result.Mode,
		"reason":     code,
		"num_faces":  result.FacesDetected,
		"confidence": result.Confidence,
	}).Info("Authentication rejected")
}

func successMessage(mode Mode) string {
	if mode == ModeLive {
		return "Face recognition confirmed"
	}
	return "Face login successful"
}

// ListUsers returns a snapshot of all enrolled users.
func (s *Service) ListUsers(ctx context.Context) (*UserList, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, storageError(err)
	}

	users := make(map[string]storage.UserRecord, len(records))
	for _, rec := range records {
		users[rec.UserID] = rec
	}
	return &UserList{TotalUsers: len(records), Users: users}, nil
}

// Remove deletes an enrolled user.
func (s *Service) Remove(ctx context.Context, userID string) error {
	if userID == "" {
		return invalidInput("user_id is required", nil)
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			e := NewAuthError(ErrCodeNotEnrolled, false)
			e.Err = err
			return e
		case errors.Is(err, storage.ErrInvalidUserID):
			return invalidInput(fmt.Sprintf("invalid user_id %q", userID), err)
		}
		return storageError(err)
	}

	s.log.WithField("user_id", userID).Info("User removed")
	return nil
}

func detectionCode(err error) ErrorCode {
	if errors.Is(err, detection.ErrMultipleFaces) {
		return ErrCodeMultipleFaces
	}
	return ErrCodeNoFace
}

func detectionError(err error, count int) *AuthError {
	code := detectionCode(err)
	e := NewAuthError(code, true)
	e.Err = err
	e.Details["num_faces"] = count
	if code == ErrCodeMultipleFaces {
		e.Message = fmt.Sprintf("%s (%d detected)", e.Message, count)
	}
	return e
}
