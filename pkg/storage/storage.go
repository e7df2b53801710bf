// Package storage persists enrolled users and their face descriptors.
// The file backend can encrypt records at rest using NaCl secretbox.
package storage

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MrCodeEU/facelogin/pkg/detection"
	"github.com/MrCodeEU/facelogin/pkg/recognition"
)

// DetectionInfo is the raw detection metadata kept with an enrollment.
type DetectionInfo struct {
	FaceImage    string           `json:"face_image"`
	FaceDetected bool             `json:"face_detected"`
	NumFaces     int              `json:"num_faces"`
	ImageShape   [3]int           `json:"image_shape"` // height, width, channels
	Region       detection.Region `json:"region"`
}

// UserRecord is one enrolled user.
type UserRecord struct {
	UserID       string                    `json:"user_id"`
	Features     recognition.FeatureVector `json:"face_features"`
	RegisteredAt time.Time                 `json:"registered_at"`
	LastLogin    *time.Time                `json:"last_login"`
	LoginCount   int                       `json:"login_count"`
	EnrollmentID string                    `json:"enrollment_id"`
	Detection    DetectionInfo             `json:"detection"`
}

// Clone returns a copy that shares no memory with r.
func (r UserRecord) Clone() UserRecord {
	if r.LastLogin != nil {
		t := *r.LastLogin
		r.LastLogin = &t
	}
	return r
}

// RecordLogin stamps a successful authentication.
func (r *UserRecord) RecordLogin(at time.Time) {
	r.LastLogin = &at
	r.LoginCount++
}

// IdentityStore is the repository of enrolled users.
type IdentityStore interface {
	// Get returns one record or ErrUserNotFound.
	Get(ctx context.Context, userID string) (*UserRecord, error)
	// Put creates or replaces a record.
	Put(ctx context.Context, rec UserRecord) error
	// List returns a snapshot of all records ordered by user id.
	List(ctx context.Context) ([]UserRecord, error)
	// Update atomically loads a record, applies fn and stores the result.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, userID string, fn func(*UserRecord) error) (*UserRecord, error)
	// Delete removes a record or returns ErrUserNotFound.
	Delete(ctx context.Context, userID string) error
}

// ErrUserNotFound is returned when the user is not enrolled.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidUserID is returned for user ids that cannot be stored.
var ErrInvalidUserID = errors.New("invalid user id")

// ErrStorageAccess is returned when storage cannot be accessed.
var ErrStorageAccess = errors.New("failed to access storage")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// MaxEscapedUserIDLen bounds the path-escaped form of a user id, which
// names record files and debug images and must fit NAME_MAX with a suffix.
const MaxEscapedUserIDLen = 200

// ValidateUserID rejects ids that are empty, padded, path components or too
// long to use as a file name once escaped.
func ValidateUserID(userID string) error {
	switch {
	case userID == "", userID == ".", userID == "..":
		return ErrInvalidUserID
	case strings.TrimSpace(userID) != userID:
		return ErrInvalidUserID
	case len(userID) > 128:
		return ErrInvalidUserID
	case len(url.PathEscape(userID)) > MaxEscapedUserIDLen:
		return ErrInvalidUserID
	}
	return nil
}

// Gallery maps user ids to their feature vectors for matching.
func Gallery(records []UserRecord) map[string]recognition.FeatureVector {
	gallery := make(map[string]recognition.FeatureVector, len(records))
	for _, rec := range records {
		gallery[rec.UserID] = rec.Features
	}
	return gallery
}

// UserIDs returns the sorted ids of records.
func UserIDs(records []UserRecord) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.UserID)
	}
	sort.Strings(ids)
	return ids
}

func sortRecords(records []UserRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})
}
