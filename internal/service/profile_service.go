package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/storage"
)

// Multipart field names accepted by UploadFiles.
const (
	ProfileFieldAvatar  = "avatar"
	ProfileFieldResume  = "resume"
	ProfileFieldUploads = "uploads"
)

// ProfileSlots are the keys slotted uploads fill, in upload order.
var ProfileSlots = []string{"proposal", "report1", "report2", "final"}

var avatarExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// ProfileFile is one received multipart file and its content.
type ProfileFile struct {
	dto.ProfileUpload
	Body io.Reader
}

type profileUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type profileStatsRepository interface {
	StatsForAssignee(ctx context.Context, userID int64, today time.Time) (*models.UserTaskStats, error)
}

// ProfileService lets users maintain their own account and uploads.
type ProfileService struct {
	users     profileUserRepository
	stats     profileStatsRepository
	files     fileStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(users profileUserRepository, stats profileStatsRepository, files fileStore, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{users: users, stats: stats, files: files, validator: validate, logger: logger, now: time.Now}
}

// Get returns the actor's profile with task stats.
func (s *ProfileService) Get(ctx context.Context, actor *models.JWTClaims) (*dto.UserResponse, error) {
	user, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, user)
}

// Update applies the profile form. Blank full name, username or email keep
// the current value; blank contact fields are cleared.
func (s *ProfileService) Update(ctx context.Context, actor *models.JWTClaims, req dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	keep := func(v *string, current string) string {
		if v == nil {
			return current
		}
		if t := strings.TrimSpace(*v); t != "" {
			return t
		}
		return current
	}
	username := keep(req.Username, user.Username)
	email := keep(req.Email, user.Email)
	if email != user.Email {
		if err := s.validator.Var(email, "email"); err != nil {
			return nil, appErrors.Validation("Invalid email address.")
		}
	}
	if err := s.ensureAvailable(ctx, user.ID, username, email); err != nil {
		return nil, err
	}

	for _, v := range []*float64{req.AvatarScale, req.AvatarOffsetX, req.AvatarOffsetY} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return nil, appErrors.Validation("Invalid avatar transform values.")
		}
	}

	user.Username = username
	user.Email = email
	if full := keep(req.FullName, stringValue(user.FullName)); full != "" {
		user.FullName = &full
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = trimmedOrNil(*req.PhoneNumber)
	}
	if req.Education != nil {
		user.Education = trimmedOrNil(*req.Education)
	}
	if req.Responsibility != nil {
		user.Responsibility = trimmedOrNil(*req.Responsibility)
	}
	if req.AvatarScale != nil {
		user.AvatarScale = *req.AvatarScale
	}
	if req.AvatarOffsetX != nil {
		user.AvatarOffsetX = *req.AvatarOffsetX
	}
	if req.AvatarOffsetY != nil {
		user.AvatarOffsetY = *req.AvatarOffsetY
	}
	if req.Password != nil {
		if pw := strings.TrimSpace(*req.Password); pw != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
			if err != nil {
				return nil, appErrors.Internal(err, "failed to hash password")
			}
			user.PasswordHash = string(hash)
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to update profile")
	}
	return s.render(ctx, user)
}

// UploadFiles stores a new avatar, resume and slotted profile files. Keys in
// remove are dropped before uploads fill their slots. Nothing is written
// unless every avatar and resume passes validation; replaced files are
// deleted only after the user row is saved.
func (s *ProfileService) UploadFiles(ctx context.Context, actor *models.JWTClaims, uploads []ProfileFile, remove []string) (*dto.UserResponse, error) {
	user, err := s.load(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	var avatar, resume *ProfileFile
	var slotted []ProfileFile
	for i := range uploads {
		f := &uploads[i]
		if f.Body == nil || f.Filename == "" {
			continue
		}
		switch f.Field {
		case ProfileFieldAvatar:
			avatar = f
		case ProfileFieldResume:
			resume = f
		case ProfileFieldUploads:
			slotted = append(slotted, *f)
		}
	}

	ts := s.now().Unix()
	type pending struct {
		key  string
		file *ProfileFile
	}
	var writes []pending
	var avatarKey, resumeKey string

	if resume != nil {
		name := storage.SecureFilename(resume.Filename)
		if name == "" {
			return nil, appErrors.Validation("Invalid resume file.")
		}
		if storage.Ext(name) != ".pdf" && resume.ContentType != "application/pdf" && resume.ContentType != "application/x-pdf" {
			return nil, appErrors.Validation("Resume must be a PDF file.")
		}
		resumeKey = fmt.Sprintf("resume_%d_%d.pdf", user.ID, ts)
		writes = append(writes, pending{key: resumeKey, file: resume})
	}
	if avatar != nil {
		name := storage.SecureFilename(avatar.Filename)
		ext := storage.Ext(name)
		if name == "" || !(avatarExtensions[ext] || strings.HasPrefix(avatar.ContentType, "image/")) {
			return nil, appErrors.Validation("Avatar must be an image file.")
		}
		if ext == "" {
			ext = ".jpg"
		}
		avatarKey = fmt.Sprintf("avatar_%d_%d%s", user.ID, ts, ext)
		writes = append(writes, pending{key: avatarKey, file: avatar})
	}

	files := models.ProfileFiles{}
	for k, v := range user.ProfileFiles {
		files[k] = v
	}
	var obsolete []string
	for _, key := range remove {
		if f, ok := files[key]; ok {
			obsolete = append(obsolete, f.StoredPath)
			delete(files, key)
		}
	}
	for idx := range slotted {
		if idx >= len(ProfileSlots) {
			break
		}
		name := storage.SecureFilename(slotted[idx].Filename)
		if name == "" {
			continue
		}
		slot := ProfileSlots[idx]
		key := fmt.Sprintf("profile_%d_%s_%d%s", user.ID, slot, ts, storage.Ext(name))
		if prev, ok := files[slot]; ok {
			obsolete = append(obsolete, prev.StoredPath)
		}
		files[slot] = models.StoredFile{Filename: name, StoredPath: key}
		writes = append(writes, pending{key: key, file: &slotted[idx]})
	}

	var saved []string
	for _, w := range writes {
		if err := s.files.Save(ctx, w.key, w.file.Body, w.file.Size, w.file.ContentType); err != nil {
			s.files.Remove(ctx, saved...)
			return nil, err
		}
		saved = append(saved, w.key)
	}

	if resumeKey != "" {
		if old := stringValue(user.ResumePath); old != "" {
			obsolete = append(obsolete, old)
		}
		user.ResumePath = &resumeKey
	}
	if avatarKey != "" {
		if old := stringValue(user.AvatarPath); old != "" {
			obsolete = append(obsolete, old)
		}
		user.AvatarPath = &avatarKey
	}
	user.ProfileFiles = files

	if err := s.users.Update(ctx, user); err != nil {
		s.files.Remove(ctx, saved...)
		return nil, appErrors.Internal(err, "failed to update profile files")
	}
	if len(obsolete) > 0 {
		s.files.Remove(ctx, obsolete...)
	}
	s.logger.Info("profile files updated",
		zap.Int64("user_id", user.ID),
		zap.Int("saved", len(saved)),
		zap.Int("removed", len(obsolete)),
	)
	return s.render(ctx, user)
}

func (s *ProfileService) load(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found.")
		}
		return nil, appErrors.Internal(err, "failed to load profile")
	}
	return user, nil
}

func (s *ProfileService) ensureAvailable(ctx context.Context, selfID int64, username, email string) error {
	if u, err := s.users.FindByUsername(ctx, username); err == nil && u.ID != selfID {
		return appErrors.Clone(appErrors.ErrConflict, "Username already taken.")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Internal(err, "failed to check username")
	}
	if u, err := s.users.FindByEmail(ctx, email); err == nil && u.ID != selfID {
		return appErrors.Clone(appErrors.ErrConflict, "Email already in use.")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Internal(err, "failed to check email")
	}
	return nil
}

func (s *ProfileService) render(ctx context.Context, user *models.User) (*dto.UserResponse, error) {
	resp := userResponse(user, s.files)
	if s.stats != nil {
		st, err := s.stats.StatsForAssignee(ctx, user.ID, dateOnly(s.now()))
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load task stats")
		}
		st.Compute()
		resp.Stats = st
	}
	return &resp, nil
}
