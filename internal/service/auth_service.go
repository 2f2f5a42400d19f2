package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/internal/entity"
	"cubie-assistant-be/internal/pkg/logger"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type IAuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.LoginResponse, error)
}

type authService struct {
	db        *gorm.DB
	jwtSecret string
	tokenTTL  time.Duration
	logger    logger.ILogger
}

func NewAuthService(db *gorm.DB, jwtSecret string, log logger.ILogger) IAuthService {
	return &authService{
		db:        db,
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
		logger:    log,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)

	var profile entity.UserProfile
	err := s.db.WithContext(ctx).
		Where("LOWER(user_name) = ?", strings.ToLower(username)).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("auth", "Login attempt for unknown user", map[string]interface{}{"username": username, "ip": ipAddress})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	var credential entity.UserCredential
	if err := s.db.WithContext(ctx).Where("oid = ?", profile.OID).First(&credential).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("auth", "Password mismatch", map[string]interface{}{"username": username, "ip": ipAddress})
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  profile.OID,
		"username": profile.UserName,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&entity.UserCredential{}).
		Where("oid = ?", profile.OID).
		Update("last_login", now).Error; err != nil {
		// login still succeeds; the timestamp is advisory
		s.logger.Warn("auth", "Failed to record last login", map[string]interface{}{"username": username, "error": err.Error()})
	}

	s.logger.Info("auth", "User logged in", map[string]interface{}{"username": profile.UserName, "ip": ipAddress, "user_agent": userAgent})

	return &dto.LoginResponse{
		Token:    token,
		Username: profile.UserName,
		Email:    profile.EmailId,
	}, nil
}
