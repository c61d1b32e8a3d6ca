package service

import (
	"errors"

	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo      *repository.UserRepository
	CandidateRepo *repository.CandidateRepository
	Cfg           *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, candidateRepo *repository.CandidateRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:      userRepo,
		CandidateRepo: candidateRepo,
		Cfg:           cfg,
	}
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login 校验密码并签发 JWT；候选人账号会把候选人档案 id 写入 token
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Disabled {
		return nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	var candidateID uint
	if user.Role == model.RoleCandidate {
		c, err := s.CandidateRepo.FindByUserID(user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if c != nil {
			candidateID = c.ID
		}
	}

	token, err := util.GenerateJWT(user, candidateID, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// HashPassword 供初始化账号使用
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
