package service

import (
	"errors"
	"strings"

	"github.com/teelab-next/internal/config"
	"github.com/teelab-next/internal/constants"

	"github.com/mojocn/base64Captcha"
)

var (
	ErrCaptchaRequired = errors.New("captcha required")
	ErrCaptchaInvalid  = errors.New("captcha invalid")
)

// CaptchaVerifyPayload 验证码校验请求载荷
type CaptchaVerifyPayload struct {
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// CaptchaImageChallenge 图片验证码挑战
type CaptchaImageChallenge struct {
	CaptchaID   string `json:"captcha_id"`
	ImageBase64 string `json:"image_base64"`
}

// CaptchaService 验证码服务，按场景开关决定是否校验
type CaptchaService struct {
	cfg        config.CaptchaConfig
	imageStore base64Captcha.Store
}

// NewCaptchaService 创建验证码服务
func NewCaptchaService(cfg config.CaptchaConfig) *CaptchaService {
	return &CaptchaService{
		cfg:        cfg,
		imageStore: base64Captcha.DefaultMemStore,
	}
}

// Enabled 判断场景是否启用验证码
func (s *CaptchaService) Enabled(scene string) bool {
	if strings.EqualFold(s.cfg.Provider, constants.CaptchaProviderNone) || s.cfg.Provider == "" {
		return false
	}
	switch scene {
	case constants.CaptchaSceneGuestPreview:
		return s.cfg.GuestPreview
	default:
		return false
	}
}

// GenerateImageChallenge 生成图片验证码
func (s *CaptchaService) GenerateImageChallenge() (*CaptchaImageChallenge, error) {
	driver := base64Captcha.NewDriverDigit(80, 240, 5, 0.7, 80)
	captcha := base64Captcha.NewCaptcha(driver, s.imageStore)
	id, b64, _, err := captcha.Generate()
	if err != nil {
		return nil, err
	}
	return &CaptchaImageChallenge{CaptchaID: id, ImageBase64: b64}, nil
}

// Verify 校验验证码，场景未启用时直接放行
func (s *CaptchaService) Verify(scene string, payload CaptchaVerifyPayload) error {
	if !s.Enabled(scene) {
		return nil
	}
	if strings.TrimSpace(payload.CaptchaID) == "" || strings.TrimSpace(payload.CaptchaCode) == "" {
		return ErrCaptchaRequired
	}
	if !s.imageStore.Verify(payload.CaptchaID, strings.TrimSpace(payload.CaptchaCode), true) {
		return ErrCaptchaInvalid
	}
	return nil
}
