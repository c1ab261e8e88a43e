// Package config 는 환경 변수로 설정 값을 덮어쓰기 위한 viper 래퍼입니다.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 는 설정 값 조회 메서드를 정의합니다.
type Config interface {
	IsSet(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
}

type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) IsSet(key string) bool { return c.v.IsSet(key) }
func (c *viperConfig) GetString(key string) string { return c.v.GetString(key) }
func (c *viperConfig) GetInt(key string) int { return c.v.GetInt(key) }
func (c *viperConfig) GetBool(key string) bool { return c.v.GetBool(key) }
func (c *viperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }

// NewEnvOverlay 는 환경 변수만 읽는 Config 를 생성합니다.
// 키의 "." 은 "_" 로 바뀌고 prefix 가 붙습니다. 예: prefix "billing", 키 "stripe.secret_key"
// -> BILLING_STRIPE_SECRET_KEY
func NewEnvOverlay(prefix string) Config {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(prefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &viperConfig{v: v}
}
