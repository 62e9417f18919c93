package config

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

var Redis *redis.Client
var ServiceName string = "raffle-service"
var Timezone string = "America/Caracas"

// Allocator policy constants. Fixed by design, but the config file may
// override them for staging and tests.
var HoldDuration time.Duration = 10 * time.Minute
var VerificationTimeout time.Duration = 65 * time.Second
var SweepInterval time.Duration = time.Minute

func InitializeConfig() {
	if timezone := viper.GetString("timezone"); timezone != "" {
		Timezone = timezone
	}
	if d := viper.GetDuration("allocator.hold_duration"); d > 0 {
		HoldDuration = d
	}
	if d := viper.GetDuration("allocator.sweep_interval"); d > 0 {
		SweepInterval = d
	}
	if d := viper.GetDuration("verification.timeout"); d > 0 {
		VerificationTimeout = d
	}
	Redis = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", viper.GetString("redis.host"), viper.GetString("redis.port")),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.database"),
	})
}
