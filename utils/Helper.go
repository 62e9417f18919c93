package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	mathRand "math/rand"
	"time"
	"unsafe"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/viper"
)

var IsTestMode bool = false
var ctx = context.Background()

// LogStore receives a copy of every log line so /logs can serve the recent
// tail. nil is fine: logging then only goes to stdout.
var LogStore *redis.Client

const logListKey = "service_logs"
const logListMax = 1000

const (
	INFO     = "info"
	ERROR    = "error"
	CRITICAL = "critical"
)

type Logger struct {
	LogLevel    string
	Message     string
	ServiceName string
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

func RandString(n int) string {
	var src = mathRand.NewSource(time.Now().UnixNano())
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return *(*string)(unsafe.Pointer(&b))
}

// preventing application from crashing abruptly. use defer PanicRecover() on top of the codes that may cause panic
func PanicRecover() {
	if r := recover(); r != nil {
		log.Println("Recovered from panic: ", r)
	}
}

func InitializeViper(configName string, configType string) {
	viper.SetConfigName(configName)
	if IsTestMode {
		fmt.Println("Running in Test mode...")
		viper.AddConfigPath("../")
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/app")
	}
	viper.AutomaticEnv()
	viper.SetConfigType(configType)
	if viper.AllKeys() == nil {
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal("Error reading config file, ", err)
		}
	} else {
		if err := viper.MergeInConfig(); err != nil {
			log.Fatalf("Error reading config file 2, %s", err)
		}
	}
}

// LogMessage writes a traceable log line to stdout and mirrors it into a
// capped Redis list for the /logs endpoint.
func LogMessage(logLevel string, message string, service string, forcedTraceId ...string) string {
	traceId := RandString(12)
	if len(forcedTraceId) != 0 && forcedTraceId[0] != "" {
		traceId = forcedTraceId[0]
	}
	line := fmt.Sprintf("%s [%s] [%s] [%s] %s", time.Now().Format(time.DateTime), logLevel, service, traceId, message)
	log.Println(line)
	if LogStore != nil {
		pipe := LogStore.Pipeline()
		pipe.LPush(ctx, logListKey, line)
		pipe.LTrim(ctx, logListKey, 0, logListMax-1)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("LogMessage: unable to persist log line: %v", err)
		}
	}
	return traceId
}

// RecentLogs returns the newest stored log lines, newest first.
func RecentLogs(limit int64) ([]string, error) {
	if LogStore == nil {
		return nil, errors.New("log store is not configured")
	}
	return LogStore.LRange(ctx, logListKey, 0, limit-1).Result()
}

func JsonErrorResponse(c *fiber.Ctx, status int, message string, logger ...Logger) error {
	if len(logger) != 0 {
		LogMessage(logger[0].LogLevel, logger[0].Message, logger[0].ServiceName)
	}
	c.SendStatus(status)
	return c.JSON(fiber.Map{"status": status, "message": message})
}

// IsErrDuplicate reports whether err is a unique-constraint violation and
// returns the constraint name.
func IsErrDuplicate(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true, pgErr.ConstraintName
	}
	return false, ""
}

// IsForeignKeyErr reports whether err is a foreign-key violation and returns
// the constraint name.
func IsForeignKeyErr(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return true, pgErr.ConstraintName
	}
	return false, ""
}

func RedisHealthCheck(client *redis.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(checkCtx).Err()
}
