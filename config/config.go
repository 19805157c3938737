package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ApiPort         int
	InterceptorPort int
	ServicePort     *int

	RedisAddr string

	TokenIssuer    string
	TokenAudience  string
	PrivateKeyFile string

	MfaIssuer string

	DirectoryFile string

	WorkingHoursStart string
	WorkingHoursEnd   string
	PolicyTimezone    *time.Location
}

func GetAppConfig() *Config {
	return &Config{
		ApiPort:           getEnvAsInt("GATE_API_PORT"),
		InterceptorPort:   getEnvAsInt("GATE_INTERCEPTOR_PORT"),
		ServicePort:       getOptionalEnvAsInt("SERVICE_PORT"),
		RedisAddr:         getOptionalEnv("REDIS_ADDR"),
		TokenIssuer:       getEnvOrDefault("TOKEN_ISSUER", "access-gate"),
		TokenAudience:     getEnvOrDefault("TOKEN_AUDIENCE", "secureteam-web"),
		PrivateKeyFile:    getOptionalEnv("TOKEN_PRIVATE_KEY_FILE"),
		MfaIssuer:         getEnvOrDefault("MFA_ISSUER", "SecureTeamAccess"),
		DirectoryFile:     getOptionalEnv("SUBJECT_DIRECTORY_FILE"),
		WorkingHoursStart: getEnvOrDefault("WORKING_HOURS_START", "09:00"),
		WorkingHoursEnd:   getEnvOrDefault("WORKING_HOURS_END", "18:00"),
		PolicyTimezone:    getEnvAsLocation("POLICY_TIMEZONE"),
	}
}

func getEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		panic(fmt.Sprintf("%s environment variable not set", key))
	}

	return value
}

func getOptionalEnv(key string) string {
	value, _ := os.LookupEnv(key)

	return value
}

func getEnvOrDefault(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string) int {
	valueStr := getEnv(key)
	valueInt, err := strconv.Atoi(valueStr)

	if err != nil {
		panic(fmt.Sprintf("Error converting %s to integer: %v", key, err))
	}

	return valueInt
}

func getOptionalEnvAsInt(key string) *int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return nil
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(fmt.Sprintf("Error converting %s to integer: %v", key, err))
	}

	return &valueInt
}

func getEnvAsLocation(key string) *time.Location {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return time.Local
	}

	location, err := time.LoadLocation(valueStr)
	if err != nil {
		panic(fmt.Sprintf("Error loading %s timezone: %v", key, err))
	}

	return location
}
