package env

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv pulls a .env file into the process environment when one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system envs")
	}
}

// GetEnv returns the value of key, or fallback when it is unset.
func GetEnv(key string, fallback string) string {
	if value, exist := os.LookupEnv(key); exist {
		return value
	}
	return fallback
}
