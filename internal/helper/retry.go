package helper

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Retry runs fn up to attempts times, sleeping delay between tries. The
// last error is returned when every attempt fails.
func Retry(attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			log.Warn().Err(err).Int("attempt", i+1).Msg("Retrying store commit")
			time.Sleep(delay)
		}
	}
	return err
}
