package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	// TCP chat listener
	v.SetDefault("server.addr", ":5555")
	v.SetDefault("server.max_frame_size", 16<<20)
	v.SetDefault("server.send_queue_size", 256)

	// Health, metrics and WebSocket gateway
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:8080"})

	// Rate limiting
	v.SetDefault("rate_limit.burst", 50)
	v.SetDefault("rate_limit.refill_interval", time.Second)

	v.SetDefault("history.limit", 0)
	v.SetDefault("shutdown.timeout", 5*time.Second)
}
