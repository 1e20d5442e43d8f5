package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	// Set default values
	v.SetDefault("capture.frame_budget", 90)
	v.SetDefault("capture.still_quality", 0.95)
	v.SetDefault("capture.still_box", 512)
	v.SetDefault("capture.max_dimension", 1920)
	v.SetDefault("capture.upscale_target", 4.0)
	v.SetDefault("capture.bitrate", 8_000_000)
	v.SetDefault("capture.fps", 30)
	v.SetDefault("capture.seek_timeout_ms", 2000)
	v.SetDefault("capture.watchdog_grace_ms", 5000)
	v.SetDefault("capture.mute_restore_delay_ms", 200)

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffprobe.path", "ffprobe")

	v.SetDefault("serve.addr", "localhost:28110")

	// Set default vidcap home directory
	v.SetDefault("vidcap.home", filepath.Join(xdg.Home, ".vidcap"))

	// Preset file path is resolved from vidcap.home unless set explicitly
	v.SetDefault("preset.path", "")

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("capture.frame_budget", "VIDCAP_FRAME_BUDGET")
	v.BindEnv("capture.bitrate", "VIDCAP_BITRATE")
	v.BindEnv("capture.fps", "VIDCAP_FPS")
	v.BindEnv("ffmpeg.path", "VIDCAP_FFMPEG", "FFMPEG_PATH")
	v.BindEnv("ffprobe.path", "VIDCAP_FFPROBE", "FFPROBE_PATH")
	v.BindEnv("serve.addr", "VIDCAP_SERVE_ADDR")
	v.BindEnv("vidcap.home", "VIDCAP_HOME")
	v.BindEnv("preset.path", "VIDCAP_PRESET_PATH")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		"$HOME/.vidcap",
		"/etc/vidcap",
	}

	for _, path := range configPaths {
		expandedPath := os.ExpandEnv(path)
		v.AddConfigPath(expandedPath)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore error and use defaults
	}
}

// GetFrameBudget returns the default still-frame budget per sampling run
func GetFrameBudget() int {
	return v.GetInt("capture.frame_budget")
}

// GetStillQuality returns the JPEG quality factor for still frames (0..1)
func GetStillQuality() float64 {
	return v.GetFloat64("capture.still_quality")
}

// GetStillBox returns the side of the square bounding box for still frames
func GetStillBox() int {
	return v.GetInt("capture.still_box")
}

// GetMaxDimension returns the maximum rendered dimension for clip capture
func GetMaxDimension() int {
	return v.GetInt("capture.max_dimension")
}

// GetUpscaleTarget returns the default upscale factor for clip capture
func GetUpscaleTarget() float64 {
	return v.GetFloat64("capture.upscale_target")
}

// GetBitrate returns the target clip bitrate in bits per second
func GetBitrate() int {
	return v.GetInt("capture.bitrate")
}

// GetCaptureFPS returns the capture framerate
func GetCaptureFPS() int {
	return v.GetInt("capture.fps")
}

// GetSeekTimeout returns the advisory seek-confirmation timeout
func GetSeekTimeout() time.Duration {
	return time.Duration(v.GetInt("capture.seek_timeout_ms")) * time.Millisecond
}

// GetWatchdogGrace returns the grace added to the clip duration for the
// recording watchdog
func GetWatchdogGrace() time.Duration {
	return time.Duration(v.GetInt("capture.watchdog_grace_ms")) * time.Millisecond
}

// GetMuteRestoreDelay returns the delay before the source mute flag is restored
func GetMuteRestoreDelay() time.Duration {
	return time.Duration(v.GetInt("capture.mute_restore_delay_ms")) * time.Millisecond
}

// GetFFmpegPath returns the ffmpeg binary path
func GetFFmpegPath() string {
	return v.GetString("ffmpeg.path")
}

// GetFFprobePath returns the ffprobe binary path
func GetFFprobePath() string {
	return v.GetString("ffprobe.path")
}

// GetServeAddr returns the listen address for serve mode
func GetServeAddr() string {
	return v.GetString("serve.addr")
}

// GetVidcapHome returns the vidcap home directory
func GetVidcapHome() string {
	return v.GetString("vidcap.home")
}

// GetPresetPath returns the preset file path
func GetPresetPath() string {
	// If preset.path is explicitly set, use it
	if presetPath := v.GetString("preset.path"); presetPath != "" {
		return presetPath
	}

	// Otherwise, use vidcap.home + "/presets.toml"
	return filepath.Join(GetVidcapHome(), "presets.toml")
}
