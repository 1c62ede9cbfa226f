package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"
)

const (
	// defaults
	TranscribeAPIDefault      = TranscribeAPIWhisperCPP
	ModelSizeDefault          = ModelSizeMedium
	MaxDurationSecDefault     = 600
	TruncDurationSecDefault   = 600
	RemixFactorDefault        = 0.3
	SpamCountThresholdDefault = 2
	MarkerDirDefault          = "./markers"
	VADModelPathDefault       = "./models/silero_vad.onnx"
	ListenAddrDefault         = ":8889"
	GladiaBaseURLDefault      = "https://api.gladia.io"
)

// SpamPhrasesDefault is the deployment-tuned denylist of known spam phrases
// (Vietnamese channel-subscribe solicitations plus one channel name).
var SpamPhrasesDefault = []string{"Hãy đăng ký kênh", "subscribe cho", "Ghiền Mì Gõ"}

type TranscribeAPI string

const (
	TranscribeAPIWhisperCPP TranscribeAPI = "whisper.cpp"
	TranscribeAPIGladia                   = "gladia"
)

func (a TranscribeAPI) IsValid() bool {
	switch a {
	case TranscribeAPIWhisperCPP, TranscribeAPIGladia:
		return true
	default:
		return false
	}
}

type ModelSize string

const (
	ModelSizeTiny   ModelSize = "tiny"
	ModelSizeBase             = "base"
	ModelSizeSmall            = "small"
	ModelSizeMedium           = "medium"
	ModelSizeLarge            = "large"
)

func (p ModelSize) IsValid() bool {
	switch p {
	case ModelSizeTiny, ModelSizeBase, ModelSizeSmall, ModelSizeMedium, ModelSizeLarge:
		return true
	default:
		return false
	}
}

type R2Config struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// IsEnabled reports whether result uploads to object storage are configured.
func (c R2Config) IsEnabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

func (c R2Config) IsValid() error {
	if !c.IsEnabled() {
		return nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("R2Endpoint parsing failed: %w", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("R2Endpoint parsing failed: invalid scheme %q", u.Scheme)
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return fmt.Errorf("R2 credentials cannot be empty")
	}
	return nil
}

type Config struct {
	// backend config
	TranscribeAPI TranscribeAPI
	ModelFile     string
	ModelSize     ModelSize
	NumThreads    int
	NumRuns       int

	// pipeline config
	MaxDurationSec   int
	TruncDurationSec int
	// RemixFactor weights the non-vocal stems in the subtitle remix.
	// 0 keeps the vocals alone; negative means unset.
	RemixFactor        float64
	DisableSeparation  bool
	DisableVAD         bool
	DisableSpeechNorm  bool
	MarkerDir          string
	VADModelPath       string
	FFmpegBinary       string
	DemucsBinary       string
	DemucsModel        string
	SpamPhrases        []string
	SpamCountThreshold int
	SRTOptions         transcribe.SRTOptions

	// remote API config
	GladiaAPIKey  string
	GladiaBaseURL string

	// HTTP config
	ListenAddr     string
	AllowedOrigins []string

	// object storage config
	R2 R2Config
}

func (cfg Config) IsValid() error {
	if !cfg.TranscribeAPI.IsValid() {
		return fmt.Errorf("TranscribeAPI value is not valid")
	}

	if cfg.TranscribeAPI == TranscribeAPIWhisperCPP {
		if cfg.ModelFile == "" {
			return fmt.Errorf("ModelFile cannot be empty")
		}
		if !cfg.ModelSize.IsValid() {
			return fmt.Errorf("ModelSize value is not valid")
		}
	}

	if cfg.TranscribeAPI == TranscribeAPIGladia && cfg.GladiaAPIKey == "" {
		return fmt.Errorf("GladiaAPIKey cannot be empty")
	}

	if numCPU := runtime.NumCPU(); cfg.NumThreads < 1 || cfg.NumThreads > numCPU {
		return fmt.Errorf("NumThreads should be in the range [1, %d]", numCPU)
	}

	if cfg.NumRuns < 1 {
		return fmt.Errorf("NumRuns should be a positive number")
	}

	if cfg.MaxDurationSec <= 0 {
		return fmt.Errorf("MaxDurationSec should be a positive number")
	}

	if cfg.TruncDurationSec <= 0 {
		return fmt.Errorf("TruncDurationSec should be a positive number")
	}

	if cfg.RemixFactor < 0 || cfg.RemixFactor > 1 {
		return fmt.Errorf("RemixFactor should be in the range [0, 1]")
	}

	if cfg.SpamCountThreshold < 0 {
		return fmt.Errorf("SpamCountThreshold should not be negative")
	}

	if cfg.GladiaBaseURL != "" {
		u, err := url.Parse(cfg.GladiaBaseURL)
		if err != nil {
			return fmt.Errorf("GladiaBaseURL parsing failed: %w", err)
		} else if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("GladiaBaseURL parsing failed: invalid scheme %q", u.Scheme)
		}
	}

	if cfg.ListenAddr == "" {
		return fmt.Errorf("ListenAddr cannot be empty")
	}

	if err := cfg.SRTOptions.IsValid(); err != nil {
		return err
	}

	return cfg.R2.IsValid()
}

func (cfg *Config) SetDefaults() {
	if cfg.TranscribeAPI == "" {
		cfg.TranscribeAPI = TranscribeAPIDefault
	}

	if cfg.ModelSize == "" {
		cfg.ModelSize = ModelSizeDefault
	}

	if cfg.NumThreads == 0 {
		cfg.NumThreads = max(1, runtime.NumCPU()/2)
	}

	if cfg.NumRuns == 0 {
		cfg.NumRuns = 1
	}

	if cfg.MaxDurationSec == 0 {
		cfg.MaxDurationSec = MaxDurationSecDefault
	}

	if cfg.TruncDurationSec == 0 {
		cfg.TruncDurationSec = TruncDurationSecDefault
	}

	// 0 is a meaningful value (vocals only), so unset is negative.
	if cfg.RemixFactor < 0 {
		cfg.RemixFactor = RemixFactorDefault
	}

	if cfg.MarkerDir == "" {
		cfg.MarkerDir = MarkerDirDefault
	}

	if cfg.VADModelPath == "" {
		cfg.VADModelPath = VADModelPathDefault
	}

	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}

	if cfg.DemucsBinary == "" {
		cfg.DemucsBinary = "demucs"
	}

	if cfg.DemucsModel == "" {
		cfg.DemucsModel = "htdemucs"
	}

	if cfg.SpamPhrases == nil {
		cfg.SpamPhrases = SpamPhrasesDefault
	}

	if cfg.SpamCountThreshold == 0 {
		cfg.SpamCountThreshold = SpamCountThresholdDefault
	}

	if cfg.GladiaBaseURL == "" {
		cfg.GladiaBaseURL = GladiaBaseURLDefault
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ListenAddrDefault
	}

	if cfg.SRTOptions == (transcribe.SRTOptions{}) {
		cfg.SRTOptions.SetDefaults()
	}
}

func (cfg Config) ToEnv() []string {
	vars := []string{
		fmt.Sprintf("TRANSCRIBE_API=%s", cfg.TranscribeAPI),
		fmt.Sprintf("MODEL_FILE=%s", cfg.ModelFile),
		fmt.Sprintf("MODEL_SIZE=%s", cfg.ModelSize),
		fmt.Sprintf("NUM_THREADS=%d", cfg.NumThreads),
		fmt.Sprintf("NUM_RUNS=%d", cfg.NumRuns),
		fmt.Sprintf("MAX_DURATION_SEC=%d", cfg.MaxDurationSec),
		fmt.Sprintf("TRUNC_DURATION_SEC=%d", cfg.TruncDurationSec),
		fmt.Sprintf("REMIX_FACTOR=%f", cfg.RemixFactor),
		fmt.Sprintf("DISABLE_SEPARATION=%t", cfg.DisableSeparation),
		fmt.Sprintf("DISABLE_VAD=%t", cfg.DisableVAD),
		fmt.Sprintf("DISABLE_SPEECHNORM=%t", cfg.DisableSpeechNorm),
		fmt.Sprintf("MARKER_DIR=%s", cfg.MarkerDir),
		fmt.Sprintf("VAD_MODEL_PATH=%s", cfg.VADModelPath),
		fmt.Sprintf("FFMPEG_BINARY=%s", cfg.FFmpegBinary),
		fmt.Sprintf("DEMUCS_BINARY=%s", cfg.DemucsBinary),
		fmt.Sprintf("DEMUCS_MODEL=%s", cfg.DemucsModel),
		fmt.Sprintf("SPAM_PHRASES=%s", strings.Join(cfg.SpamPhrases, "|")),
		fmt.Sprintf("SPAM_COUNT_THRESHOLD=%d", cfg.SpamCountThreshold),
		fmt.Sprintf("SRT_MAX_LINE_WIDTH=%d", cfg.SRTOptions.MaxLineWidth),
		fmt.Sprintf("SRT_MAX_LINE_COUNT=%d", cfg.SRTOptions.MaxLineCount),
		fmt.Sprintf("GLADIA_API_KEY=%s", cfg.GladiaAPIKey),
		fmt.Sprintf("GLADIA_BASE_URL=%s", cfg.GladiaBaseURL),
		fmt.Sprintf("LISTEN_ADDR=%s", cfg.ListenAddr),
		fmt.Sprintf("ALLOWED_ORIGINS=%s", strings.Join(cfg.AllowedOrigins, ",")),
		fmt.Sprintf("R2_ENDPOINT=%s", cfg.R2.Endpoint),
		fmt.Sprintf("R2_BUCKET=%s", cfg.R2.Bucket),
		fmt.Sprintf("R2_ACCESS_KEY_ID=%s", cfg.R2.AccessKeyID),
		fmt.Sprintf("R2_SECRET_ACCESS_KEY=%s", cfg.R2.SecretAccessKey),
		fmt.Sprintf("R2_PUBLIC_BASE_URL=%s", cfg.R2.PublicBaseURL),
	}
	return vars
}

func FromEnv() (Config, error) {
	var cfg Config

	if val := os.Getenv("TRANSCRIBE_API"); val != "" {
		cfg.TranscribeAPI = TranscribeAPI(val)
	}
	cfg.ModelFile = os.Getenv("MODEL_FILE")
	if val := os.Getenv("MODEL_SIZE"); val != "" {
		cfg.ModelSize = ModelSize(val)
	}
	cfg.NumThreads, _ = strconv.Atoi(os.Getenv("NUM_THREADS"))
	cfg.NumRuns, _ = strconv.Atoi(os.Getenv("NUM_RUNS"))

	cfg.MaxDurationSec, _ = strconv.Atoi(os.Getenv("MAX_DURATION_SEC"))
	cfg.TruncDurationSec, _ = strconv.Atoi(os.Getenv("TRUNC_DURATION_SEC"))
	if val := os.Getenv("REMIX_FACTOR"); val != "" {
		cfg.RemixFactor, _ = strconv.ParseFloat(val, 64)
	} else {
		cfg.RemixFactor = -1
	}
	cfg.DisableSeparation, _ = strconv.ParseBool(os.Getenv("DISABLE_SEPARATION"))
	cfg.DisableVAD, _ = strconv.ParseBool(os.Getenv("DISABLE_VAD"))
	cfg.DisableSpeechNorm, _ = strconv.ParseBool(os.Getenv("DISABLE_SPEECHNORM"))
	cfg.MarkerDir = os.Getenv("MARKER_DIR")
	cfg.VADModelPath = os.Getenv("VAD_MODEL_PATH")
	cfg.FFmpegBinary = os.Getenv("FFMPEG_BINARY")
	cfg.DemucsBinary = os.Getenv("DEMUCS_BINARY")
	cfg.DemucsModel = os.Getenv("DEMUCS_MODEL")
	if val := os.Getenv("SPAM_PHRASES"); val != "" {
		cfg.SpamPhrases = strings.Split(val, "|")
	}
	cfg.SpamCountThreshold, _ = strconv.Atoi(os.Getenv("SPAM_COUNT_THRESHOLD"))
	cfg.SRTOptions.MaxLineWidth, _ = strconv.Atoi(os.Getenv("SRT_MAX_LINE_WIDTH"))
	cfg.SRTOptions.MaxLineCount, _ = strconv.Atoi(os.Getenv("SRT_MAX_LINE_COUNT"))

	cfg.GladiaAPIKey = os.Getenv("GLADIA_API_KEY")
	cfg.GladiaBaseURL = strings.TrimSuffix(os.Getenv("GLADIA_BASE_URL"), "/")

	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		cfg.AllowedOrigins = strings.Split(val, ",")
	}

	cfg.R2.Endpoint = os.Getenv("R2_ENDPOINT")
	cfg.R2.Bucket = os.Getenv("R2_BUCKET")
	cfg.R2.AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	cfg.R2.SecretAccessKey = os.Getenv("R2_SECRET_ACCESS_KEY")
	cfg.R2.PublicBaseURL = os.Getenv("R2_PUBLIC_BASE_URL")

	return cfg, nil
}
