package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// DataDir is the root for all flat-file stores (orders, wellness log, leads).
	DataDir     string
	FraudDBPath string
	CatalogPath string
	RecipesPath string

	AssemblyAIKey   string
	CerebrasKey     string
	CerebrasModelID string
	DeepgramKey     string
	DeepgramVoice   string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
}

// Load reads environment variables and returns Config with sane defaults.
// The Cerebras key is the only hard requirement; callers are expected to
// abort startup when HasLLM reports false.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "shared-data"
	}

	dbPath := os.Getenv("FRAUD_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "fraud_cases.db")
	}

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = filepath.Join(dataDir, "catalog.json")
	}
	recipesPath := os.Getenv("RECIPES_PATH")
	if recipesPath == "" {
		recipesPath = filepath.Join(dataDir, "recipes.json")
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - transcription will not work")
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "llama-4-maverick-17b-128e-instruct"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
	}
	deepgramVoice := os.Getenv("DEEPGRAM_VOICE")
	if deepgramVoice == "" {
		deepgramVoice = "aura-2-thalia-en"
	}

	twilioSID := os.Getenv("TWILIO_ACCOUNT_SID")
	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	twilioFrom := os.Getenv("TWILIO_FROM_NUMBER")
	if twilioSID == "" || twilioToken == "" {
		log.Println("Warning: Twilio credentials not set - outbound verification calls disabled")
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	supabaseBucket := os.Getenv("SUPABASE_BUCKET")
	if supabaseBucket == "" {
		supabaseBucket = "call-transcripts"
	}
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: Supabase credentials not set - transcript archival disabled")
	}

	log.Printf("config: HTTP_ADDRESS=%s DATA_DIR=%s", addr, dataDir)
	return Config{
		HTTPAddress:      addr,
		DataDir:          dataDir,
		FraudDBPath:      dbPath,
		CatalogPath:      catalogPath,
		RecipesPath:      recipesPath,
		AssemblyAIKey:    assemblyAIKey,
		CerebrasKey:      cerebrasKey,
		CerebrasModelID:  cerebrasModel,
		DeepgramKey:      deepgramKey,
		DeepgramVoice:    deepgramVoice,
		TwilioAccountSID: twilioSID,
		TwilioAuthToken:  twilioToken,
		TwilioFromNumber: twilioFrom,
		SupabaseURL:      supabaseURL,
		SupabaseKey:      supabaseKey,
		SupabaseBucket:   supabaseBucket,
	}
}

// HasLLM reports whether the required model-provider credential is present.
func (c Config) HasLLM() bool { return c.CerebrasKey != "" }

// HasTwilio reports whether outbound telephony is configured.
func (c Config) HasTwilio() bool { return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" }

// HasSupabase reports whether transcript archival is configured.
func (c Config) HasSupabase() bool { return c.SupabaseURL != "" && c.SupabaseKey != "" }
