package config

const (
	defaultDataDir    = "~/.local/share/plenary"
	defaultLogDir     = "~/.local/share/plenary/logs"
	defaultScratchDir = "~/.local/share/plenary/scratch"

	defaultOpenAIAPIVersion      = "2024-02-15-preview"
	defaultTranscribeModel       = "gpt-4o-transcribe-diarize"
	defaultExtractionModel       = "gpt-4o"
	defaultEmbeddingModel        = "text-embedding-ada-002"
	defaultEmbeddingDimensions   = 1536
	defaultEmbeddingBatchSize    = 100
	defaultOpenAITimeoutSeconds  = 120
	defaultVectorTable           = "session_segments"
	defaultDownloaderBinary      = "yt-dlp"
	defaultProbeBinary           = "ffprobe"
	defaultMaxDurationHours      = 6
	defaultAudioFormat           = "m4a"
	defaultBusSubjectPrefix      = "plenary"
	defaultRetryAttempts         = 4
	defaultRetryBaseSeconds      = 1
	defaultRetryMaxSeconds       = 30
	defaultRunBudgetMinutes      = 120
	defaultMaxConcurrent         = 3
	defaultMetadataTimeout       = 60
	defaultAudioTimeout          = 1800
	defaultTranscribeTimeout     = 2700
	defaultEntitiesTimeout       = 600
	defaultSummaryTimeout        = 300
	defaultEmbedTimeout          = 600
	defaultPersistTimeout        = 60
	defaultLanguage              = "en"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			ScratchDir: defaultScratchDir,
		},
		OpenAI: OpenAI{
			APIVersion:          defaultOpenAIAPIVersion,
			TranscribeModel:     defaultTranscribeModel,
			ExtractionModel:     defaultExtractionModel,
			EmbeddingModel:      defaultEmbeddingModel,
			EmbeddingDimensions: defaultEmbeddingDimensions,
			EmbeddingBatchSize:  defaultEmbeddingBatchSize,
			TimeoutSeconds:      defaultOpenAITimeoutSeconds,
		},
		Vector: Vector{
			Enabled: false,
			Table:   defaultVectorTable,
		},
		Media: Media{
			DownloaderBinary: defaultDownloaderBinary,
			ProbeBinary:      defaultProbeBinary,
			MaxDurationHours: defaultMaxDurationHours,
			AudioFormat:      defaultAudioFormat,
		},
		Bus: Bus{
			Enabled:       false,
			SubjectPrefix: defaultBusSubjectPrefix,
		},
		Pipeline: Pipeline{
			RetryAttempts:      defaultRetryAttempts,
			RetryBaseSeconds:   defaultRetryBaseSeconds,
			RetryMaxSeconds:    defaultRetryMaxSeconds,
			RunBudgetMinutes:   defaultRunBudgetMinutes,
			MaxConcurrent:      defaultMaxConcurrent,
			MetadataTimeout:    defaultMetadataTimeout,
			AudioTimeout:       defaultAudioTimeout,
			TranscribeTimeout:  defaultTranscribeTimeout,
			EntitiesTimeout:    defaultEntitiesTimeout,
			SummaryTimeout:     defaultSummaryTimeout,
			EmbedTimeout:       defaultEmbedTimeout,
			PersistTimeout:     defaultPersistTimeout,
			DefaultLanguageTag: defaultLanguage,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
