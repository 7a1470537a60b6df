package config

import (
	"strings"

	"plenary/internal/language"
)

// normalize expands paths, fills zero-valued tunables with defaults, and
// canonicalizes enum-like fields.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return err
	}

	c.OpenAI.Endpoint = strings.TrimRight(strings.TrimSpace(c.OpenAI.Endpoint), "/")
	if c.OpenAI.APIVersion == "" {
		c.OpenAI.APIVersion = defaultOpenAIAPIVersion
	}
	if c.OpenAI.EmbeddingDimensions <= 0 {
		c.OpenAI.EmbeddingDimensions = defaultEmbeddingDimensions
	}
	if c.OpenAI.EmbeddingBatchSize <= 0 {
		c.OpenAI.EmbeddingBatchSize = defaultEmbeddingBatchSize
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeoutSeconds
	}

	if strings.TrimSpace(c.Vector.Table) == "" {
		c.Vector.Table = defaultVectorTable
	}
	if strings.TrimSpace(c.Media.DownloaderBinary) == "" {
		c.Media.DownloaderBinary = defaultDownloaderBinary
	}
	if strings.TrimSpace(c.Media.ProbeBinary) == "" {
		c.Media.ProbeBinary = defaultProbeBinary
	}
	if c.Media.MaxDurationHours <= 0 {
		c.Media.MaxDurationHours = defaultMaxDurationHours
	}
	if strings.TrimSpace(c.Media.AudioFormat) == "" {
		c.Media.AudioFormat = defaultAudioFormat
	}
	if strings.TrimSpace(c.Bus.SubjectPrefix) == "" {
		c.Bus.SubjectPrefix = defaultBusSubjectPrefix
	}

	p := &c.Pipeline
	fillInt(&p.RetryAttempts, defaultRetryAttempts)
	fillInt(&p.RetryBaseSeconds, defaultRetryBaseSeconds)
	fillInt(&p.RetryMaxSeconds, defaultRetryMaxSeconds)
	fillInt(&p.RunBudgetMinutes, defaultRunBudgetMinutes)
	fillInt(&p.MaxConcurrent, defaultMaxConcurrent)
	fillInt(&p.MetadataTimeout, defaultMetadataTimeout)
	fillInt(&p.AudioTimeout, defaultAudioTimeout)
	fillInt(&p.TranscribeTimeout, defaultTranscribeTimeout)
	fillInt(&p.EntitiesTimeout, defaultEntitiesTimeout)
	fillInt(&p.SummaryTimeout, defaultSummaryTimeout)
	fillInt(&p.EmbedTimeout, defaultEmbedTimeout)
	fillInt(&p.PersistTimeout, defaultPersistTimeout)
	p.DefaultLanguageTag = normalizeLanguage(p.DefaultLanguageTag)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

func fillInt(target *int, fallback int) {
	if *target <= 0 {
		*target = fallback
	}
}

// normalizeLanguage reduces a configured language tag to its canonical base
// form ("en-US" -> "en"). Unparseable tags fall back to the default.
func normalizeLanguage(tag string) string {
	if code := language.Normalize(tag); code != "" {
		return code
	}
	return defaultLanguage
}
