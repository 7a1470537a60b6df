// Package openai is the pipeline's client for the Azure OpenAI REST API.
// It exposes the four model operations the stages need (transcription,
// entity extraction, summarization, embeddings) and maps transport and API
// failures onto the shared error taxonomy so the stage executor can decide
// what to retry. The client itself never retries.
package openai
