// Command plenary processes assembly session URLs into durable analysis
// records: transcript, entities, summary, and embeddings.
package main
