// Package vector stores transcript segment embeddings in Postgres with the
// pgvector extension and serves cosine similarity queries over them.
package vector
