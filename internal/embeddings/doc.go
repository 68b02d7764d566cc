// Package embeddings turns text into vectors through an external model.
//
// Ollama and OpenAI-compatible endpoints are reached through langchaingo;
// fastembed runs ONNX models in process and needs a cgo build. Every provider
// wraps its failures with errs.ErrEmbeddingService and records otel metrics.
package embeddings
