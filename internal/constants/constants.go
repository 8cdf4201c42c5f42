package constants

// MaxRequestBodySize is the largest HTTP request body accepted from Slack or
// API clients. Larger bodies are rejected.
const MaxRequestBodySize = 1 << 20 // 1 MB
