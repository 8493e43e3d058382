// Package llm asks an AI service to classify recipes the rule engine is
// unsure about. It supports OpenAI and Anthropic, with rate limiting,
// retries and a response cache keyed by recipe content.
package llm
