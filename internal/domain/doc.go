// Package domain defines the core business entities and errors for the
// podcast processing pipeline: feeds, episodes, transcripts, summaries,
// prompt templates, and the episode stage state machine.
package domain
